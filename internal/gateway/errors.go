package gateway

import (
	"errors"
	"fmt"

	"github.com/halcyon-wallet/gateway/internal/ratelimit"
	"github.com/halcyon-wallet/gateway/internal/walletcore"
)

// Provider error codes surfaced to dApps. 4xxx follow EIP-1193, the
// negative ones are JSON-RPC 2.0.
const (
	CodeUserRejected       = 4001
	CodeUnauthorized       = 4100
	CodeMethodNotSupported = 4200
	CodeRateLimited        = 4902
	CodeRequestExpired     = 4904
	CodeInvalidParams      = -32602
	CodeInternal           = -32603
)

// Error is the provider-facing failure shape. Data is optional structured
// detail (e.g. the rate-limit tier that tripped).
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func errUserRejected() *Error {
	return &Error{Code: CodeUserRejected, Message: "user rejected the request"}
}

func errUnauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

func errMethodNotSupported(method string) *Error {
	return &Error{Code: CodeMethodNotSupported, Message: "method not supported: " + method}
}

func errRateLimited(le *ratelimit.LimitError) *Error {
	return &Error{
		Code:    CodeRateLimited,
		Message: "rate limit exceeded",
		Data:    map[string]string{"tier": string(le.Tier), "method": le.Method},
	}
}

func errRequestExpired() *Error {
	return &Error{Code: CodeRequestExpired, Message: "approval request expired"}
}

func errInvalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

func errInternal(err error) *Error {
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// asProviderError normalizes any failure into an *Error without double
// wrapping. Wallet core sentinels get their mandated codes.
func asProviderError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, walletcore.ErrLocked):
		return errUnauthorized("wallet is locked")
	case errors.Is(err, walletcore.ErrInvalidPassword):
		return errUnauthorized("invalid password")
	case errors.Is(err, walletcore.ErrUnknownAccount):
		return errUnauthorized("account not managed by this wallet")
	}
	var le *ratelimit.LimitError
	if errors.As(err, &le) {
		return errRateLimited(le)
	}
	return errInternal(err)
}
