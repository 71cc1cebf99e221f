// Package gateway dispatches dApp JSON-RPC calls through the wallet's
// policy chain: rate limiting, session authorization, user approval, and
// finally the signing core or chain backend.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/halcyon-wallet/gateway/internal/approval"
	"github.com/halcyon-wallet/gateway/internal/ratelimit"
	"github.com/halcyon-wallet/gateway/internal/session"
	"github.com/halcyon-wallet/gateway/internal/walletcore"
)

// Call is one provider request attributed to its origin and window.
type Call struct {
	Origin   string
	WindowID string
	Method   string
	Params   json.RawMessage

	// Optional dApp metadata shown on connection prompts.
	AppName string
	AppIcon string
}

// WalletOps applies user-approved wallet mutations that live outside the
// signing core: network registry and the watched-asset list.
type WalletOps interface {
	SwitchNetwork(ctx context.Context, chainID uint64) error
	AddNetwork(ctx context.Context, p approval.AddNetworkPayload) error
	WatchAsset(ctx context.Context, p approval.WatchAssetPayload) error
}

// Deps wires the gateway's collaborators. Logger and TrustedOrigin may be
// nil.
type Deps struct {
	Limiter   *ratelimit.Limiter
	Sessions  *session.Manager
	Approvals *approval.Queue
	Core      walletcore.Core
	Chain     walletcore.ChainBackend
	Ops       WalletOps

	// TrustedOrigin reports origins the user marked as trusted; their
	// connection requests skip the prompt. Signing always prompts.
	TrustedOrigin func(origin string) bool

	Logger *log.Logger
}

type Gateway struct {
	limiter   *ratelimit.Limiter
	sessions  *session.Manager
	approvals *approval.Queue
	core      walletcore.Core
	chain     walletcore.ChainBackend
	ops       WalletOps
	trusted   func(string) bool
	logger    *log.Logger
}

func New(d Deps) *Gateway {
	return &Gateway{
		limiter:   d.Limiter,
		sessions:  d.Sessions,
		approvals: d.Approvals,
		core:      d.Core,
		chain:     d.Chain,
		ops:       d.Ops,
		trusted:   d.TrustedOrigin,
		logger:    d.Logger,
	}
}

// grant is the structured data the approval UI attaches when approving.
type grant struct {
	Password string   `json:"password"`
	Accounts []string `json:"accounts"`
}

// Handle runs one call through the policy chain. The returned error is
// always a *Error carrying a provider code.
func (g *Gateway) Handle(ctx context.Context, call Call) (any, error) {
	if err := g.limiter.CheckAndConsume(call.Origin, call.Method); err != nil {
		g.logf("rate limited: origin=%s method=%s", call.Origin, call.Method)
		return nil, asProviderError(err)
	}

	switch call.Method {
	// Open methods: no session required.
	case "eth_chainId":
		return g.chainIDHex(ctx)
	case "net_version":
		return g.netVersion(ctx)
	case "eth_blockNumber":
		return g.blockNumber(ctx)
	case "eth_accounts":
		return g.accounts(call), nil
	case "wallet_getPermissions":
		return g.permissions(call), nil

	// Connection methods.
	case "eth_requestAccounts":
		return g.connect(ctx, call)
	case "wallet_requestPermissions":
		if _, err := g.connect(ctx, call); err != nil {
			return nil, err
		}
		return g.permissions(call), nil
	case "wallet_revokePermissions":
		g.revokePermissions(call)
		return nil, nil

	// Session-scoped reads.
	case "eth_getBalance":
		return g.withSession(call, func() (any, error) { return g.balance(ctx, call) })
	case "eth_getTransactionCount":
		return g.withSession(call, func() (any, error) { return g.nonce(ctx, call) })
	case "eth_gasPrice":
		return g.withSession(call, func() (any, error) { return g.gasPrice(ctx) })
	case "eth_call":
		return g.withSession(call, func() (any, error) { return g.ethCall(ctx, call) })
	case "eth_estimateGas":
		return g.withSession(call, func() (any, error) { return g.estimateGas(ctx, call) })

	// Consent methods: session plus an explicit user approval.
	case "eth_sendTransaction":
		return g.withSession(call, func() (any, error) { return g.sendTransaction(ctx, call) })
	case "personal_sign":
		return g.withSession(call, func() (any, error) { return g.personalSign(ctx, call) })
	case "eth_signTypedData", "eth_signTypedData_v3", "eth_signTypedData_v4":
		return g.withSession(call, func() (any, error) { return g.signTypedData(ctx, call) })
	case "wallet_switchEthereumChain":
		return g.withSession(call, func() (any, error) { return g.switchChain(ctx, call) })
	case "wallet_addEthereumChain":
		return g.withSession(call, func() (any, error) { return g.addChain(ctx, call) })
	case "wallet_watchAsset":
		return g.withSession(call, func() (any, error) { return g.watchAsset(ctx, call) })

	default:
		return nil, errMethodNotSupported(call.Method)
	}
}

// CloseWindow tears down everything tied to a closed dApp window: pending
// approvals resolve as rejected, the session goes away.
func (g *Gateway) CloseWindow(windowID string) {
	n := g.approvals.CancelWindow(windowID)
	g.sessions.Remove(windowID)
	g.logf("window closed: id=%s canceledApprovals=%d", windowID, n)
}

func (g *Gateway) withSession(call Call, fn func() (any, error)) (any, error) {
	if err := g.sessions.Validate(call.WindowID, call.Origin); err != nil {
		return nil, errUnauthorized("not connected: call eth_requestAccounts first")
	}
	g.sessions.UpdateLastActivity(call.WindowID)
	return fn()
}

func (g *Gateway) session(call Call) (*session.Session, error) {
	sess, err := g.sessions.GetByWindow(call.WindowID)
	if err != nil || sess.Origin != call.Origin {
		return nil, errUnauthorized("not connected: call eth_requestAccounts first")
	}
	return sess, nil
}

// --- open methods ---

func (g *Gateway) chainIDHex(ctx context.Context) (any, error) {
	id, err := g.chain.ChainID(ctx)
	if err != nil {
		return nil, errInternal(err)
	}
	return hexutil.EncodeBig(id), nil
}

func (g *Gateway) netVersion(ctx context.Context) (any, error) {
	id, err := g.chain.ChainID(ctx)
	if err != nil {
		return nil, errInternal(err)
	}
	return id.String(), nil
}

func (g *Gateway) blockNumber(ctx context.Context) (any, error) {
	n, err := g.chain.BlockNumber(ctx)
	if err != nil {
		return nil, errInternal(err)
	}
	return hexutil.EncodeUint64(n), nil
}

// accounts returns the session's account list, or an empty list when the
// window is not connected. Never an error: dApps probe this constantly.
func (g *Gateway) accounts(call Call) []string {
	sess, err := g.sessions.GetByWindow(call.WindowID)
	if err != nil || sess.Origin != call.Origin {
		return []string{}
	}
	return addressStrings(sess.Accounts)
}

// permission is the EIP-2255 wallet_getPermissions entry shape.
type permission struct {
	ParentCapability string   `json:"parentCapability"`
	Invoker          string   `json:"invoker"`
	Caveats          []caveat `json:"caveats"`
}

type caveat struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func (g *Gateway) permissions(call Call) []permission {
	sess, err := g.sessions.GetByWindow(call.WindowID)
	if err != nil || sess.Origin != call.Origin {
		return []permission{}
	}
	return []permission{{
		ParentCapability: "eth_accounts",
		Invoker:          call.Origin,
		Caveats: []caveat{{
			Type:  "restrictReturnedAccounts",
			Value: addressStrings(sess.Accounts),
		}},
	}}
}

// revokePermissions disconnects the window. eth_accounts is the only
// capability ever granted, so revocation ignores which one the dApp names.
func (g *Gateway) revokePermissions(call Call) {
	sess, err := g.sessions.GetByWindow(call.WindowID)
	if err != nil || sess.Origin != call.Origin {
		return
	}
	n := g.approvals.CancelWindow(call.WindowID)
	g.sessions.Remove(call.WindowID)
	g.logf("permissions revoked: origin=%s window=%s canceledApprovals=%d", call.Origin, call.WindowID, n)
}

// --- connection ---

// connect implements eth_requestAccounts. Repeat calls from a connected
// window return the existing account list without prompting. Trusted
// origins connect silently.
func (g *Gateway) connect(ctx context.Context, call Call) (any, error) {
	if sess, err := g.sessions.GetByWindow(call.WindowID); err == nil && sess.Origin == call.Origin {
		g.sessions.UpdateLastActivity(call.WindowID)
		return addressStrings(sess.Accounts), nil
	}

	if g.trusted != nil && g.trusted(call.Origin) {
		accounts, err := g.core.Accounts(ctx)
		if err != nil {
			return nil, asProviderError(err)
		}
		if len(accounts) == 0 {
			return nil, errUnauthorized("no accounts available")
		}
		g.sessions.CreateAutoApproved(call.WindowID, call.Origin, call.AppName, call.AppIcon, accounts)
		return addressStrings(accounts), nil
	}

	out, err := g.askApproval(ctx, approval.Request{
		Origin:   call.Origin,
		WindowID: call.WindowID,
		Kind:     approval.KindConnection,
	})
	if err != nil {
		return nil, err
	}

	accounts, err := g.grantedAccounts(ctx, out)
	if err != nil {
		return nil, err
	}
	g.sessions.Create(call.WindowID, call.Origin, call.AppName, call.AppIcon, accounts)
	return addressStrings(accounts), nil
}

// grantedAccounts resolves the account list for a freshly approved
// connection: the UI's selection when it made one, otherwise every account
// the core manages.
func (g *Gateway) grantedAccounts(ctx context.Context, out approval.Outcome) ([]common.Address, error) {
	var gr grant
	if len(out.Data) > 0 {
		if err := json.Unmarshal(out.Data, &gr); err != nil {
			return nil, errInternal(err)
		}
	}
	if len(gr.Accounts) > 0 {
		accounts := make([]common.Address, 0, len(gr.Accounts))
		for _, s := range gr.Accounts {
			if !common.IsHexAddress(s) {
				return nil, errInvalidParams("approval carried an invalid account address")
			}
			accounts = append(accounts, common.HexToAddress(s))
		}
		return accounts, nil
	}
	accounts, err := g.core.Accounts(ctx)
	if err != nil {
		return nil, asProviderError(err)
	}
	if len(accounts) == 0 {
		return nil, errUnauthorized("no accounts available")
	}
	return accounts, nil
}

// --- reads ---

func (g *Gateway) balance(ctx context.Context, call Call) (any, error) {
	addr, err := parseBalanceParams(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	bal, err := g.chain.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, errInternal(err)
	}
	return hexutil.EncodeBig(bal), nil
}

func (g *Gateway) nonce(ctx context.Context, call Call) (any, error) {
	addr, err := parseBalanceParams(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	n, err := g.chain.PendingNonceAt(ctx, addr)
	if err != nil {
		return nil, errInternal(err)
	}
	return hexutil.EncodeUint64(n), nil
}

func (g *Gateway) gasPrice(ctx context.Context) (any, error) {
	p, err := g.chain.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errInternal(err)
	}
	return hexutil.EncodeBig(p), nil
}

func (g *Gateway) ethCall(ctx context.Context, call Call) (any, error) {
	tx, err := parseTxParams(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	out, err := g.chain.CallContract(ctx, ethereum.CallMsg{
		From:     tx.From,
		To:       tx.To,
		Value:    tx.value(),
		Gas:      tx.gasLimit(),
		GasPrice: tx.gasPrice(),
		Data:     tx.callData(),
	}, nil)
	if err != nil {
		return nil, errInternal(err)
	}
	return hexutil.Encode(out), nil
}

func (g *Gateway) estimateGas(ctx context.Context, call Call) (any, error) {
	tx, err := parseTxParams(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	gas, err := g.chain.EstimateGas(ctx, ethereum.CallMsg{
		From:     tx.From,
		To:       tx.To,
		Value:    tx.value(),
		GasPrice: tx.gasPrice(),
		Data:     tx.callData(),
	})
	if err != nil {
		return nil, errInternal(err)
	}
	return hexutil.EncodeUint64(gas), nil
}

// --- consent methods ---

func (g *Gateway) sendTransaction(ctx context.Context, call Call) (any, error) {
	sess, err := g.session(call)
	if err != nil {
		return nil, err
	}
	tx, err := parseTxParams(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	if !sess.HasAccount(tx.From) {
		return nil, errUnauthorized("from address is not authorized for this session")
	}

	gasLimit := tx.gasLimit()
	if gasLimit == 0 {
		gasLimit, err = g.chain.EstimateGas(ctx, ethereum.CallMsg{
			From: tx.From, To: tx.To, Value: tx.value(), Data: tx.callData(),
		})
		if err != nil {
			return nil, errInternal(err)
		}
	}
	gasPrice := tx.gasPrice()
	if gasPrice == nil {
		gasPrice, err = g.chain.SuggestGasPrice(ctx)
		if err != nil {
			return nil, errInternal(err)
		}
	}

	to := ""
	if tx.To != nil {
		to = strings.ToLower(tx.To.Hex())
	}
	out, err := g.askApproval(ctx, approval.Request{
		Origin:   call.Origin,
		WindowID: call.WindowID,
		Kind:     approval.KindTransaction,
		Transaction: &approval.TransactionPayload{
			From:       strings.ToLower(tx.From.Hex()),
			To:         to,
			Value:      tx.value().String(),
			ValueEther: formatEther(tx.value()),
			GasLimit:   gasLimit,
			GasPrice:   gasPrice.String(),
			Data:       hexutil.Encode(tx.callData()),
		},
	})
	if err != nil {
		return nil, err
	}
	gr, err := decodeGrant(out)
	if err != nil {
		return nil, err
	}

	hash, err := g.core.SendTransaction(ctx, gr.Password, walletcore.TxRequest{
		From:     tx.From,
		To:       tx.To,
		Value:    tx.value(),
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Data:     tx.callData(),
	})
	if err != nil {
		return nil, asProviderError(err)
	}
	g.logf("transaction sent: origin=%s hash=%s", call.Origin, hash.Hex())
	return hash.Hex(), nil
}

func (g *Gateway) personalSign(ctx context.Context, call Call) (any, error) {
	sess, err := g.session(call)
	if err != nil {
		return nil, err
	}
	addr, msg, err := parsePersonalSign(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	if !sess.HasAccount(addr) {
		return nil, errUnauthorized("signer address is not authorized for this session")
	}

	out, err := g.askApproval(ctx, approval.Request{
		Origin:   call.Origin,
		WindowID: call.WindowID,
		Kind:     approval.KindPersonalSign,
		PersonalSign: &approval.PersonalSignPayload{
			Address: strings.ToLower(addr.Hex()),
			Message: displayMessage(msg),
		},
	})
	if err != nil {
		return nil, err
	}
	gr, err := decodeGrant(out)
	if err != nil {
		return nil, err
	}

	sig, err := g.core.PersonalSign(ctx, gr.Password, addr, msg)
	if err != nil {
		return nil, asProviderError(err)
	}
	return hexutil.Encode(sig), nil
}

func (g *Gateway) signTypedData(ctx context.Context, call Call) (any, error) {
	sess, err := g.session(call)
	if err != nil {
		return nil, err
	}
	addr, typed, err := parseTypedData(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	if !sess.HasAccount(addr) {
		return nil, errUnauthorized("signer address is not authorized for this session")
	}

	out, err := g.askApproval(ctx, approval.Request{
		Origin:   call.Origin,
		WindowID: call.WindowID,
		Kind:     approval.KindTypedDataSign,
		TypedData: &approval.TypedDataPayload{
			Address:   strings.ToLower(addr.Hex()),
			TypedData: typed,
		},
	})
	if err != nil {
		return nil, err
	}
	gr, err := decodeGrant(out)
	if err != nil {
		return nil, err
	}

	sig, err := g.core.SignTypedData(ctx, gr.Password, addr, typed)
	if err != nil {
		return nil, asProviderError(err)
	}
	return hexutil.Encode(sig), nil
}

func (g *Gateway) switchChain(ctx context.Context, call Call) (any, error) {
	chainID, err := parseChainIDParam(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	if _, err := g.askApproval(ctx, approval.Request{
		Origin:        call.Origin,
		WindowID:      call.WindowID,
		Kind:          approval.KindSwitchNetwork,
		SwitchNetwork: &approval.SwitchNetworkPayload{ChainID: chainID},
	}); err != nil {
		return nil, err
	}
	if err := g.ops.SwitchNetwork(ctx, chainID); err != nil {
		return nil, asProviderError(err)
	}
	// Per EIP-3326 the success result is null.
	return nil, nil
}

func (g *Gateway) addChain(ctx context.Context, call Call) (any, error) {
	p, chainID, err := parseAddChain(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	payload := approval.AddNetworkPayload{
		ChainID:   chainID,
		ChainName: p.ChainName,
		RPCURL:    p.RPCURLs[0],
	}
	if p.NativeCurrency != nil {
		payload.CurrencySymbol = p.NativeCurrency.Symbol
	}
	if len(p.BlockExplorerURLs) > 0 {
		payload.ExplorerURL = p.BlockExplorerURLs[0]
	}
	if _, err := g.askApproval(ctx, approval.Request{
		Origin:     call.Origin,
		WindowID:   call.WindowID,
		Kind:       approval.KindAddNetwork,
		AddNetwork: &payload,
	}); err != nil {
		return nil, err
	}
	if err := g.ops.AddNetwork(ctx, payload); err != nil {
		return nil, asProviderError(err)
	}
	return nil, nil
}

func (g *Gateway) watchAsset(ctx context.Context, call Call) (any, error) {
	p, err := parseWatchAsset(call.Params)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	payload := approval.WatchAssetPayload{
		AssetType: p.Type,
		Address:   strings.ToLower(common.HexToAddress(p.Options.Address).Hex()),
		Symbol:    p.Options.Symbol,
		Decimals:  p.Options.Decimals,
		Image:     p.Options.Image,
	}
	if _, err := g.askApproval(ctx, approval.Request{
		Origin:     call.Origin,
		WindowID:   call.WindowID,
		Kind:       approval.KindWatchAsset,
		WatchAsset: &payload,
	}); err != nil {
		return nil, err
	}
	if err := g.ops.WatchAsset(ctx, payload); err != nil {
		return nil, asProviderError(err)
	}
	// Per EIP-747 the result reports whether the asset was added.
	return true, nil
}

// --- approval plumbing ---

// askApproval enqueues the request and suspends until the user decides, the
// deadline passes, or the caller's transport goes away.
func (g *Gateway) askApproval(ctx context.Context, req approval.Request) (approval.Outcome, error) {
	p, err := g.approvals.Enqueue(req)
	if err != nil {
		if err == approval.ErrQueueFull {
			return approval.Outcome{}, &Error{Code: CodeRateLimited, Message: "too many pending approval requests"}
		}
		return approval.Outcome{}, errInternal(err)
	}
	g.logf("approval pending: id=%s kind=%s origin=%s", p.ID(), req.Kind, req.Origin)

	select {
	case <-ctx.Done():
		g.approvals.Cancel(p.ID())
		return approval.Outcome{}, errUserRejected()
	case out := <-p.Done():
		switch out.Decision {
		case approval.DecisionApproved:
			return out, nil
		case approval.DecisionExpired:
			return approval.Outcome{}, errRequestExpired()
		default:
			return approval.Outcome{}, errUserRejected()
		}
	}
}

func decodeGrant(out approval.Outcome) (grant, error) {
	var gr grant
	if len(out.Data) > 0 {
		if err := json.Unmarshal(out.Data, &gr); err != nil {
			return grant{}, errInternal(err)
		}
	}
	return gr, nil
}

func addressStrings(accounts []common.Address) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = strings.ToLower(a.Hex())
	}
	return out
}

func (g *Gateway) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}
