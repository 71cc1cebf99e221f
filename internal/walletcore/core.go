// Package walletcore defines the boundary to the signing core that owns keys
// and to the chain backend that serves reads. The gateway never touches key
// material; it hands fully validated requests across this boundary.
package walletcore

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrLocked          = errors.New("walletcore: wallet is locked")
	ErrInvalidPassword = errors.New("walletcore: invalid password")
	ErrUnknownAccount  = errors.New("walletcore: unknown account")
	ErrDetached        = errors.New("walletcore: no signing core attached")
)

// TxRequest is a signing-ready transaction. To is nil for contract creation.
type TxRequest struct {
	From     common.Address
	To       *common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// Core signs on behalf of unlocked accounts. Password is the user's unlock
// secret collected by the approval UI; implementations verify it per call.
type Core interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	SendTransaction(ctx context.Context, password string, tx TxRequest) (common.Hash, error)
	PersonalSign(ctx context.Context, password string, account common.Address, message []byte) ([]byte, error)
	SignTypedData(ctx context.Context, password string, account common.Address, typedData json.RawMessage) ([]byte, error)
}

// ChainBackend serves read-only chain state. ethclient.Client satisfies it.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Detached is the Core used when no signing backend has been attached yet.
// Every signing call fails with ErrDetached; Accounts reports none.
type Detached struct{}

var _ Core = Detached{}

func (Detached) Accounts(context.Context) ([]common.Address, error) { return nil, nil }

func (Detached) SendTransaction(context.Context, string, TxRequest) (common.Hash, error) {
	return common.Hash{}, ErrDetached
}

func (Detached) PersonalSign(context.Context, string, common.Address, []byte) ([]byte, error) {
	return nil, ErrDetached
}

func (Detached) SignTypedData(context.Context, string, common.Address, json.RawMessage) ([]byte, error) {
	return nil, ErrDetached
}
