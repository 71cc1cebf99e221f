// Package chain wraps the upstream EVM endpoint. The wallet can switch
// networks at runtime, so the client supports re-dialing in place while
// reads are in flight.
package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/halcyon-wallet/gateway/internal/walletcore"
)

type Client struct {
	mu     sync.RWMutex
	ec     *ethclient.Client
	url    string
	logger *log.Logger
}

var _ walletcore.ChainBackend = (*Client)(nil)

func Dial(url string, logger *log.Logger) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("chain: empty rpc url")
	}
	ec, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", url, err)
	}
	return &Client{ec: ec, url: url, logger: logger}, nil
}

// Switch re-points the client at a new endpoint. The old connection closes
// after the swap; in-flight calls on it finish on their own.
func (c *Client) Switch(url string) error {
	ec, err := ethclient.Dial(url)
	if err != nil {
		return fmt.Errorf("chain: dial %s: %w", url, err)
	}
	c.mu.Lock()
	old := c.ec
	c.ec = ec
	c.url = url
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	c.logf("endpoint switched to %s", url)
	return nil
}

func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ec != nil {
		c.ec.Close()
	}
}

func (c *Client) client() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ec
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.client().ChainID(ctx)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client().BlockNumber(ctx)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return c.client().BalanceAt(ctx, account, blockNumber)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.client().PendingNonceAt(ctx, account)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.client().SuggestGasPrice(ctx)
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.client().CallContract(ctx, msg, blockNumber)
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.client().EstimateGas(ctx, msg)
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
