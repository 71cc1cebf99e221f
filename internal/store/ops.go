package store

import (
	"context"
	"fmt"
	"log"

	"github.com/halcyon-wallet/gateway/internal/approval"
)

// Ops applies user-approved wallet mutations to the registry tables. It is
// what the request gateway calls after a switch/add/watch approval resolves.
type Ops struct {
	repo   *Repository
	logger *log.Logger

	// onSwitch fires after the active network changes so the chain client
	// can re-dial.
	onSwitch func(Network)
}

func NewOps(repo *Repository, logger *log.Logger) *Ops {
	return &Ops{repo: repo, logger: logger}
}

func (o *Ops) OnSwitch(fn func(Network)) { o.onSwitch = fn }

func (o *Ops) SwitchNetwork(ctx context.Context, chainID uint64) error {
	n, err := o.repo.GetNetworkByChainID(ctx, chainID)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("chain %d is not registered; add it with wallet_addEthereumChain first", chainID)
	}
	if err := o.repo.SetActiveNetwork(ctx, chainID); err != nil {
		return err
	}
	o.logf("active network switched to %s (chain %d)", n.Name, chainID)
	if o.onSwitch != nil {
		o.onSwitch(*n)
	}
	return nil
}

func (o *Ops) AddNetwork(ctx context.Context, p approval.AddNetworkPayload) error {
	if err := o.repo.UpsertNetwork(ctx, &Network{
		ChainID:        p.ChainID,
		Name:           p.ChainName,
		RPCURL:         p.RPCURL,
		CurrencySymbol: p.CurrencySymbol,
		ExplorerURL:    p.ExplorerURL,
	}); err != nil {
		return err
	}
	o.logf("network registered: %s (chain %d)", p.ChainName, p.ChainID)
	return nil
}

func (o *Ops) WatchAsset(ctx context.Context, p approval.WatchAssetPayload) error {
	active, err := o.repo.GetActiveNetwork(ctx)
	if err != nil {
		return err
	}
	if active == nil {
		return fmt.Errorf("no active network to attach the asset to")
	}
	if err := o.repo.UpsertAsset(ctx, &WatchedAsset{
		ChainID:  active.ChainID,
		Address:  p.Address,
		Symbol:   p.Symbol,
		Decimals: p.Decimals,
		Image:    p.Image,
	}); err != nil {
		return err
	}
	o.logf("asset watched: %s (%s) on chain %d", p.Symbol, p.Address, active.ChainID)
	return nil
}

func (o *Ops) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
