package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *DB) *Repository { return &Repository{db: db.DB} }

func (r *Repository) GetOperatorByUsername(ctx context.Context, username string) (*Operator, error) {
	var op Operator
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&op).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

func (r *Repository) ListNetworks(ctx context.Context) ([]Network, error) {
	var out []Network
	err := r.db.WithContext(ctx).Order("chain_id asc").Find(&out).Error
	return out, err
}

func (r *Repository) GetNetworkByChainID(ctx context.Context, chainID uint64) (*Network, error) {
	var n Network
	err := r.db.WithContext(ctx).Where("chain_id = ?", chainID).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *Repository) GetActiveNetwork(ctx context.Context) (*Network, error) {
	var n Network
	err := r.db.WithContext(ctx).Where("active = ?", true).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *Repository) UpsertNetwork(ctx context.Context, n *Network) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":            n.Name,
			"rpc_url":         n.RPCURL,
			"currency_symbol": n.CurrencySymbol,
			"explorer_url":    n.ExplorerURL,
			"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(n).Error
}

// SetActiveNetwork flips the single active flag to the given chain in one
// transaction. ErrNotFound when the chain is not registered.
func (r *Repository) SetActiveNetwork(ctx context.Context, chainID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Network{}).Where("chain_id = ?", chainID).Update("active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&Network{}).Where("chain_id <> ?", chainID).Update("active", false).Error
	})
}

func (r *Repository) DeleteNetwork(ctx context.Context, chainID uint64) error {
	res := r.db.WithContext(ctx).Where("chain_id = ? AND active = ?", chainID, false).Delete(&Network{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListAssets(ctx context.Context, chainID uint64) ([]WatchedAsset, error) {
	var out []WatchedAsset
	err := r.db.WithContext(ctx).Where("chain_id = ?", chainID).Order("id asc").Find(&out).Error
	return out, err
}

func (r *Repository) UpsertAsset(ctx context.Context, a *WatchedAsset) error {
	addr, err := NormalizeAddress(a.Address)
	if err != nil {
		return err
	}
	a.Address = addr
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain_id"}, {Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"symbol":     a.Symbol,
			"decimals":   a.Decimals,
			"image":      a.Image,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(a).Error
}

func (r *Repository) DeleteAsset(ctx context.Context, chainID uint64, address string) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Where("chain_id = ? AND address = ?", chainID, addr).
		Delete(&WatchedAsset{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListTrustedDapps(ctx context.Context) ([]TrustedDapp, error) {
	var out []TrustedDapp
	err := r.db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

func (r *Repository) IsTrustedOrigin(ctx context.Context, origin string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&TrustedDapp{}).Where("origin = ?", origin).Count(&count).Error
	return count > 0, err
}

func (r *Repository) UpsertTrustedDapp(ctx context.Context, d *TrustedDapp) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "origin"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":       d.Name,
			"icon":       d.Icon,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(d).Error
}

func (r *Repository) DeleteTrustedDapp(ctx context.Context, origin string) error {
	res := r.db.WithContext(ctx).Where("origin = ?", origin).Delete(&TrustedDapp{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) InsertApprovalLog(ctx context.Context, entry *ApprovalLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) ListApprovalLogs(ctx context.Context, limit int) ([]ApprovalLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []ApprovalLog
	err := r.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}
