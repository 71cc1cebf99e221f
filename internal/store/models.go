package store

import "time"

// Operator is the wallet UI login account.
type Operator struct {
	ID        uint      `gorm:"primaryKey"`
	Username  string    `gorm:"size:64;uniqueIndex"`
	PassHash  string    `gorm:"size:100"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Network is one EVM network the wallet can point at. Exactly one row is
// active at a time.
type Network struct {
	ID             uint      `gorm:"primaryKey"`
	ChainID        uint64    `gorm:"uniqueIndex;not null"`
	Name           string    `gorm:"size:128;not null"`
	RPCURL         string    `gorm:"size:512;not null"`
	CurrencySymbol string    `gorm:"size:16"`
	ExplorerURL    string    `gorm:"size:512"`
	Active         bool      `gorm:"index"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// WatchedAsset is an ERC-20 token the user accepted via wallet_watchAsset.
type WatchedAsset struct {
	ID        uint      `gorm:"primaryKey"`
	ChainID   uint64    `gorm:"uniqueIndex:idx_asset_chain_addr"`
	Address   string    `gorm:"size:66;uniqueIndex:idx_asset_chain_addr"`
	Symbol    string    `gorm:"size:16;not null"`
	Decimals  uint8     `gorm:"not null"`
	Image     string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TrustedDapp is an origin the user marked as trusted; its connection
// requests skip the approval prompt.
type TrustedDapp struct {
	ID        uint      `gorm:"primaryKey"`
	Origin    string    `gorm:"size:255;uniqueIndex;not null"`
	Name      string    `gorm:"size:128"`
	Icon      string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// ApprovalLog is the audit trail: one row per resolved approval request.
type ApprovalLog struct {
	ID        uint      `gorm:"primaryKey"`
	RequestID string    `gorm:"size:40;uniqueIndex;not null"`
	Origin    string    `gorm:"size:255;index"`
	WindowID  string    `gorm:"size:64"`
	Kind      string    `gorm:"size:32;index"`
	Decision  string    `gorm:"size:16"`
	Summary   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
