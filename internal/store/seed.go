package store

import (
	"log"

	"golang.org/x/crypto/bcrypt"
)

// EnsureOperator seeds the UI login account on first boot. No-op when the
// username already exists.
func EnsureOperator(db *DB, username, password string) {
	if username == "" || password == "" {
		return
	}
	var count int64
	if err := db.Model(&Operator{}).Where("username = ?", username).Count(&count).Error; err != nil {
		log.Fatalf("operator lookup failed: %v", err)
	}
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("operator hash failed: %v", err)
	}
	op := Operator{
		Username: username,
		PassHash: string(hash),
	}
	if err := db.Create(&op).Error; err != nil {
		log.Fatalf("create operator failed: %v", err)
	}
	log.Printf("seeded operator account %s", username)
}

// EnsureDefaultNetworks seeds the network registry when it is empty, with
// mainnet active.
func EnsureDefaultNetworks(db *DB) {
	var count int64
	if err := db.Model(&Network{}).Count(&count).Error; err != nil {
		log.Fatalf("network lookup failed: %v", err)
	}
	if count > 0 {
		return
	}
	defaults := []Network{
		{ChainID: 1, Name: "Ethereum Mainnet", RPCURL: "https://eth.llamarpc.com", CurrencySymbol: "ETH", ExplorerURL: "https://etherscan.io", Active: true},
		{ChainID: 11155111, Name: "Sepolia", RPCURL: "https://rpc.sepolia.org", CurrencySymbol: "ETH", ExplorerURL: "https://sepolia.etherscan.io"},
	}
	if err := db.Create(&defaults).Error; err != nil {
		log.Fatalf("seed networks failed: %v", err)
	}
	log.Printf("seeded %d default networks", len(defaults))
}
