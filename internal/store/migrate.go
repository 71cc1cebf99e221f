package store

import "log"

func AutoMigrate(db *DB) {
	if err := db.AutoMigrate(
		&Operator{},
		&Network{},
		&WatchedAsset{},
		&TrustedDapp{},
		&ApprovalLog{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
}
