package config

type ChainConfig struct {
	// RPCURL overrides the active network's endpoint when set.
	RPCURL  string
	ChainID uint64
}

func loadChain() ChainConfig {
	return ChainConfig{
		RPCURL:  getenv("CHAIN_RPC_URL", ""),
		ChainID: u64env("CHAIN_ID", 0),
	}
}
