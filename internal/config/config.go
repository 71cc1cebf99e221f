// Package config loads process configuration from the environment, with a
// .env file picked up for dev convenience.
package config

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Chain    ChainConfig
	Gateway  GatewayConfig
}

func Load() Config {
	ensureEnvLoaded()
	return Config{
		Server:   loadServer(),
		Database: loadDatabase(),
		Auth:     loadAuth(),
		Chain:    loadChain(),
		Gateway:  loadGateway(),
	}
}
