package config

type ServerConfig struct {
	HTTPAddr    string
	CORSOrigins []string
}

func loadServer() ServerConfig {
	return ServerConfig{
		HTTPAddr:    getenv("HTTP_ADDR", "127.0.0.1:8545"),
		CORSOrigins: listEnv("CORS_ORIGINS", []string{"http://localhost:1420"}),
	}
}
