package config

import "time"

type AuthConfig struct {
	JWTSecret        string
	JWTTTL           time.Duration
	OperatorUsername string
	OperatorPassword string
}

func loadAuth() AuthConfig {
	return AuthConfig{
		JWTSecret:        mustenv("JWT_SECRET"),
		JWTTTL:           durationEnvHours("JWT_TTL", 24*time.Hour),
		OperatorUsername: getenv("OPERATOR_USERNAME", "operator"),
		OperatorPassword: getenv("OPERATOR_PASSWORD", ""),
	}
}
