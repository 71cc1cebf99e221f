package config

import "time"

type GatewayConfig struct {
	// SessionMaxIdle is how long a dApp session may sit unused before the
	// janitor removes it.
	SessionMaxIdle time.Duration
	// SessionSweep is the janitor interval.
	SessionSweep time.Duration
	// ApprovalLogLimit caps audit rows returned to the UI.
	ApprovalLogLimit int
}

func loadGateway() GatewayConfig {
	return GatewayConfig{
		SessionMaxIdle:   durationEnvHours("SESSION_MAX_IDLE", 24*time.Hour),
		SessionSweep:     durationEnvSeconds("SESSION_SWEEP_INTERVAL", 10*time.Minute),
		ApprovalLogLimit: intEnv("APPROVAL_LOG_LIMIT", 100),
	}
}
