package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Sweeper per-run timeout
const SweepTimeout = 30 * time.Second

// Pairing code generation
const (
	MinPairingCodeLength      = 6
	MaxPairingCodeLength      = 12
	MaxCodeGenerationAttempts = 5
)

// Rate limit window shared by the IP limiters
const RateLimitWindow = time.Minute
