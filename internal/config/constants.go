package config

import "time"

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 30 * time.Minute
)

// Server timeouts. Write timeout is left unset so SSE streams stay open.
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

const (
	StorePingTimeout   = 5 * time.Second
	CleanupJobInterval = 5 * time.Minute
)

// LinkRateLimitWindow pairs with LINK_RATE_LIMIT_PER_MIN.
const LinkRateLimitWindow = time.Minute

// MaxBodyBytes bounds request bodies; UserData payloads are the largest.
const MaxBodyBytes = 256 << 10
