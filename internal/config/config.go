package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	StoreBackend           string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL               string `env:"REDIS_URL"`
	DatabaseURL            string `env:"DATABASE_URL"`
	LinkCodeTTLSeconds     int    `env:"LINK_CODE_TTL_SECONDS" envDefault:"900"`
	SyncSessionTTLSeconds  int    `env:"SYNC_SESSION_TTL_SECONDS" envDefault:"900"`
	DeviceSessionTTLHours  int    `env:"DEVICE_SESSION_TTL_HOURS" envDefault:"720"`
	UserDataRetentionHours int    `env:"USER_DATA_RETENTION_HOURS" envDefault:"720"`
	LinkRateLimitPerMin    int    `env:"LINK_RATE_LIMIT_PER_MIN" envDefault:"10"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
	SentryDSN              string `env:"SENTRY_DSN"`
	AllowedOrigin          string `env:"ALLOWED_ORIGIN" envDefault:""`
}

func (c *Config) LinkCodeTTL() time.Duration {
	return time.Duration(c.LinkCodeTTLSeconds) * time.Second
}

func (c *Config) SyncSessionTTL() time.Duration {
	return time.Duration(c.SyncSessionTTLSeconds) * time.Second
}

func (c *Config) DeviceSessionTTL() time.Duration {
	return time.Duration(c.DeviceSessionTTLHours) * time.Hour
}

func (c *Config) UserDataRetention() time.Duration {
	return time.Duration(c.UserDataRetentionHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NeedsCleanupJob reports whether the configured backend lacks native key expiry.
func (c *Config) NeedsCleanupJob() bool {
	return c.StoreBackend != BackendRedis
}

func (c *Config) Validate(isProduction bool) error {
	switch c.StoreBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=%s", BackendRedis)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", BackendPostgres)
		}
	case BackendMemory:
		if isProduction {
			log.Warn().Msg("STORE_BACKEND=memory in production: linked devices will not survive restarts or span instances")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (expected redis, postgres or memory)", c.StoreBackend)
	}

	if c.LinkCodeTTLSeconds <= 0 {
		return fmt.Errorf("LINK_CODE_TTL_SECONDS must be positive")
	}
	if c.SyncSessionTTLSeconds <= 0 {
		return fmt.Errorf("SYNC_SESSION_TTL_SECONDS must be positive")
	}
	if c.DeviceSessionTTLHours <= 0 {
		return fmt.Errorf("DEVICE_SESSION_TTL_HOURS must be positive")
	}
	if c.UserDataRetentionHours <= 0 {
		return fmt.Errorf("USER_DATA_RETENTION_HOURS must be positive")
	}

	if isProduction {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.AllowedOrigin == "" || c.AllowedOrigin == "*" {
			log.Warn().Msg("ALLOWED_ORIGIN is not restricted in production")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
