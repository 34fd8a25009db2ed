package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("LinkCodeTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{LinkCodeTTLSeconds: 900}
		assert.Equal(t, 15*time.Minute, cfg.LinkCodeTTL())
	})

	t.Run("SyncSessionTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{SyncSessionTTLSeconds: 60}
		assert.Equal(t, time.Minute, cfg.SyncSessionTTL())
	})

	t.Run("retention converts hours to duration", func(t *testing.T) {
		cfg := &Config{UserDataRetentionHours: 24, DeviceSessionTTLHours: 48}
		assert.Equal(t, 24*time.Hour, cfg.UserDataRetention())
		assert.Equal(t, 48*time.Hour, cfg.DeviceSessionTTL())
	})

	t.Run("cleanup job only for backends without native expiry", func(t *testing.T) {
		assert.False(t, (&Config{StoreBackend: BackendRedis}).NeedsCleanupJob())
		assert.True(t, (&Config{StoreBackend: BackendPostgres}).NeedsCleanupJob())
		assert.True(t, (&Config{StoreBackend: BackendMemory}).NeedsCleanupJob())
	})
}

func validConfig() *Config {
	return &Config{
		StoreBackend:           BackendRedis,
		RedisURL:               "rediss://localhost:6379",
		LinkCodeTTLSeconds:     900,
		SyncSessionTTLSeconds:  900,
		DeviceSessionTTLHours:  720,
		UserDataRetentionHours: 720,
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts valid redis config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate(true))
	})

	t.Run("redis backend requires REDIS_URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.RedisURL = ""
		assert.ErrorContains(t, cfg.Validate(false), "REDIS_URL")
	})

	t.Run("postgres backend requires DATABASE_URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreBackend = BackendPostgres
		assert.ErrorContains(t, cfg.Validate(false), "DATABASE_URL")

		cfg.DatabaseURL = "postgres://localhost/sync"
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("memory backend needs no url", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreBackend = BackendMemory
		cfg.RedisURL = ""
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreBackend = "s3"
		assert.ErrorContains(t, cfg.Validate(false), "unknown STORE_BACKEND")
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		cfg := validConfig()
		cfg.LinkCodeTTLSeconds = 0
		assert.Error(t, cfg.Validate(false))
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "STORE_BACKEND", "REDIS_URL", "DATABASE_URL",
		"LINK_CODE_TTL_SECONDS", "SYNC_SESSION_TTL_SECONDS", "LOG_LEVEL",
	}
	originalEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		for _, k := range keys {
			os.Unsetenv(k)
		}

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, BackendRedis, cfg.StoreBackend)
		assert.Equal(t, 900, cfg.LinkCodeTTLSeconds)
		assert.Equal(t, 900, cfg.SyncSessionTTLSeconds)
		assert.Equal(t, 720, cfg.UserDataRetentionHours)
		assert.Equal(t, 10, cfg.LinkRateLimitPerMin)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("PORT", "3000")
		os.Setenv("STORE_BACKEND", "postgres")
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("LINK_CODE_TTL_SECONDS", "600")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, BackendPostgres, cfg.StoreBackend)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, 600, cfg.LinkCodeTTLSeconds)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails on malformed integer", func(t *testing.T) {
		os.Setenv("PORT", "not-a-port")

		_, err := Load()
		assert.Error(t, err)
		os.Unsetenv("PORT")
	})
}
