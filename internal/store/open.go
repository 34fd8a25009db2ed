package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/screenscape/sync-server-go/internal/config"
	"github.com/screenscape/sync-server-go/internal/database"
	redisclient "github.com/screenscape/sync-server-go/internal/redis"
)

// Backend is the store selected by STORE_BACKEND together with the client
// that owns its connections. Redis and DB are nil for other backends.
type Backend struct {
	Store Store
	Redis *redisclient.Client
	DB    *database.DB
}

// Open connects the configured backend. Postgres schemas are migrated on open.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := redisclient.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("redis connected")
		return &Backend{Store: NewRedisStore(client), Redis: client}, nil

	case config.BackendPostgres:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, config.StorePingTimeout)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("database connected")
		return &Backend{Store: NewPostgresStore(db.DB), DB: db}, nil

	case config.BackendMemory:
		log.Warn().Msg("using in-memory store")
		return &Backend{Store: NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (b *Backend) Ping(ctx context.Context) error {
	switch {
	case b.Redis != nil:
		return b.Redis.Ping(ctx).Err()
	case b.DB != nil:
		return b.DB.Ping(ctx)
	default:
		return nil
	}
}

func (b *Backend) Close() error {
	var errs []error
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	if b.DB != nil {
		errs = append(errs, b.DB.Close())
	}
	return errors.Join(errs...)
}
