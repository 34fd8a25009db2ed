package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/screenscape/sync-server-go/internal/config"
)

// Client wraps the go-redis client shared by the store, the rate limiter and
// the event broker.
type Client struct {
	*redis.Client
}

// NewClient parses a redis:// or rediss:// URL and verifies the server answers.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, config.StorePingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return &Client{Client: rdb}, nil
}

// UserDataChannel is the pub/sub channel carrying update events for one guest.
func UserDataChannel(guestID string) string {
	return "userdata:" + guestID
}
