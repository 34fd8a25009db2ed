// Package store is the key-value layer behind link codes, user data and
// sync sessions. Values are opaque JSON documents; a zero TTL means the
// entry never expires.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("store: key not found")

type Store interface {
	// Get returns ErrNotFound when the key is absent or its TTL has elapsed.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes value, overwriting any existing entry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// PutIfAbsent writes value only when no live entry exists for key and
	// reports whether the write happened.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// DeleteExpired removes entries whose TTL has elapsed. Backends with
	// native expiry return zero.
	DeleteExpired(ctx context.Context) (int64, error)
}

func LinkCodeKey(code string) string {
	return fmt.Sprintf("linkcodes/%s.json", code)
}

func UserDataKey(guestID string) string {
	return fmt.Sprintf("users/%s/data.json", guestID)
}

func SyncSessionKey(syncToken string) string {
	return fmt.Sprintf("sync_session_%s", syncToken)
}

func DeviceSessionKey(tokenHash string) string {
	return fmt.Sprintf("devices/%s.json", tokenHash)
}
