package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/screenscape/sync-server-go/internal/store"
)

var errStoreDown = errors.New("store unavailable")

// faultyStore fails selected writes on top of a working store.
type faultyStore struct {
	store.Store
	failPutPrefix string
	failDelete    bool
}

func (f *faultyStore) failsPut(key string) bool {
	return f.failPutPrefix != "" && strings.HasPrefix(key, f.failPutPrefix)
}

func (f *faultyStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failsPut(key) {
		return errStoreDown
	}
	return f.Store.Put(ctx, key, value, ttl)
}

func (f *faultyStore) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if f.failsPut(key) {
		return false, errStoreDown
	}
	return f.Store.PutIfAbsent(ctx, key, value, ttl)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errStoreDown
	}
	return f.Store.Delete(ctx, key)
}

type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.UnixMilli(1_760_000_000_000)}
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// sequenceCodes returns the given codes in order and then repeats the last one.
func sequenceCodes(codes ...string) (func() (string, error), *int) {
	calls := 0
	return func() (string, error) {
		i := calls
		if i >= len(codes) {
			i = len(codes) - 1
		}
		calls++
		return codes[i], nil
	}, &calls
}
