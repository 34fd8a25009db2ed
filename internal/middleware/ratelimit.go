package middleware

import (
	"context"
	"sync"
	"time"
)

const (
	sweepInterval = time.Minute
	idleTTL       = 5 * time.Minute
)

// MemoryRateLimiter is the single-instance counterpart of service.RateLimiter,
// used when the server runs without Redis. Each key keeps the stamps of its
// accepted hits inside the current window.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		hits:      make(map[string][]time.Time),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *MemoryRateLimiter) CheckLimit(_ context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	kept := prune(rl.hits[key], now.Add(-window))
	if len(kept) >= limit {
		rl.hits[key] = kept
		return false, kept[0].Add(window)
	}

	rl.hits[key] = append(kept, now)
	return true, now.Add(window)
}

// sweep drops keys whose newest hit is older than idleTTL.
func (rl *MemoryRateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < sweepInterval {
		return
	}
	rl.lastSweep = now

	for key, stamps := range rl.hits {
		if len(stamps) == 0 || now.Sub(stamps[len(stamps)-1]) > idleTTL {
			delete(rl.hits, key)
		}
	}
}

func prune(stamps []time.Time, after time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(after) {
		i++
	}
	return stamps[i:]
}
