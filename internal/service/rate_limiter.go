package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const rateLimitKeyPrefix = "ratelimit:"

// slidingWindowScript keeps one sorted-set member per accepted hit, scored by
// its stamp in ms. It returns {allowed, resetAtMs}.
//
// KEYS[1] bucket, ARGV: now, window, limit, member
var slidingWindowScript = redis.NewScript(`
local now, window, limit = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)

if redis.call('ZCARD', KEYS[1]) >= limit then
    local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
    if first[2] then
        return {0, tonumber(first[2]) + window}
    end
    return {0, now + window}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, now + window}
`)

// RateLimiter is a Redis-backed sliding window limiter shared by all instances.
type RateLimiter struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRateLimiter(client redis.Scripter) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// CheckLimit records a hit for key and reports whether it is within limit.
// Any Redis failure denies the request.
func (rl *RateLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	now := rl.now()
	denyUntil := now.Add(window)

	res, err := slidingWindowScript.Run(ctx, rl.client,
		[]string{rateLimitKeyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, denying request")
		return false, denyUntil
	}
	if len(res) != 2 {
		log.Warn().Ints64("result", res).Str("key", key).Msg("unexpected rate limit result, denying request")
		return false, denyUntil
	}

	return res[0] == 1, time.UnixMilli(res[1])
}
