package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/quoteboard/pairing-server/internal/redis"
)

// rateLimitScript is a Lua script for sliding window rate limiting.
// Scores are milliseconds so bursts inside one second are counted apart.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('PEXPIRE', key, window + 1000)

return {1, now + window}
`)

// RateLimiter is a Redis sliding-window limiter shared by all server replicas.
type RateLimiter struct {
	client redis.Scripter
}

func NewRateLimiter(client redis.Scripter) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckLimit records one attempt for key and reports whether it fits in
// limit attempts per window. Redis failures deny the attempt.
func (rl *RateLimiter) CheckLimit(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	now := time.Now()

	result, err := rateLimitScript.Run(
		ctx,
		rl.client,
		[]string{redisclient.Key("ratelimit", key)},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
	).Int64Slice()

	if err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("rate limit check failed, denying request")
		return false, now.Add(window)
	}

	if len(result) != 2 {
		log.Warn().Str("key", key).Msg("unexpected rate limit result, denying request")
		return false, now.Add(window)
	}

	return result[0] == 1, time.UnixMilli(result[1])
}
