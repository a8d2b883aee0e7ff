package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("PAIRING_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PAIRING_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}

func TestRateLimiter_Basic(t *testing.T) {
	limiter := NewRateLimiter(setupTestRedis(t))
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		key := "approve:10.0.0.1"
		limit := 3
		window := 10 * time.Second

		for i := 0; i < limit; i++ {
			allowed, _ := limiter.CheckLimit(ctx, key, limit, window)
			assert.True(t, allowed, "request %d should be allowed", i+1)
		}

		allowed, resetAt := limiter.CheckLimit(ctx, key, limit, window)
		assert.False(t, allowed)
		assert.True(t, resetAt.After(time.Now()))
	})

	t.Run("sliding window behavior", func(t *testing.T) {
		key := "approve:10.0.0.2"
		limit := 2
		window := time.Second

		for i := 0; i < limit; i++ {
			allowed, _ := limiter.CheckLimit(ctx, key, limit, window)
			assert.True(t, allowed)
		}
		allowed, _ := limiter.CheckLimit(ctx, key, limit, window)
		assert.False(t, allowed)

		time.Sleep(1100 * time.Millisecond)

		allowed, _ = limiter.CheckLimit(ctx, key, limit, window)
		assert.True(t, allowed)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		window := 10 * time.Second

		allowed, _ := limiter.CheckLimit(ctx, "create:10.0.0.3", 1, window)
		assert.True(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, "create:10.0.0.3", 1, window)
		assert.False(t, allowed)

		allowed, _ = limiter.CheckLimit(ctx, "create:10.0.0.4", 1, window)
		assert.True(t, allowed)
	})
}

func TestRateLimiter_RedisFailureDenies(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	defer client.Close()

	limiter := NewRateLimiter(client)

	allowed, resetAt := limiter.CheckLimit(context.Background(), "login:10.0.0.5", 5, time.Minute)
	assert.False(t, allowed)
	assert.True(t, resetAt.After(time.Now()))
}
