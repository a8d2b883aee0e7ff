package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		for i := 0; i < 5; i++ {
			allowed, _ := limiter.CheckLimit(ctx, "approve:10.0.0.1", 5, time.Minute)
			assert.True(t, allowed, "request %d", i+1)
		}

		allowed, resetAt := limiter.CheckLimit(ctx, "approve:10.0.0.1", 5, time.Minute)
		assert.False(t, allowed)
		assert.True(t, resetAt.After(time.Now()))
	})

	t.Run("keys are independent", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		allowed, _ := limiter.CheckLimit(ctx, "a", 1, time.Minute)
		assert.True(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, "a", 1, time.Minute)
		assert.False(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, "b", 1, time.Minute)
		assert.True(t, allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		allowed, _ := limiter.CheckLimit(ctx, "k", 1, time.Minute)
		assert.True(t, allowed)
		allowed, resetAt := limiter.CheckLimit(ctx, "k", 1, time.Minute)
		assert.False(t, allowed)
		assert.Equal(t, now.Add(time.Minute), resetAt)

		now = now.Add(time.Minute)
		allowed, _ = limiter.CheckLimit(ctx, "k", 1, time.Minute)
		assert.True(t, allowed)
	})
}

func TestIPRateLimitMiddleware(t *testing.T) {
	limiter := NewMemoryLimiter()
	mw := NewIPRateLimitMiddleware(limiter, 2, time.Minute, "approve")
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/pairing/ABCDEFG/approve", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1").Code)

	limited := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusNoContent, call("10.0.0.2").Code, "other clients keep their budget")

	other := NewIPRateLimitMiddleware(limiter, 2, time.Minute, "create").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/pairing", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	rec := httptest.NewRecorder()
	other.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code, "route prefixes keep budgets apart")
}
