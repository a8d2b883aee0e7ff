package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/quoteboard/pairing-server/internal/audit"
	apperrors "github.com/quoteboard/pairing-server/internal/errors"
)

type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, resetAt time.Time)
}

// IPRateLimitMiddleware limits each client IP to limit requests per window
// on the routes it wraps. prefix keeps the budgets of different routes apart.
type IPRateLimitMiddleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
	prefix  string
}

func NewIPRateLimitMiddleware(limiter Limiter, limit int, window time.Duration, prefix string) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
	}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := audit.ClientIP(r)

		allowed, resetAt := m.limiter.CheckLimit(r.Context(), m.prefix+":"+ip, m.limit, m.window)
		if !allowed {
			secondsLeft := int(time.Until(resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(max(secondsLeft, 1)))

			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]any{"route": m.prefix},
			})
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
