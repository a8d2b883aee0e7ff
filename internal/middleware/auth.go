package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/quoteboard/pairing-server/internal/audit"
	apperrors "github.com/quoteboard/pairing-server/internal/errors"
	"github.com/quoteboard/pairing-server/internal/model"
	"github.com/quoteboard/pairing-server/internal/util"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

type TokenVerifier interface {
	Verify(token string) (*model.Identity, error)
}

func GetIdentity(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*model.Identity); ok {
		return identity
	}
	return nil
}

func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

type AuthMiddleware struct {
	tokens TokenVerifier
}

func NewAuthMiddleware(tokens TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handler rejects requests without a valid bearer token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return m.wrap(next, true)
}

// Optional attaches the identity when a bearer token is sent and lets
// anonymous requests through. A token that is sent but invalid is rejected.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return m.wrap(next, false)
}

func (m *AuthMiddleware) wrap(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			if required {
				writeError(w, apperrors.Unauthorized("Missing authentication token"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.tokens.Verify(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"token": util.TokenFingerprint(token)},
			})
			writeError(w, apperrors.InvalidToken())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func extractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
