package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORS lets the phone approval page, served from another origin, call the
// API from a browser. Bearer tokens travel in headers, so no credentials mode.
func NewCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	})
}
