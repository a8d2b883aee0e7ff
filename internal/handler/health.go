package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck returns nil when a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports process liveness plus database reachability.
// Redis is optional; a nil redis check reports "disabled".
type HealthHandler struct {
	db    HealthCheck
	redis HealthCheck
}

func NewHealthHandler(db HealthCheck, redis HealthCheck) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UnixMilli(),
		Database:  "ok",
		Redis:     "disabled",
	}
	status := http.StatusOK

	if err := h.db(ctx); err != nil {
		log.Warn().Err(err).Msg("health check: database unreachable")
		resp.Status = "unavailable"
		resp.Database = "error"
		status = http.StatusServiceUnavailable
	}

	if h.redis != nil {
		resp.Redis = "ok"
		if err := h.redis(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: redis unreachable")
			resp.Redis = "error"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	writeJSON(w, status, resp)
}
