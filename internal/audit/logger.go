package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quoteboard/pairing-server/internal/util"
)

type EventType string

const (
	EventPairingCreate         EventType = "pairing_create"
	EventPairingApprove        EventType = "pairing_approve"
	EventPairingApproveFailure EventType = "pairing_approve_failure"
	EventPairingConsume        EventType = "pairing_consume"
	EventLoginSuccess          EventType = "login_success"
	EventLoginFailure          EventType = "login_failure"
	EventAuthFailure           EventType = "auth_failure"
	EventRateLimitExceed       EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	UserID    string
	Code      string
	IP        string
	UserAgent string
	Details   map[string]any
}

// Log writes event at info level tagged audit=security. Pairing codes are
// masked before they reach the log.
func Log(ctx context.Context, event Event) {
	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	ctxLogger := logger.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now())

	if event.UserID != "" {
		ctxLogger = ctxLogger.Str("user_id", event.UserID)
	}
	if event.Code != "" {
		ctxLogger = ctxLogger.Str("code", util.MaskCode(event.Code))
	}
	if event.IP != "" {
		ctxLogger = ctxLogger.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		ctxLogger = ctxLogger.Str("user_agent", event.UserAgent)
	}

	eventLogger := ctxLogger.Logger()
	logEvent := eventLogger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case error:
		return e.AnErr(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the
// remote address without its port.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
