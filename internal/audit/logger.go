package audit

import (
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

// Security events are logged at warn level, user actions at info.
const (
	EventAuthFailure     EventType = "auth_failure"
	EventTenantMismatch  EventType = "tenant_mismatch"
	EventRateLimitExceed EventType = "rate_limit_exceeded"

	EventSessionConnect    EventType = "session_connect"
	EventSessionDisconnect EventType = "session_disconnect"
	EventSessionRelease    EventType = "session_release"
	EventFeedReply         EventType = "feed_reply"
	EventFeedAutoReply     EventType = "feed_auto_reply"
)

func (t EventType) level() zerolog.Level {
	switch t {
	case EventAuthFailure, EventTenantMismatch, EventRateLimitExceed:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

type Event struct {
	Type     EventType
	UserID   string
	TenantID string
	Details  map[string]interface{}
}

// LogFromRequest writes one audit line tagged with the caller's address and
// the chi request id.
func LogFromRequest(r *http.Request, event Event) {
	e := log.WithLevel(event.Type.level()).
		Str("audit", "dashboard").
		Str("eventType", string(event.Type)).
		Str("ip", clientIP(r)).
		Str("userAgent", r.UserAgent())

	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		e = e.Str("requestId", reqID)
	}
	if event.UserID != "" {
		e = e.Str("userId", event.UserID)
	}
	if event.TenantID != "" {
		e = e.Str("tenantId", event.TenantID)
	}
	if len(event.Details) > 0 {
		e = e.Fields(event.Details)
	}

	e.Msg("audit event")
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
