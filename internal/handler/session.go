package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/audit"
	"github.com/whalix/dashboard-server/internal/middleware"
	"github.com/whalix/dashboard-server/internal/service"
)

type SessionHandler struct {
	connector *service.SessionConnector
	connect   func(http.Handler) http.Handler
}

// NewSessionHandler takes the middleware guarding the connect route, which
// starts a bridge session and is rate limited on its own.
func NewSessionHandler(connector *service.SessionConnector, connectLimit func(http.Handler) http.Handler) *SessionHandler {
	if connectLimit == nil {
		connectLimit = func(next http.Handler) http.Handler { return next }
	}
	return &SessionHandler{
		connector: connector,
		connect:   connectLimit,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetSession)
	r.Delete("/", h.Release)
	r.With(h.connect).Post("/connect", h.Connect)
	r.Post("/disconnect", h.Disconnect)
	r.Post("/poll", h.Poll)

	return r
}

// GET /v1/tenants/{tenantId}/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connector.Get(chi.URLParam(r, "tenantId")))
}

// POST /v1/tenants/{tenantId}/session/connect
// Bridge failures are reported in the returned session, not as HTTP errors.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	session, err := h.connector.Connect(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit(r, audit.EventSessionConnect, map[string]interface{}{"status": string(session.Status)})

	writeJSON(w, http.StatusOK, session)
}

// POST /v1/tenants/{tenantId}/session/disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	session := h.connector.Disconnect(r.Context(), chi.URLParam(r, "tenantId"))

	h.audit(r, audit.EventSessionDisconnect, nil)

	writeJSON(w, http.StatusOK, session)
}

// POST /v1/tenants/{tenantId}/session/poll
func (h *SessionHandler) Poll(w http.ResponseWriter, r *http.Request) {
	session, done := h.connector.PollStatus(r.Context(), chi.URLParam(r, "tenantId"))

	writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"done":    done,
	})
}

// DELETE /v1/tenants/{tenantId}/session
func (h *SessionHandler) Release(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	h.connector.Release(tenantID)

	h.audit(r, audit.EventSessionRelease, nil)
	log.Info().Str("tenantId", tenantID).Msg("session released by user")

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) audit(r *http.Request, eventType audit.EventType, details map[string]interface{}) {
	event := audit.Event{
		Type:     eventType,
		TenantID: chi.URLParam(r, "tenantId"),
		Details:  details,
	}
	if user := middleware.GetUser(r.Context()); user != nil {
		event.UserID = user.ID
	}
	audit.LogFromRequest(r, event)
}
