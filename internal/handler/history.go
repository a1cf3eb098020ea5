package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/model"
)

const maxHistoryLimit = 100

type SessionEventLister interface {
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.SessionEvent, error)
}

// HistoryHandler lists the persisted session milestones of a tenant.
type HistoryHandler struct {
	events SessionEventLister
}

func NewHistoryHandler(events SessionEventLister) *HistoryHandler {
	return &HistoryHandler{events: events}
}

// GET /v1/tenants/{tenantId}/history?limit=
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, apperrors.InvalidInput("limit", "must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := h.events.ListByTenant(r.Context(), chi.URLParam(r, "tenantId"), limit)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if events == nil {
		events = []model.SessionEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
