package handler

import (
	"net/http"

	apperrors "github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/middleware"
	"github.com/whalix/dashboard-server/internal/service"
)

type MeHandler struct {
	sessions service.SessionSnapshotter
}

func NewMeHandler(sessions service.SessionSnapshotter) *MeHandler {
	return &MeHandler{sessions: sessions}
}

// GET /v1/me
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":             user.ID,
		"tenantId":       user.TenantID,
		"firstName":      user.FirstName,
		"lastName":       user.LastName,
		"businessName":   user.BusinessName,
		"businessSector": user.BusinessSector,
		"lastSeenAt":     formatTime(user.LastSeenAt),
		"session":        h.sessions.Get(user.TenantID),
	})
}
