package handler

import (
	"net/http"
	"strings"

	apperrors "github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/service"
)

type PreviewHandler struct {
	previewer *service.ReplyPreviewer
}

func NewPreviewHandler(previewer *service.ReplyPreviewer) *PreviewHandler {
	return &PreviewHandler{previewer: previewer}
}

// POST /v1/tenants/{tenantId}/preview
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string             `json:"message"`
		Menu    []service.MenuItem `json:"menu"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, apperrors.MissingRequired("message"))
		return
	}
	if len(req.Message) > maxMessageLength {
		writeError(w, apperrors.InvalidInput("message", "message too long"))
		return
	}

	writeJSON(w, http.StatusOK, h.previewer.Preview(req.Message, req.Menu))
}
