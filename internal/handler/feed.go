package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/audit"
	apperrors "github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/middleware"
	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/service"
)

const maxMessageLength = 4096

type FeedHandler struct {
	feed      *service.LiveFeedStore
	previewer *service.ReplyPreviewer
}

func NewFeedHandler(feed *service.LiveFeedStore, previewer *service.ReplyPreviewer) *FeedHandler {
	return &FeedHandler{
		feed:      feed,
		previewer: previewer,
	}
}

func (h *FeedHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Record)
	r.Post("/{messageId}/reply", h.Reply)
	r.Post("/{messageId}/auto-reply", h.AutoReply)

	return r
}

// GET /v1/tenants/{tenantId}/feed
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.feed.List(r.Context(), chi.URLParam(r, "tenantId"))
	if err != nil {
		log.Error().Err(err).Msg("failed to list live feed")
		writeError(w, apperrors.Internal("Failed to load live feed"))
		return
	}

	writeFeed(w, http.StatusOK, messages)
}

// POST /v1/tenants/{tenantId}/feed
func (h *FeedHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerName  string `json:"customerName"`
		CustomerPhone string `json:"customerPhone"`
		Text          string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, apperrors.MissingRequired("text"))
		return
	}
	if len(text) > maxMessageLength {
		writeError(w, apperrors.InvalidInput("text", "message too long"))
		return
	}

	msg, err := h.feed.Record(r.Context(), chi.URLParam(r, "tenantId"), model.LiveMessage{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Text:          text,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record live message")
		writeError(w, apperrors.Internal("Failed to record message"))
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// POST /v1/tenants/{tenantId}/feed/{messageId}/reply
// Unknown message ids leave the feed untouched.
func (h *FeedHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reply string `json:"reply"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Reply) == "" {
		writeError(w, apperrors.MissingRequired("reply"))
		return
	}

	tenantID := chi.URLParam(r, "tenantId")
	messageID := chi.URLParam(r, "messageId")
	ctx := r.Context()

	if err := h.feed.MarkHumanReplied(ctx, tenantID, messageID, req.Reply); err != nil {
		log.Error().Err(err).Str("messageId", messageID).Msg("failed to mark message replied")
		writeError(w, apperrors.Internal("Failed to update message"))
		return
	}

	h.audit(r, audit.EventFeedReply, messageID)

	messages, err := h.feed.List(ctx, tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list live feed")
		writeError(w, apperrors.Internal("Failed to load live feed"))
		return
	}

	writeFeed(w, http.StatusOK, messages)
}

// POST /v1/tenants/{tenantId}/feed/{messageId}/auto-reply
func (h *FeedHandler) AutoReply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Menu []service.MenuItem `json:"menu"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	messageID := chi.URLParam(r, "messageId")

	preview, err := h.previewer.AutoReply(r.Context(), chi.URLParam(r, "tenantId"), messageID, req.Menu)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			writeError(w, err)
			return
		}
		log.Error().Err(err).Str("messageId", messageID).Msg("failed to auto-reply")
		writeError(w, apperrors.Internal("Failed to reply to message"))
		return
	}

	h.audit(r, audit.EventFeedAutoReply, messageID)

	writeJSON(w, http.StatusOK, preview)
}

func (h *FeedHandler) audit(r *http.Request, eventType audit.EventType, messageID string) {
	event := audit.Event{
		Type:     eventType,
		TenantID: chi.URLParam(r, "tenantId"),
		Details:  map[string]interface{}{"messageId": messageID},
	}
	if user := middleware.GetUser(r.Context()); user != nil {
		event.UserID = user.ID
	}
	audit.LogFromRequest(r, event)
}

func writeFeed(w http.ResponseWriter, status int, messages []model.LiveMessage) {
	if messages == nil {
		messages = []model.LiveMessage{}
	}
	writeJSON(w, status, map[string]any{"messages": messages})
}
