package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/service"
	"github.com/whalix/dashboard-server/internal/sse"
)

// Subscriber is the read side of the event broker.
type Subscriber interface {
	Subscribe(tenantID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

type EventsHandler struct {
	broker    Subscriber
	sessions  service.SessionSnapshotter
	heartbeat time.Duration
}

func NewEventsHandler(broker Subscriber, sessions service.SessionSnapshotter) *EventsHandler {
	return &EventsHandler{
		broker:    broker,
		sessions:  sessions,
		heartbeat: sse.HeartbeatInterval,
	}
}

// GET /v1/tenants/{tenantId}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	if tenantID == "" {
		writeError(w, apperrors.MissingRequired("tenantId"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(tenantID)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("tenantId", tenantID).Msg("sse connection established")

	// The snapshot goes out after subscribing so no transition falls between
	// the two.
	snapshot := h.sessions.Get(tenantID)
	if err := h.sendEvent(w, flusher, "session", snapshot); err != nil {
		log.Debug().Err(err).Str("tenantId", tenantID).Msg("failed to send session snapshot")
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("tenantId", tenantID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("tenantId", tenantID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Str("tenantId", tenantID).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("tenantId", tenantID).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
