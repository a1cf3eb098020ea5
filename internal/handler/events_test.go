package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/sse"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	client       *sse.Client
	unsubscribed bool
}

func newFakeSubscriber(tenantID string) *fakeSubscriber {
	return &fakeSubscriber{client: &sse.Client{
		TenantID: tenantID,
		Events:   make(chan sse.Event),
		Done:     make(chan struct{}),
	}}
}

func (f *fakeSubscriber) Subscribe(tenantID string) *sse.Client {
	return f.client
}

func (f *fakeSubscriber) Unsubscribe(client *sse.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = true
}

type staticSnapshots map[string]model.Session

func (s staticSnapshots) Get(tenantID string) model.Session {
	if session, ok := s[tenantID]; ok {
		return session
	}
	return model.NewSession(tenantID)
}

func eventsRequest(tenantID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/"+tenantID+"/events", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("tenantId", tenantID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestEventsHandler_ServeHTTP(t *testing.T) {
	t.Run("streams snapshot then relayed events", func(t *testing.T) {
		sub := newFakeSubscriber("shop-1")
		snapshots := staticSnapshots{"shop-1": {TenantID: "shop-1", Status: model.SessionStatusQRPending, PairingCode: "abc"}}
		handler := NewEventsHandler(sub, snapshots)

		rec := httptest.NewRecorder()
		done := make(chan struct{})
		go func() {
			handler.ServeHTTP(rec, eventsRequest("shop-1"))
			close(done)
		}()

		sub.client.Events <- sse.Event{Type: "session_connected", Data: json.RawMessage(`{"status":"connected"}`)}
		close(sub.client.Done)
		<-done

		body := rec.Body.String()
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

		snapshotAt := strings.Index(body, "event: session\n")
		relayedAt := strings.Index(body, "event: session_connected\n")
		require.GreaterOrEqual(t, snapshotAt, 0)
		require.Greater(t, relayedAt, snapshotAt)
		assert.Contains(t, body, `"pairingCode":"abc"`)
		assert.Contains(t, body, `data: {"status":"connected"}`)

		sub.mu.Lock()
		assert.True(t, sub.unsubscribed)
		sub.mu.Unlock()
	})

	t.Run("stops when client goes away", func(t *testing.T) {
		sub := newFakeSubscriber("shop-1")
		handler := NewEventsHandler(sub, staticSnapshots{})

		base := eventsRequest("shop-1")
		ctx, cancel := context.WithCancel(base.Context())
		req := base.WithContext(ctx)

		rec := httptest.NewRecorder()
		done := make(chan struct{})
		go func() {
			handler.ServeHTTP(rec, req)
			close(done)
		}()

		cancel()
		<-done

		assert.Contains(t, rec.Body.String(), `"status":"idle"`)
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		handler := NewEventsHandler(newFakeSubscriber(""), staticSnapshots{})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEventsHandler_sendRawEvent(t *testing.T) {
	handler := &EventsHandler{}
	rec := httptest.NewRecorder()

	err := handler.sendRawEvent(rec, rec, sse.Event{
		Type: "qr_generated",
		Data: json.RawMessage(`{"status": "qr_pending"}`),
	})

	assert.NoError(t, err)
	body := rec.Body.String()
	assert.Contains(t, body, "event: qr_generated\n")
	assert.Contains(t, body, `data: {"status": "qr_pending"}`)
	assert.True(t, strings.HasSuffix(body, "\n\n"))
}

func TestSSEEventFormat(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		data      any
		wantEvent string
	}{
		{"snapshot", "session", model.NewSession("shop-1"), "event: session\n"},
		{"connected", string(model.SessionEventConnected), map[string]any{"status": "connected"}, "event: session_connected\n"},
		{"error", string(model.SessionEventError), map[string]any{"lastError": "Serveur backend indisponible"}, "event: session_error\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := &EventsHandler{}
			rec := httptest.NewRecorder()

			err := handler.sendEvent(rec, rec, tc.eventType, tc.data)

			assert.NoError(t, err)
			assert.Contains(t, rec.Body.String(), tc.wantEvent)
			assert.Contains(t, rec.Body.String(), "data: {")
		})
	}
}
