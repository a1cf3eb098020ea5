package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalix/dashboard-server/internal/bridge"
	"github.com/whalix/dashboard-server/internal/middleware"
	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/service"
)

var testUser = &model.DashboardUser{
	ID:             "user-1",
	TenantID:       "shop-1",
	FirstName:      "Awa",
	BusinessName:   "Maquis Chez Awa",
	BusinessSector: model.SectorRestaurant,
}

type testServer struct {
	connector *service.SessionConnector
	feed      *service.LiveFeedStore
	reader    *service.MetricsReader
	router    http.Handler
}

func newTestServer(t *testing.T, pairingDelay time.Duration) *testServer {
	t.Helper()

	demo := bridge.NewDemoClient(pairingDelay)
	connector := service.NewSessionConnector(demo, nil, service.ConnectorOptions{PollInterval: time.Hour})
	t.Cleanup(connector.Close)

	feed := service.NewLiveFeedStore(service.NewMemoryFeedStorage())
	previewer := service.NewReplyPreviewer(feed)
	reader := service.NewMetricsReader(demo, nil, connector, 0)

	sessionHandler := NewSessionHandler(connector, nil)
	metricsHandler := NewMetricsHandler(reader)
	feedHandler := NewFeedHandler(feed, previewer)
	previewHandler := NewPreviewHandler(previewer)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), testUser)))
		})
	})
	r.Get("/v1/me", NewMeHandler(connector).ServeHTTP)
	r.Route("/v1/tenants/{tenantId}", func(r chi.Router) {
		r.Use(middleware.TenantGuard)
		r.Mount("/session", sessionHandler.Routes())
		r.Mount("/metrics", metricsHandler.Routes())
		r.Mount("/feed", feedHandler.Routes())
		r.Post("/preview", previewHandler.ServeHTTP)
	})

	return &testServer{connector: connector, feed: feed, reader: reader, router: r}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestSessionHandler(t *testing.T) {
	t.Run("connect then poll until paired", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/session/connect", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var session model.Session
		decodeBody(t, rec, &session)
		assert.Equal(t, model.SessionStatusQRPending, session.Status)
		assert.Contains(t, session.PairingCode, "whalix-demo-")

		rec = srv.do(t, http.MethodPost, "/v1/tenants/shop-1/session/poll", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var polled struct {
			Session model.Session `json:"session"`
			Done    bool          `json:"done"`
		}
		decodeBody(t, rec, &polled)
		assert.True(t, polled.Done)
		assert.Equal(t, model.SessionStatusConnected, polled.Session.Status)
		assert.Equal(t, bridge.DemoPhoneNumber, polled.Session.PhoneNumber)

		rec = srv.do(t, http.MethodGet, "/v1/tenants/shop-1/session", nil)
		decodeBody(t, rec, &session)
		assert.Equal(t, model.SessionStatusConnected, session.Status)
	})

	t.Run("disconnect clears session", func(t *testing.T) {
		srv := newTestServer(t, time.Hour)
		srv.do(t, http.MethodPost, "/v1/tenants/shop-1/session/connect", nil)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/session/disconnect", nil)

		var session model.Session
		decodeBody(t, rec, &session)
		assert.Equal(t, model.SessionStatusDisconnected, session.Status)
		assert.Empty(t, session.PairingCode)
		assert.Equal(t, 0, srv.connector.ActivePolls())
	})

	t.Run("release returns no content", func(t *testing.T) {
		srv := newTestServer(t, time.Hour)
		srv.do(t, http.MethodPost, "/v1/tenants/shop-1/session/connect", nil)

		rec := srv.do(t, http.MethodDelete, "/v1/tenants/shop-1/session", nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, model.SessionStatusIdle, srv.connector.Get("shop-1").Status)
	})

	t.Run("other tenant is forbidden", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-2/session/connect", nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, model.SessionStatusIdle, srv.connector.Get("shop-2").Status)
	})

	t.Run("connect route uses its own limiter", func(t *testing.T) {
		demo := bridge.NewDemoClient(time.Hour)
		connector := service.NewSessionConnector(demo, nil, service.ConnectorOptions{PollInterval: time.Hour})
		defer connector.Close()

		blocked := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}
		r := chi.NewRouter()
		r.Route("/v1/tenants/{tenantId}", func(r chi.Router) {
			r.Mount("/session", NewSessionHandler(connector, blocked).Routes())
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/shop-1/session/connect", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tenants/shop-1/session", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMeHandler(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(t, http.MethodGet, "/v1/me", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "shop-1", body["tenantId"])
	assert.Equal(t, "restaurant", body["businessSector"])
	assert.Nil(t, body["lastSeenAt"])
	session := body["session"].(map[string]any)
	assert.Equal(t, "idle", session["status"])
}

func TestMetricsHandler(t *testing.T) {
	t.Run("defaults to user sector", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodGet, "/v1/tenants/shop-1/metrics", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var metrics model.DashboardMetrics
		decodeBody(t, rec, &metrics)
		assert.Equal(t, model.SectorRestaurant, metrics.Sector)
		assert.Equal(t, model.DataSourceLive, metrics.Meta.DataSource)
		assert.Equal(t, 94, metrics.SectorKPI.MenuViewsToday)
	})

	t.Run("explicit sector", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodGet, "/v1/tenants/shop-1/metrics?sector=hospitality", nil)

		var metrics model.DashboardMetrics
		decodeBody(t, rec, &metrics)
		assert.Equal(t, model.SectorHospitality, metrics.Sector)
		assert.Equal(t, float64(75), metrics.SectorKPI.OccupancyRate)
	})

	t.Run("unknown sector", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodGet, "/v1/tenants/shop-1/metrics?sector=mining", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("refresh remembers last value", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/metrics/refresh", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		_, ok := srv.reader.Last("shop-1")
		assert.True(t, ok)

		rec = srv.do(t, http.MethodGet, "/v1/tenants/shop-1/metrics/last", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var metrics model.DashboardMetrics
		decodeBody(t, rec, &metrics)
		assert.Equal(t, "shop-1", metrics.TenantID)
	})

	t.Run("last before any refresh", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodGet, "/v1/tenants/shop-1/metrics/last", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("watch and unwatch", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/metrics/watch", map[string]string{"sector": "commerce"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, model.SectorCommerce, srv.reader.Watched()["shop-1"])

		rec = srv.do(t, http.MethodPost, "/v1/tenants/shop-1/metrics/watch", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, model.SectorRestaurant, srv.reader.Watched()["shop-1"])

		rec = srv.do(t, http.MethodDelete, "/v1/tenants/shop-1/metrics/watch", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, srv.reader.Watched())
	})
}

func TestFeedHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("empty feed is an empty list", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodGet, "/v1/tenants/shop-1/feed", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
	})

	t.Run("record message", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/feed", map[string]string{
			"customerName":  "Kouassi",
			"customerPhone": "+2250708091011",
			"text":          "Je veux commander du garba",
		})

		require.Equal(t, http.StatusCreated, rec.Code)
		var msg model.LiveMessage
		decodeBody(t, rec, &msg)
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, model.LiveMessageWaiting, msg.Status)
		assert.Equal(t, model.IntentHigh, msg.Intent)
	})

	t.Run("record requires text", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/feed", map[string]string{"text": "  "})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("human reply", func(t *testing.T) {
		srv := newTestServer(t, 0)
		msg, err := srv.feed.Record(ctx, "shop-1", model.LiveMessage{Text: "bonjour"})
		require.NoError(t, err)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/feed/"+msg.ID+"/reply", map[string]string{"reply": "Bonjour !"})

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Messages []model.LiveMessage `json:"messages"`
		}
		decodeBody(t, rec, &body)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, model.LiveMessageHumanReplied, body.Messages[0].Status)
	})

	t.Run("auto reply", func(t *testing.T) {
		srv := newTestServer(t, 0)
		msg, err := srv.feed.Record(ctx, "shop-1", model.LiveMessage{Text: "C'est quoi le menu ?"})
		require.NoError(t, err)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/feed/"+msg.ID+"/auto-reply", map[string]any{
			"menu": []map[string]any{{"name": "Garba", "price": 1500}},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var preview service.ReplyPreview
		decodeBody(t, rec, &preview)
		assert.Contains(t, preview.Reply, "1. Garba - 1 500 FCFA")
		assert.Equal(t, 0.90, preview.Confidence)
	})

	t.Run("auto reply unknown message", func(t *testing.T) {
		srv := newTestServer(t, 0)

		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/feed/missing/auto-reply", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPreviewHandler(t *testing.T) {
	srv := newTestServer(t, 0)

	t.Run("returns preview", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/preview", map[string]string{"message": "Vous êtes ouvert ?"})

		require.Equal(t, http.StatusOK, rec.Code)
		var preview service.ReplyPreview
		decodeBody(t, rec, &preview)
		assert.Contains(t, preview.Reply, "HORAIRES")
		assert.Equal(t, 0.95, preview.Confidence)
	})

	t.Run("rejects empty message", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/v1/tenants/shop-1/preview", map[string]string{"message": ""})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants/shop-1/preview", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	ok := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("down") })

	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(ok, ok, bridge.NewDemoClient(0))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		decodeBody(t, rec, &body)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "ok", body["checks"].(map[string]any)["bridge"])
	})

	t.Run("storage down", func(t *testing.T) {
		h := NewHealthHandler(down, ok, nil)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"degraded"`)
	})
}
