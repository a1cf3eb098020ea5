package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/bridge"
	"github.com/whalix/dashboard-server/internal/config"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler reports storage and bridge reachability. An unreachable
// bridge degrades the dashboard to cached or demo data, so it does not fail
// the check.
type HealthHandler struct {
	db     Pinger
	redis  Pinger
	bridge bridge.Client
	now    func() time.Time
}

func NewHealthHandler(db, redis Pinger, bridgeClient bridge.Client) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redis,
		bridge: bridgeClient,
		now:    time.Now,
	}
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			checks["database"] = "unavailable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check: redis unreachable")
			checks["redis"] = "unavailable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.bridge != nil {
		if err := h.bridge.Health(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: bridge unreachable")
			checks["bridge"] = "unavailable"
		} else {
			checks["bridge"] = "ok"
		}
	}

	status := http.StatusOK
	body := map[string]any{
		"status":    "ok",
		"timestamp": h.now().UnixMilli(),
		"checks":    checks,
	}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	writeJSON(w, status, body)
}
