package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/middleware"
	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/service"
)

type MetricsHandler struct {
	reader *service.MetricsReader
}

func NewMetricsHandler(reader *service.MetricsReader) *MetricsHandler {
	return &MetricsHandler{reader: reader}
}

func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetMetrics)
	r.Get("/last", h.GetLast)
	r.Post("/refresh", h.Refresh)
	r.Post("/watch", h.Watch)
	r.Delete("/watch", h.Unwatch)

	return r
}

// GET /v1/tenants/{tenantId}/metrics?sector=
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	sector, err := resolveSector(r, r.URL.Query().Get("sector"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.reader.Read(r.Context(), chi.URLParam(r, "tenantId"), sector))
}

// GET /v1/tenants/{tenantId}/metrics/last
// Serves the value of the latest refresh without calling the bridge.
func (h *MetricsHandler) GetLast(w http.ResponseWriter, r *http.Request) {
	metrics, ok := h.reader.Last(chi.URLParam(r, "tenantId"))
	if !ok {
		writeError(w, apperrors.NotFound("Metrics"))
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// POST /v1/tenants/{tenantId}/metrics/refresh
func (h *MetricsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sector, err := resolveSector(r, r.URL.Query().Get("sector"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.reader.Refresh(r.Context(), chi.URLParam(r, "tenantId"), sector))
}

// POST /v1/tenants/{tenantId}/metrics/watch
func (h *MetricsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sector string `json:"sector"`
	}
	// An empty body watches the user's own sector.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	sector, err := resolveSector(r, req.Sector)
	if err != nil {
		writeError(w, err)
		return
	}

	tenantID := chi.URLParam(r, "tenantId")
	h.reader.Watch(tenantID, sector)

	writeJSON(w, http.StatusOK, map[string]any{
		"tenantId": tenantID,
		"sector":   sector,
		"watching": true,
	})
}

// DELETE /v1/tenants/{tenantId}/metrics/watch
func (h *MetricsHandler) Unwatch(w http.ResponseWriter, r *http.Request) {
	h.reader.Unwatch(chi.URLParam(r, "tenantId"))
	w.WriteHeader(http.StatusNoContent)
}

// resolveSector falls back to the user's own sector when none is requested.
func resolveSector(r *http.Request, requested string) (model.BusinessSector, error) {
	if requested != "" {
		sector := model.BusinessSector(requested)
		if !sector.Valid() {
			return "", apperrors.InvalidInput("sector", "unknown business sector")
		}
		return sector, nil
	}

	if user := middleware.GetUser(r.Context()); user != nil && user.BusinessSector != "" {
		return user.BusinessSector, nil
	}
	return model.SectorCommerce, nil
}
