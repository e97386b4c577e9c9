package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"snapjournal/internal/metrics"
)

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type StatsResponse struct {
	Routes []metrics.RouteStats `json:"routes"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.StatsService.Health(r.Context()); err != nil {
		h.Log.Warn("store health check failed", zap.Error(err))
		writeSuccess(w, HealthResponse{Status: "degraded", Store: err.Error()}, http.StatusServiceUnavailable)
		return
	}
	writeSuccess(w, HealthResponse{Status: "ok", Store: "ok"}, http.StatusOK)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, StatsResponse{Routes: h.StatsService.Routes()}, http.StatusOK)
}
