package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/pondview/internal/pondapi"
	"github.com/good-yellow-bee/pondview/pkg/config"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Health reports that the process is serving.
// This endpoint is for simple "is the process running" checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: config.Version})
}

// Ready reports whether the pond server answers. Any HTTP answer counts,
// even an error status; only a failed request makes the server not ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ready", Version: config.Version, Checks: map[string]string{"upstream": "ok"}}
	status := http.StatusOK

	if _, err := h.api.LatestData(ctx, h.defaultPool()); err != nil && pondapi.IsKind(err, pondapi.KindTransport) {
		h.logger.Warn("readiness check failed", zap.Error(err))
		resp.Status = "not_ready"
		resp.Checks["upstream"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
