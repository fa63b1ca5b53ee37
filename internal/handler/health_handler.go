package handler

import (
	"net/http"
	"time"

	"github.com/vigilops/vigil/internal/scheduler"
)

// HealthHandler exposes the scheduler's operational surface: a health state for
// operator-facing check endpoints and the current scheduling stats.
type HealthHandler struct {
	facade    *scheduler.Facade
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(facade *scheduler.Facade, version string) *HealthHandler {
	return &HealthHandler{
		facade:    facade,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Mode          string `json:"mode"`
	Detail        string `json:"detail,omitempty"`
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Health returns the scheduling health status. "disabled" means queue mode is
// off; "unhealthy" means queue mode was requested but the broker is not serving
// it, which maps to HTTP 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.facade.HealthCheck(r.Context())

	statusCode := http.StatusOK
	if health.Status == scheduler.HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:        health.Status,
		Mode:          health.Mode,
		Detail:        health.Detail,
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	writeJSON(w, statusCode, response)
}

// Stats returns the scheduler stats: mode plus active count (traditional) or
// queue depths (queue mode).
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.facade.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to collect stats: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
