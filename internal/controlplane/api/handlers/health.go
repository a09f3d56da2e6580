package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
)

// HealthCheckTimeout bounds the database ping of the health checks.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated:
//   - Liveness: the process is up and the database answers
//   - Readiness: the drain loop is running
type HealthHandler struct {
	runtime   *runtime.Runtime
	startTime time.Time
}

// NewHealthHandler creates a new health handler. rt may be nil, in which
// case every check reports unhealthy.
func NewHealthHandler(rt *runtime.Runtime) *HealthHandler {
	return &HealthHandler{
		runtime:   rt,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if h.runtime == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("runtime not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := h.runtime.Store().Healthcheck(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database: "+err.Error()))
		return
	}

	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "rolesync",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
		"db_latency": time.Since(start).String(),
	}))
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.runtime == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("runtime not initialized"))
		return
	}

	if !h.runtime.Debouncer().Running() {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("drain loop not running"))
		return
	}

	stats := h.runtime.Mappings().Stats()
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"target_community": h.runtime.TargetCommunity(),
		"mappings":         stats.Enabled,
		"mappings_loaded":  h.runtime.Mappings().LoadedAt().UTC().Format(time.RFC3339),
		"auto_sync":        h.runtime.AutoSync(),
		"sweep_running":    h.runtime.Batch().Running(),
	}))
}
