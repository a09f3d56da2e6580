package handlers

import (
	"errors"
	"net/http"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/batch"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

// SyncHandler handles sweep, queue and auto-sync endpoints.
type SyncHandler struct {
	runtime *runtime.Runtime
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(rt *runtime.Runtime) *SyncHandler {
	return &SyncHandler{runtime: rt}
}

// SweepStatus is returned by GET and POST /api/v1/sweep.
type SweepStatus struct {
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
}

// QueueResponse is returned by GET /api/v1/queue.
type QueueResponse struct {
	Pending int                    `json:"pending"`
	Entries []trigger.PendingEntry `json:"entries"`
}

// AutoSyncRequest is the request body for PUT /api/v1/settings/auto-sync.
type AutoSyncRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// AutoSyncResponse reports the auto-sync toggle.
type AutoSyncResponse struct {
	Enabled bool  `json:"enabled"`
	Dropped int64 `json:"dropped"`
}

// SweepStatus handles GET /api/v1/sweep.
func (h *SyncHandler) SweepStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.sweepStatus())
}

// StartSweep handles POST /api/v1/sweep. The sweep runs in the background.
func (h *SyncHandler) StartSweep(w http.ResponseWriter, r *http.Request) {
	err := h.runtime.StartSweep(r.Context(), operator(r))
	switch {
	case errors.Is(err, batch.ErrBatchDisabled):
		Conflict(w, "Batch sweeps are disabled")
	case errors.Is(err, batch.ErrSweepRunning):
		Conflict(w, "A sweep is already running")
	case errors.Is(err, runtime.ErrShuttingDown):
		WriteProblem(w, http.StatusServiceUnavailable, "The bot is shutting down")
	case err != nil:
		InternalServerError(w, "Failed to start sweep")
	default:
		WriteJSON(w, http.StatusAccepted, SweepStatus{Enabled: true, Running: true})
	}
}

func (h *SyncHandler) sweepStatus() SweepStatus {
	return SweepStatus{
		Enabled: h.runtime.Batch().Enabled(),
		Running: h.runtime.Batch().Running(),
	}
}

// Queue handles GET /api/v1/queue.
func (h *SyncHandler) Queue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.runtime.Pending(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to read queue")
		return
	}
	if entries == nil {
		entries = []trigger.PendingEntry{}
	}
	WriteJSONOK(w, QueueResponse{Pending: len(entries), Entries: entries})
}

// ClearQueue handles DELETE /api/v1/queue.
func (h *SyncHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	n, err := h.runtime.ClearQueue(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to clear queue")
		return
	}
	WriteJSONOK(w, map[string]int{"cleared": n})
}

// GetAutoSync handles GET /api/v1/settings/auto-sync.
func (h *SyncHandler) GetAutoSync(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.autoSync())
}

// PutAutoSync handles PUT /api/v1/settings/auto-sync.
func (h *SyncHandler) PutAutoSync(w http.ResponseWriter, r *http.Request) {
	var req AutoSyncRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.runtime.SetAutoSync(r.Context(), *req.Enabled); err != nil {
		InternalServerError(w, "Failed to store setting")
		return
	}
	WriteJSONOK(w, h.autoSync())
}

func (h *SyncHandler) autoSync() AutoSyncResponse {
	return AutoSyncResponse{
		Enabled: h.runtime.AutoSync(),
		Dropped: h.runtime.Detector().Dropped(),
	}
}
