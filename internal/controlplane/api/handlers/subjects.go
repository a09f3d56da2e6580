package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// SubjectHandler handles per-subject reconciliation and history endpoints.
type SubjectHandler struct {
	runtime *runtime.Runtime
}

// NewSubjectHandler creates a new SubjectHandler.
func NewSubjectHandler(rt *runtime.Runtime) *SubjectHandler {
	return &SubjectHandler{runtime: rt}
}

// Reconcile handles POST /api/v1/subjects/{id}/reconcile.
// With dry_run=true the plan is computed but nothing is changed or recorded
// beyond the session itself.
func (h *SubjectHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	subject, ok := snowflakeParam(w, r, "id")
	if !ok {
		return
	}
	dryRun, err := boolQuery(r, "dry_run")
	if err != nil {
		BadRequest(w, "Invalid dry_run")
		return
	}

	logger.InfoCtx(r.Context(), "API reconciliation requested",
		logger.Subject(subject), "operator", operator(r), "dry_run", dryRun)

	// A started reconciliation finishes even if the client disconnects.
	res := h.runtime.Reconcile(context.WithoutCancel(r.Context()), subject, reconcile.TriggerAPI, dryRun)
	if res.ErrorKind == reconcile.KindSubjectNotFound {
		NotFound(w, "Subject is not a member of the target community")
		return
	}
	WriteJSONOK(w, res)
}

// Sessions handles GET /api/v1/subjects/{id}/sessions.
func (h *SubjectHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	subject, ok := snowflakeParam(w, r, "id")
	if !ok {
		return
	}
	h.listSessions(w, r, subject)
}

// AllSessions handles GET /api/v1/sessions.
func (h *SubjectHandler) AllSessions(w http.ResponseWriter, r *http.Request) {
	h.listSessions(w, r, 0)
}

func (h *SubjectHandler) listSessions(w http.ResponseWriter, r *http.Request, subject uint64) {
	limit, err := intQuery(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	sessions, err := h.runtime.Store().ListSessions(r.Context(), subject, limit)
	if err != nil {
		InternalServerError(w, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*models.SyncSession{}
	}
	WriteJSONOK(w, sessions)
}

// Session handles GET /api/v1/sessions/{id}.
func (h *SubjectHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.runtime.Store().GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			NotFound(w, "Session not found")
			return
		}
		InternalServerError(w, "Failed to get session")
		return
	}
	WriteJSONOK(w, sess)
}

// Logs handles GET /api/v1/subjects/{id}/logs.
func (h *SubjectHandler) Logs(w http.ResponseWriter, r *http.Request) {
	subject, ok := snowflakeParam(w, r, "id")
	if !ok {
		return
	}
	limit, err := intQuery(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	logs, err := h.runtime.Store().ListSyncLogs(r.Context(), subject, limit)
	if err != nil {
		InternalServerError(w, "Failed to list sync logs")
		return
	}
	if logs == nil {
		logs = []*models.SyncLog{}
	}
	WriteJSONOK(w, logs)
}

// Assignments handles GET /api/v1/subjects/{id}/assignments.
func (h *SubjectHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	subject, ok := snowflakeParam(w, r, "id")
	if !ok {
		return
	}
	assignments, err := h.runtime.Store().ListAssignments(r.Context(), subject)
	if err != nil {
		InternalServerError(w, "Failed to list assignments")
		return
	}
	if assignments == nil {
		assignments = []*models.RoleAssignment{}
	}
	WriteJSONOK(w, assignments)
}

// State handles GET /api/v1/subjects/{id}/state.
func (h *SubjectHandler) State(w http.ResponseWriter, r *http.Request) {
	subject, ok := snowflakeParam(w, r, "id")
	if !ok {
		return
	}
	state, err := h.runtime.Store().GetSyncState(r.Context(), subject, h.runtime.TargetCommunity())
	if err != nil {
		if errors.Is(err, models.ErrSyncStateNotFound) {
			NotFound(w, "Subject has never been reconciled")
			return
		}
		InternalServerError(w, "Failed to get sync state")
		return
	}
	WriteJSONOK(w, state)
}
