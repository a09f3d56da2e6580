package handlers

import (
	"net/http"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 366
)

// StatsHandler handles statistics endpoints.
type StatsHandler struct {
	runtime *runtime.Runtime
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(rt *runtime.Runtime) *StatsHandler {
	return &StatsHandler{runtime: rt}
}

// Summary handles GET /api/v1/stats?days=N.
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", defaultStatsDays, maxStatsDays)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	summary, err := h.runtime.Store().GetStatsSummary(r.Context(), days)
	if err != nil {
		InternalServerError(w, "Failed to compute statistics")
		return
	}
	WriteJSONOK(w, summary)
}

// Daily handles GET /api/v1/stats/daily?days=N.
func (h *StatsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", defaultStatsDays, maxStatsDays)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -(days - 1))

	rows, err := h.runtime.Store().ListDailyStats(r.Context(), from, to)
	if err != nil {
		InternalServerError(w, "Failed to list statistics")
		return
	}
	if rows == nil {
		rows = []*models.DailyStatistic{}
	}
	WriteJSONOK(w, rows)
}
