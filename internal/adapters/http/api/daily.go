// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ekurt/bottlederby/internal/domain/model"
)

// DailyStatsDependencies defines the interface for daily aggregate reads.
type DailyStatsDependencies interface {
	DailyStats(ctx context.Context, dayKey string) (model.DailyAggregate, error)
}

// DailyStatsHandler handles daily aggregate requests.
type DailyStatsHandler struct {
	deps DailyStatsDependencies
}

// NewDailyStatsHandler creates a new daily stats handler.
func NewDailyStatsHandler(deps DailyStatsDependencies) *DailyStatsHandler {
	return &DailyStatsHandler{deps: deps}
}

// HandleGetDailyStats handles GET /stats/daily?date=YYYY-MM-DD requests.
// The date defaults to today when the parameter is absent.
func (h *DailyStatsHandler) HandleGetDailyStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_daily_stats"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = model.DayKeyOf(time.Now())
	}
	if err := model.ValidateDayKey(date); err != nil {
		writeError(w, http.StatusBadRequest, "bad_date", WrapKind(op, ErrBadRequest, err))
		return
	}
	agg, err := h.deps.DailyStats(r.Context(), date)
	if err != nil {
		if errors.Is(err, model.ErrBadDayKey) {
			writeError(w, http.StatusBadRequest, "bad_date", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, dailyStatsResponse{
		Date:   date,
		GS:     agg.GS,
		FB:     agg.FB,
		TS:     agg.TS,
		Winner: agg.Winner,
	})
}
