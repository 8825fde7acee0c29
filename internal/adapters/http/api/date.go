// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ekurt/bottlederby/internal/domain/model"
)

// DateDependencies defines the interface for the selected-date flow.
type DateDependencies interface {
	SetDate(ctx context.Context, dayKey string) error
	SelectedDate() string
	DailyStats(ctx context.Context, dayKey string) (model.DailyAggregate, error)
}

// DateHandler handles the selected statistics day.
type DateHandler struct {
	deps DateDependencies
}

// NewDateHandler creates a new date handler.
func NewDateHandler(deps DateDependencies) *DateHandler {
	return &DateHandler{deps: deps}
}

// dateRequest mirrors the OpenAPI schema for POST /stats/date.
type dateRequest struct {
	Date string `json:"date"`
}

// HandleDate handles GET and POST /stats/date requests. GET reports the
// selected day; POST switches it and returns that day's aggregate, freshly
// queried by the switch.
func (h *DateHandler) HandleDate(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats_date"
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, dateRequest{Date: h.deps.SelectedDate()})
	case http.MethodPost:
		var req dateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := h.deps.SetDate(r.Context(), req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "bad_date", WrapKind(op, ErrBadRequest, err))
			return
		}
		agg, err := h.deps.DailyStats(r.Context(), req.Date)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", WrapKind(op, ErrUnavailable, err))
			return
		}
		writeJSON(w, http.StatusOK, dailyStatsResponse{
			Date:   req.Date,
			GS:     agg.GS,
			FB:     agg.FB,
			TS:     agg.TS,
			Winner: agg.Winner,
		})
	default:
		http.NotFound(w, r)
	}
}
