// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ekurt/bottlederby/internal/adapters/http/live"
	"github.com/ekurt/bottlederby/internal/domain/dedupe"
	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/standings"
	"github.com/ekurt/bottlederby/internal/domain/team"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a device event for async processing. Returns false on
	// backpressure.
	Enqueue(ctx context.Context, e model.IngestEvent) bool

	// AddBottle appends one bottle for the team and returns the written event.
	AddBottle(ctx context.Context, t team.Team) (model.ScoreEvent, error)

	// Scoreboard returns the latest score event.
	Scoreboard(ctx context.Context) (model.ScoreEvent, error)

	// DailyStats returns the aggregate for the given day key.
	DailyStats(ctx context.Context, dayKey string) (model.DailyAggregate, error)

	// SetDate switches the day the statistics view follows; SelectedDate
	// reports it.
	SetDate(ctx context.Context, dayKey string) error
	SelectedDate() string
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	eventsHandler     *EventsHandler
	scoreboardHandler *ScoreboardHandler
	scoresHandler     *ScoresHandler
	dailyHandler      *DailyStatsHandler
	dateHandler       *DateHandler
	dashboardHandler  *dashboardHandler
	hub               *live.Hub
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, hub *live.Hub) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		eventsHandler:     NewEventsHandler(deps),
		scoreboardHandler: NewScoreboardHandler(deps),
		scoresHandler:     NewScoresHandler(deps),
		dailyHandler:      NewDailyStatsHandler(deps),
		dateHandler:       NewDateHandler(deps),
		dashboardHandler:  newdashboardHandler(),
		hub:               hub,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats/daily", MetricsMiddleware(s.dailyHandler.HandleGetDailyStats, "stats_daily"))
	mux.HandleFunc("/stats/date", MetricsMiddleware(s.dateHandler.HandleDate, "stats_date"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/scoreboard", MetricsMiddleware(s.scoreboardHandler.HandleGetScoreboard, "scoreboard"))
	mux.HandleFunc("/scores/", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
	if s.hub != nil {
		mux.Handle("/live", s.hub)
	}
}

// ingestRequest mirrors the OpenAPI schema for POST /events.
type ingestRequest struct {
	EventID string `json:"event_id"`
	Team    string `json:"team"`
	TS      string `json:"ts"`
}

func (e ingestRequest) validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(e.Team) == "":
		return errors.New("missing team")
	case strings.TrimSpace(e.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := team.Parse(e.Team); err != nil {
		return errors.New("unknown team; must be one of gs, fb, ts")
	}
	if _, err := time.Parse(time.RFC3339, e.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	return nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// scoreboardResponse is the read model for GET /scoreboard.
type scoreboardResponse struct {
	GSTotal   int              `json:"gs_total"`
	FBTotal   int              `json:"fb_total"`
	TSTotal   int              `json:"ts_total"`
	EventID   string           `json:"event_id,omitempty"`
	UpdatedAt int64            `json:"updated_at,omitempty"`
	Leader    standings.Winner `json:"leader"`
}

// dailyStatsResponse is the read model for GET /stats/daily.
type dailyStatsResponse struct {
	Date   string           `json:"date"`
	GS     int              `json:"gs"`
	FB     int              `json:"fb"`
	TS     int              `json:"ts"`
	Winner standings.Winner `json:"winner"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
