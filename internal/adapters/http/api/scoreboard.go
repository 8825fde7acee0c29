// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ekurt/bottlederby/internal/adapters/repository"
	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/standings"
)

// ScoreboardDependencies defines the interface for scoreboard reads.
type ScoreboardDependencies interface {
	Scoreboard(ctx context.Context) (model.ScoreEvent, error)
}

// ScoreboardHandler handles scoreboard requests.
type ScoreboardHandler struct {
	deps ScoreboardDependencies
}

// NewScoreboardHandler creates a new scoreboard handler.
func NewScoreboardHandler(deps ScoreboardDependencies) *ScoreboardHandler {
	return &ScoreboardHandler{deps: deps}
}

// HandleGetScoreboard handles GET /scoreboard requests.
func (h *ScoreboardHandler) HandleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scoreboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ev, err := h.deps.Scoreboard(r.Context())
	if err != nil {
		// An empty store is a valid scoreboard, not an error.
		if errors.Is(err, repository.ErrNoEvents) {
			writeJSON(w, http.StatusOK, scoreboardResponse{
				Leader: standings.Compute(0, 0, 0),
			})
			return
		}
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, scoreboardResponse{
		GSTotal:   ev.GSTotal,
		FBTotal:   ev.FBTotal,
		TSTotal:   ev.TSTotal,
		EventID:   ev.ID,
		UpdatedAt: ev.Timestamp,
		Leader:    standings.Compute(ev.GSTotal, ev.FBTotal, ev.TSTotal),
	})
}
