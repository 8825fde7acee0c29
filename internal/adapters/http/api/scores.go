// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/team"
)

// ScoresDependencies defines the interface for the admin write path.
type ScoresDependencies interface {
	AddBottle(ctx context.Context, t team.Team) (model.ScoreEvent, error)
}

// ScoresHandler handles admin add-bottle requests.
type ScoresHandler struct {
	deps ScoresDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoresDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /scores/{team} requests.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /scores/
	path := strings.TrimPrefix(r.URL.Path, "/scores/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	t, err := team.Parse(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_team", WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := h.deps.AddBottle(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}
