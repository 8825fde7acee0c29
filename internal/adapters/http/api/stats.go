// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// ServiceStats is the read model for GET /stats: a snapshot of the derby
// pipeline from ingest queue to score store.
type ServiceStats struct {
	Started       bool   `json:"started"`
	Workers       int    `json:"workers"`
	QueueLength   int    `json:"queue_length"`
	QueueCapacity int    `json:"queue_capacity"`
	DedupeEntries int64  `json:"dedupe_entries"`
	TotalEvents   int    `json:"total_events"`
	CachedDays    int    `json:"cached_days"`
	SelectedDate  string `json:"selected_date,omitempty"`
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() ServiceStats
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}
