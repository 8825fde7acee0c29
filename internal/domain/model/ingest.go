package model

import (
	"time"

	"github.com/ekurt/bottlederby/internal/domain/team"
)

// IngestEvent is a device-originated bottle drop awaiting application to
// the score store. The device assigns EventID so retries deduplicate.
type IngestEvent struct {
	EventID string
	Team    team.Team
	TS      time.Time
}
