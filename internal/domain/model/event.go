// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"

	"github.com/ekurt/bottlederby/internal/domain/standings"
	"github.com/ekurt/bottlederby/internal/domain/team"
	"github.com/google/uuid"
)

// dayKeyLayout is the calendar-day bucket format, local time.
const dayKeyLayout = "2006-01-02"

// ScoreEvent is one append-only score document. Totals are cumulative as of
// this event; deltas are the increment this event applied. Field names
// mirror the stored document shape.
type ScoreEvent struct {
	ID        string `json:"id" bson:"_id"`
	GSTotal   int    `json:"gs_total" bson:"gs_total"`
	FBTotal   int    `json:"fb_total" bson:"fb_total"`
	TSTotal   int    `json:"ts_total" bson:"ts_total"`
	GSDelta   int    `json:"gs_delta" bson:"gs_delta"`
	FBDelta   int    `json:"fb_delta" bson:"fb_delta"`
	TSDelta   int    `json:"ts_delta" bson:"ts_delta"`
	DayKey    string `json:"dayKey" bson:"dayKey"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
}

// Next builds the successor event that adds one bottle for t on top of prev.
// prev may be the zero value when the store is empty.
func Next(prev ScoreEvent, t team.Team, now time.Time) ScoreEvent {
	e := ScoreEvent{
		ID:        NewEventID(now),
		GSTotal:   prev.GSTotal,
		FBTotal:   prev.FBTotal,
		TSTotal:   prev.TSTotal,
		DayKey:    DayKeyOf(now),
		Timestamp: now.UnixMilli(),
	}
	switch t {
	case team.GS:
		e.GSTotal++
		e.GSDelta = 1
	case team.FB:
		e.FBTotal++
		e.FBDelta = 1
	case team.TS:
		e.TSTotal++
		e.TSDelta = 1
	}
	return e
}

// Goal reports whether the event scored a bottle for any team, as opposed
// to an all-zero heartbeat.
func (e ScoreEvent) Goal() bool {
	return e.GSDelta == 1 || e.FBDelta == 1 || e.TSDelta == 1
}

// NewEventID returns a timestamp-sortable unique id. The millisecond prefix
// keeps the original document-key convention; the random suffix closes the
// same-clock-tick collision window.
func NewEventID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// DayKeyOf buckets an instant into its local calendar day.
func DayKeyOf(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// ValidateDayKey rejects anything that is not a strict YYYY-MM-DD day.
func ValidateDayKey(s string) error {
	t, err := time.Parse(dayKeyLayout, s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadDayKey, s)
	}
	// time.Parse tolerates some non-canonical inputs; require a round-trip.
	if t.Format(dayKeyLayout) != s {
		return fmt.Errorf("%w: %q", ErrBadDayKey, s)
	}
	return nil
}

// Validate checks the structural invariants of a score event.
func (e ScoreEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEvent)
	}
	if e.GSTotal < 0 || e.FBTotal < 0 || e.TSTotal < 0 {
		return fmt.Errorf("%w: negative total", ErrInvalidEvent)
	}
	deltas := 0
	for _, d := range []int{e.GSDelta, e.FBDelta, e.TSDelta} {
		if d != 0 && d != 1 {
			return fmt.Errorf("%w: delta out of range", ErrInvalidEvent)
		}
		deltas += d
	}
	// A single-bottle increment or an all-zero heartbeat.
	if deltas > 1 {
		return fmt.Errorf("%w: multiple deltas set", ErrInvalidEvent)
	}
	if err := ValidateDayKey(e.DayKey); err != nil {
		return err
	}
	return nil
}

// DailyAggregate is the derived per-day view: delta sums per team plus the
// announced winner.
type DailyAggregate struct {
	GS     int              `json:"gs"`
	FB     int              `json:"fb"`
	TS     int              `json:"ts"`
	Winner standings.Winner `json:"winner"`
}
