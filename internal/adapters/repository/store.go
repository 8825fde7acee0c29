// Package repository defines the score store contract and its implementations.
//
// The store is an append-only collection of score events keyed by event id.
// Reads are either point-in-time (latest event, events of a day) or a push
// subscription delivering each newly appended event.
package repository

import (
	"context"

	"github.com/ekurt/bottlederby/internal/domain/model"
)

// Store provides read/write/subscribe access to score events.
type Store interface {
	// Append writes one event keyed by its id. Reusing an id is an error.
	Append(ctx context.Context, e model.ScoreEvent) error

	// Latest returns the most recent event by timestamp.
	// Returns ErrNoEvents when the store is empty.
	Latest(ctx context.Context) (model.ScoreEvent, error)

	// QueryByDay returns all events whose dayKey matches, order unspecified.
	QueryByDay(ctx context.Context, dayKey string) ([]model.ScoreEvent, error)

	// SubscribeLatest returns a channel receiving each newly appended event
	// and a function that cancels the subscription. The channel is closed on
	// unsubscribe or store shutdown. Slow subscribers may miss events; the
	// latest delivered document is always authoritative.
	SubscribeLatest(ctx context.Context) (<-chan model.ScoreEvent, func())

	// Count returns the number of stored events.
	Count(ctx context.Context) int

	// Close releases store resources.
	Close() error
}
