// Package stats computes and caches per-day score aggregates.
package stats

import (
	"time"

	"github.com/ekurt/bottlederby/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithTTL sets the freshness window for cached aggregates.
func WithTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often Run evicts expired entries.
func WithSweepInterval(interval time.Duration) Option {
	return func(a *Aggregator) {
		if interval > 0 {
			a.sweep = interval
		}
	}
}

// WithClock overrides the time source. Used by tests to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}
