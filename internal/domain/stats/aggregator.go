// Package stats computes and caches per-day score aggregates.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/standings"
	"github.com/ekurt/bottlederby/pkg/logger"
	"github.com/ekurt/bottlederby/pkg/metrics"
)

// Cache configuration constants.
const (
	defaultTTL           = 5 * time.Minute
	defaultSweepInterval = time.Minute
)

// Querier is the slice of the score store the aggregator needs.
type Querier interface {
	QueryByDay(ctx context.Context, dayKey string) ([]model.ScoreEvent, error)
}

// cacheEntry holds one day's aggregate and when it was computed. Entries
// are never mutated; a recomputation stores a replacement.
type cacheEntry struct {
	data     model.DailyAggregate
	storedAt time.Time
}

// Aggregator answers "totals as of day D" with a freshness-windowed cache.
// It is constructed per service lifetime and handed to readers; there is no
// package-level instance.
type Aggregator struct {
	store Querier
	ttl   time.Duration
	sweep time.Duration
	now   func() time.Time
	log   logger.Logger

	mu           sync.Mutex
	cache        map[string]cacheEntry
	selectedDate string
	generation   uint64
	current      model.DailyAggregate
	currentSet   bool
}

// New creates an Aggregator reading from store. The selected date starts at
// today.
func New(store Querier, opts ...Option) *Aggregator {
	a := &Aggregator{
		store: store,
		ttl:   defaultTTL,
		sweep: defaultSweepInterval,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Named("stats")
	}
	a.selectedDate = model.DayKeyOf(a.now())
	return a
}

// GetAggregate returns the aggregate for dayKey, serving a fresh cache entry
// when one exists and querying the store otherwise. A store failure leaves
// any previously cached (possibly stale) entry untouched.
func (a *Aggregator) GetAggregate(ctx context.Context, dayKey string) (model.DailyAggregate, error) {
	if err := model.ValidateDayKey(dayKey); err != nil {
		return model.DailyAggregate{}, err
	}

	metrics.RecordAggregateQuery()

	a.mu.Lock()
	if entry, ok := a.cache[dayKey]; ok && a.now().Sub(entry.storedAt) <= a.ttl {
		a.mu.Unlock()
		metrics.RecordCacheHit()
		return entry.data, nil
	}
	a.mu.Unlock()

	metrics.RecordCacheMiss()

	start := a.now()
	events, err := a.store.QueryByDay(ctx, dayKey)
	if err != nil {
		// An expired entry survives a failed refresh; the sweeper owns
		// lifecycle eviction.
		a.log.Warn(ctx, "day query failed",
			logger.String("dayKey", dayKey),
			logger.Error(err),
		)
		return model.DailyAggregate{}, err
	}
	agg := aggregate(events)
	metrics.RecordAggregateLatency(float64(a.now().Sub(start).Milliseconds()))

	a.mu.Lock()
	a.cache[dayKey] = cacheEntry{data: agg, storedAt: a.now()}
	a.mu.Unlock()

	return agg, nil
}

// Invalidate evicts dayKey from the cache.
func (a *Aggregator) Invalidate(dayKey string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.cache, dayKey)
}

// SetDate switches the day of interest and re-evaluates its aggregate. A
// result that resolves after a newer SetDate superseded it is discarded, so
// a slow day never overwrites the currently selected one.
func (a *Aggregator) SetDate(ctx context.Context, dayKey string) error {
	if err := model.ValidateDayKey(dayKey); err != nil {
		return err
	}

	a.mu.Lock()
	if a.selectedDate == dayKey && a.currentSet {
		a.mu.Unlock()
		return nil
	}
	a.selectedDate = dayKey
	a.generation++
	gen := a.generation
	a.mu.Unlock()

	agg, err := a.GetAggregate(ctx, dayKey)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation != gen {
		// Superseded while the query was in flight.
		return nil
	}
	a.current = agg
	a.currentSet = true
	return nil
}

// SelectedDate returns the day currently of interest.
func (a *Aggregator) SelectedDate() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selectedDate
}

// Current returns the aggregate last applied for the selected date.
func (a *Aggregator) Current() (model.DailyAggregate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, a.currentSet
}

// CacheSize returns the number of cached days.
func (a *Aggregator) CacheSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}

// Run sweeps expired entries until ctx is done.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.evictExpired()
		}
	}
}

// evictExpired drops every entry older than the freshness window.
func (a *Aggregator) evictExpired() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for key, entry := range a.cache {
		if now.Sub(entry.storedAt) > a.ttl {
			delete(a.cache, key)
			metrics.RecordCacheEviction()
		}
	}
}

// aggregate sums per-team deltas and derives the winner.
func aggregate(events []model.ScoreEvent) model.DailyAggregate {
	var gs, fb, ts int
	for _, e := range events {
		gs += e.GSDelta
		fb += e.FBDelta
		ts += e.TSDelta
	}
	return model.DailyAggregate{
		GS:     gs,
		FB:     fb,
		TS:     ts,
		Winner: standings.Compute(gs, fb, ts),
	}
}
