// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ekurt/bottlederby/internal/adapters/http/api"
	"github.com/ekurt/bottlederby/internal/adapters/http/live"
	eventqueue "github.com/ekurt/bottlederby/internal/adapters/mq/queue"
	workerpool "github.com/ekurt/bottlederby/internal/adapters/mq/worker"
	"github.com/ekurt/bottlederby/internal/adapters/repository"
	"github.com/ekurt/bottlederby/internal/domain/dedupe"
	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/stats"
	"github.com/ekurt/bottlederby/internal/domain/team"
	"github.com/ekurt/bottlederby/pkg/logger"
	"github.com/ekurt/bottlederby/pkg/metrics"
)

// Service implements the API dependencies for the scoreboard system.
type Service struct {
	mu sync.RWMutex

	// writeMu serializes the read-modify-write of AddBottle so totals stay
	// a strict running sum even with concurrent callers.
	writeMu sync.Mutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	aggregator *stats.Aggregator
	workerPool *workerpool.Pool
	hub        *live.Hub

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	cacheTTL       time.Duration
	liveSendBuffer int

	// State
	started   bool
	runCancel context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the score store. Defaults to the in-memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithWorkerCount sets the number of ingest worker goroutines. More than
// one worker trades the strict running-sum ordering for throughput.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCacheTTL sets the freshness window for cached daily aggregates.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLiveSendBuffer sizes each websocket client's outbound buffer.
func WithLiveSendBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.liveSendBuffer = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    1, // single writer keeps totals a strict running sum
		queueSize:      4096,
		dedupeSize:     50000,
		cacheTTL:       5 * time.Minute,
		liveSendBuffer: 16,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting scoreboard service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory score store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	s.aggregator = stats.New(s.store,
		stats.WithTTL(s.cacheTTL),
		stats.WithLogger(s.logger.Named("stats")),
	)
	s.hub = live.NewHub(
		live.WithSendBuffer(s.liveSendBuffer),
		live.WithLogger(s.logger.Named("live")),
	)

	// Background goroutines outlive the Start call and stop with the service.
	runCtx, cancel := context.WithCancel(context.Background())
	s.runCancel = cancel

	go s.aggregator.Run(runCtx)
	go s.hub.Run(runCtx)
	go s.bridgeLive(runCtx)

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s)
	s.workerPool.Start(runCtx)

	metrics.UpdateQueueCapacity(s.queueSize)

	s.started = true
	s.logger.Info(ctx, "scoreboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping scoreboard service...")

	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if q, ok := s.eventQueue.(*eventqueue.InMemoryQueue); ok {
		_ = q.Close()
	}
	if s.runCancel != nil {
		s.runCancel()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "scoreboard service stopped")
}

// Hub exposes the websocket hub for route registration.
func (s *Service) Hub() *live.Hub {
	return s.hub
}

// bridgeLive forwards every appended score event to the websocket hub.
func (s *Service) bridgeLive(ctx context.Context) {
	events, cancel := s.store.SubscribeLatest(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.hub.Broadcast(ev)
		}
	}
}

// AddBottle appends one bottle for the team and returns the written event.
// It is the single write path: the admin endpoint and the ingest workers
// both funnel through it.
func (s *Service) AddBottle(ctx context.Context, t team.Team) (model.ScoreEvent, error) {
	if !t.Valid() {
		return model.ScoreEvent{}, team.ErrUnknownTeam
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev, err := s.store.Latest(ctx)
	if err != nil && !errors.Is(err, repository.ErrNoEvents) {
		return model.ScoreEvent{}, fmt.Errorf("read latest: %w", err)
	}

	ev := model.Next(prev, t, time.Now())
	if err := s.store.Append(ctx, ev); err != nil {
		return model.ScoreEvent{}, fmt.Errorf("append event: %w", err)
	}

	// The day's cached aggregate is stale the moment the append lands.
	s.aggregator.Invalidate(ev.DayKey)

	metrics.RecordBottleAdded(t.String())
	metrics.RecordEventWritten()
	metrics.UpdateStoreEvents(s.store.Count(ctx))

	s.logger.Debug(ctx, "bottle added",
		logger.String("team", t.String()),
		logger.String("eventID", ev.ID),
		logger.Int("gs", ev.GSTotal),
		logger.Int("fb", ev.FBTotal),
		logger.Int("ts", ev.TSTotal),
	)

	return ev, nil
}

// Scoreboard returns the latest score event.
func (s *Service) Scoreboard(ctx context.Context) (model.ScoreEvent, error) {
	return s.store.Latest(ctx)
}

// DailyStats returns the aggregate for the given day key, served from the
// cache when fresh.
func (s *Service) DailyStats(ctx context.Context, dayKey string) (model.DailyAggregate, error) {
	return s.aggregator.GetAggregate(ctx, dayKey)
}

// SetDate switches the aggregator's selected date.
func (s *Service) SetDate(ctx context.Context, dayKey string) error {
	return s.aggregator.SetDate(ctx, dayKey)
}

// SelectedDate returns the aggregator's selected date.
func (s *Service) SelectedDate() string {
	return s.aggregator.SelectedDate()
}

// SeenAndRecord atomically checks if an event id was seen and records it if
// not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits a device event for asynchronous processing.
func (s *Service) Enqueue(ctx context.Context, e model.IngestEvent) bool {
	ok := s.eventQueue.Enqueue(ctx, e)
	if ok {
		metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	}
	return ok
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() api.ServiceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	st := api.ServiceStats{
		Started:       s.started,
		Workers:       s.workerCount,
		QueueCapacity: s.queueSize,
	}

	if s.started {
		st.QueueLength = s.eventQueue.Len(ctx)
		st.TotalEvents = s.store.Count(ctx)
		st.DedupeEntries = s.deduper.Size()
		st.CachedDays = s.aggregator.CacheSize()
		st.SelectedDate = s.aggregator.SelectedDate()

		metrics.UpdateQueueSize(st.QueueLength)
		metrics.UpdateStoreEvents(st.TotalEvents)
	}

	return st
}
