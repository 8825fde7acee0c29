package repository

import (
	"context"
	"sync"

	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/pkg/metrics"
)

// defaultSubscriberBuffer sizes each subscriber channel.
const defaultSubscriberBuffer = 16

// MemoryStore is an in-memory Store. It backs tests and single-process
// deployments, and doubles as the reference implementation of the contract.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]struct{}
	events []model.ScoreEvent
	byDay  map[string][]int // dayKey -> indexes into events
	latest int              // index of the event with the highest timestamp, -1 when empty

	subMu      sync.Mutex
	subs       map[int]chan model.ScoreEvent
	nextSubID  int
	subBuffer  int
	closed     bool
	closedOnce sync.Once
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID:      make(map[string]struct{}),
		byDay:     make(map[string][]int),
		latest:    -1,
		subs:      make(map[int]chan model.ScoreEvent),
		subBuffer: defaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores one event and fans it out to subscribers.
func (s *MemoryStore) Append(_ context.Context, e model.ScoreEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.byID[e.ID]; ok {
		s.mu.Unlock()
		return ErrDuplicateID
	}
	s.byID[e.ID] = struct{}{}
	s.events = append(s.events, e)
	idx := len(s.events) - 1
	s.byDay[e.DayKey] = append(s.byDay[e.DayKey], idx)
	if s.latest < 0 || e.Timestamp >= s.events[s.latest].Timestamp {
		s.latest = idx
	}
	count := len(s.events)
	s.mu.Unlock()

	metrics.UpdateStoreEvents(count)
	s.fanOut(e)
	return nil
}

// Latest returns the event with the highest timestamp.
func (s *MemoryStore) Latest(_ context.Context) (model.ScoreEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest < 0 {
		return model.ScoreEvent{}, ErrNoEvents
	}
	return s.events[s.latest], nil
}

// QueryByDay returns all events bucketed under dayKey.
func (s *MemoryStore) QueryByDay(_ context.Context, dayKey string) ([]model.ScoreEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.byDay[dayKey]
	out := make([]model.ScoreEvent, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.events[i])
	}
	return out, nil
}

// SubscribeLatest registers a subscriber channel.
func (s *MemoryStore) SubscribeLatest(_ context.Context) (<-chan model.ScoreEvent, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan model.ScoreEvent, s.subBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Count returns the number of stored events.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close drops all subscribers. Stored events remain readable.
func (s *MemoryStore) Close() error {
	s.closedOnce.Do(func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.closed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
	})
	return nil
}

// fanOut delivers e to every subscriber without blocking. A full subscriber
// channel drops the event; the next delivery carries newer totals anyway.
func (s *MemoryStore) fanOut(e model.ScoreEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
