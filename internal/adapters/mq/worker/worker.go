// Package worker applies queued ingest events to the score store.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ekurt/bottlederby/internal/adapters/mq/queue"
	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/team"
	"github.com/ekurt/bottlederby/pkg/logger"
	"github.com/ekurt/bottlederby/pkg/metrics"
)

// Shutdown timeout constants.
const (
	workerShutdownTimeout = 5 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Applier turns an ingest event into an appended score event. The service
// implements it with its write path so all increments share one code path.
type Applier interface {
	AddBottle(ctx context.Context, t team.Team) (model.ScoreEvent, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker drains the ingest queue and applies each bottle drop.
type Worker struct {
	queue   Queue
	applier Applier
	name    string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	log logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker(q Queue, applier Applier, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Named(w.name)
	}
	return w
}

// Run drains the queue until ctx is done, shutdown is signaled, or the
// queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.apply(ctx, e); err != nil {
				w.log.Error(ctx, "ingest apply failed",
					logger.String("eventID", e.EventID),
					logger.String("team", e.Team.String()),
					logger.Error(err),
				)
			}
		}
	}
}

// signal requests the worker to stop. Safe to call more than once.
func (w *Worker) signal() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Shutdown stops the worker and waits until ctx expires. Idempotent.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown timed out: %w", ctx.Err())
	}
}

// apply funnels one ingest event through the shared write path.
func (w *Worker) apply(ctx context.Context, e Event) error {
	if _, err := w.applier.AddBottle(ctx, e.Team); err != nil {
		metrics.RecordWriteError()
		return err
	}
	return nil
}

// Pool manages the ingest workers. It defaults to a single worker so score
// totals remain a strict running sum; more workers would interleave reads
// of the latest totals.
type Pool struct {
	workers []*Worker
}

// NewPool creates a pool of count workers over q and applier.
func NewPool(count int, q Queue, applier Applier) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{workers: make([]*Worker, count)}
	for i := range p.workers {
		p.workers[i] = NewWorker(q, applier, WithName(fmt.Sprintf("ingest-worker-%d", i)))
	}
	return p
}

// Start runs all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers, then waits briefly for each. Idempotent, and
// safe to combine with a direct Worker.Shutdown.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.signal()
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}
