package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ekurt/bottlederby/internal/adapters/mq/queue"
	"github.com/ekurt/bottlederby/internal/adapters/mq/worker"
	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/team"
	"github.com/ekurt/bottlederby/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// recordingApplier counts applied bottles per team.
type recordingApplier struct {
	mu      sync.Mutex
	applied map[team.Team]int
	err     error
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{applied: make(map[team.Team]int)}
}

func (a *recordingApplier) AddBottle(_ context.Context, t team.Team) (model.ScoreEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return model.ScoreEvent{}, a.err
	}
	a.applied[t]++
	return model.ScoreEvent{}, nil
}

func (a *recordingApplier) setErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

func (a *recordingApplier) count(t team.Team) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied[t]
}

func (a *recordingApplier) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.applied {
		n += c
	}
	return n
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorkerAppliesEvents(t *testing.T) {
	Convey("Given a running worker", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		applier := newRecordingApplier()
		w := worker.NewWorker(q, applier, worker.WithName("test-worker"))
		go w.Run(ctx)

		Convey("Queued bottle drops reach the applier", func() {
			So(q.Enqueue(ctx, queue.Event{EventID: "e1", Team: team.GS, TS: time.Now()}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Event{EventID: "e2", Team: team.GS, TS: time.Now()}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Event{EventID: "e3", Team: team.FB, TS: time.Now()}), ShouldBeTrue)

			So(waitFor(func() bool { return applier.total() == 3 }), ShouldBeTrue)
			So(applier.count(team.GS), ShouldEqual, 2)
			So(applier.count(team.FB), ShouldEqual, 1)
		})

		Convey("An apply failure does not stop the worker", func() {
			applier.setErr(errors.New("store unavailable"))
			So(q.Enqueue(ctx, queue.Event{EventID: "e1", Team: team.TS, TS: time.Now()}), ShouldBeTrue)
			applier.setErr(nil)
			So(q.Enqueue(ctx, queue.Event{EventID: "e2", Team: team.TS, TS: time.Now()}), ShouldBeTrue)

			So(waitFor(func() bool { return applier.count(team.TS) >= 1 }), ShouldBeTrue)
		})

		Convey("Shutdown stops the worker", func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()
			So(w.Shutdown(shutdownCtx), ShouldBeNil)

			Convey("And a repeated Shutdown does not panic", func() {
				So(func() { _ = w.Shutdown(shutdownCtx) }, ShouldNotPanic)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a single-worker pool", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		applier := newRecordingApplier()
		p := worker.NewPool(0, q, applier) // clamps to one worker
		p.Start(ctx)

		Convey("Events are applied then the pool stops cleanly", func() {
			for i := 0; i < 5; i++ {
				So(q.Enqueue(ctx, queue.Event{EventID: "e", Team: team.GS, TS: time.Now()}), ShouldBeTrue)
			}
			So(waitFor(func() bool { return applier.count(team.GS) == 5 }), ShouldBeTrue)
			p.Stop()

			Convey("And stopping again does not panic", func() {
				So(p.Stop, ShouldNotPanic)
			})
		})
	})
}
