package stats_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/standings"
	"github.com/ekurt/bottlederby/internal/domain/stats"
	"github.com/ekurt/bottlederby/internal/domain/team"
	"github.com/ekurt/bottlederby/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// countingStore is a Querier that counts queries and can block or fail
// per day key.
type countingStore struct {
	mu     sync.Mutex
	calls  map[string]int
	events map[string][]model.ScoreEvent
	errs   map[string]error
	gates  map[string]chan struct{}
}

func newCountingStore() *countingStore {
	return &countingStore{
		calls:  make(map[string]int),
		events: make(map[string][]model.ScoreEvent),
		errs:   make(map[string]error),
		gates:  make(map[string]chan struct{}),
	}
}

func (s *countingStore) QueryByDay(_ context.Context, dayKey string) ([]model.ScoreEvent, error) {
	s.mu.Lock()
	s.calls[dayKey]++
	gate := s.gates[dayKey]
	err := s.errs[dayKey]
	events := s.events[dayKey]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *countingStore) callCount(dayKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[dayKey]
}

func (s *countingStore) setErr(dayKey string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[dayKey] = err
}

// bottleDay builds n single-bottle events for tm on day.
func bottleDay(tm team.Team, day string, n int) []model.ScoreEvent {
	at, _ := time.ParseInLocation("2006-01-02", day, time.Local)
	events := make([]model.ScoreEvent, 0, n)
	var prev model.ScoreEvent
	for i := 0; i < n; i++ {
		e := model.Next(prev, tm, at.Add(time.Duration(i)*time.Minute))
		events = append(events, e)
		prev = e
	}
	return events
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetAggregate(t *testing.T) {
	Convey("Given events for one day", t, func() {
		ctx := context.Background()
		store := newCountingStore()
		store.events["2024-05-01"] = append(
			bottleDay(team.GS, "2024-05-01", 3),
			model.Next(model.ScoreEvent{GSTotal: 3}, team.FB, time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)),
		)
		agg := stats.New(store)

		Convey("The aggregate sums deltas and names the winner", func() {
			got, err := agg.GetAggregate(ctx, "2024-05-01")
			So(err, ShouldBeNil)
			So(got.GS, ShouldEqual, 3)
			So(got.FB, ShouldEqual, 1)
			So(got.TS, ShouldEqual, 0)
			So(got.Winner, ShouldResemble, standings.Winner{Team: "GALATASARAY", Score: 3})
		})

		Convey("A day without events aggregates to an all-zero tie", func() {
			got, err := agg.GetAggregate(ctx, "2024-05-02")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, model.DailyAggregate{
				Winner: standings.Winner{Team: standings.TieName, Score: 0},
			})
		})

		Convey("A malformed day key never reaches the store", func() {
			_, err := agg.GetAggregate(ctx, "05/01/2024")
			So(errors.Is(err, model.ErrBadDayKey), ShouldBeTrue)
			So(store.callCount("05/01/2024"), ShouldEqual, 0)
		})
	})
}

func TestCacheIdempotence(t *testing.T) {
	Convey("Given a cached day", t, func() {
		ctx := context.Background()
		store := newCountingStore()
		store.events["2024-05-01"] = bottleDay(team.TS, "2024-05-01", 2)
		agg := stats.New(store)

		first, err := agg.GetAggregate(ctx, "2024-05-01")
		So(err, ShouldBeNil)

		Convey("A second call within the freshness window issues no new query", func() {
			second, err := agg.GetAggregate(ctx, "2024-05-01")
			So(err, ShouldBeNil)
			So(second, ShouldResemble, first)
			So(store.callCount("2024-05-01"), ShouldEqual, 1)
		})

		Convey("Invalidate forces a requery", func() {
			agg.Invalidate("2024-05-01")
			_, err := agg.GetAggregate(ctx, "2024-05-01")
			So(err, ShouldBeNil)
			So(store.callCount("2024-05-01"), ShouldEqual, 2)
		})
	})
}

func TestCacheExpiry(t *testing.T) {
	Convey("Given a short freshness window and a fake clock", t, func() {
		ctx := context.Background()
		store := newCountingStore()
		store.events["2024-05-01"] = bottleDay(team.FB, "2024-05-01", 1)
		clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)}
		agg := stats.New(store, stats.WithTTL(5*time.Minute), stats.WithClock(clock.Now))

		_, err := agg.GetAggregate(ctx, "2024-05-01")
		So(err, ShouldBeNil)
		So(store.callCount("2024-05-01"), ShouldEqual, 1)

		Convey("Within the window the cache answers", func() {
			clock.Advance(4 * time.Minute)
			_, err := agg.GetAggregate(ctx, "2024-05-01")
			So(err, ShouldBeNil)
			So(store.callCount("2024-05-01"), ShouldEqual, 1)
		})

		Convey("After the window a new query is issued even if data is unchanged", func() {
			clock.Advance(5*time.Minute + time.Second)
			_, err := agg.GetAggregate(ctx, "2024-05-01")
			So(err, ShouldBeNil)
			So(store.callCount("2024-05-01"), ShouldEqual, 2)
		})

		Convey("A failed refresh surfaces the error and keeps the entry", func() {
			clock.Advance(6 * time.Minute)
			store.setErr("2024-05-01", errors.New("store unavailable"))
			_, err := agg.GetAggregate(ctx, "2024-05-01")
			So(err, ShouldNotBeNil)
			So(agg.CacheSize(), ShouldEqual, 1)
		})
	})
}

func TestSetDateCancellation(t *testing.T) {
	Convey("Given a slow day query", t, func() {
		ctx := context.Background()
		store := newCountingStore()
		store.events["2024-05-01"] = bottleDay(team.GS, "2024-05-01", 2)
		store.events["2024-05-02"] = bottleDay(team.FB, "2024-05-02", 4)
		gate := make(chan struct{})
		store.gates["2024-05-01"] = gate
		agg := stats.New(store)

		Convey("A superseded result never overwrites the selected day", func() {
			done := make(chan error, 1)
			go func() {
				done <- agg.SetDate(ctx, "2024-05-01")
			}()

			// Let the first query reach the store before switching days.
			for store.callCount("2024-05-01") == 0 {
				time.Sleep(time.Millisecond)
			}
			So(agg.SetDate(ctx, "2024-05-02"), ShouldBeNil)

			close(gate)
			So(<-done, ShouldBeNil)

			So(agg.SelectedDate(), ShouldEqual, "2024-05-02")
			current, ok := agg.Current()
			So(ok, ShouldBeTrue)
			So(current.FB, ShouldEqual, 4)
			So(current.GS, ShouldEqual, 0)
		})
	})
}

func TestSetDateValidation(t *testing.T) {
	Convey("Given an aggregator", t, func() {
		ctx := context.Background()
		store := newCountingStore()
		agg := stats.New(store)

		Convey("The selected date starts at today", func() {
			So(agg.SelectedDate(), ShouldEqual, model.DayKeyOf(time.Now()))
		})

		Convey("A malformed date is rejected", func() {
			err := agg.SetDate(ctx, "next tuesday")
			So(errors.Is(err, model.ErrBadDayKey), ShouldBeTrue)
		})

		Convey("A valid date becomes the selected one", func() {
			So(agg.SetDate(ctx, "2024-05-01"), ShouldBeNil)
			So(agg.SelectedDate(), ShouldEqual, "2024-05-01")
		})
	})
}

func TestSweeper(t *testing.T) {
	Convey("Given expired cache entries", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := newCountingStore()
		store.events["2024-05-01"] = bottleDay(team.TS, "2024-05-01", 1)
		clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)}
		agg := stats.New(store,
			stats.WithTTL(time.Minute),
			stats.WithClock(clock.Now),
			stats.WithSweepInterval(10*time.Millisecond),
		)

		_, err := agg.GetAggregate(ctx, "2024-05-01")
		So(err, ShouldBeNil)
		So(agg.CacheSize(), ShouldEqual, 1)

		Convey("The sweeper evicts them", func() {
			clock.Advance(2 * time.Minute)
			go agg.Run(ctx)

			deadline := time.Now().Add(time.Second)
			for agg.CacheSize() > 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			So(agg.CacheSize(), ShouldEqual, 0)
		})
	})
}
