package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ekurt/bottlederby/internal/adapters/http/api"
	"github.com/ekurt/bottlederby/internal/adapters/repository"
	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/internal/domain/standings"
	"github.com/ekurt/bottlederby/internal/domain/team"
	"github.com/ekurt/bottlederby/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// fakeDeps implements api.Dependencies for handler tests.
type fakeDeps struct {
	seen        map[string]bool
	enqueued    []model.IngestEvent
	enqueueFull bool
	latest      model.ScoreEvent
	latestErr   error
	daily       model.DailyAggregate
	dailyErr    error
	addErr      error
	selected    string
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{
		seen:     make(map[string]bool),
		selected: model.DayKeyOf(time.Now()),
	}
}

func (f *fakeDeps) SeenAndRecord(_ context.Context, id string) bool {
	if f.seen[id] {
		return true
	}
	f.seen[id] = true
	return false
}

func (f *fakeDeps) Unrecord(_ context.Context, id string) { delete(f.seen, id) }

func (f *fakeDeps) Size() int64 { return int64(len(f.seen)) }

func (f *fakeDeps) Enqueue(_ context.Context, e model.IngestEvent) bool {
	if f.enqueueFull {
		return false
	}
	f.enqueued = append(f.enqueued, e)
	return true
}

func (f *fakeDeps) AddBottle(_ context.Context, t team.Team) (model.ScoreEvent, error) {
	if f.addErr != nil {
		return model.ScoreEvent{}, f.addErr
	}
	f.latest = model.Next(f.latest, t, time.Now())
	return f.latest, nil
}

func (f *fakeDeps) Scoreboard(context.Context) (model.ScoreEvent, error) {
	if f.latestErr != nil {
		return model.ScoreEvent{}, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeDeps) DailyStats(_ context.Context, dayKey string) (model.DailyAggregate, error) {
	if f.dailyErr != nil {
		return model.DailyAggregate{}, f.dailyErr
	}
	return f.daily, nil
}

func (f *fakeDeps) SetDate(_ context.Context, dayKey string) error {
	if err := model.ValidateDayKey(dayKey); err != nil {
		return err
	}
	f.selected = dayKey
	return nil
}

func (f *fakeDeps) SelectedDate() string { return f.selected }

type fakeStats struct{}

func (fakeStats) GetStats() api.ServiceStats {
	return api.ServiceStats{Started: true, TotalEvents: 42}
}

func newTestMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{}, nil).Register(context.Background(), mux)
	return mux
}

func TestScoreboardEndpoint(t *testing.T) {
	Convey("Given the scoreboard route", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("An empty store yields a zero scoreboard with a tie", func() {
			deps.latestErr = repository.ErrNoEvents
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scoreboard", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["gs_total"], ShouldEqual, 0)
			leader := body["leader"].(map[string]any)
			So(leader["team"], ShouldEqual, standings.TieName)
		})

		Convey("Totals come from the latest event", func() {
			deps.latest = model.ScoreEvent{ID: "x", GSTotal: 7, FBTotal: 3, TSTotal: 2, Timestamp: 1714561000000}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scoreboard", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["gs_total"], ShouldEqual, 7)
			So(body["fb_total"], ShouldEqual, 3)
			So(body["ts_total"], ShouldEqual, 2)
			leader := body["leader"].(map[string]any)
			So(leader["team"], ShouldEqual, "GALATASARAY")
			So(leader["score"], ShouldEqual, 7)
		})

		Convey("A store failure yields 503", func() {
			deps.latestErr = repository.ErrStoreUnavailable
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scoreboard", nil))
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestPostScore(t *testing.T) {
	Convey("Given the admin score route", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("A valid team returns the written event with 201", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scores/gs", nil))

			So(rec.Code, ShouldEqual, http.StatusCreated)
			var ev model.ScoreEvent
			So(json.Unmarshal(rec.Body.Bytes(), &ev), ShouldBeNil)
			So(ev.GSTotal, ShouldEqual, 1)
			So(ev.GSDelta, ShouldEqual, 1)
			So(ev.ID, ShouldNotBeEmpty)
		})

		Convey("An unknown team is rejected with 400", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scores/bjk", nil))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A store failure yields 503", func() {
			deps.addErr = repository.ErrStoreUnavailable
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scores/fb", nil))
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("GET is not routed", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scores/gs", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestDailyStatsEndpoint(t *testing.T) {
	Convey("Given the daily stats route", t, func() {
		deps := newFakeDeps()
		deps.daily = model.DailyAggregate{GS: 3, FB: 1, TS: 0, Winner: standings.Winner{Team: "GALATASARAY", Score: 3}}
		mux := newTestMux(deps)

		Convey("An explicit date returns the aggregate", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/daily?date=2024-05-01", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["date"], ShouldEqual, "2024-05-01")
			So(body["gs"], ShouldEqual, 3)
			winner := body["winner"].(map[string]any)
			So(winner["team"], ShouldEqual, "GALATASARAY")
		})

		Convey("A missing date defaults to today", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/daily", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["date"], ShouldEqual, model.DayKeyOf(time.Now()))
		})

		Convey("A malformed date is rejected with 400", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/daily?date=01-05-2024", nil))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A store failure yields 503", func() {
			deps.dailyErr = repository.ErrStoreUnavailable
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/daily?date=2024-05-01", nil))
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestPostEvent(t *testing.T) {
	body := func(id, tm string) *bytes.Buffer {
		b, _ := json.Marshal(map[string]string{
			"event_id": id,
			"team":     tm,
			"ts":       time.Now().Format(time.RFC3339),
		})
		return bytes.NewBuffer(b)
	}

	Convey("Given the device event route", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("A fresh event is accepted and enqueued", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", body("esp32-001-17", "gs")))

			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(deps.enqueued, ShouldHaveLength, 1)
			So(deps.enqueued[0].EventID, ShouldEqual, "esp32-001-17")
			So(deps.enqueued[0].Team, ShouldEqual, team.GS)
		})

		Convey("A retried event is acknowledged as duplicate", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", body("esp32-001-17", "gs")))
			So(rec.Code, ShouldEqual, http.StatusAccepted)

			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", body("esp32-001-17", "gs")))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var ack map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
			So(ack["duplicate"], ShouldBeTrue)
			So(deps.enqueued, ShouldHaveLength, 1)
		})

		Convey("Backpressure yields 429 and leaves the event retryable", func() {
			deps.enqueueFull = true
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", body("esp32-002-9", "fb")))

			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
			So(deps.seen["esp32-002-9"], ShouldBeFalse)
		})

		Convey("An unknown team is rejected", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", body("esp32-003-1", "bjk")))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A malformed body is rejected", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString("{not json")))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSelectedDateEndpoint(t *testing.T) {
	Convey("Given the selected-date route", t, func() {
		deps := newFakeDeps()
		deps.daily = model.DailyAggregate{GS: 2, FB: 2, TS: 2, Winner: standings.Winner{Team: standings.TieName, Score: 2}}
		mux := newTestMux(deps)

		Convey("GET reports the selected day", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/date", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["date"], ShouldEqual, model.DayKeyOf(time.Now()))
		})

		Convey("POST switches the day and returns its aggregate", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats/date",
				bytes.NewBufferString(`{"date":"2024-05-01"}`)))

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.selected, ShouldEqual, "2024-05-01")
			var body map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["date"], ShouldEqual, "2024-05-01")
			winner := body["winner"].(map[string]any)
			So(winner["team"], ShouldEqual, standings.TieName)
		})

		Convey("POST with a malformed day is rejected", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats/date",
				bytes.NewBufferString(`{"date":"01-05-2024"}`)))

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.selected, ShouldNotEqual, "01-05-2024")
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given the stats route", t, func() {
		mux := newTestMux(newFakeDeps())

		Convey("GET returns the stats map", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var body api.ServiceStats
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body.Started, ShouldBeTrue)
			So(body.TotalEvents, ShouldEqual, 42)
		})
	})
}

func TestDashboardEndpoint(t *testing.T) {
	Convey("Given the dashboard route", t, func() {
		mux := newTestMux(newFakeDeps())

		Convey("GET serves the embedded page", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "Şişe Derbisi")
		})
	})
}
