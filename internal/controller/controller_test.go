package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokyabdulrahman/ramadan-times/internal/cache"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/hijri"
	"github.com/smokyabdulrahman/ramadan-times/internal/metrics"
	"github.com/smokyabdulrahman/ramadan-times/internal/ramadan"
	"github.com/smokyabdulrahman/ramadan-times/internal/timings"
)

var (
	dhaka = geo.Location{Latitude: 23.8103, Longitude: 90.4125, City: "Dhaka", Country: "Bangladesh"}
	dubai = geo.Location{Latitude: 25.2048, Longitude: 55.2708, City: "Dubai", Country: "United Arab Emirates"}
	now   = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
)

type fakeFetcher struct {
	calls   atomic.Int32
	failAll atomic.Bool
	delay   time.Duration
}

func (f *fakeFetcher) FetchDay(ctx context.Context, _ geo.Location, _ int, _ time.Time) timings.DayTimes {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return timings.Fallback()
		}
	}
	if f.failAll.Load() {
		return timings.Fallback()
	}
	return timings.DayTimes{Sehri: "04:58", Iftar: "18:01", Success: true}
}

type spyRecorder struct {
	metrics.NoOpCollector
	mu       sync.Mutex
	outcomes []string
}

func (s *spyRecorder) RecordLoad(_ time.Duration, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

func (s *spyRecorder) Outcomes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.outcomes...)
}

type fixture struct {
	ctrl    *Controller
	fetcher *fakeFetcher
	cache   *cache.Cache
	spy     *spyRecorder
}

func newFixture(t *testing.T, f *fakeFetcher, c *cache.Cache) fixture {
	t.Helper()
	if f == nil {
		f = &fakeFetcher{}
	}
	if c == nil {
		c = cache.New(nil)
		t.Cleanup(func() { _ = c.Close() })
	}
	spy := &spyRecorder{}
	ctrl := New(newConfig(f, c, spy))
	return fixture{ctrl: ctrl, fetcher: f, cache: c, spy: spy}
}

func newConfig(f *fakeFetcher, c *cache.Cache, m metrics.Recorder) Config {
	engine := hijri.NewEngine(nil, zerolog.Nop())
	engine.Now = func() time.Time { return now }
	return Config{
		Engine:       engine,
		Orchestrator: ramadan.NewOrchestrator(f, c, zerolog.Nop()),
		Cache:        c,
		Metrics:      m,
		Logger:       zerolog.Nop(),
		Now:          func() time.Time { return now },
		Defaults:     Request{Method: 1, UseOffsets: true},
	}
}

func TestLoad_BuildsCalendar(t *testing.T) {
	fx := newFixture(t, nil, nil)
	assert.Equal(t, Idle, fx.ctrl.Snapshot().State)

	cal, err := fx.ctrl.Load(context.Background(), Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)

	assert.Len(t, cal.Days, 30)
	assert.Equal(t, "2026-02-19", cal.StartDate)
	assert.Equal(t, "2026-03-20", cal.EndDate)
	assert.Equal(t, -1, cal.OffsetUsed)
	assert.Equal(t, 11, cal.CurrentDay)
	assert.Equal(t, 1447, cal.HijriYear)
	assert.Equal(t, 30, cal.Loaded)
	assert.True(t, cal.Days[10].IsToday)
	assert.Equal(t, now, cal.GeneratedAt)

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.False(t, snap.Loading)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "Loaded 30/30 days", snap.StageMessage)
	assert.Empty(t, snap.Error)
	assert.NotEmpty(t, snap.LoadID)
	require.NotNil(t, snap.Request)
	assert.Equal(t, "Dhaka", snap.Request.Location.City)
	assert.Equal(t, []string{metrics.OutcomeLoaded}, fx.spy.Outcomes())
}

func TestLoad_UnchangedTupleIsNoOp(t *testing.T) {
	fx := newFixture(t, nil, nil)
	req := Request{Location: dhaka, Method: 1, UseOffsets: true}

	first, err := fx.ctrl.Load(context.Background(), req)
	require.NoError(t, err)
	calls := fx.fetcher.calls.Load()
	loadID := fx.ctrl.Snapshot().LoadID

	second, err := fx.ctrl.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, calls, fx.fetcher.calls.Load(), "no network calls")
	assert.Equal(t, loadID, fx.ctrl.Snapshot().LoadID)
}

func TestLoad_RejectsEmptyLocation(t *testing.T) {
	fx := newFixture(t, nil, nil)
	_, err := fx.ctrl.Load(context.Background(), Request{Method: 1})
	assert.ErrorIs(t, err, ErrNoLocation)
	assert.Equal(t, Idle, fx.ctrl.Snapshot().State)
}

func TestMutators_TriggerReload(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()

	// Without a location nothing can load yet.
	_, err := fx.ctrl.SetMethod(ctx, 3)
	assert.ErrorIs(t, err, ErrNoLocation)

	cal, err := fx.ctrl.SetLocation(ctx, dhaka)
	require.NoError(t, err)
	assert.Equal(t, 3, cal.Method, "pending method is kept")

	cal, err = fx.ctrl.ToggleOffsets(ctx)
	require.NoError(t, err)
	assert.False(t, cal.UseOffsets)
	assert.Equal(t, 0, cal.OffsetUsed)
	assert.Equal(t, "2026-02-18", cal.StartDate)
	assert.Equal(t, 12, cal.CurrentDay)

	cal, err = fx.ctrl.SetLocation(ctx, dubai)
	require.NoError(t, err)
	assert.Equal(t, "Dubai", cal.Location.City)
	assert.Equal(t, "2026-02-18", cal.StartDate)

	before := fx.fetcher.calls.Load()
	_, err = fx.ctrl.SetLocation(ctx, dubai)
	require.NoError(t, err)
	assert.Equal(t, before, fx.fetcher.calls.Load())
}

func TestRefresh_RebuildsEvenWhenUnchanged(t *testing.T) {
	// Without a day cache every refresh refetches.
	f := &fakeFetcher{}
	spy := &spyRecorder{}
	ctrl := New(newConfig(f, nil, spy))

	_, err := ctrl.Load(context.Background(), Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)
	id := ctrl.Snapshot().LoadID

	_, err = ctrl.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(60), f.calls.Load())
	assert.NotEqual(t, id, ctrl.Snapshot().LoadID)
}

func TestLoad_AllFailuresKeepPreviousCalendar(t *testing.T) {
	f := &fakeFetcher{}
	fx := newFixture(t, f, nil)
	ctx := context.Background()

	good, err := fx.ctrl.Load(ctx, Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)

	f.failAll.Store(true)
	cal, err := fx.ctrl.SetMethod(ctx, 4)
	require.Error(t, err)
	assert.Nil(t, cal)
	assert.Contains(t, err.Error(), "Loaded 0/30 days")

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, Error, snap.State)
	assert.NotEmpty(t, snap.Error)
	assert.Same(t, good, snap.Calendar, "last good calendar stays visible")
	assert.Equal(t, []string{metrics.OutcomeLoaded, metrics.OutcomeFailed}, fx.spy.Outcomes())

	// Recovering clears the error.
	f.failAll.Store(false)
	_, err = fx.ctrl.SetMethod(ctx, 1)
	require.NoError(t, err)
	snap = fx.ctrl.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.Empty(t, snap.Error)
}

func TestLoad_PartialFailureStillLoads(t *testing.T) {
	f := &partialFetcher{}
	ctrl := New(newConfig(nil, nil, nil))
	ctrl.orch = ramadan.NewOrchestrator(f, nil, zerolog.Nop())

	cal, err := ctrl.Load(context.Background(), Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)
	assert.Equal(t, 27, cal.Loaded)
	assert.Equal(t, "Loaded 27/30 days", ctrl.Snapshot().StageMessage)
}

// partialFetcher fails every tenth call.
type partialFetcher struct{ n atomic.Int32 }

func (p *partialFetcher) FetchDay(context.Context, geo.Location, int, time.Time) timings.DayTimes {
	if p.n.Add(1)%10 == 0 {
		return timings.Fallback()
	}
	return timings.DayTimes{Sehri: "04:58", Iftar: "18:01", Success: true}
}

func TestLoad_NewerRequestSupersedes(t *testing.T) {
	f := &fakeFetcher{delay: 50 * time.Millisecond}
	fx := newFixture(t, f, nil)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := fx.ctrl.Load(ctx, Request{Location: dhaka, Method: 1, UseOffsets: true})
		errc <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() > 0 }, time.Second, time.Millisecond)

	cal, err := fx.ctrl.Load(ctx, Request{Location: dubai, Method: 1, UseOffsets: true})
	require.NoError(t, err)
	assert.Equal(t, "Dubai", cal.Location.City)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrLoadAborted)
	case <-time.After(5 * time.Second):
		t.Fatal("superseded load did not return")
	}

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, Loaded, snap.State)
	assert.Equal(t, "Dubai", snap.Calendar.Location.City)
	assert.Contains(t, fx.spy.Outcomes(), metrics.OutcomeAborted)
}

func TestLoad_CallerCancellation(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.ctrl.Load(ctx, Request{Location: dhaka, Method: 1, UseOffsets: true})
	assert.ErrorIs(t, err, ErrLoadAborted)

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.Error)
}

func TestPersistedCalendarIsRestored(t *testing.T) {
	c := cache.New(nil)
	defer c.Close()

	first := newFixture(t, nil, c)
	_, err := first.ctrl.Load(context.Background(), Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)

	f := &fakeFetcher{}
	spy := &spyRecorder{}
	restored := New(newConfig(f, c, spy))

	snap := restored.Snapshot()
	require.Equal(t, Loaded, snap.State)
	assert.Equal(t, "2026-02-19", snap.Calendar.StartDate)
	assert.Equal(t, "Dhaka", snap.Request.Location.City)
	assert.Equal(t, []string{metrics.OutcomeCached}, spy.Outcomes())

	_, err = restored.Load(context.Background(), Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)
	assert.Zero(t, f.calls.Load())
}

func TestClear(t *testing.T) {
	fx := newFixture(t, nil, nil)
	req := Request{Location: dhaka, Method: 1, UseOffsets: true}
	_, err := fx.ctrl.Load(context.Background(), req)
	require.NoError(t, err)

	fx.ctrl.Clear()

	snap := fx.ctrl.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Nil(t, snap.Calendar)
	assert.Zero(t, snap.Progress)
	require.NotNil(t, snap.Request, "the request survives so a refresh can reload")

	_, ok := fx.cache.Get(cache.CalendarKey(dhaka, 1, true).String())
	assert.False(t, ok)
	_, ok = fx.cache.Get(cache.MetaKey)
	assert.False(t, ok)

	restored := New(newConfig(&fakeFetcher{}, fx.cache, nil))
	assert.Equal(t, Idle, restored.Snapshot().State)

	_, err = fx.ctrl.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Loaded, fx.ctrl.Snapshot().State)
}

func TestSubscribe(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ch, unsubscribe := fx.ctrl.Subscribe()

	initial := <-ch
	assert.Equal(t, Idle, initial.State)

	_, err := fx.ctrl.Load(context.Background(), Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)

	latest := <-ch
	assert.Equal(t, Loaded, latest.State, "only the latest snapshot is buffered")
	assert.Equal(t, 100, latest.Progress)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestWatch(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locs := make(chan geo.Location)
	done := make(chan struct{})
	go func() {
		fx.ctrl.Watch(ctx, locs)
		close(done)
	}()

	locs <- dubai
	require.Eventually(t, func() bool {
		s := fx.ctrl.Snapshot()
		return s.State == Loaded && s.Calendar.Location.City == "Dubai"
	}, 5*time.Second, 5*time.Millisecond)

	close(locs)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after channel close")
	}
}

func TestWatch_LastLocationWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := &fakeFetcher{delay: time.Millisecond}
		fx := newFixture(t, f, nil)
		ctx, cancel := context.WithCancel(context.Background())

		locs := make(chan geo.Location, 2)
		locs <- dhaka
		locs <- dubai
		close(locs)
		fx.ctrl.Watch(ctx, locs)

		require.Eventually(t, func() bool {
			return fx.ctrl.Snapshot().State == Loaded
		}, 5*time.Second, time.Millisecond)

		snap := fx.ctrl.Snapshot()
		require.Equal(t, "Dubai", snap.Calendar.Location.City, "run %d", i)
		require.Equal(t, "Dubai", snap.Request.Location.City, "run %d", i)

		// The superseded Dhaka load still settles, as aborted.
		require.Eventually(t, func() bool {
			return len(fx.spy.Outcomes()) == 2
		}, 5*time.Second, time.Millisecond)
		assert.ElementsMatch(t, []string{metrics.OutcomeAborted, metrics.OutcomeLoaded}, fx.spy.Outcomes(), "run %d", i)
		cancel()
	}
}

func TestMutators_ConcurrentUpdatesAreNotLost(t *testing.T) {
	f := &fakeFetcher{delay: time.Millisecond}
	fx := newFixture(t, f, nil)
	ctx := context.Background()
	_, err := fx.ctrl.Load(ctx, Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = fx.ctrl.SetMethod(ctx, 3)
	}()
	go func() {
		defer wg.Done()
		_, _ = fx.ctrl.SetLocation(ctx, dubai)
	}()
	wg.Wait()

	snap := fx.ctrl.Snapshot()
	require.NotNil(t, snap.Request)
	assert.Equal(t, 3, snap.Request.Method)
	assert.Equal(t, "Dubai", snap.Request.Location.City)
	require.Equal(t, Loaded, snap.State)
	assert.Equal(t, 3, snap.Calendar.Method)
	assert.Equal(t, "Dubai", snap.Calendar.Location.City)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestSnapshotStatus(t *testing.T) {
	fx := newFixture(t, nil, nil)
	st := fx.ctrl.Snapshot().Status()
	assert.Equal(t, Idle, st.State)
	assert.Empty(t, st.Summary)
	assert.Nil(t, st.Today)

	_, err := fx.ctrl.Load(context.Background(), Request{Location: dhaka, Method: 1, UseOffsets: true})
	require.NoError(t, err)

	st = fx.ctrl.Snapshot().Status()
	assert.Equal(t, "Loaded 30/30 days", st.Summary)
	assert.Equal(t, 11, st.CurrentDay)
	assert.Equal(t, "2026-02-19", st.StartDate)
	require.NotNil(t, st.Today)
	assert.Equal(t, 11, st.Today.Ordinal)
	require.NotNil(t, st.GeneratedAt)
}
