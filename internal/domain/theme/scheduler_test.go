package theme

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sundialhq/sundial/internal/domain/location"
	apperrors "github.com/sundialhq/sundial/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lisbon() location.Location {
	return location.Standardize(location.Location{
		Coordinates: location.Coordinates{Latitude: 38.7223, Longitude: -9.1393},
		Place:       location.Place{Name: "Lisbon", Country: "Portugal"},
		Provenance:  location.Provenance{Source: location.SourceSearch},
	})
}

type stubResolver struct {
	mu          sync.Mutex
	initLoc     location.Location
	initErr     error
	commitLoc   location.Location
	commitErr   error
	commitCalls int
	ipLoc       location.Location
	ipErr       error
	deviceLoc   location.Location
	deviceErr   error
}

func (r *stubResolver) Initialize(context.Context) (location.Location, error) {
	return r.initLoc, r.initErr
}

func (r *stubResolver) Commit(_ context.Context, raw location.Location) (location.Location, error) {
	r.mu.Lock()
	r.commitCalls++
	r.mu.Unlock()
	if r.commitErr != nil {
		return location.Location{}, r.commitErr
	}
	if r.commitLoc.Valid() {
		return r.commitLoc, nil
	}
	return location.Standardize(raw), nil
}

func (r *stubResolver) AcquireViaDevice(context.Context) (location.Location, error) {
	if r.deviceErr != nil {
		return location.Location{}, r.deviceErr
	}
	if r.deviceLoc.Valid() {
		return r.deviceLoc, nil
	}
	return location.Location{}, apperrors.Wrap("position_unavailable", "not supported", nil)
}

func (r *stubResolver) AcquireViaIP(context.Context) (location.Location, error) {
	if r.ipErr != nil {
		return location.Location{}, r.ipErr
	}
	if r.ipLoc.Valid() {
		return r.ipLoc, nil
	}
	return location.Location{}, apperrors.Wrap("ip_unavailable", "not supported", nil)
}

func (r *stubResolver) Search(context.Context, string) ([]location.Location, error) {
	return nil, nil
}

func (r *stubResolver) DeviceAvailable() bool { return true }

type stubSunClient struct {
	mu     sync.Mutex
	series SunSeries
	err    error
	calls  int
}

func (c *stubSunClient) FetchSunSeries(context.Context, location.Coordinates) (SunSeries, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return SunSeries{}, c.err
	}
	return c.series, nil
}

func (c *stubSunClient) fetchCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type stubSunStore struct {
	mu       sync.Mutex
	series   SunSeries
	ok       bool
	setCalls int
}

func (s *stubSunStore) SunSeries(context.Context) (SunSeries, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series, s.ok, nil
}

func (s *stubSunStore) SetSunSeries(_ context.Context, series SunSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = series
	s.ok = true
	s.setCalls++
	return nil
}

type stubUI struct {
	mu      sync.Mutex
	prompts int
	notices []Notification
}

func (u *stubUI) PromptLocation(context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prompts++
}

func (u *stubUI) Notify(_ context.Context, n Notification) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.notices = append(u.notices, n)
}

func (u *stubUI) hasNotice(substr string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, n := range u.notices {
		if strings.Contains(n.Message, substr) || strings.Contains(n.Title, substr) {
			return true
		}
	}
	return false
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type timerRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (r *timerRecorder) afterFunc(d time.Duration, f func()) *time.Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	r.fns = append(r.fns, f)
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func (r *timerRecorder) armed() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func (r *timerRecorder) fire(t *testing.T, i int) {
	r.mu.Lock()
	require.Less(t, i, len(r.fns))
	fn := r.fns[i]
	r.mu.Unlock()
	fn()
}

type schedulerFixture struct {
	sched    *Scheduler
	resolver *stubResolver
	sun      *stubSunClient
	store    *stubSunStore
	ui       *stubUI
	clock    *fakeClock
	timers   *timerRecorder
	states   *stateRecorder
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) apply(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) last(t *testing.T) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.states)
	return r.states[len(r.states)-1]
}

func newSchedulerFixture(now time.Time) *schedulerFixture {
	f := &schedulerFixture{
		resolver: &stubResolver{},
		sun:      &stubSunClient{},
		store:    &stubSunStore{},
		ui:       &stubUI{},
		clock:    &fakeClock{t: now},
		timers:   &timerRecorder{},
		states:   &stateRecorder{},
	}
	cfg := SchedulerConfig{SunTTL: 24 * time.Hour, RetryInterval: time.Hour}
	f.sched = NewScheduler(cfg, f.resolver, f.sun, f.store, f.ui, f.states.apply, newTestLogger())
	f.sched.now = f.clock.Now
	f.sched.afterFunc = f.timers.afterFunc
	return f
}

func TestInitializeWithoutStoredLocationPrompts(t *testing.T) {
	f := newSchedulerFixture(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	f.resolver.initErr = apperrors.Wrap("no_stored_location", "no valid location stored", nil)

	require.NoError(t, f.sched.Initialize(context.Background()))

	require.Equal(t, StateDark, f.states.last(t))
	require.Equal(t, 1, f.ui.prompts)
	phase, _, _ := f.sched.Snapshot()
	require.Equal(t, PhaseInitializing, phase)
	require.Empty(t, f.timers.armed())
}

func TestInitializeUsesFreshCachedSeries(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	f.store.series = summerSeries()
	f.store.series.FetchedAt = now
	f.store.ok = true

	require.NoError(t, f.sched.Initialize(context.Background()))

	require.Equal(t, 0, f.sun.fetchCalls())
	require.Equal(t, StateLight, f.states.last(t))
	require.Equal(t, []time.Duration{10 * time.Hour}, f.timers.armed())
	phase, _, loc := f.sched.Snapshot()
	require.Equal(t, PhaseActive, phase)
	require.NotNil(t, loc)
	require.Equal(t, "Lisbon, Portugal", loc.Place.DisplayName)
}

func TestInitializeRefetchesStaleSeries(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	f.store.series = summerSeries()
	f.store.series.FetchedAt = now.Add(-25 * time.Hour)
	f.store.ok = true
	f.sun.series = summerSeries()
	f.sun.series.FetchedAt = now

	require.NoError(t, f.sched.Initialize(context.Background()))

	require.Equal(t, 1, f.sun.fetchCalls())
	require.Equal(t, 1, f.store.setCalls)
	require.Equal(t, StateLight, f.states.last(t))
}

func TestFetchFailureFallsBackToWallClock(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	f.sun.err = apperrors.Wrap("provider_error", "upstream down", nil)

	require.NoError(t, f.sched.Initialize(context.Background()))

	require.Equal(t, StateLight, f.states.last(t))
	require.Equal(t, []time.Duration{time.Hour}, f.timers.armed())
	require.True(t, f.ui.hasNotice("Sun Data Error"))
}

func TestOnLocationSelectedForcesRefetch(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	f.store.series = summerSeries()
	f.store.series.FetchedAt = now
	f.store.ok = true
	f.sun.series = summerSeries()
	f.sun.series.FetchedAt = now

	require.NoError(t, f.sched.Initialize(context.Background()))
	require.Equal(t, 0, f.sun.fetchCalls())

	committed, err := f.sched.OnLocationSelected(context.Background(), lisbon())
	require.NoError(t, err)
	require.Equal(t, "Lisbon, Portugal", committed.Place.DisplayName)
	require.Equal(t, 1, f.sun.fetchCalls())
	require.Equal(t, 1, f.resolver.commitCalls)
	require.True(t, f.ui.hasNotice("Location set to Lisbon, Portugal"))
}

func TestOnLocationSelectedCommitFailure(t *testing.T) {
	f := newSchedulerFixture(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	f.resolver.commitErr = apperrors.Wrap("invalid_location", "bad coordinates", nil)

	_, err := f.sched.OnLocationSelected(context.Background(), location.Location{})
	require.Error(t, err)
	require.Equal(t, 0, f.sun.fetchCalls())
	require.True(t, f.ui.hasNotice("Location Error"))
}

func TestScheduleClampsNearBoundaries(t *testing.T) {
	// Two seconds before sunset the raw delay is below the minimum.
	now := time.Date(2024, 6, 1, 19, 59, 58, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	f.store.series = summerSeries()
	f.store.series.FetchedAt = now
	f.store.ok = true

	require.NoError(t, f.sched.Initialize(context.Background()))

	require.Equal(t, []time.Duration{minTimerDelay}, f.timers.armed())
}

func TestTimerFiringRearmsForNextBoundary(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	f.store.series = summerSeries()
	f.store.series.FetchedAt = now
	f.store.ok = true

	require.NoError(t, f.sched.Initialize(context.Background()))
	require.Len(t, f.timers.armed(), 1)

	// The sunset boundary passes and the timer fires.
	after := time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC)
	f.clock.Set(after)
	f.timers.fire(t, 0)

	require.Equal(t, StateDark, f.states.last(t))
	delays := f.timers.armed()
	require.Len(t, delays, 2)
	require.Equal(t, summerSeries().Days[1].Sunrise.Sub(after), delays[1])
}

func TestSchedulerJudgesDaylightInLocationZone(t *testing.T) {
	// 12:00 UTC is 21:00 in Tokyo, well after sunset.
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	f.store.series = tokyoSeries()
	f.store.series.FetchedAt = now
	f.store.ok = true

	require.NoError(t, f.sched.Initialize(context.Background()))

	require.Equal(t, StateDark, f.states.last(t))
	// Next boundary is tomorrow's 04:30 sunrise, 19:30 UTC today.
	require.Equal(t, []time.Duration{7*time.Hour + 30*time.Minute}, f.timers.armed())
}

func TestClockFallbackRunsInSeriesZone(t *testing.T) {
	// A single-day series cannot drive scheduling but still carries the
	// location's offset; the fallback must judge 21:00 Tokyo time, not
	// 12:00 UTC.
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	single := tokyoSeries()
	single.Days = single.Days[:1]
	f.store.series = single
	f.store.series.FetchedAt = now
	f.store.ok = true

	require.NoError(t, f.sched.Initialize(context.Background()))

	require.Equal(t, StateDark, f.states.last(t))
	require.Equal(t, []time.Duration{time.Hour}, f.timers.armed())
}

func TestDisposeIsTerminal(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	f.resolver.initLoc = lisbon()
	f.store.series = summerSeries()
	f.store.series.FetchedAt = now
	f.store.ok = true

	require.NoError(t, f.sched.Initialize(context.Background()))
	f.sched.Dispose()
	f.sched.Dispose()

	phase, _, loc := f.sched.Snapshot()
	require.Equal(t, PhaseDisposed, phase)
	require.Nil(t, loc)

	// A late timer callback must not resurrect the schedule.
	before := len(f.timers.armed())
	f.timers.fire(t, 0)
	require.Equal(t, before, len(f.timers.armed()))
	require.Equal(t, 0, f.sun.fetchCalls())
}
