package theme

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sundialhq/sundial/internal/domain/location"
	apperrors "github.com/sundialhq/sundial/pkg/errors"
	"github.com/sundialhq/sundial/pkg/util"
)

// Phase is the scheduler lifecycle state.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseInitializing  Phase = "initializing"
	PhaseActive        Phase = "active"
	PhaseDisposed      Phase = "disposed"
)

// SunClient fetches a sunrise/sunset forecast for a coordinate pair.
type SunClient interface {
	FetchSunSeries(ctx context.Context, coords location.Coordinates) (SunSeries, error)
}

// SunStore caches the fetched series between runs.
type SunStore interface {
	SunSeries(ctx context.Context) (SunSeries, bool, error)
	SetSunSeries(ctx context.Context, series SunSeries) error
}

// Applier receives every derived theme state change.
type Applier func(State)

// Notification is a fire-and-forget user-facing message.
type Notification struct {
	Title    string
	Message  string
	Severity string
	Duration time.Duration
}

// UI is the external presentation collaborator.
type UI interface {
	PromptLocation(ctx context.Context)
	Notify(ctx context.Context, n Notification)
}

// SchedulerConfig tunes the natural theme scheduler.
type SchedulerConfig struct {
	// SunTTL is how long a cached series stays fresh.
	SunTTL time.Duration
	// RetryInterval re-arms the timer when sun data cannot drive it.
	RetryInterval time.Duration
}

// minTimerDelay guards against immediate-refire storms when clock skew
// produces a boundary in the past.
const minTimerDelay = 5 * time.Second

// Scheduler drives the natural theme: it resolves a location, keeps the
// sun forecast fresh, derives the current light/dark state and arms a
// single one-shot timer for the next sunrise/sunset boundary, re-arming
// itself after every firing.
type Scheduler struct {
	cfg      SchedulerConfig
	resolver location.Service
	sun      SunClient
	store    SunStore
	ui       UI
	apply    Applier
	logger   *slog.Logger

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer

	mu     sync.Mutex
	phase  Phase
	state  State
	loc    *location.Location
	series *SunSeries
	timer  *time.Timer
}

// NewScheduler wires up a scheduler instance. Each instance owns exactly
// one timer; nothing is shared between instances.
func NewScheduler(cfg SchedulerConfig, resolver location.Service, sun SunClient, store SunStore, ui UI, apply Applier, logger *slog.Logger) *Scheduler {
	if cfg.SunTTL <= 0 {
		cfg.SunTTL = 24 * time.Hour
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Hour
	}
	return &Scheduler{
		cfg:       cfg,
		resolver:  resolver,
		sun:       sun,
		store:     store,
		ui:        ui,
		apply:     apply,
		logger:    logger.With("component", "theme.scheduler"),
		now:       util.NowUTC,
		afterFunc: time.AfterFunc,
		phase:     PhaseUninitialized,
	}
}

// Initialize loads the stored location and enters Active. Without a usable
// stored location it applies the safe default theme, asks the UI to prompt
// for a location and stays in Initializing until OnLocationSelected.
func (s *Scheduler) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseDisposed {
		s.mu.Unlock()
		return apperrors.Wrap("disposed", "scheduler already disposed", nil)
	}
	s.phase = PhaseInitializing
	s.mu.Unlock()

	loc, err := s.resolver.Initialize(ctx)
	if err != nil {
		if !apperrors.IsCode(err, "no_stored_location") {
			s.logger.Error("location initialization failed", "error", err)
		}
		s.setState(StateDark)
		s.ui.PromptLocation(ctx)
		return nil
	}

	s.mu.Lock()
	if s.phase == PhaseDisposed {
		s.mu.Unlock()
		return nil
	}
	s.loc = &loc
	s.mu.Unlock()

	if err := s.refreshSunData(ctx, false); err != nil {
		s.logger.Warn("sun data refresh failed during init", "error", err)
	}
	s.recompute(ctx)
	return nil
}

// OnLocationSelected commits a location chosen by the user and rebuilds
// the schedule. The cached sun series is refetched unconditionally: it is
// location-specific and must not be reused across locations.
func (s *Scheduler) OnLocationSelected(ctx context.Context, raw location.Location) (location.Location, error) {
	committed, err := s.resolver.Commit(ctx, raw)
	if err != nil {
		s.ui.Notify(ctx, Notification{
			Title:    "Location Error",
			Message:  "Failed to update location. Please try again.",
			Severity: "warning",
			Duration: 4 * time.Second,
		})
		return location.Location{}, err
	}

	s.mu.Lock()
	if s.phase == PhaseDisposed {
		s.mu.Unlock()
		return committed, nil
	}
	s.loc = &committed
	s.mu.Unlock()

	if err := s.refreshSunData(ctx, true); err != nil {
		s.logger.Warn("sun data refresh failed after location update", "error", err)
	}
	s.recompute(ctx)

	s.ui.Notify(ctx, Notification{
		Title:    "Location Updated",
		Message:  "Location set to " + committed.Place.DisplayName,
		Severity: "success",
		Duration: 3 * time.Second,
	})
	return committed, nil
}

// refreshSunData reuses the cached series unless it is stale or force is
// set, otherwise fetches a fresh forecast and overwrites the cache.
func (s *Scheduler) refreshSunData(ctx context.Context, force bool) error {
	s.mu.Lock()
	loc := s.loc
	s.mu.Unlock()
	if loc == nil {
		return apperrors.Wrap("invalid_location", "no location set", nil)
	}

	if !force {
		cached, ok, err := s.store.SunSeries(ctx)
		if err != nil {
			s.logger.Warn("sun series cache read failed", "error", err)
		} else if ok && !IsStale(cached.FetchedAt, s.cfg.SunTTL, s.now()) {
			s.setSeries(cached)
			return nil
		}
	}

	series, err := s.sun.FetchSunSeries(ctx, loc.Coordinates)
	if err != nil {
		s.ui.Notify(ctx, Notification{
			Title:    "Sun Data Error",
			Message:  "Failed to update sunrise/sunset times. Theme updates may be delayed.",
			Severity: "warning",
			Duration: 4 * time.Second,
		})
		return err
	}
	if err := s.store.SetSunSeries(ctx, series); err != nil {
		s.logger.Warn("sun series cache write failed", "error", err)
	}
	s.setSeries(series)
	return nil
}

// recompute derives the current state and arms the next switch. With no
// usable series it falls back to the wall-clock rule and retries later so
// the timer is never left unset indefinitely.
func (s *Scheduler) recompute(ctx context.Context) {
	s.mu.Lock()
	if s.phase == PhaseDisposed {
		s.mu.Unlock()
		return
	}
	series := s.series
	s.mu.Unlock()

	now := s.now()
	if series == nil || !series.Usable() {
		s.logger.Warn("no usable sun data, using wall clock fallback")
		local := now
		if series != nil {
			local = now.In(series.Zone())
		}
		s.setState(ClockFallbackState(local))
		s.arm(ctx, s.cfg.RetryInterval)
		return
	}

	today, ok := FindDayRecord(*series, now)
	if !ok {
		// A valid series without today's record is a reportable data
		// problem; skip this cycle but keep the timer armed.
		s.logger.Error("sun series has no record for today", "fetchedAt", series.FetchedAt)
		s.ui.Notify(ctx, Notification{
			Title:    "Sun Data Error",
			Message:  "Sunrise/sunset data is out of date for today.",
			Severity: "warning",
			Duration: 4 * time.Second,
		})
		s.arm(ctx, s.cfg.RetryInterval)
		return
	}

	if IsDaytime(now, today.Sunrise, today.Sunset) {
		s.setState(StateLight)
	} else {
		s.setState(StateDark)
	}
	s.scheduleNext(ctx, *series)
}

// scheduleNext cancels any outstanding timer and arms exactly one new
// one-shot timer at the next boundary.
func (s *Scheduler) scheduleNext(ctx context.Context, series SunSeries) {
	now := s.now()
	boundary, err := NextBoundary(now, series)
	if err != nil {
		s.logger.Error("unable to determine next sun event", "error", err)
		s.arm(ctx, s.cfg.RetryInterval)
		return
	}

	delay := UntilNextSwitch(now, boundary)
	if delay < minTimerDelay {
		delay = minTimerDelay
	}
	s.arm(ctx, delay)
}

func (s *Scheduler) arm(ctx context.Context, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseDisposed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.phase = PhaseActive
	s.timer = s.afterFunc(delay, func() {
		s.mu.Lock()
		disposed := s.phase == PhaseDisposed
		s.mu.Unlock()
		if disposed {
			return
		}
		if err := s.refreshSunData(ctx, false); err != nil {
			s.logger.Warn("sun data refresh failed on timer", "error", err)
		}
		s.recompute(ctx)
	})
	s.logger.Info("next theme switch armed", "in", delay.String())
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()
	if changed {
		s.logger.Info("theme state applied", "state", string(state))
	}
	s.apply(state)
}

func (s *Scheduler) setSeries(series SunSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseDisposed {
		return
	}
	s.series = &series
}

// Snapshot returns the current phase, state and location for read paths.
func (s *Scheduler) Snapshot() (Phase, State, *location.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, s.state, s.loc
}

// Dispose cancels the pending timer and releases state. Idempotent and
// terminal: in-flight work checks the phase before mutating anything.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseDisposed {
		return
	}
	s.phase = PhaseDisposed
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.loc = nil
	s.series = nil
}
