package theme

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sundialhq/sundial/internal/domain/location"
	apperrors "github.com/sundialhq/sundial/pkg/errors"
)

// Store persists the selected mode and clears cached entities on reset.
type Store interface {
	Mode(ctx context.Context) (Mode, bool, error)
	SetMode(ctx context.Context, mode Mode) error
	RemoveLocation(ctx context.Context) error
	RemoveSunSeries(ctx context.Context) error
}

// Status is the externally visible theme snapshot. State is empty in
// system mode, where the client derives it from its own color-scheme
// preference.
type Status struct {
	Mode     Mode   `json:"mode"`
	State    State  `json:"state,omitempty"`
	Location string `json:"location,omitempty"`
}

// Config tunes the theme service.
type Config struct {
	DefaultMode Mode
}

// Service exposes theme mode selection and the natural theme lifecycle.
type Service interface {
	// Start restores the persisted mode and, for natural mode, spins up
	// the scheduler.
	Start(ctx context.Context) error
	Current(ctx context.Context) (Status, error)
	SetMode(ctx context.Context, mode Mode) (Status, error)
	// SelectLocation commits a user-chosen location; while natural mode is
	// active this also rebuilds the sun schedule.
	SelectLocation(ctx context.Context, raw location.Location) (location.Location, error)
	ResolveViaIP(ctx context.Context) (location.Location, error)
	ResolveViaDevice(ctx context.Context) (location.Location, error)
	// ResetLocation clears the stored location and sun series; an active
	// natural scheduler restarts and prompts for a new location.
	ResetLocation(ctx context.Context) error
	Close()
}

type service struct {
	cfg          Config
	store        Store
	resolver     location.Service
	newScheduler func() *Scheduler
	apply        Applier
	logger       *slog.Logger

	mu    sync.Mutex
	mode  Mode
	sched *Scheduler
}

// NewService wires up the theme domain. newScheduler builds a fresh
// scheduler per natural-mode activation, since a disposed scheduler is
// terminal.
func NewService(cfg Config, store Store, resolver location.Service, newScheduler func() *Scheduler, apply Applier, logger *slog.Logger) Service {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = ModeDark
	}
	return &service{
		cfg:          cfg,
		store:        store,
		resolver:     resolver,
		newScheduler: newScheduler,
		apply:        apply,
		logger:       logger.With("component", "theme.service"),
		mode:         cfg.DefaultMode,
	}
}

func (s *service) Start(ctx context.Context) error {
	mode, ok, err := s.store.Mode(ctx)
	if err != nil {
		s.logger.Warn("stored mode read failed", "error", err)
	}
	if !ok {
		mode = s.cfg.DefaultMode
	}
	_, err = s.activate(ctx, mode, false)
	return err
}

func (s *service) Current(ctx context.Context) (Status, error) {
	s.mu.Lock()
	mode := s.mode
	sched := s.sched
	s.mu.Unlock()

	status := Status{Mode: mode}
	switch mode {
	case ModeLight:
		status.State = StateLight
	case ModeDark:
		status.State = StateDark
	case ModeNatural:
		if sched != nil {
			_, state, loc := sched.Snapshot()
			status.State = state
			if loc != nil {
				status.Location = loc.Place.DisplayName
			}
		}
	}
	return status, nil
}

func (s *service) SetMode(ctx context.Context, mode Mode) (Status, error) {
	if _, ok := ParseMode(string(mode)); !ok {
		return Status{}, apperrors.Wrap("invalid_input", "unknown theme mode", nil)
	}
	return s.activate(ctx, mode, true)
}

func (s *service) activate(ctx context.Context, mode Mode, persist bool) (Status, error) {
	s.mu.Lock()
	prev := s.sched
	s.mode = mode
	s.sched = nil
	if mode == ModeNatural {
		s.sched = s.newScheduler()
	}
	sched := s.sched
	s.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
	if persist {
		if err := s.store.SetMode(ctx, mode); err != nil {
			s.logger.Warn("mode persist failed", "error", err)
		}
	}

	switch mode {
	case ModeLight:
		s.apply(StateLight)
	case ModeDark:
		s.apply(StateDark)
	case ModeNatural:
		if err := sched.Initialize(ctx); err != nil {
			return Status{}, err
		}
	}

	s.logger.Info("theme mode activated", "mode", string(mode))
	return s.Current(ctx)
}

func (s *service) SelectLocation(ctx context.Context, raw location.Location) (location.Location, error) {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched != nil {
		return sched.OnLocationSelected(ctx, raw)
	}
	return s.resolver.Commit(ctx, raw)
}

func (s *service) ResolveViaIP(ctx context.Context) (location.Location, error) {
	loc, err := s.resolver.AcquireViaIP(ctx)
	if err != nil {
		return location.Location{}, err
	}
	return s.SelectLocation(ctx, loc)
}

func (s *service) ResolveViaDevice(ctx context.Context) (location.Location, error) {
	loc, err := s.resolver.AcquireViaDevice(ctx)
	if err != nil {
		return location.Location{}, err
	}
	return s.SelectLocation(ctx, loc)
}

func (s *service) ResetLocation(ctx context.Context) error {
	if err := s.store.RemoveLocation(ctx); err != nil {
		return err
	}
	if err := s.store.RemoveSunSeries(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()
	if mode == ModeNatural {
		if _, err := s.activate(ctx, ModeNatural, false); err != nil {
			return err
		}
	}
	s.logger.Info("stored location reset")
	return nil
}

func (s *service) Close() {
	s.mu.Lock()
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()
	if sched != nil {
		sched.Dispose()
	}
}
