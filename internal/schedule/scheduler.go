package schedule

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Mode selects whether the schedule window gates mirroring.
type Mode string

const (
	// ModeAuto gates mirroring on the schedule window unless a session has a
	// manual override.
	ModeAuto Mode = "auto"
	// ModeManual ignores the window; session enable state alone decides.
	ModeManual Mode = "manual"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeManual:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid schedule mode %q (want auto or manual)", s)
}

// Config is the schedule configuration. Timezone is a display label only.
type Config struct {
	Start    string `json:"startTime" yaml:"start"`
	End      string `json:"endTime" yaml:"end"`
	Timezone string `json:"timezone" yaml:"timezone"`
	Mode     Mode   `json:"mode" yaml:"mode"`
}

// OverrideClearer drops manual overrides from every known session.
// Implemented by the session registry.
type OverrideClearer interface {
	ClearAllOverrides() int
}

// SettingsRecorder persists schedule changes as seeds for later processes.
type SettingsRecorder interface {
	RecordSchedule(cfg Config)
}

// Scheduler owns the live schedule configuration.
type Scheduler struct {
	mu       sync.RWMutex
	cfg      Config
	start    Clock
	end      Clock
	now      func() time.Time
	clearer  OverrideClearer
	recorder SettingsRecorder
	log      *zap.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithOverrideClearer wires the registry that SetMode(ModeAuto) resets.
func WithOverrideClearer(c OverrideClearer) Option {
	return func(s *Scheduler) { s.clearer = c }
}

// WithRecorder wires where schedule changes are recorded.
func WithRecorder(r SettingsRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New validates cfg and returns a Scheduler.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	start, err := ParseClock(cfg.Start)
	if err != nil {
		return nil, err
	}
	end, err := ParseClock(cfg.End)
	if err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:   cfg,
		start: start,
		end:   end,
		now:   time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Info("scheduler initialized",
		zap.String("start", cfg.Start),
		zap.String("end", cfg.End),
		zap.String("timezone", cfg.Timezone),
		zap.String("mode", string(cfg.Mode)),
	)
	return s, nil
}

// InWindow reports whether the current time is inside the schedule window.
func (s *Scheduler) InWindow() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return InWindow(s.now(), s.start, s.end)
}

// Allows is the schedule's contribution to a mirror decision for a session
// without a manual override: the window in auto mode, always true in manual.
func (s *Scheduler) Allows() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Mode == ModeAuto {
		return InWindow(s.now(), s.start, s.end)
	}
	return true
}

// UpdateSchedule replaces the window bounds. Malformed times are rejected and
// leave the current window in place.
func (s *Scheduler) UpdateSchedule(start, end string) error {
	startClock, err := ParseClock(start)
	if err != nil {
		return err
	}
	endClock, err := ParseClock(end)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg.Start, s.cfg.End = start, end
	s.start, s.end = startClock, endClock
	cfg := s.cfg
	s.mu.Unlock()

	s.log.Info("schedule updated", zap.String("start", start), zap.String("end", end))
	s.record(cfg)
	return nil
}

// SetMode switches between auto and manual. Entering auto mode clears every
// session's manual override.
func (s *Scheduler) SetMode(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg.Mode = mode
	cfg := s.cfg
	s.mu.Unlock()

	s.log.Info("schedule mode updated", zap.String("mode", string(mode)))

	if mode == ModeAuto && s.clearer != nil {
		n := s.clearer.ClearAllOverrides()
		s.log.Debug("cleared manual overrides", zap.Int("sessions", n))
	}
	s.record(cfg)
	return nil
}

// SetTimezone changes the display-only timezone label.
func (s *Scheduler) SetTimezone(tz string) {
	s.mu.Lock()
	s.cfg.Timezone = tz
	cfg := s.cfg
	s.mu.Unlock()

	s.log.Info("timezone updated", zap.String("timezone", tz))
	s.record(cfg)
}

// Config returns a copy of the current configuration.
func (s *Scheduler) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Mode returns the current mode.
func (s *Scheduler) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Mode
}

// Window returns the parsed window bounds.
func (s *Scheduler) Window() (start, end Clock) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.start, s.end
}

// NextChange returns the time until the window next opens or closes.
func (s *Scheduler) NextChange() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NextChange(s.now(), s.start, s.end)
}

// Status renders a human-readable summary.
func (s *Scheduler) Status() string {
	s.mu.RLock()
	cfg, now := s.cfg, s.now()
	inWindow := InWindow(now, s.start, s.end)
	next := NextChange(now, s.start, s.end)
	s.mu.RUnlock()

	answer := "No"
	nextLabel := fmt.Sprintf("Schedule starts in %s (%s)", formatHM(next), cfg.Start)
	if inWindow {
		answer = "Yes"
		nextLabel = fmt.Sprintf("Schedule ends in %s (%s)", formatHM(next), cfg.End)
	}
	return fmt.Sprintf("Mode: %s\nSchedule: %s - %s (%s)\nCurrently in schedule: %s\nNext change: %s",
		cfg.Mode, cfg.Start, cfg.End, cfg.Timezone, answer, nextLabel)
}

func (s *Scheduler) record(cfg Config) {
	if s.recorder != nil {
		s.recorder.RecordSchedule(cfg)
	}
}

// formatHM renders d as "<h>h <m>m".
func formatHM(d time.Duration) string {
	total := int(d / time.Minute)
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}
