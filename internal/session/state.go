package session

import (
	"time"

	"github.com/fakeyudi/mirror/internal/filter"
)

// State is the mirror policy state of one tracked session.
type State struct {
	SessionID string `json:"sessionId"`
	Directory string `json:"directory"`
	Enabled   bool   `json:"enabled"`
	// ManualOverride is set once a human explicitly enabled or disabled the
	// session. It pins the session against schedule-driven behavior until
	// cleared.
	ManualOverride bool           `json:"manualOverride"`
	StartTime      time.Time      `json:"startTime"`
	LastUpdateTime *time.Time     `json:"lastUpdateTime,omitempty"`
	ThreadID       int64          `json:"threadId,omitempty"` // chat thread the session mirrors into
	Title          string         `json:"title,omitempty"`
	Filters        *filter.Config `json:"filters,omitempty"` // per-session override of the global filter
}

// clone returns a deep copy of s so callers never share registry memory.
func (s *State) clone() State {
	c := *s
	if s.LastUpdateTime != nil {
		t := *s.LastUpdateTime
		c.LastUpdateTime = &t
	}
	if s.Filters != nil {
		f := s.Filters.Clone()
		c.Filters = &f
	}
	return c
}

// GlobalSettings are process-wide defaults used to seed the scheduler.
type GlobalSettings struct {
	DefaultScheduleStart string `json:"defaultScheduleStart,omitempty"`
	DefaultScheduleEnd   string `json:"defaultScheduleEnd,omitempty"`
	DefaultTimezone      string `json:"defaultTimezone,omitempty"`
	DefaultScheduleMode  string `json:"defaultScheduleMode,omitempty"`
}

// merge overlays the non-empty fields of o onto g.
func (g GlobalSettings) merge(o GlobalSettings) GlobalSettings {
	if o.DefaultScheduleStart != "" {
		g.DefaultScheduleStart = o.DefaultScheduleStart
	}
	if o.DefaultScheduleEnd != "" {
		g.DefaultScheduleEnd = o.DefaultScheduleEnd
	}
	if o.DefaultTimezone != "" {
		g.DefaultTimezone = o.DefaultTimezone
	}
	if o.DefaultScheduleMode != "" {
		g.DefaultScheduleMode = o.DefaultScheduleMode
	}
	return g
}

// Document is the persisted form of the registry.
type Document struct {
	Sessions       []State        `json:"sessions"`
	GlobalSettings GlobalSettings `json:"globalSettings"`
}
