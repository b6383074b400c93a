// Package decision composes session state, the schedule window and content
// filters into the single "relay this now?" answer.
package decision

import (
	"go.uber.org/zap"

	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/session"
)

// Sessions is the read side of the session registry.
type Sessions interface {
	Get(id string) (session.State, bool)
}

// Schedule is the schedule's contribution for sessions without an override.
type Schedule interface {
	Allows() bool
}

// ContentFilter is the global per-item filter.
type ContentFilter interface {
	ShouldMirror(item filter.Item) bool
}

// Reason explains a decision.
type Reason string

const (
	ReasonUnknownSession Reason = "unknown session"
	ReasonDisabled       Reason = "session disabled"
	ReasonOverride       Reason = "manual override"
	ReasonOutsideWindow  Reason = "outside schedule window"
	ReasonSchedule       Reason = "schedule allows"
	ReasonFiltered       Reason = "filtered"
	ReasonSessionFilter  Reason = "filtered by session rules"
	ReasonRelay          Reason = "relay"
)

// Decision is the outcome for one session or content item.
type Decision struct {
	Relay  bool
	Reason Reason
}

// Engine answers mirror decisions from the current state of its collaborators.
type Engine struct {
	sessions       Sessions
	schedule       Schedule
	filter         ContentFilter
	sessionFilters bool
	log            *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSessionFilters controls whether a session's own filter override
// replaces the global filter for that session's items. Default true.
func WithSessionFilters(enabled bool) Option {
	return func(e *Engine) { e.sessionFilters = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an Engine.
func New(sessions Sessions, sched Schedule, f ContentFilter, opts ...Option) *Engine {
	e := &Engine{
		sessions:       sessions,
		schedule:       sched,
		filter:         f,
		sessionFilters: true,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ShouldMirror reports whether the session is currently being mirrored.
func (e *Engine) ShouldMirror(sessionID string) bool {
	return e.Session(sessionID).Relay
}

// Session evaluates the session-level decision. In order: unknown sessions
// and disabled sessions are never mirrored, an enabled session with a manual
// override always is, and otherwise the schedule decides.
func (e *Engine) Session(sessionID string) Decision {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		e.log.Warn("session not found", zap.String("session", sessionID))
		return Decision{Relay: false, Reason: ReasonUnknownSession}
	}
	return e.sessionDecision(s)
}

func (e *Engine) sessionDecision(s session.State) Decision {
	switch {
	case !s.Enabled:
		return Decision{Relay: false, Reason: ReasonDisabled}
	case s.ManualOverride:
		return Decision{Relay: true, Reason: ReasonOverride}
	case !e.schedule.Allows():
		return Decision{Relay: false, Reason: ReasonOutsideWindow}
	}
	return Decision{Relay: true, Reason: ReasonSchedule}
}

// ShouldRelay applies both the session decision and the content filter to
// one item. The item is relayed only if both pass.
func (e *Engine) ShouldRelay(sessionID string, item filter.Item) Decision {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		e.log.Warn("session not found", zap.String("session", sessionID))
		return Decision{Relay: false, Reason: ReasonUnknownSession}
	}
	if d := e.sessionDecision(s); !d.Relay {
		return d
	}

	if e.sessionFilters && s.Filters != nil {
		rules, err := filter.Compile(*s.Filters)
		if err != nil {
			e.log.Warn("invalid session filter, using global filter",
				zap.String("session", s.SessionID), zap.Error(err))
		} else {
			if !rules.ShouldMirror(item) {
				return Decision{Relay: false, Reason: ReasonSessionFilter}
			}
			return Decision{Relay: true, Reason: ReasonRelay}
		}
	}

	if !e.filter.ShouldMirror(item) {
		return Decision{Relay: false, Reason: ReasonFiltered}
	}
	return Decision{Relay: true, Reason: ReasonRelay}
}
