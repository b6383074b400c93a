// Package report captures the mirror state at a point in time and renders it
// for people (Markdown) or tools (JSON).
package report

import (
	"fmt"
	"time"

	"github.com/fakeyudi/mirror/internal/decision"
	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/schedule"
	"github.com/fakeyudi/mirror/internal/session"
)

// Snapshot is the complete, renderable state of mirroring.
type Snapshot struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Schedule    schedule.Config `json:"schedule"`
	InWindow    bool            `json:"inWindow"`
	NextChange  string          `json:"nextChange"` // human-readable, e.g. "2h 15m"
	Filter      filter.Config   `json:"filter"`
	Sessions    []SessionRow    `json:"sessions"`
}

// SessionRow is one session and whether it is mirroring right now.
type SessionRow struct {
	session.State
	Mirroring bool            `json:"mirroring"`
	Reason    decision.Reason `json:"reason"`
}

// ScheduleView is the read side of the scheduler.
type ScheduleView interface {
	Config() schedule.Config
	Window() (start, end schedule.Clock)
}

// FilterView is the read side of the global filter.
type FilterView interface {
	Status() filter.Config
}

// SessionLister lists registered sessions.
type SessionLister interface {
	List() []session.State
}

// Decider explains the session-level mirror decision.
type Decider interface {
	Session(id string) decision.Decision
}

// Build assembles a Snapshot from the live components. Window membership and
// the countdown are both computed from now.
func Build(now time.Time, sched ScheduleView, f FilterView, sessions SessionLister, d Decider) *Snapshot {
	states := sessions.List()
	rows := make([]SessionRow, 0, len(states))
	for _, s := range states {
		dec := d.Session(s.SessionID)
		rows = append(rows, SessionRow{State: s, Mirroring: dec.Relay, Reason: dec.Reason})
	}
	start, end := sched.Window()
	return &Snapshot{
		GeneratedAt: now.UTC().Truncate(time.Second),
		Schedule:    sched.Config(),
		InWindow:    schedule.InWindow(now, start, end),
		NextChange:  formatHM(schedule.NextChange(now, start, end)),
		Filter:      f.Status(),
		Sessions:    rows,
	}
}

// Mirroring returns the rows that are currently mirroring.
func (s *Snapshot) Mirroring() []SessionRow {
	var out []SessionRow
	for _, r := range s.Sessions {
		if r.Mirroring {
			out = append(out, r)
		}
	}
	return out
}

func formatHM(d time.Duration) string {
	total := int(d / time.Minute)
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}
