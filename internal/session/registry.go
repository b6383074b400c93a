// Package session tracks per-session mirror state and persists it.
//
// The Registry is the single writer of the session map and global settings.
// Every successful mutation writes the whole document to its Store before
// returning; a failed write is logged and the in-memory state stays
// authoritative.
package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/schedule"
)

// ErrEmptyID is returned by Start for a session without an ID.
var ErrEmptyID = errors.New("session ID is empty")

// Registry maps session IDs to their State.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*State
	order    []string // insertion order, for stable listing
	settings GlobalSettings
	store    Store
	now      func() time.Time
	log      *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// WithNow replaces time.Now for timestamps.
func WithNow(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry builds a Registry and loads any saved state from store.
// A missing or unreadable document leaves the registry empty; the latter is
// logged.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*State),
		store:    store,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.load()
	return r
}

func (r *Registry) load() {
	doc, err := r.store.Load()
	if err != nil {
		if !errors.Is(err, ErrNoState) {
			r.log.Error("failed to load session state", zap.Error(err))
		}
		return
	}
	r.apply(doc)
	r.log.Info("loaded session state", zap.Int("sessions", len(r.sessions)))
}

// Reload replaces the in-memory state with the stored document, picking up
// writes made by other processes. On error the current state is kept.
// The lock is held across the read so no mutation can land between reading
// the document and applying it.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.store.Load()
	if errors.Is(err, ErrNoState) {
		doc = &Document{}
	} else if err != nil {
		return err
	}
	r.sessions = make(map[string]*State, len(doc.Sessions))
	r.order = nil
	r.apply(doc)
	r.log.Debug("reloaded session state", zap.Int("sessions", len(r.sessions)))
	return nil
}

// apply adds the sessions and settings of doc. Callers hold r.mu or own r.
func (r *Registry) apply(doc *Document) {
	for i := range doc.Sessions {
		s := doc.Sessions[i]
		if s.SessionID == "" {
			continue
		}
		if _, dup := r.sessions[s.SessionID]; !dup {
			r.order = append(r.order, s.SessionID)
		}
		r.sessions[s.SessionID] = &s
	}
	r.settings = doc.GlobalSettings
}

// persist writes the whole registry. Callers hold r.mu.
func (r *Registry) persist() {
	doc := &Document{
		Sessions:       make([]State, 0, len(r.order)),
		GlobalSettings: r.settings,
	}
	for _, id := range r.order {
		doc.Sessions = append(doc.Sessions, r.sessions[id].clone())
	}
	if err := r.store.Save(doc); err != nil {
		r.log.Error("failed to save session state", zap.Error(err))
	}
}

// StartOption customizes a newly created session.
type StartOption func(*State)

// WithTitle sets the session title.
func WithTitle(title string) StartOption {
	return func(s *State) { s.Title = title }
}

// WithThreadID sets the chat thread the session mirrors into.
func WithThreadID(id int64) StartOption {
	return func(s *State) { s.ThreadID = id }
}

// WithFilters sets a per-session filter override.
func WithFilters(cfg filter.Config) StartOption {
	return func(s *State) {
		c := cfg.Clone()
		s.Filters = &c
	}
}

// Start registers a session and returns its state. Starting an existing ID
// returns the existing state unchanged and ignores opts. An empty ID is
// rejected with ErrEmptyID.
func (r *Registry) Start(id, directory string, opts ...StartOption) (State, error) {
	if id == "" {
		return State{}, ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[id]; ok {
		r.log.Info("resuming existing session", zap.String("session", id))
		return existing.clone(), nil
	}

	s := &State{
		SessionID: id,
		Directory: directory,
		Enabled:   true,
		StartTime: r.now().UTC(),
	}
	for _, opt := range opts {
		opt(s)
	}
	r.sessions[id] = s
	r.order = append(r.order, id)
	r.persist()

	r.log.Info("started new session",
		zap.String("session", id),
		zap.String("directory", directory),
		zap.Bool("enabled", s.Enabled),
	)
	return s.clone(), nil
}

// Stop removes a session. It returns false if the session does not exist.
func (r *Registry) Stop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.persist()
	r.log.Info("stopped session", zap.String("session", id))
	return true
}

// update applies fn to an existing session and persists. It returns false if
// the session does not exist.
func (r *Registry) update(id string, fn func(s *State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	fn(s)
	r.persist()
	return true
}

func (r *Registry) touch(s *State) {
	t := r.now().UTC()
	s.LastUpdateTime = &t
}

// Enable turns mirroring on and pins the session with a manual override.
func (r *Registry) Enable(id string) bool {
	ok := r.update(id, func(s *State) {
		s.Enabled = true
		s.ManualOverride = true
		r.touch(s)
	})
	if ok {
		r.log.Info("enabled session mirroring", zap.String("session", id))
	}
	return ok
}

// Disable turns mirroring off and pins the session with a manual override.
func (r *Registry) Disable(id string) bool {
	ok := r.update(id, func(s *State) {
		s.Enabled = false
		s.ManualOverride = true
		r.touch(s)
	})
	if ok {
		r.log.Info("disabled session mirroring", zap.String("session", id))
	}
	return ok
}

// ClearManualOverride returns the session to schedule-driven behavior.
func (r *Registry) ClearManualOverride(id string) bool {
	return r.update(id, func(s *State) { s.ManualOverride = false })
}

// UpdateTitle sets the session's title.
func (r *Registry) UpdateTitle(id, title string) bool {
	return r.update(id, func(s *State) {
		s.Title = title
		r.touch(s)
	})
}

// UpdateFilters sets, or with nil removes, the session's filter override.
func (r *Registry) UpdateFilters(id string, cfg *filter.Config) bool {
	return r.update(id, func(s *State) {
		if cfg == nil {
			s.Filters = nil
		} else {
			c := cfg.Clone()
			s.Filters = &c
		}
		r.touch(s)
	})
}

// ClearAllOverrides clears the manual override of every session and returns
// how many were set. The registry is persisted once.
func (r *Registry) ClearAllOverrides() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		if s.ManualOverride {
			s.ManualOverride = false
			n++
		}
	}
	r.persist()
	return n
}

// Get returns a copy of the session's state.
func (r *Registry) Get(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return State{}, false
	}
	return s.clone(), true
}

// List returns copies of all sessions in the order they were started.
func (r *Registry) List() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].clone())
	}
	return out
}

// Active returns the sessions whose enabled flag is set.
func (r *Registry) Active() []State {
	var out []State
	for _, s := range r.List() {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// GlobalSettings returns the current global defaults.
func (r *Registry) GlobalSettings() GlobalSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

// UpdateGlobalSettings overlays the non-empty fields of settings.
func (r *Registry) UpdateGlobalSettings(settings GlobalSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = r.settings.merge(settings)
	r.persist()
}

// RecordSchedule stores a schedule configuration as the global defaults.
func (r *Registry) RecordSchedule(cfg schedule.Config) {
	r.UpdateGlobalSettings(GlobalSettings{
		DefaultScheduleStart: cfg.Start,
		DefaultScheduleEnd:   cfg.End,
		DefaultTimezone:      cfg.Timezone,
		DefaultScheduleMode:  string(cfg.Mode),
	})
}

// Reset drops every session and global setting and persists the empty
// registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*State)
	r.order = nil
	r.settings = GlobalSettings{}
	r.persist()
}
