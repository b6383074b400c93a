package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/schedule"
	"github.com/fakeyudi/mirror/internal/session"
)

type nopStore struct{}

func (nopStore) Save(*session.Document) error     { return nil }
func (nopStore) Load() (*session.Document, error) { return nil, session.ErrNoState }

func newDispatcher(t *testing.T, filterDir string) (*Dispatcher, Deps) {
	t.Helper()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)
	reg := session.NewRegistry(nopStore{})
	sched, err := schedule.New(
		schedule.Config{Start: "09:00", End: "17:00", Timezone: "UTC", Mode: schedule.ModeManual},
		schedule.WithClock(func() time.Time { return now }),
		schedule.WithOverrideClearer(reg),
	)
	require.NoError(t, err)
	if filterDir == "" {
		filterDir = t.TempDir()
	}
	deps := Deps{Registry: reg, Scheduler: sched, Filter: filter.New(filter.Config{}, filterDir, nil)}
	return New(deps, zaptest.NewLogger(t)), deps
}

var here = Context{SessionID: "session-0001-abcdef", WorkDir: "/work/project"}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args []string
		ok   bool
	}{
		{"/help", "help", []string{}, true},
		{"  /Filter add keyword  Secret ", "filter", []string{"add", "keyword", "Secret"}, true},
		{"/", "", nil, false},
		{"plain text", "", nil, false},
		{"", "", nil, false},
	}
	for _, tt := range tests {
		name, args, ok := Parse(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		if tt.ok {
			assert.Equal(t, tt.args, args, tt.in)
		}
	}
}

// Feature: mirror, Property 10: Unknown or non-slash text is never a command
func TestNonCommandTextPassesThrough(t *testing.T) {
	d, _ := newDispatcher(t, "")
	known := d.Names()

	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		name, _, parsed := Parse(text)

		isKnown := false
		for _, k := range known {
			if parsed && name == k {
				isKnown = true
			}
		}
		_, dispatched := d.Dispatch(text, here)
		if dispatched != isKnown || d.IsCommand(text) != isKnown {
			t.Fatalf("text %q: dispatched=%v known=%v", text, dispatched, isKnown)
		}
	})
}

func TestEnableStartsMissingSession(t *testing.T) {
	d, deps := newDispatcher(t, "")

	res, ok := d.Dispatch("/enable", here)
	require.True(t, ok)
	assert.True(t, res.Success)
	require.NotNil(t, res.ShouldMirror)
	assert.True(t, *res.ShouldMirror)

	s, exists := deps.Registry.Get(here.SessionID)
	require.True(t, exists)
	assert.True(t, s.Enabled)
	assert.True(t, s.ManualOverride)
	assert.Equal(t, "/work/project", s.Directory)
}

func TestEnableWithoutSessionID(t *testing.T) {
	d, deps := newDispatcher(t, "")

	res, ok := d.Dispatch("/enable", Context{WorkDir: "/work/project"})
	require.True(t, ok)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "No mirror session")
	assert.Empty(t, deps.Registry.List())
}

func TestDisable(t *testing.T) {
	d, deps := newDispatcher(t, "")

	res := d.Run("disable", nil, here)
	assert.False(t, res.Success, "disabling an unknown session fails")

	deps.Registry.Start(here.SessionID, here.WorkDir)
	res = d.Run("disable", nil, here)
	assert.True(t, res.Success)
	require.NotNil(t, res.ShouldMirror)
	assert.False(t, *res.ShouldMirror)

	s, _ := deps.Registry.Get(here.SessionID)
	assert.False(t, s.Enabled)
	assert.True(t, s.ManualOverride)
}

func TestOverrideClear(t *testing.T) {
	d, deps := newDispatcher(t, "")
	deps.Registry.Start(here.SessionID, here.WorkDir)
	deps.Registry.Disable(here.SessionID)

	assert.False(t, d.Run("override", nil, here).Success)
	assert.True(t, d.Run("override", []string{"clear"}, here).Success)

	s, _ := deps.Registry.Get(here.SessionID)
	assert.False(t, s.ManualOverride)
}

func TestSessionCommands(t *testing.T) {
	d, deps := newDispatcher(t, "")

	res := d.Run("session", nil, here)
	assert.Equal(t, "No active mirror sessions", res.Message)

	deps.Registry.Start(here.SessionID, "/work/project")
	deps.Registry.Start("other", "/work/other")

	res = d.Run("session", []string{"list"}, here)
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "1. [on ] session-...")
	assert.Contains(t, res.Message, "(project) <- you are here")
	assert.Contains(t, res.Message, "2. [on ] other (other)")

	res = d.Run("session", []string{"switch", "2"}, here)
	assert.True(t, res.Success)
	assert.Equal(t, "other", res.SwitchTo)

	for _, bad := range []string{"0", "3", "two"} {
		res = d.Run("session", []string{"switch", bad}, here)
		assert.False(t, res.Success, bad)
		assert.Contains(t, res.Message, "Invalid session number", bad)
	}

	res = d.Run("session", []string{"stop", "2"}, here)
	assert.True(t, res.Success)
	_, exists := deps.Registry.Get("other")
	assert.False(t, exists)

	res = d.Run("session", []string{"title", "Release", "prep"}, here)
	assert.True(t, res.Success)
	s, _ := deps.Registry.Get(here.SessionID)
	assert.Equal(t, "Release prep", s.Title)

	assert.False(t, d.Run("session", []string{"explode"}, here).Success)
}

func TestScheduleCommands(t *testing.T) {
	d, deps := newDispatcher(t, "")

	res := d.Run("schedule", nil, here)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "Schedule: 09:00 - 17:00 (UTC)")

	res = d.Run("schedule", []string{"set", "08:30", "18:00"}, here)
	assert.True(t, res.Success)
	cfg := deps.Scheduler.Config()
	assert.Equal(t, "08:30", cfg.Start)
	assert.Equal(t, "18:00", cfg.End)

	res = d.Run("schedule", []string{"set", "8am", "18:00"}, here)
	assert.False(t, res.Success)
	assert.Equal(t, "08:30", deps.Scheduler.Config().Start, "rejected update leaves schedule unchanged")

	assert.False(t, d.Run("schedule", []string{"set", "08:00"}, here).Success)

	res = d.Run("schedule", []string{"mode", "AUTO"}, here)
	assert.True(t, res.Success)
	assert.Equal(t, "Schedule mode set to: Automatic", res.Message)
	assert.Equal(t, schedule.ModeAuto, deps.Scheduler.Mode())

	assert.False(t, d.Run("schedule", []string{"mode", "sometimes"}, here).Success)

	res = d.Run("schedule", []string{"timezone", "Europe/Berlin"}, here)
	assert.True(t, res.Success)
	assert.Equal(t, "Europe/Berlin", deps.Scheduler.Config().Timezone)
}

func TestScheduleAutoClearsOverrides(t *testing.T) {
	d, deps := newDispatcher(t, "")
	deps.Registry.Start(here.SessionID, here.WorkDir)
	d.Run("disable", nil, here)

	d.Run("schedule", []string{"mode", "auto"}, here)

	s, _ := deps.Registry.Get(here.SessionID)
	assert.False(t, s.ManualOverride)
}

func TestFilterCommands(t *testing.T) {
	dir := t.TempDir()
	d, deps := newDispatcher(t, dir)

	res := d.Run("filter", nil, here)
	assert.Contains(t, res.Message, "Filters disabled (mirroring everything)")

	assert.True(t, d.Run("filter", []string{"enable"}, here).Success)
	assert.True(t, d.Run("filter", []string{"add", "keyword", "Password"}, here).Success)
	assert.True(t, d.Run("filter", []string{"add", "topic", "debug", "log"}, here).Success)

	st := deps.Filter.Status()
	assert.True(t, st.Enabled)
	assert.Equal(t, []string{"password"}, st.Keywords)
	assert.Equal(t, []string{"debug log"}, st.Topics)
	assert.False(t, deps.Filter.ShouldMirror(filter.Item{Text: "my password"}))

	assert.True(t, d.Run("filter", []string{"remove", "keyword", "password"}, here).Success)
	assert.Empty(t, deps.Filter.Status().Keywords)

	res = d.Run("filter", []string{"add", "colour", "red"}, here)
	assert.False(t, res.Success)
	assert.False(t, d.Run("filter", []string{"add", "keyword"}, here).Success)

	assert.True(t, d.Run("filter", []string{"mode", "whitelist"}, here).Success)
	assert.Equal(t, filter.Whitelist, deps.Filter.Status().Mode)
	assert.False(t, d.Run("filter", []string{"mode", "greylist"}, here).Success)

	assert.True(t, d.Run("filter", []string{"regex", "^ship"}, here).Success)
	assert.True(t, deps.Filter.ShouldMirror(filter.Item{Text: "Ship it"}))
	res = d.Run("filter", []string{"regex", "("}, here)
	assert.False(t, res.Success)
	assert.Equal(t, "^ship", deps.Filter.Status().Regex)
	assert.True(t, d.Run("filter", []string{"regex", "clear"}, here).Success)
	assert.Empty(t, deps.Filter.Status().Regex)

	assert.True(t, d.Run("filter", []string{"reset"}, here).Success)
	assert.Empty(t, deps.Filter.Status().Topics)

	// Mutations were persisted.
	reloaded := filter.New(filter.Config{}, dir, nil)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, deps.Filter.Status(), reloaded.Status())
}

func TestFilterSaveFailureIsReported(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	d, deps := newDispatcher(t, filepath.Join(blocker, "state"))

	res := d.Run("filter", []string{"enable"}, here)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not saved")
	assert.True(t, deps.Filter.Status().Enabled, "in-memory change survives a failed save")
}

func TestHelpListsEveryCommand(t *testing.T) {
	d, _ := newDispatcher(t, "")
	res := d.Run("HELP", nil, here)
	require.True(t, res.Success)
	for _, name := range d.Names() {
		assert.True(t, strings.Contains(res.Message, "/"+name), name)
	}
}

func TestUnknownCommand(t *testing.T) {
	d, _ := newDispatcher(t, "")
	res := d.Run("teleport", nil, here)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "/help")
}
