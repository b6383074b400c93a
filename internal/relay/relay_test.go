package relay

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/fakeyudi/mirror/internal/command"
	"github.com/fakeyudi/mirror/internal/decision"
	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/schedule"
	"github.com/fakeyudi/mirror/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type nopStore struct{}

func (nopStore) Save(*session.Document) error     { return nil }
func (nopStore) Load() (*session.Document, error) { return nil, session.ErrNoState }

// sliceSource emits a fixed list of events and finishes.
type sliceSource []Event

func (s sliceSource) Run(ctx context.Context, out chan<- Event) error {
	for _, ev := range s {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Send(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) sent() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type stack struct {
	reg      *session.Registry
	filter   *filter.Engine
	engine   *decision.Engine
	commands *command.Dispatcher
}

// newStack wires the policy components in manual schedule mode.
func newStack(t *testing.T) *stack {
	t.Helper()
	reg := session.NewRegistry(nopStore{})
	sched, err := schedule.New(
		schedule.Config{Start: "09:00", End: "17:00", Timezone: "UTC", Mode: schedule.ModeManual},
		schedule.WithOverrideClearer(reg),
	)
	require.NoError(t, err)
	f := filter.New(filter.Config{}, t.TempDir(), nil)
	return &stack{
		reg:      reg,
		filter:   f,
		engine:   decision.New(reg, sched, f),
		commands: command.New(command.Deps{Registry: reg, Scheduler: sched, Filter: f}, nil),
	}
}

func TestRelayAppliesDecisions(t *testing.T) {
	st := newStack(t)
	st.reg.Start("on", "/w")
	st.reg.Start("off", "/w")
	st.reg.Disable("off")
	st.filter.SetEnabled(true)
	st.filter.AddKeyword("secret")

	src := sliceSource{
		{SessionID: "on", Text: "hello"},
		{SessionID: "off", Text: "hidden"},
		{SessionID: "on", Text: "my secret"},
		{SessionID: "ghost", Text: "who"},
		{SessionID: "on", Topic: "build", Text: "done"},
	}
	out := &recorder{}
	r := New(src, st.engine, out, WithLogger(zaptest.NewLogger(t)))

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []Event{
		{SessionID: "on", Text: "hello"},
		{SessionID: "on", Topic: "build", Text: "done"},
	}, out.sent())

	stats := r.Stats()
	assert.Equal(t, 5, stats.Received)
	assert.Equal(t, 2, stats.Relayed)
	assert.Equal(t, 3, stats.Dropped)
	assert.Equal(t, map[decision.Reason]int{
		decision.ReasonDisabled:       1,
		decision.ReasonFiltered:       1,
		decision.ReasonUnknownSession: 1,
	}, stats.DropReasons)
}

// Feature: mirror, Property 11: Relayed events are exactly the accepted ones
func TestRelayDeliversOnlyAccepted(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		st := newStack(t)
		st.reg.Start("a", "/w")
		st.reg.Start("b", "/w")
		if rapid.Bool().Draw(rt, "disableB") {
			st.reg.Disable("b")
		}
		st.filter.SetEnabled(rapid.Bool().Draw(rt, "filterOn"))
		st.filter.AddKeyword("drop")

		events := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) Event {
			return Event{
				SessionID: rapid.SampledFrom([]string{"a", "b", "c"}).Draw(t, "session"),
				Text:      rapid.SampledFrom([]string{"keep", "drop me", "note"}).Draw(t, "text"),
			}
		}), 0, 20).Draw(rt, "events")

		var want []Event
		for _, ev := range events {
			if st.engine.ShouldRelay(ev.SessionID, ev.Item()).Relay {
				want = append(want, ev)
			}
		}

		out := &recorder{}
		r := New(sliceSource(events), st.engine, out)
		if err := r.Run(context.Background()); err != nil {
			rt.Fatalf("run: %v", err)
		}
		got := out.sent()
		if len(got) != len(want) {
			rt.Fatalf("expected %d relayed, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i].SessionID != want[i].SessionID || got[i].Text != want[i].Text {
				rt.Fatalf("event %d: expected %+v, got %+v", i, want[i], got[i])
			}
		}
		if s := r.Stats(); s.Relayed+s.Dropped != len(events) {
			rt.Fatalf("relayed %d + dropped %d != received %d", s.Relayed, s.Dropped, len(events))
		}
	})
}

func TestRelayRoutesCommands(t *testing.T) {
	st := newStack(t)
	src := sliceSource{
		{Text: "before enable"},
		{Text: "/enable"},
		{Text: "after enable"},
		{Text: "/nonsense is just text"},
	}
	out := &recorder{}
	r := New(src, st.engine, out,
		WithCommands(st.commands),
		WithDefaultSession("s1"),
		WithWorkDir("/work"),
	)

	require.NoError(t, r.Run(context.Background()))

	sent := out.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, CommandTopic, sent[0].Topic)
	assert.Equal(t, "Mirroring enabled for this session", sent[0].Text)
	assert.Equal(t, "after enable", sent[1].Text)
	assert.Equal(t, "/nonsense is just text", sent[2].Text)

	s, ok := st.reg.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "/work", s.Directory)

	stats := r.Stats()
	assert.Equal(t, 1, stats.Commands)
	assert.Equal(t, 1, stats.Dropped)
}

func TestRelaySendFailureIsCounted(t *testing.T) {
	st := newStack(t)
	st.reg.Start("s", "/w")
	out := &recorder{err: errors.New("network down")}

	r := New(sliceSource{{SessionID: "s", Text: "x"}, {SessionID: "s", Text: "y"}}, st.engine, out)
	require.NoError(t, r.Run(context.Background()))

	stats := r.Stats()
	assert.Equal(t, 2, stats.Failed)
	assert.Zero(t, stats.Relayed)
}

func TestRelaySourceErrorIsReturned(t *testing.T) {
	st := newStack(t)
	src := &FileSource{Path: filepath.Join(t.TempDir(), "missing.jsonl"), FromStart: true}

	err := New(src, st.engine, &recorder{}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileSourceReadsToEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"sessionId":"a","text":"one"}

not json
{"sessionId":"b","topic":"t","text":"two","keywords":["k"]}
{"sessionId":"c","text":"no newline"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	st := newStack(t)
	for _, id := range []string{"a", "b", "c"} {
		st.reg.Start(id, "/w")
	}
	out := &recorder{}
	src := &FileSource{Path: path, FromStart: true, Log: zaptest.NewLogger(t)}

	require.NoError(t, New(src, st.engine, out).Run(context.Background()))

	assert.Equal(t, []Event{
		{SessionID: "a", Text: "one"},
		{SessionID: "b", Topic: "t", Text: "two", Keywords: []string{"k"}},
		{SessionID: "c", Text: "no newline"},
	}, out.sent())
}

func TestFileSourceFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"sessionId":"s","text":"existing"}`+"\n"), 0o644))

	st := newStack(t)
	st.reg.Start("s", "/w")
	out := &recorder{}
	src := &FileSource{Path: path, FromStart: true, Follow: true, Log: zaptest.NewLogger(t)}
	r := New(src, st.engine, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// The watch is registered before the existing line is read.
	require.Eventually(t, func() bool { return len(out.sent()) == 1 }, 5*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"sessionId":"s","text":"par`)
	require.NoError(t, err)
	_, err = f.WriteString(`tial"}` + "\n" + `{"sessionId":"s","text":"next"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return len(out.sent()) == 3 }, 5*time.Second, 10*time.Millisecond)
	sent := out.sent()
	assert.Equal(t, "partial", sent[1].Text)
	assert.Equal(t, "next", sent[2].Text)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func TestFileSourceSkipsExistingByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"sessionId":"s","text":"old"}`+"\n"), 0o644))

	out := make(chan Event, 4)
	require.NoError(t, (&FileSource{Path: path}).Run(context.Background(), out))
	assert.Empty(t, out)
}

func TestWriterSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSender(&buf)

	require.NoError(t, s.Send(context.Background(), Event{SessionID: "abc", Text: "plain"}))
	require.NoError(t, s.Send(context.Background(), Event{SessionID: "abc", Topic: "build", Text: "ok"}))

	assert.Equal(t, "[abc] plain\n[abc] build: ok\n", buf.String())
}
