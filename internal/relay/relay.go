package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/mirror/internal/command"
	"github.com/fakeyudi/mirror/internal/decision"
	"github.com/fakeyudi/mirror/internal/filter"
)

// Decider vetoes events.
type Decider interface {
	ShouldRelay(sessionID string, item filter.Item) decision.Decision
}

// Commands handles slash commands found in event text.
type Commands interface {
	Dispatch(text string, c command.Context) (command.Result, bool)
}

// Sender delivers accepted events and command replies.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// CommandTopic is the topic of command replies.
const CommandTopic = "command"

// Stats counts what a Relay did with the events it received.
type Stats struct {
	Received    int
	Relayed     int
	Dropped     int
	Commands    int
	Failed      int
	DropReasons map[decision.Reason]int
}

// Relay pumps events from a Source to a Sender.
type Relay struct {
	source   Source
	decider  Decider
	sender   Sender
	commands Commands
	workDir  string
	buffer   int
	log      *zap.Logger

	mu             sync.Mutex
	defaultSession string
	stats          Stats
}

// Option configures a Relay.
type Option func(*Relay)

// WithCommands routes slash-command events to c instead of the sender.
func WithCommands(c Commands) Option {
	return func(r *Relay) { r.commands = c }
}

// WithDefaultSession sets the session used for events without one.
func WithDefaultSession(id string) Option {
	return func(r *Relay) { r.defaultSession = id }
}

// WithWorkDir sets the directory reported to commands that start sessions.
func WithWorkDir(dir string) Option {
	return func(r *Relay) { r.workDir = dir }
}

// WithBuffer sets the event channel capacity. Values below 1 keep the
// default.
func WithBuffer(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Relay) { r.log = l }
}

// New returns a Relay.
func New(src Source, d Decider, s Sender, opts ...Option) *Relay {
	r := &Relay{
		source:  src,
		decider: d,
		sender:  s,
		buffer:  64,
		log:     zap.NewNop(),
		stats:   Stats{DropReasons: map[decision.Reason]int{}},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays events until the source finishes or ctx is cancelled.
// Cancellation is not an error.
func (r *Relay) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	events := make(chan Event, r.buffer)

	g.Go(func() error {
		defer close(events)
		return r.source.Run(gctx, events)
	})
	g.Go(func() error {
		for ev := range events {
			if err := r.handle(gctx, ev); err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	s := r.Stats()
	r.log.Info("relay stopped",
		zap.Int("received", s.Received),
		zap.Int("relayed", s.Relayed),
		zap.Int("dropped", s.Dropped),
		zap.Int("commands", s.Commands),
		zap.Int("failed", s.Failed),
	)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Relay) handle(ctx context.Context, ev Event) error {
	r.mu.Lock()
	r.stats.Received++
	if ev.SessionID == "" {
		ev.SessionID = r.defaultSession
	}
	r.mu.Unlock()

	if r.commands != nil && ev.IsCommand() {
		res, ok := r.commands.Dispatch(ev.Text, command.Context{SessionID: ev.SessionID, WorkDir: r.workDir})
		if ok {
			r.mu.Lock()
			r.stats.Commands++
			if res.SwitchTo != "" {
				r.defaultSession = res.SwitchTo
			}
			r.mu.Unlock()
			_, err := r.send(ctx, Event{SessionID: ev.SessionID, Topic: CommandTopic, Text: res.Message})
			return err
		}
	}

	d := r.decider.ShouldRelay(ev.SessionID, ev.Item())
	if !d.Relay {
		r.mu.Lock()
		r.stats.Dropped++
		r.stats.DropReasons[d.Reason]++
		r.mu.Unlock()
		r.log.Debug("event dropped",
			zap.String("session", ev.SessionID),
			zap.String("reason", string(d.Reason)),
		)
		return nil
	}
	delivered, err := r.send(ctx, ev)
	if delivered {
		r.mu.Lock()
		r.stats.Relayed++
		r.mu.Unlock()
	}
	return err
}

// send delivers ev. Delivery failures are counted and logged but do not stop
// the relay; only cancellation does.
func (r *Relay) send(ctx context.Context, ev Event) (bool, error) {
	err := r.sender.Send(ctx, ev)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	r.mu.Lock()
	r.stats.Failed++
	r.mu.Unlock()
	r.log.Warn("failed to send event", zap.String("session", ev.SessionID), zap.Error(err))
	return false, nil
}

// Stats returns a snapshot of the counters.
func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.DropReasons = make(map[decision.Reason]int, len(r.stats.DropReasons))
	for k, v := range r.stats.DropReasons {
		s.DropReasons[k] = v
	}
	return s
}

// WriterSender writes events as "[session] topic: text" lines.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSender returns a Sender writing to w.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

// Send implements Sender.
func (s *WriterSender) Send(_ context.Context, ev Event) error {
	prefix := "[" + ev.SessionID + "]"
	if ev.Topic != "" {
		prefix += " " + ev.Topic + ":"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s %s\n", prefix, ev.Text)
	return err
}
