// Package command turns slash-command text such as "/filter add keyword
// password" into calls on the session registry, scheduler and filter, and
// formats the outcome as user-facing text.
package command

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/schedule"
	"github.com/fakeyudi/mirror/internal/session"
)

// Result is the outcome of one command.
type Result struct {
	Success bool
	Message string
	// ShouldMirror is set by commands that change the current session's
	// mirror state.
	ShouldMirror *bool
	// SwitchTo is set by "session switch" to the selected session ID.
	SwitchTo string
}

// Deps are the policy components commands mutate.
type Deps struct {
	Registry  *session.Registry
	Scheduler *schedule.Scheduler
	Filter    *filter.Engine
}

// Context identifies where a command was issued from.
type Context struct {
	SessionID string
	WorkDir   string
}

type handler func(d *Dispatcher, args []string, c Context) Result

// Dispatcher routes parsed commands to their handlers.
type Dispatcher struct {
	deps     Deps
	handlers map[string]handler
	log      *zap.Logger
}

// New returns a Dispatcher with the built-in command set.
func New(deps Deps, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		deps: deps,
		handlers: map[string]handler{
			"enable":   (*Dispatcher).enable,
			"disable":  (*Dispatcher).disable,
			"override": (*Dispatcher).override,
			"session":  (*Dispatcher).session,
			"schedule": (*Dispatcher).schedule,
			"filter":   (*Dispatcher).filter,
			"help":     (*Dispatcher).help,
		},
		log: log,
	}
}

// Parse splits "/name arg1 arg2" into a lowercase name and its arguments.
// ok is false when text is not slash-prefixed or names nothing.
func Parse(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// IsCommand reports whether text names a registered command.
func (d *Dispatcher) IsCommand(text string) bool {
	name, _, ok := Parse(text)
	if !ok {
		return false
	}
	_, known := d.handlers[name]
	return known
}

// Names returns the registered command names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses and runs text. ok is false when text is not a known
// command, in which case it should be treated as ordinary content.
func (d *Dispatcher) Dispatch(text string, c Context) (res Result, ok bool) {
	name, args, parsed := Parse(text)
	if !parsed {
		return Result{}, false
	}
	if _, known := d.handlers[name]; !known {
		return Result{}, false
	}
	return d.Run(name, args, c), true
}

// Run executes a command by name.
func (d *Dispatcher) Run(name string, args []string, c Context) Result {
	h, ok := d.handlers[strings.ToLower(name)]
	if !ok {
		return fail("Unknown command: /" + name + ". Try /help")
	}
	d.log.Info("processing command",
		zap.String("command", name),
		zap.Strings("args", args),
		zap.String("session", c.SessionID),
	)
	return h(d, args, c)
}

func ok(msg string) Result   { return Result{Success: true, Message: msg} }
func fail(msg string) Result { return Result{Success: false, Message: msg} }

// sub returns the lowercased first argument, or "".
func sub(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.ToLower(args[0])
}

func boolPtr(b bool) *bool { return &b }
