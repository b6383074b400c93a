package command

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/schedule"
	"github.com/fakeyudi/mirror/internal/session"
)

// enable starts the current session if needed and force-enables it.
func (d *Dispatcher) enable(_ []string, c Context) Result {
	if c.SessionID == "" {
		return fail("No mirror session: this command needs a session ID")
	}
	if _, exists := d.deps.Registry.Get(c.SessionID); !exists {
		if _, err := d.deps.Registry.Start(c.SessionID, c.WorkDir); err != nil {
			return fail(err.Error())
		}
	}
	d.deps.Registry.Enable(c.SessionID)

	r := ok("Mirroring enabled for this session")
	r.ShouldMirror = boolPtr(true)
	return r
}

func (d *Dispatcher) disable(_ []string, c Context) Result {
	if !d.deps.Registry.Disable(c.SessionID) {
		return fail("No mirror session " + shortID(c.SessionID) + ". Use /enable to start one")
	}
	r := ok("Mirroring disabled for this session\n\nTo resume, type /enable")
	r.ShouldMirror = boolPtr(false)
	return r
}

func (d *Dispatcher) override(args []string, c Context) Result {
	if sub(args) != "clear" {
		return fail("Usage: /override clear")
	}
	if !d.deps.Registry.ClearManualOverride(c.SessionID) {
		return fail("No mirror session " + shortID(c.SessionID))
	}
	return ok("Manual override cleared; the schedule decides again")
}

func (d *Dispatcher) session(args []string, c Context) Result {
	sessions := d.deps.Registry.List()

	switch sub(args) {
	case "", "list":
		if len(sessions) == 0 {
			return ok("No active mirror sessions")
		}
		var sb strings.Builder
		sb.WriteString("Active mirror sessions:\n\n")
		for i, s := range sessions {
			status := "on "
			if !s.Enabled {
				status = "off"
			}
			here := ""
			if s.SessionID == c.SessionID {
				here = " <- you are here"
			}
			fmt.Fprintf(&sb, "%d. [%s] %s (%s)%s\n", i+1, status, shortID(s.SessionID), filepath.Base(s.Directory), here)
		}
		sb.WriteString("\nCommands:\n/session switch <number> - switch focus\n/session stop <number> - stop session")
		return ok(sb.String())

	case "switch":
		target, res := pick(sessions, args)
		if target == nil {
			return res
		}
		r := ok(fmt.Sprintf("Switched to session %s\n\nWorking dir: %s", shortID(target.SessionID), target.Directory))
		r.SwitchTo = target.SessionID
		return r

	case "stop":
		target, res := pick(sessions, args)
		if target == nil {
			return res
		}
		d.deps.Registry.Stop(target.SessionID)
		return ok("Stopped session " + shortID(target.SessionID))

	case "title":
		title := strings.TrimSpace(strings.Join(args[1:], " "))
		if title == "" {
			return fail("Usage: /session title <text>")
		}
		if !d.deps.Registry.UpdateTitle(c.SessionID, title) {
			return fail("No mirror session " + shortID(c.SessionID))
		}
		return ok(fmt.Sprintf("Session title set to %q", title))
	}
	return fail("Unknown session command. Try: list, switch, stop, title")
}

// pick resolves the 1-based index in args[1] against sessions.
func pick(sessions []session.State, args []string) (*session.State, Result) {
	if len(args) < 2 {
		return nil, fail("Invalid session number. Use /session list to see available sessions")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 || n > len(sessions) {
		return nil, fail("Invalid session number. Use /session list to see available sessions")
	}
	return &sessions[n-1], Result{}
}

func (d *Dispatcher) schedule(args []string, _ Context) Result {
	s := d.deps.Scheduler

	switch sub(args) {
	case "", "status":
		return ok("Schedule Configuration\n\n" + s.Status() + "\n\nCommands:\n" +
			"/schedule set <start> <end> - update times (e.g., 09:00 17:00)\n" +
			"/schedule mode <auto|manual> - change mode\n" +
			"/schedule timezone <label> - change timezone label")

	case "set":
		if len(args) < 3 {
			return fail("Usage: /schedule set <start> <end>\nExample: /schedule set 09:00 17:00")
		}
		if err := s.UpdateSchedule(args[1], args[2]); err != nil {
			return fail(err.Error())
		}
		return ok(fmt.Sprintf("Schedule updated: %s - %s", args[1], args[2]))

	case "mode":
		mode, err := schedule.ParseMode(strings.ToLower(strings.Join(args[1:], "")))
		if err != nil {
			return fail("Usage: /schedule mode <auto|manual>")
		}
		if err := s.SetMode(mode); err != nil {
			return fail(err.Error())
		}
		return ok("Schedule mode set to: " + modeLabel(mode))

	case "timezone":
		if len(args) < 2 {
			return fail("Usage: /schedule timezone <label>")
		}
		s.SetTimezone(args[1])
		return ok("Timezone set to: " + args[1])
	}
	return fail("Unknown schedule command. Try: status, set, mode, timezone")
}

func modeLabel(m schedule.Mode) string {
	if m == schedule.ModeAuto {
		return "Automatic"
	}
	return "Manual"
}

func (d *Dispatcher) filter(args []string, _ Context) Result {
	f := d.deps.Filter

	switch sub(args) {
	case "", "status":
		return ok("Filter Status:\n\n" + f.FormattedStatus())

	case "enable":
		f.SetEnabled(true)
		return d.saved("Filters enabled")

	case "disable":
		f.SetEnabled(false)
		return d.saved("Filters disabled (mirroring everything)")

	case "add", "remove":
		op := sub(args)
		kind := sub(args[1:])
		value := ""
		if len(args) > 2 {
			value = strings.Join(args[2:], " ")
		}
		if kind == "" || strings.TrimSpace(value) == "" {
			return fail(fmt.Sprintf("Usage: /filter %s <topic|keyword> <value>", op))
		}
		switch {
		case kind == "topic" && op == "add":
			f.AddTopic(value)
		case kind == "topic":
			f.RemoveTopic(value)
		case kind == "keyword" && op == "add":
			f.AddKeyword(value)
		case kind == "keyword":
			f.RemoveKeyword(value)
		default:
			return fail("Type must be 'topic' or 'keyword'")
		}
		verb := "Added"
		if op == "remove" {
			verb = "Removed"
		}
		return d.saved(fmt.Sprintf("%s %s: %q", verb, kind, value))

	case "mode":
		mode, err := filter.ParseMode(strings.Join(args[1:], ""))
		if err != nil {
			return fail("Usage: /filter mode <whitelist|blacklist>")
		}
		if err := f.SetMode(mode); err != nil {
			return fail(err.Error())
		}
		return d.saved("Filter mode set to: " + string(mode))

	case "regex":
		pattern := strings.Join(args[1:], " ")
		if pattern == "" {
			return fail("Usage: /filter regex <pattern|clear>")
		}
		if strings.EqualFold(pattern, "clear") {
			pattern = ""
		}
		if err := f.SetRegex(pattern); err != nil {
			return fail(err.Error())
		}
		if pattern == "" {
			return d.saved("Regex cleared")
		}
		return d.saved("Regex set to: " + pattern)

	case "reset":
		f.Reset()
		return d.saved("All filters reset")
	}
	return fail("Unknown filter command. Try: status, enable, disable, add, remove, mode, regex, reset")
}

// saved persists the filter and reports msg, or the save failure.
func (d *Dispatcher) saved(msg string) Result {
	if err := d.deps.Filter.Save(); err != nil {
		return fail(msg + " (not saved: " + err.Error() + ")")
	}
	return ok(msg)
}

func (d *Dispatcher) help(_ []string, _ Context) Result {
	return ok(`Mirror Commands

Session Control:
/enable - Start mirroring this session
/disable - Stop mirroring this session
/override clear - Let the schedule decide again
/session list - Show all mirror sessions
/session switch <n> - Switch to different session
/session stop <n> - Stop a specific session
/session title <text> - Name this session

Schedule:
/schedule status - Show schedule config
/schedule set <start> <end> - Update times
/schedule mode <auto|manual> - Change mode
/schedule timezone <label> - Change timezone label

Filters:
/filter status - Show filter status
/filter enable - Enable filtering
/filter disable - Disable filtering
/filter add <topic|keyword> <value> - Add filter
/filter remove <topic|keyword> <value> - Remove filter
/filter mode <whitelist|blacklist> - Set mode
/filter regex <pattern|clear> - Set or clear regex
/filter reset - Clear all filters

Other:
/help - Show this message`)
}

// shortID abbreviates long session IDs for display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
