package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fakeyudi/mirror/internal/command"
	"github.com/fakeyudi/mirror/internal/config"
	"github.com/fakeyudi/mirror/internal/decision"
	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/report"
	"github.com/fakeyudi/mirror/internal/schedule"
	"github.com/fakeyudi/mirror/internal/session"
)

// app is the wired set of policy components for one invocation.
type app struct {
	reg      *session.Registry
	sched    *schedule.Scheduler
	filter   *filter.Engine
	engine   *decision.Engine
	commands *command.Dispatcher
}

func newApp(cfg config.Config, reg *session.Registry, log *zap.Logger) (*app, error) {
	f := filter.New(cfg.FilterConfig(), cfg.StateDir, log)
	// Saved filter state comes from /filter commands and wins over configured
	// defaults.
	if err := f.Load(); err != nil {
		log.Warn("ignoring saved filter state", zap.Error(err))
	}

	sched, err := schedule.New(cfg.ScheduleConfig(),
		schedule.WithOverrideClearer(reg),
		schedule.WithRecorder(reg),
		schedule.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	engine := decision.New(reg, sched, f,
		decision.WithSessionFilters(cfg.UseSessionFilters()),
		decision.WithLogger(log),
	)
	return &app{
		reg:      reg,
		sched:    sched,
		filter:   f,
		engine:   engine,
		commands: command.New(command.Deps{Registry: reg, Scheduler: sched, Filter: f}, log),
	}, nil
}

func (a *app) snapshot() *report.Snapshot {
	return report.Build(time.Now(), a.sched, a.filter, a.reg, a.engine)
}

// reload picks up session and filter changes written by other processes.
func (a *app) reload(log *zap.Logger) {
	if err := a.reg.Reload(); err != nil {
		log.Warn("failed to reload session state", zap.Error(err))
	}
	if err := a.filter.Load(); err != nil {
		log.Warn("failed to reload filter state", zap.Error(err))
	}
}

// printResult prints a successful command result or returns its message as
// the error.
func printResult(cmd *cobra.Command, res command.Result) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	cmd.Println(res.Message)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// contextFor identifies sessionID as the command's session. dir defaults to
// the current directory.
func contextFor(sessionID, dir string) command.Context {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return command.Context{SessionID: sessionID, WorkDir: dir}
}
