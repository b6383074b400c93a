package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fakeyudi/mirror/internal/config"
	"github.com/fakeyudi/mirror/internal/session"
)

// cli holds the global flags and the components built from them in
// PersistentPreRunE.
type cli struct {
	stateDir string
	verbose  bool

	cfg config.Config
	log *zap.Logger
	app *app
}

// NewRootCmd builds the mirror command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{log: zap.NewNop()}

	root := &cobra.Command{
		Use:          "mirror",
		Short:        "Decide which coding sessions are mirrored to chat, and when",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.stateDir, "state-dir", "", "directory holding state.json and filters.json (default $XDG_DATA_HOME/mirror)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newStartCmd(c),
		newStopCmd(c),
		newEnableCmd(c),
		newDisableCmd(c),
		newOverrideCmd(c),
		newSessionCmd(c),
		newScheduleCmd(c),
		newFilterCmd(c),
		newExecCmd(c),
		newCheckCmd(c),
		newStatusCmd(c),
		newRelayCmd(c),
		newDashboardCmd(c),
	)
	return root
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration in precedence order (flags, environment,
// project file, global file, stored schedule, defaults) and wires the
// components. An unreadable config file is logged and skipped.
func (c *cli) setup() error {
	log, err := newLogger(c.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.log = log

	global, err := config.LoadGlobal()
	if err != nil {
		log.Warn("ignoring global config", zap.Error(err))
		global = nil
	}
	var project *config.Config
	if cwd, err := os.Getwd(); err == nil {
		project, err = config.LoadProject(cwd)
		if err != nil {
			log.Warn("ignoring project config", zap.Error(err))
			project = nil
		}
	}
	env, applied := config.FromEnv(nil)
	if len(applied) > 0 {
		log.Debug("applied environment overrides", zap.Strings("vars", applied))
	}
	layered := config.Merge(global, project, env, &config.Config{StateDir: c.stateDir})

	dir := layered.StateDir
	if dir == "" {
		if dir, err = session.DefaultDir(); err != nil {
			return fmt.Errorf("resolving state directory: %w", err)
		}
	}
	store, err := session.NewStore(dir)
	if err != nil {
		return err
	}
	reg := session.NewRegistry(store, session.WithLogger(log))

	gs := reg.GlobalSettings()
	c.cfg = config.Resolve(layered, config.ScheduleSeed{
		Start:    gs.DefaultScheduleStart,
		End:      gs.DefaultScheduleEnd,
		Timezone: gs.DefaultTimezone,
		Mode:     gs.DefaultScheduleMode,
	})
	c.cfg.StateDir = dir
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.app, err = newApp(c.cfg, reg, log)
	return err
}

// newLogger builds a console logger on stderr. Only warnings and errors are
// shown unless verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}
