package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/relay"
	"github.com/fakeyudi/mirror/internal/session"
)

func newRelayCmd(c *cli) *cobra.Command {
	var (
		events     string
		sessionID  string
		fromStart  bool
		follow     bool
		noCommands bool
		buffer     int
	)
	cmd := &cobra.Command{
		Use:   "relay --events <file.jsonl>",
		Short: "Relay session events to stdout, dropping what must not be mirrored",
		Long: `Reads JSON-lines events ({"sessionId", "topic", "text", "keywords"}) from a
file and prints each one the decision engine accepts. Text starting with "/"
is run as a mirror command and its reply printed instead. Session and filter
changes made by other mirror invocations are picked up while following.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if events == "" {
				return fmt.Errorf("--events is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cwd, _ := os.Getwd()
			opts := []relay.Option{
				relay.WithLogger(c.log),
				relay.WithDefaultSession(sessionID),
				relay.WithWorkDir(cwd),
				relay.WithBuffer(buffer),
			}
			if !noCommands {
				opts = append(opts, relay.WithCommands(c.app.commands))
			}
			src := &relay.FileSource{Path: events, FromStart: fromStart, Follow: follow, Log: c.log}
			r := relay.New(src, c.app.engine, relay.NewWriterSender(cmd.OutOrStdout()), opts...)

			g, gctx := errgroup.WithContext(ctx)
			runCtx, cancelWatch := context.WithCancel(gctx)
			g.Go(func() error {
				defer cancelWatch()
				return r.Run(runCtx)
			})
			if follow {
				g.Go(func() error {
					return watchState(runCtx, c.cfg.StateDir, c.app, c.log)
				})
			}
			err := g.Wait()

			s := r.Stats()
			cmd.PrintErrf("relayed %d, dropped %d, commands %d, failed %d\n", s.Relayed, s.Dropped, s.Commands, s.Failed)
			return err
		},
	}
	cmd.Flags().StringVar(&events, "events", "", "JSON-lines events file")
	cmd.Flags().StringVar(&sessionID, "session", "", "session for events that carry none")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "replay events already in the file")
	cmd.Flags().BoolVar(&follow, "follow", true, "keep following the file for new events")
	cmd.Flags().BoolVar(&noCommands, "no-commands", false, "treat slash commands as ordinary text")
	cmd.Flags().IntVar(&buffer, "buffer", 64, "events read ahead of the decision engine")
	return cmd
}

// watchState reloads the registry and filter whenever another process
// rewrites their files, until ctx is cancelled.
func watchState(ctx context.Context, dir string, a *app, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create state watcher: %w", err)
	}
	defer watcher.Close()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch state directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Saves land via rename, so Create covers the atomic write.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			switch filepath.Base(event.Name) {
			case session.StateFile, filter.StateFile:
				log.Debug("state changed on disk", zap.String("file", event.Name))
				a.reload(log)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("state watcher error", zap.Error(err))
		}
	}
}
