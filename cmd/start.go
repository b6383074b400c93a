package cmd

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/mirror/internal/session"
)

func newStartCmd(c *cli) *cobra.Command {
	var (
		dir    string
		title  string
		thread int64
	)
	cmd := &cobra.Command{
		Use:   "start [session-id]",
		Short: "Register a session, generating an ID when none is given",
		Long: `Registers a session for mirroring. Starting an ID that already exists
leaves it unchanged. New sessions start enabled without a manual override, so
the schedule decides whether they mirror.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := uuid.New().String()
			if len(args) == 1 {
				id = args[0]
			}
			workDir := dir
			if workDir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				workDir = cwd
			}

			var opts []session.StartOption
			if title != "" {
				opts = append(opts, session.WithTitle(title))
			}
			if thread != 0 {
				opts = append(opts, session.WithThreadID(thread))
			}
			s, err := c.app.reg.Start(id, workDir, opts...)
			if err != nil {
				return err
			}
			d := c.app.engine.Session(s.SessionID)

			cmd.Printf("Session %s started in %s\n", s.SessionID, s.Directory)
			cmd.Printf("Mirroring: %s (%s)\n", yesNo(d.Relay), d.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "working directory of the session (default current directory)")
	cmd.Flags().StringVar(&title, "title", "", "human-readable session title")
	cmd.Flags().Int64Var(&thread, "thread", 0, "chat thread the session mirrors into")
	return cmd
}
