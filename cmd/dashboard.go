package cmd

import (
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/mirror/internal/report"
	"github.com/fakeyudi/mirror/internal/tui"
)

func newDashboardCmd(c *cli) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive session dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Non-interactive output (pipes, tests) gets the text status.
			if plain || !term.IsTerminal(os.Stdout.Fd()) {
				printText(cmd.OutOrStdout(), c.app.snapshot())
				return nil
			}
			return tui.Run(c.app.reg, func() *report.Snapshot {
				c.app.reload(c.log)
				return c.app.snapshot()
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print a plain-text summary instead of the TUI")
	return cmd
}
