package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newScheduleCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule [status | set <start> <end> | mode <auto|manual> | timezone <label>]",
		Short: "Show or change the schedule window and mode",
		Long: `Shows or changes the schedule. In auto mode sessions without a manual
override mirror only inside the window; switching to auto clears every
override. Changes are stored as the default for later invocations.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, c.app.commands.Run("schedule", args, contextFor("", "")))
		},
	}
}

func newFilterCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "filter [status | enable | disable | add|remove <topic|keyword> <value> | mode <whitelist|blacklist> | regex <pattern|clear> | reset]",
		Short: "Show or change the global content filter",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, c.app.commands.Run("filter", args, contextFor("", "")))
		},
	}
}

func newExecCmd(c *cli) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   `exec "/command args"`,
		Short: "Run a chat slash command, e.g. mirror exec \"/session list\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = os.Getenv("MIRROR_SESSION_ID")
			}
			if !c.app.commands.IsCommand(args[0]) {
				return fmt.Errorf("not a mirror command: %q (known: /%s)", args[0],
					strings.Join(c.app.commands.Names(), ", /"))
			}
			res, _ := c.app.commands.Dispatch(args[0], contextFor(sessionID, ""))
			return printResult(cmd, res)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session the command applies to (default $MIRROR_SESSION_ID)")
	return cmd
}
