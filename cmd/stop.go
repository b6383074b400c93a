package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Forget a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.app.reg.Stop(args[0]) {
				return fmt.Errorf("no session %q", args[0])
			}
			cmd.Printf("Session %s stopped.\n", args[0])
			return nil
		},
	}
}

func newEnableCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "enable <session-id>",
		Short: "Force mirroring on for a session, starting it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, c.app.commands.Run("enable", nil, contextFor(args[0], dir)))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "working directory if the session has to be started")
	return cmd
}

func newDisableCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <session-id>",
		Short: "Force mirroring off for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, c.app.commands.Run("disable", nil, contextFor(args[0], "")))
		},
	}
}

func newOverrideCmd(c *cli) *cobra.Command {
	override := &cobra.Command{
		Use:   "override",
		Short: "Manage manual overrides",
	}

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear [session-id]",
		Short: "Hand a session (or every session) back to the schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				n := c.app.reg.ClearAllOverrides()
				cmd.Printf("Cleared %d manual override(s).\n", n)
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("give a session ID or --all")
			}
			return printResult(cmd, c.app.commands.Run("override", []string{"clear"}, contextFor(args[0], "")))
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "clear every session's override")
	override.AddCommand(clearCmd)
	return override
}
