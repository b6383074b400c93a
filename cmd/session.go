package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/mirror/internal/filter"
)

func newSessionCmd(c *cli) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "List and inspect sessions",
	}

	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions in start order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions := c.app.reg.List()
			if activeOnly {
				sessions = c.app.reg.Active()
			}
			if len(sessions) == 0 {
				cmd.Println("No sessions.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDIRECTORY\tENABLED\tOVERRIDE\tMIRRORING\tTITLE")
			for _, s := range sessions {
				d := c.app.engine.Session(s.SessionID)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					s.SessionID, s.Directory, yesNo(s.Enabled), yesNo(s.ManualOverride), yesNo(d.Relay), s.Title)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "only sessions that are enabled")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session's stored state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := c.app.reg.Get(args[0])
			if !ok {
				return fmt.Errorf("no session %q", args[0])
			}
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}

	title := &cobra.Command{
		Use:   "title <session-id> <title...>",
		Short: "Set a session's title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd, c.app.commands.Run("session", append([]string{"title"}, args[1:]...), contextFor(args[0], "")))
		},
	}

	sessionCmd.AddCommand(list, show, title, newSessionFilterCmd(c))
	return sessionCmd
}

// newSessionFilterCmd sets or clears a session's own filter, which replaces
// the global filter for that session's content.
func newSessionFilterCmd(c *cli) *cobra.Command {
	var (
		mode     string
		topics   []string
		keywords []string
		regex    string
		clearIt  bool
	)
	cmd := &cobra.Command{
		Use:   "filter <session-id>",
		Short: "Give a session its own content filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if clearIt {
				if !c.app.reg.UpdateFilters(id, nil) {
					return fmt.Errorf("no session %q", id)
				}
				cmd.Printf("Session %s uses the global filter again.\n", id)
				return nil
			}

			m, err := filter.ParseMode(mode)
			if err != nil {
				return err
			}
			cfg := filter.Config{Mode: m, Topics: topics, Keywords: keywords, Regex: regex, Enabled: true}
			if _, err := filter.Compile(cfg); err != nil {
				return err
			}
			if !c.app.reg.UpdateFilters(id, &cfg) {
				return fmt.Errorf("no session %q", id)
			}
			cmd.Printf("Session %s filter: %s mode, topics [%s], keywords [%s]\n",
				id, m, strings.Join(topics, ", "), strings.Join(keywords, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(filter.Blacklist), "whitelist or blacklist")
	cmd.Flags().StringSliceVar(&topics, "topic", nil, "topic substring (repeatable)")
	cmd.Flags().StringSliceVar(&keywords, "keyword", nil, "keyword substring (repeatable)")
	cmd.Flags().StringVar(&regex, "regex", "", "case-insensitive regular expression")
	cmd.Flags().BoolVar(&clearIt, "clear", false, "remove the session filter")
	return cmd
}
