package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/mirror/internal/decision"
	"github.com/fakeyudi/mirror/internal/filter"
)

func newCheckCmd(c *cli) *cobra.Command {
	var item filter.Item
	cmd := &cobra.Command{
		Use:   "check <session-id>",
		Short: "Explain whether a session, or a piece of its content, would be mirrored now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var d decision.Decision
			if item.Topic == "" && item.Text == "" && len(item.Keywords) == 0 {
				d = c.app.engine.Session(args[0])
			} else {
				d = c.app.engine.ShouldRelay(args[0], item)
			}
			cmd.Printf("Mirror: %s\nReason: %s\n", yesNo(d.Relay), d.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&item.Topic, "topic", "", "topic of the content")
	cmd.Flags().StringVar(&item.Text, "text", "", "text of the content")
	cmd.Flags().StringSliceVar(&item.Keywords, "keyword", nil, "keyword attached to the content (repeatable)")
	return cmd
}
