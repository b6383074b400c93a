package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/mirror/internal/report"
)

func newStatusCmd(c *cli) *cobra.Command {
	var format, from, output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the schedule, filter and sessions",
		Long: `Shows the current schedule, global filter and every session with its
mirror decision. --format json or markdown renders a report that --from can
read back later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap *report.Snapshot
			if from != "" {
				data, err := os.ReadFile(from)
				if err != nil {
					if os.IsNotExist(err) {
						return fmt.Errorf("file not found: %s", from)
					}
					return err
				}
				if snap, err = report.Parse(data); err != nil {
					return err
				}
			} else {
				snap = c.app.snapshot()
			}

			var data []byte
			if format == "" || format == "text" {
				var sb strings.Builder
				printText(&sb, snap)
				data = []byte(sb.String())
			} else {
				r, err := report.ForFormat(format)
				if err != nil {
					return err
				}
				if data, err = r.Render(snap); err != nil {
					return err
				}
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			cmd.Printf("Report written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or markdown")
	cmd.Flags().StringVar(&from, "from", "", "render a saved json or markdown report instead of live state")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

// printText writes the plain-text status summary.
func printText(w io.Writer, s *report.Snapshot) {
	inWindow := "No"
	if s.InWindow {
		inWindow = "Yes"
	}
	fmt.Fprintln(w, "## Schedule")
	fmt.Fprintf(w, "  Mode:        %s\n", s.Schedule.Mode)
	fmt.Fprintf(w, "  Window:      %s - %s (%s)\n", s.Schedule.Start, s.Schedule.End, s.Schedule.Timezone)
	fmt.Fprintf(w, "  In schedule: %s\n", inWindow)
	fmt.Fprintf(w, "  Next change: %s\n", s.NextChange)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Filter")
	if !s.Filter.Enabled {
		fmt.Fprintln(w, "  Filters disabled (mirroring everything)")
	} else {
		fmt.Fprintf(w, "  Mode:     %s\n", s.Filter.Mode)
		fmt.Fprintf(w, "  Topics:   %s\n", joinOrNone(s.Filter.Topics))
		fmt.Fprintf(w, "  Keywords: %s\n", joinOrNone(s.Filter.Keywords))
		if s.Filter.Regex != "" {
			fmt.Fprintf(w, "  Regex:    %s\n", s.Filter.Regex)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "## Sessions (%d)\n", len(s.Sessions))
	if len(s.Sessions) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, row := range s.Sessions {
		state := "off"
		if row.Mirroring {
			state = "ON "
		}
		fmt.Fprintf(w, "  [%s] %s  %s  (%s)\n", state, row.SessionID, row.Directory, row.Reason)
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
