package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Renderer serializes a Snapshot to bytes.
type Renderer interface {
	Render(s *Snapshot) ([]byte, error)
}

// ForFormat returns the renderer for "json" or "markdown" ("md").
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md", "":
		return &MarkdownRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want json or markdown)", format)
}

// JSONRenderer renders a Snapshot as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

const (
	versionSentinel = "<!-- mirror-report-version: 1 -->"
	dataPrefix      = "<!-- mirror-data: "
	dataSuffix      = " -->"
)

// MarkdownRenderer renders a Snapshot as Markdown with an embedded base64
// JSON payload so Parse can read it back.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(s *Snapshot) ([]byte, error) {
	jsonBytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(versionSentinel + "\n")
	sb.WriteString(dataPrefix + base64.StdEncoding.EncodeToString(jsonBytes) + dataSuffix + "\n\n")

	fmt.Fprintf(&sb, "# Mirror status, %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	sb.WriteString("## Schedule\n\n")
	fmt.Fprintf(&sb, "- Mode: %s\n", s.Schedule.Mode)
	fmt.Fprintf(&sb, "- Window: %s - %s (%s)\n", s.Schedule.Start, s.Schedule.End, s.Schedule.Timezone)
	fmt.Fprintf(&sb, "- Currently in schedule: %s\n", yesNo(s.InWindow))
	fmt.Fprintf(&sb, "- Next change in: %s\n\n", s.NextChange)

	sb.WriteString("## Filter\n\n")
	if !s.Filter.Enabled {
		sb.WriteString("_Filters disabled (mirroring everything)._\n")
	} else {
		fmt.Fprintf(&sb, "- Mode: %s\n", s.Filter.Mode)
		fmt.Fprintf(&sb, "- Topics: %s\n", listOrNone(s.Filter.Topics))
		fmt.Fprintf(&sb, "- Keywords: %s\n", listOrNone(s.Filter.Keywords))
		if s.Filter.Regex != "" {
			fmt.Fprintf(&sb, "- Regex: `%s`\n", s.Filter.Regex)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Sessions\n\n")
	if len(s.Sessions) == 0 {
		sb.WriteString("_No sessions._\n")
	} else {
		sb.WriteString("| Session | Directory | Title | Enabled | Override | Mirroring | Reason |\n")
		sb.WriteString("|---------|-----------|-------|---------|----------|-----------|--------|\n")
		for _, row := range s.Sessions {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s |\n",
				cell(row.SessionID), cell(row.Directory), cell(row.Title),
				yesNo(row.Enabled), yesNo(row.ManualOverride), yesNo(row.Mirroring), row.Reason)
		}
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

// Parse reads a Snapshot rendered by either renderer.
func Parse(data []byte) (*Snapshot, error) {
	content := string(data)
	if !strings.Contains(content, versionSentinel) {
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("not a valid mirror report: %w", err)
		}
		return &s, nil
	}

	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid mirror report: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid mirror report: malformed data payload")
	}

	jsonBytes, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("not a valid mirror report: corrupted payload: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(jsonBytes, &s); err != nil {
		return nil, fmt.Errorf("not a valid mirror report: %w", err)
	}
	return &s, nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

// cell escapes table separators.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
