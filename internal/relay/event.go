// Package relay moves session activity events from a source to a sender,
// letting the decision engine veto each one and routing slash commands to
// the command dispatcher.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fakeyudi/mirror/internal/filter"
)

// Event is one unit of session activity, stored one JSON object per line.
type Event struct {
	SessionID string   `json:"sessionId"`
	Topic     string   `json:"topic,omitempty"`
	Text      string   `json:"text"`
	Keywords  []string `json:"keywords,omitempty"`
}

// Item returns the filterable view of e.
func (e Event) Item() filter.Item {
	return filter.Item{Topic: e.Topic, Text: e.Text, Keywords: e.Keywords}
}

// IsCommand reports whether the event text is a slash command.
func (e Event) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(e.Text), "/")
}

// Source produces events until ctx is cancelled or it runs out. Run must not
// close out.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
}

// DecodeError describes a line that is not a valid event.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: invalid event: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeEvent(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
