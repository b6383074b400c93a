// Package filter decides whether individual content items may be mirrored,
// based on topic/keyword substrings and an optional regular expression.
package filter

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Mode selects how matches are interpreted.
type Mode string

const (
	// Whitelist mirrors only matching items.
	Whitelist Mode = "whitelist"
	// Blacklist mirrors everything except matching items.
	Blacklist Mode = "blacklist"
)

// ParseMode validates a mode string (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Whitelist, Blacklist:
		return m, nil
	}
	return "", fmt.Errorf("invalid filter mode %q (want whitelist or blacklist)", s)
}

// Config is the persisted filter configuration.
type Config struct {
	Mode     Mode     `json:"mode"`
	Topics   []string `json:"topics"`
	Keywords []string `json:"keywords"`
	Regex    string   `json:"regex,omitempty"`
	Enabled  bool     `json:"enabled"`
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	c.Topics = slices.Clone(c.Topics)
	c.Keywords = slices.Clone(c.Keywords)
	if c.Topics == nil {
		c.Topics = []string{}
	}
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	return c
}

// Item is one piece of outbound content. All fields are optional.
type Item struct {
	Topic    string   `json:"topic,omitempty"`
	Text     string   `json:"text,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Normalize returns the canonical stored form of a topic or keyword.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeSet normalizes every entry and drops blanks and duplicates while
// keeping first-seen order.
func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		n := Normalize(v)
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// compileRegex compiles pattern case-insensitively. An empty pattern yields nil.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, &ParseError{Message: "invalid regex pattern: " + pattern, Err: err}
	}
	return re, nil
}

// evaluate applies the match rules, ignoring the enabled flag.
// A regex hit is decisive; otherwise any topic or keyword hit counts.
func evaluate(mode Mode, topics, keywords []string, re *regexp.Regexp, item Item) bool {
	if re != nil && re.MatchString(item.Text) {
		return mode == Whitelist
	}

	topic := strings.ToLower(item.Topic)
	text := strings.ToLower(item.Text)

	anyMatch := slices.ContainsFunc(topics, func(t string) bool {
		return strings.Contains(topic, Normalize(t))
	}) || slices.ContainsFunc(keywords, func(k string) bool {
		return strings.Contains(text, Normalize(k))
	}) || slices.ContainsFunc(item.Keywords, func(supplied string) bool {
		supplied = strings.ToLower(supplied)
		return slices.ContainsFunc(keywords, func(k string) bool {
			return strings.Contains(supplied, Normalize(k))
		})
	})

	if mode == Whitelist {
		return anyMatch
	}
	return !anyMatch
}

// Rules is an immutable compiled filter, used for per-session overrides.
type Rules struct {
	mode     Mode
	topics   []string
	keywords []string
	re       *regexp.Regexp
}

// Compile builds Rules from cfg. The Enabled flag is not consulted: compiled
// rules are always active.
func Compile(cfg Config) (*Rules, error) {
	re, err := compileRegex(cfg.Regex)
	if err != nil {
		return nil, err
	}
	mode := cfg.Mode
	if mode != Whitelist {
		mode = Blacklist
	}
	return &Rules{
		mode:     mode,
		topics:   normalizeSet(cfg.Topics),
		keywords: normalizeSet(cfg.Keywords),
		re:       re,
	}, nil
}

// ShouldMirror reports whether item passes the rules.
func (r *Rules) ShouldMirror(item Item) bool {
	return evaluate(r.mode, r.topics, r.keywords, r.re, item)
}

// ParseError is returned for an invalid regex supplied through the API or a
// corrupt filter state file.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// SaveError is returned when the filter state cannot be written to disk.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return "failed to save filter state to " + e.Path + ": " + e.Err.Error()
}

func (e *SaveError) Unwrap() error { return e.Err }
