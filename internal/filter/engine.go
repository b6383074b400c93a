package filter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fakeyudi/mirror/internal/statefile"
)

// StateFile is the file name of the persisted filter configuration.
const StateFile = "filters.json"

// Engine owns the global filter configuration. It is safe for concurrent use;
// mutations are serialized.
type Engine struct {
	mu   sync.RWMutex
	cfg  Config
	re   *regexp.Regexp
	path string
	log  *zap.Logger
	// dirty is set by mutators and cleared by a successful Save. Load keeps
	// unsaved changes rather than overwriting them.
	dirty bool
}

// New returns an Engine seeded with cfg, persisting to stateDir/filters.json.
// An invalid regex in cfg is dropped with a warning. Missing mode defaults to
// blacklist.
func New(cfg Config, stateDir string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		path: filepath.Join(stateDir, StateFile),
		log:  log,
	}
	e.cfg = e.sanitize(cfg)

	e.log.Info("filter engine initialized",
		zap.String("mode", string(e.cfg.Mode)),
		zap.Int("topics", len(e.cfg.Topics)),
		zap.Int("keywords", len(e.cfg.Keywords)),
		zap.Bool("regex", e.re != nil),
		zap.Bool("enabled", e.cfg.Enabled),
	)
	return e
}

// sanitize normalizes cfg and compiles its regex into e.re. Callers hold e.mu
// or own e exclusively.
func (e *Engine) sanitize(cfg Config) Config {
	cfg = cfg.Clone()
	if m, err := ParseMode(string(cfg.Mode)); err == nil {
		cfg.Mode = m
	} else {
		if cfg.Mode != "" {
			e.log.Warn("unknown filter mode, using blacklist", zap.String("mode", string(cfg.Mode)))
		}
		cfg.Mode = Blacklist
	}
	cfg.Topics = normalizeSet(cfg.Topics)
	cfg.Keywords = normalizeSet(cfg.Keywords)

	re, err := compileRegex(cfg.Regex)
	if err != nil {
		e.log.Warn("invalid regex pattern, ignoring", zap.String("regex", cfg.Regex), zap.Error(err))
		cfg.Regex = ""
	}
	e.re = re
	return cfg
}

// ShouldMirror reports whether item may be mirrored under the global filter.
// A disabled filter mirrors everything.
func (e *Engine) ShouldMirror(item Item) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.cfg.Enabled {
		return true
	}
	return evaluate(e.cfg.Mode, e.cfg.Topics, e.cfg.Keywords, e.re, item)
}

// AddTopic adds a topic substring. Adding an existing topic is a no-op.
func (e *Engine) AddTopic(topic string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
	if n, ok := addEntry(&e.cfg.Topics, topic); ok {
		e.log.Info("added topic to filter", zap.String("topic", n))
	}
}

// RemoveTopic removes a topic substring if present.
func (e *Engine) RemoveTopic(topic string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
	n := removeEntry(&e.cfg.Topics, topic)
	e.log.Info("removed topic from filter", zap.String("topic", n))
}

// AddKeyword adds a keyword substring. Adding an existing keyword is a no-op.
func (e *Engine) AddKeyword(keyword string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
	if n, ok := addEntry(&e.cfg.Keywords, keyword); ok {
		e.log.Info("added keyword to filter", zap.String("keyword", n))
	}
}

// RemoveKeyword removes a keyword substring if present.
func (e *Engine) RemoveKeyword(keyword string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
	n := removeEntry(&e.cfg.Keywords, keyword)
	e.log.Info("removed keyword from filter", zap.String("keyword", n))
}

func addEntry(list *[]string, value string) (string, bool) {
	n := Normalize(value)
	if n == "" || slices.Contains(*list, n) {
		return n, false
	}
	*list = append(*list, n)
	return n, true
}

func removeEntry(list *[]string, value string) string {
	n := Normalize(value)
	*list = slices.DeleteFunc(*list, func(v string) bool { return v == n })
	return n
}

// SetMode switches between whitelist and blacklist.
func (e *Engine) SetMode(mode Mode) error {
	m, err := ParseMode(string(mode))
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg.Mode = m
	e.dirty = true
	e.mu.Unlock()
	e.log.Info("filter mode changed", zap.String("mode", string(m)))
	return nil
}

// SetEnabled turns filtering on or off.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	e.cfg.Enabled = enabled
	e.dirty = true
	e.mu.Unlock()
	e.log.Info("filter enabled state changed", zap.Bool("enabled", enabled))
}

// SetRegex replaces the regex. An empty pattern clears it. An invalid pattern
// returns a *ParseError and leaves the current regex in place.
func (e *Engine) SetRegex(pattern string) error {
	re, err := compileRegex(pattern)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg.Regex = pattern
	e.re = re
	e.dirty = true
	e.mu.Unlock()
	e.log.Info("filter regex changed", zap.String("regex", pattern))
	return nil
}

// Reset clears topics, keywords and regex. Mode and enabled are kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.cfg.Topics = []string{}
	e.cfg.Keywords = []string{}
	e.cfg.Regex = ""
	e.re = nil
	e.dirty = true
	e.mu.Unlock()
	e.log.Info("all filters reset")
}

// Status returns a copy of the current configuration.
func (e *Engine) Status() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

// FormattedStatus renders the configuration for display.
func (e *Engine) FormattedStatus() string {
	cfg := e.Status()
	if !cfg.Enabled {
		return "Filters disabled (mirroring everything)"
	}

	mode := "Blacklist"
	if cfg.Mode == Whitelist {
		mode = "Whitelist"
	}
	return fmt.Sprintf("%s mode\nTopics: %s\nKeywords: %s\nRegex: %s",
		mode, listOrNone(cfg.Topics), listOrNone(cfg.Keywords), orNone(cfg.Regex))
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// Save writes the configuration to disk.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := statefile.WriteJSON(e.path, e.cfg); err != nil {
		return &SaveError{Path: e.path, Err: err}
	}
	e.dirty = false
	e.log.Debug("filter state saved", zap.String("path", e.path))
	return nil
}

// Load replaces the configuration with the one on disk. A missing file keeps
// the current configuration, as do changes not yet saved. A corrupt file
// returns a *ParseError. An invalid stored regex is cleared with a warning.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dirty {
		e.log.Debug("keeping unsaved filter changes", zap.String("path", e.path))
		return nil
	}
	var loaded Config
	if err := statefile.ReadJSON(e.path, &loaded); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.log.Debug("no saved filter state found, using defaults", zap.String("path", e.path))
			return nil
		}
		return &ParseError{Message: "failed to load filter state", Err: err}
	}
	e.cfg = e.sanitize(loaded)

	e.log.Info("filter state loaded",
		zap.String("mode", string(e.cfg.Mode)),
		zap.Int("topics", len(e.cfg.Topics)),
		zap.Int("keywords", len(e.cfg.Keywords)),
	)
	return nil
}
