// Package config loads mirror settings from YAML files and the environment.
//
// Precedence, highest first: explicit flags (applied by the caller),
// environment variables, the project file (.mirror.yaml), the global file
// (~/.config/mirror/config.yaml), schedule seeds recorded by an earlier
// process, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/schedule"
)

// Config holds all configurable mirror settings. Empty fields are unset.
type Config struct {
	StateDir string         `yaml:"state_dir"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Filter   FilterConfig   `yaml:"filter"`
	// SessionFilters lets a session's own filter override the global one.
	SessionFilters *bool `yaml:"session_filters"`
}

// ScheduleConfig is the schedule section.
type ScheduleConfig struct {
	Start    string `yaml:"start"`    // "HH:MM"
	End      string `yaml:"end"`      // "HH:MM"
	Timezone string `yaml:"timezone"` // display label only
	Mode     string `yaml:"mode"`     // "auto" | "manual"
}

// FilterConfig is the content filter section.
type FilterConfig struct {
	Mode     string   `yaml:"mode"` // "whitelist" | "blacklist"
	Topics   []string `yaml:"topics"`
	Keywords []string `yaml:"keywords"`
	Regex    string   `yaml:"regex"`
	Enabled  *bool    `yaml:"enabled"`
}

// Default values.
const (
	DefaultScheduleStart = "09:00"
	DefaultScheduleEnd   = "17:00"
	DefaultTimezone      = "America/Panama"
	DefaultScheduleMode  = "manual"
	DefaultFilterMode    = "blacklist"
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	disabled := false
	sessionFilters := true
	return Config{
		Schedule: ScheduleConfig{
			Start:    DefaultScheduleStart,
			End:      DefaultScheduleEnd,
			Timezone: DefaultTimezone,
			Mode:     DefaultScheduleMode,
		},
		Filter: FilterConfig{
			Mode:     DefaultFilterMode,
			Topics:   []string{},
			Keywords: []string{},
			Enabled:  &disabled,
		},
		SessionFilters: &sessionFilters,
	}
}

// GlobalPath returns the global config file location:
// $XDG_CONFIG_HOME/mirror/config.yaml or ~/.config/mirror/config.yaml.
func GlobalPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "mirror", "config.yaml"), nil
}

// ProjectFile is the per-directory config file name.
const ProjectFile = ".mirror.yaml"

// LoadGlobal reads the global config file.
// Returns nil (no error) if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadProject reads .mirror.yaml in dir.
// Returns nil (no error) if the file is absent.
func LoadProject(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ProjectFile))
}

// LoadFile reads and parses a YAML config file at path.
// Returns nil (no error) when the file is absent.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	cfg.normalizeModes()
	return &cfg, nil
}

// normalizeModes lower-cases the mode names, which match case-insensitively.
func (c *Config) normalizeModes() {
	c.Schedule.Mode = strings.ToLower(strings.TrimSpace(c.Schedule.Mode))
	c.Filter.Mode = strings.ToLower(strings.TrimSpace(c.Filter.Mode))
}

// Merge overlays each non-nil config onto the previous ones, left to right.
// Set fields in later configs win.
func Merge(layers ...*Config) Config {
	var result Config
	for _, l := range layers {
		if l == nil {
			continue
		}
		overlay(&result, l)
	}
	return result
}

func overlay(dst, src *Config) {
	setString(&dst.StateDir, src.StateDir)
	setString(&dst.Schedule.Start, src.Schedule.Start)
	setString(&dst.Schedule.End, src.Schedule.End)
	setString(&dst.Schedule.Timezone, src.Schedule.Timezone)
	setString(&dst.Schedule.Mode, src.Schedule.Mode)
	setString(&dst.Filter.Mode, src.Filter.Mode)
	setString(&dst.Filter.Regex, src.Filter.Regex)
	if len(src.Filter.Topics) > 0 {
		dst.Filter.Topics = src.Filter.Topics
	}
	if len(src.Filter.Keywords) > 0 {
		dst.Filter.Keywords = src.Filter.Keywords
	}
	if src.Filter.Enabled != nil {
		v := *src.Filter.Enabled
		dst.Filter.Enabled = &v
	}
	if src.SessionFilters != nil {
		v := *src.SessionFilters
		dst.SessionFilters = &v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ScheduleSeed holds schedule values recorded by an earlier process. They
// rank just above the built-in defaults.
type ScheduleSeed struct {
	Start, End, Timezone, Mode string
}

// Resolve fills unset fields from seed and then from Defaults.
func Resolve(cfg Config, seed ScheduleSeed) Config {
	seeded := &Config{Schedule: ScheduleConfig{
		Start:    seed.Start,
		End:      seed.End,
		Timezone: seed.Timezone,
		Mode:     seed.Mode,
	}}
	defaults := Defaults()
	return Merge(&defaults, seeded, &cfg)
}

// Validate rejects malformed schedule times and unknown modes.
func (c Config) Validate() error {
	if _, err := schedule.ParseClock(c.Schedule.Start); err != nil {
		return fmt.Errorf("schedule.start: %w", err)
	}
	if _, err := schedule.ParseClock(c.Schedule.End); err != nil {
		return fmt.Errorf("schedule.end: %w", err)
	}
	if _, err := schedule.ParseMode(c.Schedule.Mode); err != nil {
		return fmt.Errorf("schedule.mode: %w", err)
	}
	if _, err := filter.ParseMode(c.Filter.Mode); err != nil {
		return fmt.Errorf("filter.mode: %w", err)
	}
	return nil
}

// ScheduleConfig converts the schedule section. Call Validate first.
func (c Config) ScheduleConfig() schedule.Config {
	return schedule.Config{
		Start:    c.Schedule.Start,
		End:      c.Schedule.End,
		Timezone: c.Schedule.Timezone,
		Mode:     schedule.Mode(c.Schedule.Mode),
	}
}

// FilterConfig converts the filter section. Call Validate first.
func (c Config) FilterConfig() filter.Config {
	mode, _ := filter.ParseMode(c.Filter.Mode)
	return filter.Config{
		Mode:     mode,
		Topics:   c.Filter.Topics,
		Keywords: c.Filter.Keywords,
		Regex:    c.Filter.Regex,
		Enabled:  c.Filter.Enabled != nil && *c.Filter.Enabled,
	}
}

// UseSessionFilters reports whether per-session filter overrides apply.
func (c Config) UseSessionFilters() bool {
	return c.SessionFilters == nil || *c.SessionFilters
}

// splitList parses a comma-separated list into trimmed lowercase entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseError is returned when a config file exists but cannot be read or
// parsed. It is non-fatal: callers log it and continue with other sources.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to load config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
