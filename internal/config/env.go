package config

import (
	"os"
	"strings"
)

// FromEnv builds a config layer from environment variables, using getenv
// (os.Getenv when nil). It also returns the names of the variables that were
// applied, for logging.
func FromEnv(getenv func(string) string) (*Config, []string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var (
		cfg     Config
		applied []string
	)
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
			applied = append(applied, name)
		}
	}

	str("MIRROR_STATE_DIR", &cfg.StateDir)
	str("SCHEDULE_START", &cfg.Schedule.Start)
	str("SCHEDULE_END", &cfg.Schedule.End)
	str("TIMEZONE", &cfg.Schedule.Timezone)
	str("SCHEDULE_TIMEZONE", &cfg.Schedule.Timezone)
	str("SCHEDULE_MODE", &cfg.Schedule.Mode)
	str("FILTER_MODE", &cfg.Filter.Mode)
	str("FILTER_REGEX", &cfg.Filter.Regex)

	if v := getenv("FILTER_TOPICS"); v != "" {
		cfg.Filter.Topics = splitList(v)
		applied = append(applied, "FILTER_TOPICS")
	}
	if v := getenv("FILTER_KEYWORDS"); v != "" {
		cfg.Filter.Keywords = splitList(v)
		applied = append(applied, "FILTER_KEYWORDS")
	}
	if v := getenv("FILTER_ENABLED"); v != "" {
		enabled := strings.EqualFold(strings.TrimSpace(v), "true")
		cfg.Filter.Enabled = &enabled
		applied = append(applied, "FILTER_ENABLED")
	}

	cfg.normalizeModes()
	return &cfg, applied
}
