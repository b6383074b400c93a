// Package schedule decides whether the current wall-clock time falls inside
// the daily mirroring window.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// minutesPerDay is the wrap-around used by midnight-crossing windows.
const minutesPerDay = 24 * 60

// Clock is a time of day expressed as minutes since midnight, in [0, 1439].
type Clock int

// ParseClock parses a 24h "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, &ClockError{Value: s, Reason: "expected HH:MM"}
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || len(hh) == 0 || len(hh) > 2 || !digits(hh) {
		return 0, &ClockError{Value: s, Reason: "invalid hour"}
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || !digits(mm) {
		return 0, &ClockError{Value: s, Reason: "invalid minute"}
	}
	if hour < 0 || hour > 23 {
		return 0, &ClockError{Value: s, Reason: "hour out of range"}
	}
	if minute < 0 || minute > 59 {
		return 0, &ClockError{Value: s, Reason: "minute out of range"}
	}
	return Clock(hour*60 + minute), nil
}

// digits reports whether s is made of ASCII digits only.
func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ClockOf returns the local wall-clock time of t as a Clock.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// String formats c as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// InWindow reports whether now lies inside the daily window [start, end].
// Both bounds are inclusive. When start > end the window crosses midnight.
func InWindow(now time.Time, start, end Clock) bool {
	cur := ClockOf(now)
	if start > end {
		return cur >= start || cur <= end
	}
	return cur >= start && cur <= end
}

// NextChange returns the time until the next window boundary: the end of the
// window when now is inside it, the start otherwise.
func NextChange(now time.Time, start, end Clock) time.Duration {
	cur := ClockOf(now)
	target := start
	if InWindow(now, start, end) {
		target = end
	}
	diff := int(target) - int(cur)
	if diff <= 0 {
		diff += minutesPerDay
	}
	return time.Duration(diff) * time.Minute
}

// ClockError is returned when a schedule bound is not a valid "HH:MM" time.
type ClockError struct {
	Value  string
	Reason string
}

func (e *ClockError) Error() string {
	return fmt.Sprintf("invalid schedule time %q: %s", e.Value, e.Reason)
}
