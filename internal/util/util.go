// Package util provides common helpers used across the engine.
package util

import (
	"fmt"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg applies the unquoting both hosts use when forwarding string
// arguments through the bridge.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(s))
}

// ParseKeyState interprets a key transition argument. Hosts send "down"/"up"
// as well as the shorter "1"/"0" and "true"/"false" forms.
func ParseKeyState(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "down", "1", "true", "press":
		return true, nil
	case "up", "0", "false", "release":
		return false, nil
	default:
		return false, fmt.Errorf("unknown key state %q", s)
	}
}

// FormatLapTime renders an elapsed time in seconds as m:ss.mmm, the format
// shown on the timer overlay and the leaderboard.
func FormatLapTime(elapsed float64) string {
	if elapsed < 0 {
		elapsed = 0
	}
	millis := int64(elapsed*1000 + 0.5)
	m := millis / 60000
	s := (millis % 60000) / 1000
	ms := millis % 1000
	return fmt.Sprintf("%d:%02d.%03d", m, s, ms)
}

// Contains reports whether str is present in slice.
func Contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
