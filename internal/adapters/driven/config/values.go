// Package config holds the value conversions shared by ConfigStore
// implementations. Values arrive as TOML decodes them (int64, float64,
// []any) or as Go values set in code.
package config

import (
	"strings"
	"time"
)

// String returns v as a string, or "".
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Int returns v as an int. Floats are truncated.
func Int(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Float returns v as a float64. Integers are accepted so that
// "threshold = 1" reads as 1.0.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

// Duration returns v as a duration. Strings use time.ParseDuration syntax
// ("30s", "15m"); integers are seconds.
func Duration(v any) time.Duration {
	switch d := v.(type) {
	case time.Duration:
		return d
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(d))
		if err != nil {
			return 0
		}
		return parsed
	case int64:
		return time.Duration(d) * time.Second
	case int:
		return time.Duration(d) * time.Second
	default:
		return 0
	}
}

// Bool returns v as a bool, or false.
func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

// StringSlice returns the string elements of v. Non-string elements of a
// TOML array are skipped.
func StringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
