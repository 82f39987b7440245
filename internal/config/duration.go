package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDuration parses a Go duration string config field. An empty value
// yields def; a malformed or negative value is an error naming the field.
func ParseDuration(field, s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must not be negative", field)
	}
	return d, nil
}
