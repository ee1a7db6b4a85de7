package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// StringFromEnv overwrites *dst with the trimmed value of name when it is set
// and non-empty.
func StringFromEnv(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

// DurationFromEnv overwrites *dst with the duration in name when it is set.
// Bare integers are read as seconds.
func DurationFromEnv(dst *time.Duration, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

// ParseDuration accepts Go duration strings ("90s", "15m") and bare seconds ("900").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err != nil || fmt.Sprint(secs) != s {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs) * time.Second, nil
}
