package utils

import "time"

// ParseRFC3339 parses a time string in RFC3339 format, with or without
// fractional seconds.
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ParseOptionalTime parses s as RFC3339 or a plain yyyy-mm-dd date. An empty
// string yields the zero time.
func ParseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := ParseRFC3339(s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
