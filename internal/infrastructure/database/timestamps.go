package database

import (
	"fmt"
	"time"
)

// TimeLayout is the storage format for every timestamp column. It is fixed
// width and UTC, so lexical order in SQL equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a value written by FormatTime. RFC 3339 values are
// accepted too so rows written by hand still load.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Now returns the current time truncated to the storage precision, so a
// value read back compares equal to the one written.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
