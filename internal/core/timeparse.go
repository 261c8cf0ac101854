package core

import (
	"fmt"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 MST", // Dune: "2024-05-01 00:00:00.000 UTC"
	"2006-01-02 15:04:05 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimeFlexible parses the timestamp shapes the upstream APIs emit. The
// parsed location is kept; callers decide whether to convert or drop it.
func ParseTimeFlexible(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %q", s)
}

// WallMonth returns the first of t's month using t's own wall clock, so an
// offset is discarded rather than converted.
func WallMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
