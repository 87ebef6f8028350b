package models

import (
	"strings"
	"time"
)

// DisplayLayout is how timestamps are shown to operators.
const DisplayLayout = "2006/01/02 15:04:05"

// timestampLayouts are the formats the pond server is known to emit.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339Nano,
}

// ParseTimestamp parses a server timestamp. Date and time may be separated
// by a space or a "T". Timestamps without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	spaced := strings.Replace(s, "T", " ", 1)
	for _, layout := range timestampLayouts {
		candidate := spaced
		if strings.Contains(layout, "T") {
			candidate = s
		}
		if t, err := time.Parse(layout, candidate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders a server timestamp for display. Unparseable
// values are shown as-is.
func FormatTimestamp(s string) string {
	if t, ok := ParseTimestamp(s); ok {
		return t.Format(DisplayLayout)
	}
	return s
}
