package event

import (
	"strconv"
	"strings"
	"time"
)

// formatWhitelist is the autodetect format list tried by ParseTimestamp
// and by the script datetime helpers (spec.md §4.1, §4.3: "parse with
// format autodetect from a whitelist plus user format"). Ordered from
// most to least specific to minimize ambiguous matches.
var formatWhitelist = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"02/Jan/2006:15:04:05 -0700", // combined/apache log format
	time.RFC1123Z,
	time.RFC1123,
	"Jan _2 15:04:05", // syslog RFC3164, year-less
	"Mon Jan _2 15:04:05 2006",
}

// ParseTimestamp attempts to parse s as a timestamp, trying epoch seconds/
// milliseconds/nanoseconds (by magnitude) and then the format whitelist in
// order. It never returns a location-naive wall clock silently shifted:
// formats without a zone parse as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	}
	for _, layout := range formatWhitelist {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimestampWithFormat parses s using an explicit user-supplied
// layout, falling back to the autodetect whitelist if the layout fails.
func ParseTimestampWithFormat(s, layout string) (time.Time, bool) {
	if layout != "" {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return ParseTimestamp(s)
}

// fromEpoch classifies an integer by magnitude into seconds, milliseconds,
// or nanoseconds since the epoch (a common heuristic: 13-digit numbers are
// milliseconds, 19-digit are nanoseconds, otherwise seconds).
func fromEpoch(n int64) time.Time {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e17:
		return time.Unix(0, n).UTC()
	case abs >= 1e12:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}
