// Package sink implements stage.Sink (spec.md §4.4.7/§6.1): formatting an
// Event into one of the four output formats and writing it out, plus the
// key-projection, timestamp-display, and color/emoji knobs that shape
// that formatting.
//
// Grounded on the teacher's internal/sinks.LocalFileSink
// (formatJSONOutput/formatTextOutput in local_file_sink.go): a small
// switch over a configured OutputFormat string producing one line per
// entry, generalized from two hardcoded formats into four pluggable
// Formatter implementations sharing one KeyProjection/TimestampDisplay
// pass, plus logfmt/csv formats the teacher names only in its *input*
// parsers.
package sink

import (
	"fmt"
	"strings"
	"time"

	"kelora/internal/event"
)

// TimestampDisplay resolves spec.md §6.1's "-z local, -Z UTC,
// --format-ts per field" knobs into one rendering rule applied to every
// KindDateTime value a formatter writes.
type TimestampDisplay struct {
	UTC         bool
	Local       bool
	PerField    map[string]string // field name -> time.Format layout
	DefaultFmt  string            // falls back to time.RFC3339Nano
}

func (t TimestampDisplay) render(key string, v time.Time) string {
	if t.UTC {
		v = v.UTC()
	} else if t.Local {
		v = v.Local()
	}
	layout := t.DefaultFmt
	if layout == "" {
		layout = time.RFC3339Nano
	}
	if t.PerField != nil {
		if f, ok := t.PerField[key]; ok {
			layout = f
		}
	}
	return v.Format(layout)
}

// Style groups the cosmetic knobs (spec.md §6.1 "color/emoji toggles")
// that only TextFormatter uses.
type Style struct {
	Color bool
	Emoji bool
}

// Formatter renders one Event into the bytes a Sink writes for it,
// terminated by its own trailing newline (matching
// formatJSONOutput/formatTextOutput's "+ \"\\n\"" convention).
type Formatter interface {
	Format(ev *event.Event) ([]byte, error)
}

// scalarString renders v for formats that need a plain string cell
// (text, logfmt, CSV) — JSONFormatter instead preserves FieldValue's
// native type via its own recursive encoder.
func scalarString(key string, v event.FieldValue, ts TimestampDisplay) string {
	switch v.Kind() {
	case event.KindNull:
		return ""
	case event.KindDateTime:
		t, _ := v.AsDateTime()
		return ts.render(key, t)
	default:
		return v.ToString()
	}
}

func levelEmoji(lvl event.Level) string {
	switch lvl {
	case event.LevelTrace:
		return "🔍"
	case event.LevelDebug:
		return "🐛"
	case event.LevelInfo:
		return "ℹ️"
	case event.LevelWarn:
		return "⚠️"
	case event.LevelError:
		return "❌"
	case event.LevelFatal:
		return "💀"
	default:
		return "•"
	}
}

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorBlue   = "\x1b[34m"
	colorGray   = "\x1b[90m"
)

func levelColor(lvl event.Level) string {
	switch lvl {
	case event.LevelWarn:
		return colorYellow
	case event.LevelError, event.LevelFatal:
		return colorRed
	case event.LevelDebug, event.LevelTrace:
		return colorGray
	default:
		return colorBlue
	}
}

func paint(s, code string, enabled bool) string {
	if !enabled || code == "" {
		return s
	}
	return code + s + colorReset
}

func writeKeyval(b *strings.Builder, sep string, first *bool, key, val string) {
	if !*first {
		b.WriteString(sep)
	}
	*first = false
	fmt.Fprintf(b, "%s=%s", key, val)
}
