package event

import (
	"strings"
	"time"
)

// Level is the normalized log severity (spec.md §3).
type Level int

const (
	LevelUnknown Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLevel normalizes a free-form level string into a Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "trc":
		return LevelTrace
	case "debug", "dbg":
		return LevelDebug
	case "info", "information", "notice":
		return LevelInfo
	case "warn", "warning", "wrn":
		return LevelWarn
	case "error", "err", "severe":
		return LevelError
	case "fatal", "panic", "critical", "crit":
		return LevelFatal
	default:
		return LevelUnknown
	}
}

// ContextType classifies why an event flowed through the ContextStage
// (spec.md §4.4.5).
type ContextType int

const (
	ContextNone ContextType = iota
	ContextMatch
	ContextBefore
	ContextAfter
	ContextBoth
)

// SpanStatus classifies how an event was handled by the SpanStage
// (spec.md §4.4.4).
type SpanStatus int

const (
	SpanNone SpanStatus = iota
	SpanIncluded
	SpanLate
	SpanUnassigned
	SpanFiltered
)

func (s SpanStatus) String() string {
	switch s {
	case SpanIncluded:
		return "included"
	case SpanLate:
		return "late"
	case SpanUnassigned:
		return "unassigned"
	case SpanFiltered:
		return "filtered"
	default:
		return "none"
	}
}

// SpanAssignment records which span (if any) an event belongs to.
type SpanAssignment struct {
	Status    SpanStatus
	SpanID    string
	SpanStart time.Time
	SpanEnd   time.Time
}

// tsAliases and levelAliases are the canonical alias lists from spec.md
// §3; callers may override the primary key via configuration
// (ts-field/level-field), in which case that key is tried first.
var (
	tsAliases    = []string{"ts", "timestamp", "_ts", "at", "time"}
	levelAliases = []string{"level", "lvl", "severity", "log_level"}
)

// Event is an ordered map of field name to FieldValue, plus provenance and
// memoized derivations (spec.md §3).
type Event struct {
	Fields *OrderedMap

	RawLine    string
	Filename   string
	LineNumber int

	ContextTag ContextType
	Span       SpanAssignment

	parseError  string // non-empty iff this event resulted from a parse failure
	decodeError string

	tsField    string // configured override, empty = use alias list
	levelField string

	tsMemo    *time.Time // nil = not yet computed; points to zero Time if none found
	levelMemo *Level
}

// New returns an empty Event with the given provenance.
func New(filename string, lineNumber int, raw string) *Event {
	return &Event{
		Fields:   NewOrderedMap(),
		RawLine:  raw,
		Filename: filename,
		LineNumber: lineNumber,
	}
}

// WithFieldOverrides sets the configured ts-field/level-field overrides
// (spec.md §4.1 "Special-field resolution"); it invalidates any memoized
// timestamp/level so a later access recomputes from the new field name.
func (e *Event) WithFieldOverrides(tsField, levelField string) {
	e.tsField = tsField
	e.levelField = levelField
	e.tsMemo = nil
	e.levelMemo = nil
}

// Has implements e.has(key): false iff missing or Null.
func (e *Event) Has(key string) bool { return e.Fields.Has(key) }

// Get returns the field value or Null if absent.
func (e *Event) Get(key string) FieldValue {
	v, ok := e.Fields.Get(key)
	if !ok {
		return Null
	}
	return v
}

// Set inserts or updates a field, preserving first-insertion order.
func (e *Event) Set(key string, v FieldValue) {
	e.Fields.Set(key, v)
	if key == e.resolvedTsKey() || isAlias(key, tsAliases) {
		e.tsMemo = nil
	}
	if key == e.resolvedLevelKey() || isAlias(key, levelAliases) {
		e.levelMemo = nil
	}
}

func isAlias(key string, aliases []string) bool {
	for _, a := range aliases {
		if a == key {
			return true
		}
	}
	return false
}

func (e *Event) resolvedTsKey() string {
	return e.tsField
}

func (e *Event) resolvedLevelKey() string {
	return e.levelField
}

// Timestamp returns the event's memoized parsed timestamp, computing it on
// first access by trying the configured override then the canonical alias
// list in order, keeping the first alias present.
func (e *Event) Timestamp() (time.Time, bool) {
	if e.tsMemo != nil {
		return *e.tsMemo, !e.tsMemo.IsZero()
	}
	candidates := tsAliases
	if e.tsField != "" {
		candidates = append([]string{e.tsField}, tsAliases...)
	}
	for _, key := range candidates {
		v, ok := e.Fields.Get(key)
		if !ok || v.IsNull() {
			continue
		}
		if t, ok := v.AsDateTime(); ok {
			e.tsMemo = &t
			return t, true
		}
		if s, ok := v.AsString(); ok {
			if t, ok := ParseTimestamp(s); ok {
				e.tsMemo = &t
				return t, true
			}
		}
	}
	zero := time.Time{}
	e.tsMemo = &zero
	return zero, false
}

// LevelValue returns the event's memoized normalized level.
func (e *Event) LevelValue() Level {
	if e.levelMemo != nil {
		return *e.levelMemo
	}
	candidates := levelAliases
	if e.levelField != "" {
		candidates = append([]string{e.levelField}, levelAliases...)
	}
	for _, key := range candidates {
		v, ok := e.Fields.Get(key)
		if !ok || v.IsNull() {
			continue
		}
		lvl := ParseLevel(v.ToString())
		e.levelMemo = &lvl
		return lvl
	}
	unknown := LevelUnknown
	e.levelMemo = &unknown
	return unknown
}

// Clone deep-copies the event, including its field map. Provenance and
// span/context tags are copied by value; memoized derivations are
// preserved (cloning does not change the identity of a timestamp/level
// already computed).
func (e *Event) Clone() *Event {
	clone := &Event{
		Fields:     e.Fields.Clone(),
		RawLine:    e.RawLine,
		Filename:   e.Filename,
		LineNumber: e.LineNumber,
		ContextTag:  e.ContextTag,
		Span:        e.Span,
		parseError:  e.parseError,
		decodeError: e.decodeError,
		tsField:     e.tsField,
		levelField:  e.levelField,
	}
	if e.tsMemo != nil {
		t := *e.tsMemo
		clone.tsMemo = &t
	}
	if e.levelMemo != nil {
		l := *e.levelMemo
		clone.levelMemo = &l
	}
	return clone
}

// Keys returns field names in first-insertion order.
func (e *Event) Keys() []string { return e.Fields.Keys() }
