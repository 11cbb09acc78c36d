package event

// Meta builds the read-only metadata map exposed to scripts for an event
// (spec.md §3 "Metadata (meta)"). Span-related keys are left unset here;
// the SpanStage injects them when it assigns an event to a span.
func (e *Event) Meta() *OrderedMap {
	m := NewOrderedMap()
	m.Set("line", String(e.RawLine))
	m.Set("line_number", Int(int64(e.LineNumber)))
	m.Set("filename", String(e.Filename))
	if e.parseError != "" {
		m.Set("parse_error", String(e.parseError))
	}
	if e.decodeError != "" {
		m.Set("decode_error", String(e.decodeError))
	}
	m.Set("span_status", String(e.Span.Status.String()))
	if e.Span.SpanID != "" {
		m.Set("span_id", String(e.Span.SpanID))
	}
	if !e.Span.SpanStart.IsZero() {
		m.Set("span_start", DateTime(e.Span.SpanStart))
	}
	if !e.Span.SpanEnd.IsZero() {
		m.Set("span_end", DateTime(e.Span.SpanEnd))
	}
	return m
}

// ParseErrorEvent builds the empty-field-map event carrying
// meta.parse_error, per spec.md §3: "Events created from parse errors
// carry an empty field map plus meta.parse_error; they are never emitted
// unless a script re-emits them."
func ParseErrorEvent(filename string, lineNumber int, raw, parseErr string) *Event {
	e := New(filename, lineNumber, raw)
	e.parseError = parseErr
	return e
}

// IsParseError reports whether this event was produced by ParseErrorEvent.
func (e *Event) IsParseError() bool { return e.parseError != "" }

// SetDecodeError records a non-fatal decode error surfaced via meta.decode_error.
func (e *Event) SetDecodeError(msg string) { e.decodeError = msg }
