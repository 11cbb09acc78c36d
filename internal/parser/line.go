package parser

import "kelora/internal/event"

// LineParser puts the entire raw line into a single field, "message"
// (spec.md §4.2 "line: the whole line as message"). It never fails.
type LineParser struct{}

func NewLineParser() *LineParser { return &LineParser{} }

func (p *LineParser) Name() string { return "line" }

func (p *LineParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	e := event.New(filename, lineNumber, line)
	e.Set("message", event.String(line))
	return e, nil
}

// RawParser is identical to LineParser in field shape but is named
// separately so that format selection and diagnostics can distinguish
// "line" (the fallback of auto) from an explicit opt-in to raw passthrough.
type RawParser struct{}

func NewRawParser() *RawParser { return &RawParser{} }

func (p *RawParser) Name() string { return "raw" }

func (p *RawParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	e := event.New(filename, lineNumber, line)
	e.Set("message", event.String(line))
	return e, nil
}
