package parser

import (
	"bytes"

	"github.com/go-logfmt/logfmt"

	"kelora/internal/event"
)

// LogfmtParser parses key=value logfmt lines using go-logfmt/logfmt, the
// same decoder the wider example corpus reaches for (mirrored in
// influxdb-telegraf's logfmt input). Bare keys without "=" decode with an
// empty string value, matching logfmt's own convention.
type LogfmtParser struct{}

func NewLogfmtParser() *LogfmtParser { return &LogfmtParser{} }

func (p *LogfmtParser) Name() string { return "logfmt" }

func (p *LogfmtParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	dec := logfmt.NewDecoder(bytes.NewReader([]byte(line)))
	e := event.New(filename, lineNumber, line)

	if !dec.ScanRecord() {
		if err := dec.Err(); err != nil {
			return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: "logfmt", Reason: err.Error()}
		}
		return e, nil
	}
	for dec.ScanKeyval() {
		key := string(dec.Key())
		val := string(dec.Value())
		e.Set(key, inferScalar(val))
	}
	if err := dec.Err(); err != nil {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: "logfmt", Reason: err.Error()}
	}
	return e, nil
}

// inferScalar promotes a bare logfmt value string to Int/Float/Bool when it
// unambiguously parses as one, else keeps it as String (spec.md §6.1 logfmt:
// "values are typed by best-effort literal inference").
func inferScalar(s string) event.FieldValue {
	if s == "" {
		return event.String(s)
	}
	if s == "true" {
		return event.Bool(true)
	}
	if s == "false" {
		return event.Bool(false)
	}
	if n, ok := parseStrictInt(s); ok {
		return event.Int(n)
	}
	if f, ok := parseStrictFloat(s); ok {
		return event.Float(f)
	}
	return event.String(s)
}
