package parser

import (
	"encoding/csv"
	"fmt"
	"strings"

	"kelora/internal/event"
)

// ColumnType annotates a CSV/TSV column with an explicit type, overriding
// the parser's own literal-inference (spec.md §6.1 "csv: optional
// name:type header annotations").
type ColumnType int

const (
	ColumnAuto ColumnType = iota
	ColumnString
	ColumnInt
	ColumnFloat
	ColumnBool
)

// CSVParser parses RFC4180 delimited records via the standard library's
// encoding/csv (the teacher and pack repos reach for net/csv-family stdlib
// parsing rather than a third-party CSV dependency for this narrow a
// concern; no example repo imports one). Column names come either from a
// header row (HasHeader) or are synthesized as col1, col2, ... .
type CSVParser struct {
	sep       rune
	hasHeader bool
	colTypes  map[string]ColumnType

	header []string // populated lazily from the first line when hasHeader
}

func NewCSVParser(sep rune, hasHeader bool, colTypes map[string]ColumnType) *CSVParser {
	return &CSVParser{sep: sep, hasHeader: hasHeader, colTypes: colTypes}
}

func (p *CSVParser) Name() string {
	if p.sep == '\t' {
		return "tsv"
	}
	return "csv"
}

func (p *CSVParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = p.sep
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: p.Name(), Reason: err.Error()}
	}

	if p.hasHeader && p.header == nil {
		p.header = append([]string(nil), record...)
		return nil, errHeaderConsumed
	}

	e := event.New(filename, lineNumber, line)
	for i, raw := range record {
		name := p.columnName(i)
		e.Set(name, p.typedValue(name, raw))
	}
	return e, nil
}

func (p *CSVParser) columnName(i int) string {
	if p.header != nil && i < len(p.header) {
		return p.header[i]
	}
	return fmt.Sprintf("col%d", i+1)
}

func (p *CSVParser) typedValue(name, raw string) event.FieldValue {
	ct := ColumnAuto
	if p.colTypes != nil {
		if t, ok := p.colTypes[name]; ok {
			ct = t
		}
	}
	switch ct {
	case ColumnString:
		return event.String(raw)
	case ColumnInt:
		if n, ok := parseStrictInt(raw); ok {
			return event.Int(n)
		}
		return event.String(raw)
	case ColumnFloat:
		if f, ok := parseStrictFloat(raw); ok {
			return event.Float(f)
		}
		return event.String(raw)
	case ColumnBool:
		return event.Bool(raw == "true" || raw == "1")
	default:
		return inferScalar(raw)
	}
}

// errHeaderConsumed signals the scheduler's source loop (not a parse
// failure) that this line was the header row and produced no event.
var errHeaderConsumed = &ParseError{Format: "csv", Reason: "header row consumed, no event produced"}

// IsHeaderConsumed reports whether err is the sentinel returned for a
// consumed header row, so callers can skip it without counting it as a
// parse failure in diagnostics.
func IsHeaderConsumed(err error) bool { return err == errHeaderConsumed }
