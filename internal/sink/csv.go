package sink

import (
	"bytes"
	"encoding/csv"

	"kelora/internal/event"
)

// CSVFormatter renders RFC4180 rows via encoding/csv (spec.md §6.1
// "csv|tsv" output), the same stdlib package internal/parser/csv.go
// parses with. The header row is derived from the projection of the
// first event formatted (or Columns, if explicitly given) and written
// once; later events are projected against that same fixed column set
// regardless of their own field order. Callers must serialize calls to
// Format (internal/sink.Sink's own write-lock already does this), since
// the header-once bookkeeping is stateful.
type CSVFormatter struct {
	Projection KeyProjection
	Timestamps TimestampDisplay
	Columns    []string // optional explicit header; derived from the first event otherwise
	Delimiter  rune     // defaults to ',' (pass '\t' for tsv)

	header     []string
	headerDone bool
}

func (f *CSVFormatter) Format(ev *event.Event) ([]byte, error) {
	kvs := f.Projection.Project(ev)

	if f.header == nil {
		if len(f.Columns) > 0 {
			f.header = f.Columns
		} else {
			f.header = make([]string, len(kvs))
			for i, kv := range kvs {
				f.header[i] = kv.Key
			}
		}
	}

	byKey := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		byKey[kv.Key] = scalarString(kv.Key, kv.Value, f.Timestamps)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if f.Delimiter != 0 {
		w.Comma = f.Delimiter
	}

	if !f.headerWritten() {
		if err := w.Write(f.header); err != nil {
			return nil, err
		}
		f.markHeaderWritten()
	}

	row := make([]string, len(f.header))
	for i, col := range f.header {
		row[i] = byKey[col]
	}
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *CSVFormatter) headerWritten() bool { return f.headerDone }
func (f *CSVFormatter) markHeaderWritten()   { f.headerDone = true }
