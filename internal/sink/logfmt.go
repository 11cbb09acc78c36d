package sink

import (
	"bytes"

	"github.com/go-logfmt/logfmt"

	"kelora/internal/event"
)

// LogfmtFormatter renders key=value logfmt lines via go-logfmt/logfmt,
// the same encoder/decoder pair internal/parser/logfmt.go decodes with —
// round-tripping Kelora's own logfmt input format back out unchanged
// when no transform touches the event.
type LogfmtFormatter struct {
	Projection KeyProjection
	Timestamps TimestampDisplay
}

func (f *LogfmtFormatter) Format(ev *event.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := logfmt.NewEncoder(&buf)
	for _, kv := range f.Projection.Project(ev) {
		if err := enc.EncodeKeyval(kv.Key, scalarString(kv.Key, kv.Value, f.Timestamps)); err != nil {
			return nil, err
		}
	}
	if err := enc.EndRecord(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
