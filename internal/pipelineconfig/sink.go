package pipelineconfig

import (
	"io"

	"kelora/internal/sink"
)

// BuildSink wires c's output-projection/format knobs into a ready
// stage.Sink writing to w, the same way Factory wires the filter/exec/
// span knobs into a pipeline: one place translating the resolved Config
// into the concrete machinery internal/scheduler runs against.
func BuildSink(c Config, w io.Writer) *sink.Sink {
	proj := sink.KeyProjection{
		Keys:        c.Keys,
		Core:        c.Core,
		ExcludeKeys: c.ExcludeKeys,
	}
	ts := sink.TimestampDisplay{
		UTC:      c.TimestampUTC,
		Local:    c.TimestampLocal,
		PerField: c.FormatTS,
	}
	style := sink.Style{Color: c.Color, Emoji: c.Emoji}

	format := c.OutputFormat
	if format == "" {
		format = "text"
	}
	return sink.New(w, sink.NewFormatter(format, proj, ts, style))
}
