package scheduler

import (
	"context"

	"kelora/internal/parser"
	"kelora/internal/stage"
)

// Sequential runs the single-worker scheduling mode (spec.md §5 "1.
// Sequential. A single worker thread owns parsing, the stage pipeline,
// and the sink. A dedicated reader thread performs blocking I/O and
// pushes lines to the worker over a bounded channel"). The Chunker plays
// the role of that dedicated reader thread's multiline-joining step;
// LineSource's own goroutine (internal/source) is the blocking-I/O
// reader itself.
type Sequential struct {
	source   LineSource
	chunker  *Chunker
	parser   parser.Parser
	pipeline *stage.Pipeline
	strict   bool

	onParseError func(*parser.ParseError)
}

func NewSequential(source LineSource, chunker *Chunker, p parser.Parser, pipeline *stage.Pipeline, strict bool, onParseError func(*parser.ParseError)) *Sequential {
	return &Sequential{
		source:       source,
		chunker:      chunker,
		parser:       p,
		pipeline:     pipeline,
		strict:       strict,
		onParseError: onParseError,
	}
}

// Run drains the source to completion (or ctx cancellation), parsing and
// running every record through pipeline. Events are written to the sink
// by the pipeline's own EmitStage; Run returns the first Fatal-tier error
// encountered (spec.md §7), ctx.Err() on cancellation, or the source's
// Err() (nil for a clean read) at EOF.
func (s *Sequential) Run(ctx context.Context) error {
	go s.chunker.Run(s.source.Lines())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-s.chunker.Records():
			if !ok {
				return s.source.Err()
			}
			if err := s.process(ctx, rec); err != nil {
				return err
			}
		}
	}
}

func (s *Sequential) process(ctx context.Context, rec Record) error {
	ev, err := s.parser.Parse(rec.Text, rec.Filename, rec.LineNumber)
	if err != nil {
		if pe, ok := err.(*parser.ParseError); ok && s.onParseError != nil {
			s.onParseError(pe)
		}
		if s.strict {
			return err
		}
		return nil
	}
	_, err = s.pipeline.Run(ctx, ev)
	return err
}
