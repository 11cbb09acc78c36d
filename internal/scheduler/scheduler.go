// Package scheduler implements the two scheduling modes of spec.md §5
// ("Concurrency & Resource Model"): a single-worker Sequential mode and a
// multi-worker Parallel mode wired from a bounded reader → chunker →
// batcher → worker pool → optional reorderer → sink pipeline.
//
// Grounded on the teacher's internal/dispatcher package
// (dispatcher.worker's batch+timer select loop, channel-bounded queueing,
// and shutdown draining), generalized from one fixed dispatch pipeline
// into the spec's two selectable scheduling modes and split into
// independently testable stages (Chunker, Batcher, Reorderer) rather than
// one monolithic worker loop.
package scheduler

// Line is one input record surfaced by a reader, already decompressed and
// split on newlines, before any multiline joining.
type Line struct {
	Filename   string
	LineNumber int
	Text       string
}

// LineSource is the narrow interface the scheduler needs from
// internal/source, declared here (rather than imported) to keep this
// package free of a dependency on source's follow-mode/gzip machinery —
// the same pattern as stage.Sink in internal/stage/emit.go.
type LineSource interface {
	// Lines returns the channel of input lines; it is closed when the
	// source reaches EOF (and, in follow mode, when the source is told
	// to stop).
	Lines() <-chan Line
	// Err reports any terminal reader error observed after Lines() closes.
	Err() error
}
