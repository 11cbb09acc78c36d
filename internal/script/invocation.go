package script

import (
	"github.com/google/cel-go/cel"

	"kelora/internal/event"
)

// Invocation is the mutable, single-threaded-per-worker side-channel that
// CEL helper functions write to (tracking updates, emit_each successors,
// window reads). CEL function bindings are pure with respect to their
// arguments, but Kelora's helpers (track_count, emit_each, window_values,
// ...) need to record side effects outside the expression's return value;
// this struct is that side channel.
//
// Exactly one Invocation is live per Engine at a time. Stages call
// Engine.BeginInvocation before Eval and read the returned Invocation
// after, which is safe because spec.md §5 guarantees a worker is synchronous
// with respect to its own scripting engine — there is never a concurrent
// Eval in flight on the same Engine.
type Invocation struct {
	Event      *event.Event
	Successors []*event.Event // populated by emit_each
	Suppressed bool            // true once emit_each has been called, even with zero items

	Tracker TrackerOps
	Window  []*event.Event // oldest first, excluding the current event

	FatalErr error // set by helpers that must abort the whole run (e.g. missing secret)
}

// TrackerOps is the subset of *tracker.Tracker that script helpers call
// into; declared here (rather than importing the tracker package
// directly) so internal/tracker does not need to depend on internal/
// script, and vice versa — both depend on this narrow interface instead.
type TrackerOps interface {
	Count(key string) error
	Sum(key string, x float64, isInt bool) error
	Min(key string, x float64, isInt bool) error
	Max(key string, x float64, isInt bool) error
	Avg(key string, x float64) error
	Unique(key string, x string) error
	Bucket(key string, x string) error
	TopN(key string, x string, score float64, n int, desc bool) error
	List(key string, v event.FieldValue, cap int) error
	ErrorExample(key, msg, sample string, cap int) error
	Percentile(key string, x float64) error
}

// HelperFactory builds the cel.EnvOption(s) that register one helper
// category's functions against a (not-yet-built) Engine's invocation
// pointer. Implementations live in internal/script/helpers.
type HelperFactory func(eng *Engine) []cel.EnvOption
