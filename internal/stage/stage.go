// Package stage implements the pipeline stage machinery of spec.md
// §4.4: a uniform Stage interface plus the seven concrete stages
// (Filter, Exec, Window, Span, Context, TakeHead, Emit) composed in CLI
// order.
//
// Grounded on the teacher's processing.StepProcessor interface
// (internal/processing/log_processor.go): one method that takes an event
// and a context and returns a transformed event or an error. This
// package generalizes that single Emit-or-error return into the four-way
// StageResult the spec requires (Emit/EmitMultiple/Skip/Fatal), since a
// log-processing pipeline step never needs to fan an entry out into many
// or silently drop it, but a filter or an exec calling emit_each does.
package stage

import (
	"context"

	"kelora/internal/apperrors"
	"kelora/internal/event"
)

// ResultKind tags which of the four stage outcomes a StageResult holds.
type ResultKind int

const (
	ResultEmit ResultKind = iota
	ResultEmitMultiple
	ResultSkip
	ResultFatal
)

// StageResult is the uniform return value of Stage.Apply (spec.md §4.4:
// "apply(event, ctx) → StageResult ∈ {Emit(Event), EmitMultiple(Vec<Event>),
// Skip, Fatal(error)}").
type StageResult struct {
	Kind   ResultKind
	Event  *event.Event
	Events []*event.Event
	Err    error
}

func Emit(e *event.Event) StageResult { return StageResult{Kind: ResultEmit, Event: e} }

func EmitMultiple(events []*event.Event) StageResult {
	return StageResult{Kind: ResultEmitMultiple, Events: events}
}

func Skip() StageResult { return StageResult{Kind: ResultSkip} }

func Fatal(err error) StageResult { return StageResult{Kind: ResultFatal, Err: err} }

// Stage is implemented by every pipeline element. Apply receives one
// event (already having survived every preceding stage) and the shared
// run context. ctx carries cancellation for SIGINT/SIGTERM draining
// (internal/lifecycle) and is threaded through, matching the teacher's
// StepProcessor.Process(ctx, entry) signature.
type Stage interface {
	Apply(ctx context.Context, ev *event.Event) StageResult
	Name() string
}

// Tracer starts a span for a named stage invocation, returning a context
// carrying it and a closer to record the stage's error (if any) and end
// it. Satisfied by *diag.Tracer without this package importing
// internal/diag — Pipeline only needs the shape, not the OTel machinery
// behind it.
type Tracer interface {
	StageSpan(ctx context.Context, name string) (context.Context, func(err error))
}

// Pipeline runs an event through an ordered list of stages, short-
// circuiting on Skip/Fatal and re-running EmitMultiple's successors
// through the *remaining* stages only (spec.md §4.4: "EmitMultiple
// replaces the current event with zero-or-more successors which continue
// through remaining stages (not from the beginning)").
type Pipeline struct {
	stages []Stage
	tracer Tracer
}

func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

func (p *Pipeline) Stages() []Stage { return p.stages }

// SetTracer attaches a Tracer that Run spans every stage invocation
// through. A nil tracer (the default) makes Run a plain loop with no
// tracing overhead.
func (p *Pipeline) SetTracer(t Tracer) { p.tracer = t }

// Run applies every stage to ev in order, returning the final set of
// events that reached the end of the pipeline (zero, one, or many) and a
// Fatal error if any stage aborted. EmitMultiple's successors are simply
// folded into the same per-stage worklist as every other surviving
// event, which is what gives them "continue through remaining stages,
// not from the beginning": they enter the loop at i+1 exactly like an
// ordinary Emit result would.
func (p *Pipeline) Run(ctx context.Context, ev *event.Event) ([]*event.Event, error) {
	current := []*event.Event{ev}
	for i := 0; i < len(p.stages); i++ {
		if len(current) == 0 {
			return current, nil
		}
		stage := p.stages[i]
		var next []*event.Event
		for _, e := range current {
			stageCtx, end := ctx, func(error) {}
			if p.tracer != nil {
				stageCtx, end = p.tracer.StageSpan(ctx, stage.Name())
			}
			res := stage.Apply(stageCtx, e)
			end(res.Err)
			switch res.Kind {
			case ResultEmit:
				next = append(next, res.Event)
			case ResultEmitMultiple:
				next = append(next, res.Events...)
			case ResultSkip:
				// dropped
			case ResultFatal:
				return nil, wrapFatal(stage.Name(), res.Err)
			}
		}
		current = next
	}
	return current, nil
}

func wrapFatal(stageName string, err error) error {
	if ae, ok := apperrors.As(err); ok {
		return ae
	}
	return apperrors.New(apperrors.Fatal, apperrors.CodeScriptEval, "stage:"+stageName, "apply", err.Error()).Wrap(err)
}
