package pipelineconfig

import (
	"fmt"
	"strings"

	"kelora/internal/apperrors"
	"kelora/internal/scheduler"
	"kelora/internal/script"
	"kelora/internal/stage"
	"kelora/internal/tracker"
)

// Factory returns a scheduler.PipelineFactory that compiles Config's
// Filter → Exec → Window → Span → Context → Head → LevelRange/TimeRange →
// Take → Emit stages, in that order (spec.md §4.4),
// against whichever worker Engine/Tracker the scheduler hands it. conf
// is shared across every worker's pipeline: --begin runs once up front
// (RunBegin) and the resulting binding is threaded into Factory so every
// worker sees the same frozen conf value.
//
// onHeadLimit/onTakeLimit let the caller wire --head/--take's
// coordinated shutdown (spec.md §4.4.6) into whatever signals
// internal/lifecycle's Controller watches; either may be nil.
//
// tracer, if non-nil, is attached to every worker's Pipeline so --trace's
// span tree covers each stage on every worker the same way, not just the
// first one built.
//
// Head/Take are built once, here, and the same *stage.HeadStage/
// *stage.TakeStage instance is appended into every worker's pipeline
// below. Their counters are already atomic (internal/stage/takehead.go),
// so sharing one instance across workers turns --head/--take into a
// single global admission count instead of each worker enforcing the
// limit against its own private counter — the latter let parallel mode
// admit up to limit*workers events before this fix.
func Factory(c Config, conf *confBinding, sink stage.Sink, tracer stage.Tracer, onHeadLimit, onTakeLimit func()) scheduler.PipelineFactory {
	var headStage *stage.HeadStage
	if c.Head > 0 {
		headStage = stage.NewHeadStage("head", c.Head, onHeadLimit)
	}
	var takeStage *stage.TakeStage
	if c.Take > 0 {
		takeStage = stage.NewTakeStage("take", c.Take, onTakeLimit)
	}

	return func(eng *script.Engine, tr *tracker.Tracker) (*stage.Pipeline, error) {
		eng.SetTracker(tr)
		sb := newScopeBuilder(conf, tr)
		var stages []stage.Stage

		if c.Filter != "" {
			prog, err := eng.Compile(c.Filter)
			if err != nil {
				return nil, compileErr("filter", err)
			}
			if c.ContextBefore > 0 || c.ContextAfter > 0 {
				stages = append(stages, stage.NewMatchStage("filter", eng, prog, sb.scope, c.Strict))
			} else {
				stages = append(stages, stage.NewFilterStage("filter", eng, prog, sb.scope, c.Strict))
			}
		}

		for i, src := range c.Exec {
			name := fmt.Sprintf("exec[%d]", i)
			es, err := stage.NewExecStage(name, eng, src, sb.scope, c.Strict)
			if err != nil {
				return nil, compileErr(name, err)
			}
			stages = append(stages, es)
		}

		if c.WindowSize > 0 {
			wProg, err := eng.Compile(windowExprOrNoop(c))
			if err != nil {
				return nil, compileErr("window", err)
			}
			stages = append(stages, stage.NewWindowStage("window", eng, wProg, sb.scope, c.Strict, c.WindowSize))
		}

		if c.Span.enabled() {
			spanStage, err := buildSpanStage(c, eng, sb, tr)
			if err != nil {
				return nil, err
			}
			stages = append(stages, spanStage)
		}

		if c.ContextBefore > 0 || c.ContextAfter > 0 {
			stages = append(stages, stage.NewContextStage("context", c.ContextBefore, c.ContextAfter))
		}

		if headStage != nil {
			stages = append(stages, headStage)
		}

		if levels := levelSet(c); levels != nil {
			stages = append(stages, stage.NewLevelRangeStage("levels", levels))
		}
		if !c.Since.IsZero() || !c.Until.IsZero() {
			stages = append(stages, stage.NewTimeRangeStage("since-until", c.Since, c.Until))
		}

		if takeStage != nil {
			stages = append(stages, takeStage)
		}

		stages = append(stages, stage.NewEmitStage("emit", sink))

		pipeline := stage.NewPipeline(stages...)
		if tracer != nil {
			pipeline.SetTracer(tracer)
		}
		return pipeline, nil
	}
}

// windowExprOrNoop is the CEL expression WindowStage evaluates per event
// before appending e to the buffer; Config itself has no separate
// --window-expr surface beyond --exec's own statements, so an always-true
// expression lets every exec stage's mutations participate in the window
// without an extra user-facing knob. Grounded on the Filter/Window split
// in spec.md §4.4.3: the expression just gates whether e enters the
// buffer at all, which defaults to "always."
func windowExprOrNoop(c Config) string { return "true" }

func buildSpanStage(c Config, eng *script.Engine, sb *scopeBuilder, tr *tracker.Tracker) (*stage.SpanStage, error) {
	var closeProg *script.Program
	if c.SpanClose != "" {
		prog, err := eng.Compile(c.SpanClose)
		if err != nil {
			return nil, compileErr("span-close", err)
		}
		closeProg = prog
	}
	switch c.Span.Mode {
	case "count":
		return stage.NewCountSpanStage("span", c.Span.Count, eng, closeProg, sb.scope, tr, c.Strict), nil
	case "time":
		return stage.NewTimeSpanStage("span", c.Span.Dur, eng, closeProg, sb.scope, tr, c.Strict), nil
	case "field":
		return stage.NewFieldSpanStage("span", c.Span.Field, eng, closeProg, sb.scope, tr, c.Strict), nil
	case "idle":
		return stage.NewIdleSpanStage("span", c.Span.Dur, eng, closeProg, sb.scope, tr, c.Strict), nil
	default:
		return nil, apperrors.New(apperrors.Fatal, apperrors.CodeConfigInvalid, "pipelineconfig", "span",
			fmt.Sprintf("unknown span mode %q", c.Span.Mode))
	}
}

func compileErr(stageName string, err error) error {
	return apperrors.New(apperrors.Fatal, apperrors.CodeScriptCompile, "pipelineconfig", stageName,
		strings.TrimSpace(err.Error())).Wrap(err)
}
