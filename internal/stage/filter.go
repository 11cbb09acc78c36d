package stage

import (
	"context"

	"kelora/internal/apperrors"
	"kelora/internal/event"
	"kelora/internal/script"
)

// FilterStage evaluates a boolean expression against e (spec.md §4.4.1):
// true ⇒ Emit(e), false ⇒ Skip, script-error ⇒ Skip (resilient) or Fatal
// (strict).
type FilterStage struct {
	name    string
	prog    *script.Program
	scopeFn ScopeFunc
	strict  bool
	eng     *script.Engine
}

// ScopeFunc builds the per-invocation Scope for an event, letting the
// caller plug in whichever ambient bindings (conf/metrics/span/window)
// are live at this point in the pipeline.
type ScopeFunc func(ev *event.Event) script.Scope

func NewFilterStage(name string, eng *script.Engine, prog *script.Program, scopeFn ScopeFunc, strict bool) *FilterStage {
	return &FilterStage{name: name, prog: prog, scopeFn: scopeFn, strict: strict, eng: eng}
}

func (s *FilterStage) Name() string { return s.name }

func (s *FilterStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	inv := s.eng.BeginInvocation(ev, nil)
	ok, err := s.prog.EvalBool(s.scopeFn(ev))
	if err != nil {
		if s.strict {
			return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeScriptEval, "filter", s.name, err.Error()).Wrap(err))
		}
		return Skip()
	}
	if inv.FatalErr != nil {
		return Fatal(inv.FatalErr)
	}
	if !ok {
		return Skip()
	}
	return Emit(ev)
}

// MatchStage evaluates the same boolean-expression contract as
// FilterStage but, rather than Skip on a non-match, tags the event
// ContextMatch and always emits it — the predicate ContextStage sits
// behind when --before-context/--after-context/--context is in effect,
// since context mode needs every event to flow through to fill its
// ring buffers, not just the ones that matched.
type MatchStage struct {
	name    string
	prog    *script.Program
	scopeFn ScopeFunc
	strict  bool
	eng     *script.Engine
}

func NewMatchStage(name string, eng *script.Engine, prog *script.Program, scopeFn ScopeFunc, strict bool) *MatchStage {
	return &MatchStage{name: name, prog: prog, scopeFn: scopeFn, strict: strict, eng: eng}
}

func (s *MatchStage) Name() string { return s.name }

func (s *MatchStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	inv := s.eng.BeginInvocation(ev, nil)
	ok, err := s.prog.EvalBool(s.scopeFn(ev))
	if err != nil {
		if s.strict {
			return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeScriptEval, "match", s.name, err.Error()).Wrap(err))
		}
		ok = false
	}
	if inv.FatalErr != nil {
		return Fatal(inv.FatalErr)
	}
	if ok {
		ev.ContextTag = event.ContextMatch
	}
	return Emit(ev)
}
