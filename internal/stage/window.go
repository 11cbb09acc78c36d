package stage

import (
	"context"

	"kelora/internal/apperrors"
	"kelora/internal/event"
	"kelora/internal/script"
)

// WindowStage maintains a ring buffer of the last N emitted events per
// worker (spec.md §4.4.3). Before evaluating the user's windowed
// expression for e, the buffer is exposed as `window` (oldest first,
// excluding e); after a successful evaluation e is appended, evicting
// the oldest entry once over capacity.
type WindowStage struct {
	name    string
	eng     *script.Engine
	prog    *script.Program
	scopeFn ScopeFunc
	strict  bool
	cap     int
	buf     []*event.Event
}

func NewWindowStage(name string, eng *script.Engine, prog *script.Program, scopeFn ScopeFunc, strict bool, capacity int) *WindowStage {
	return &WindowStage{name: name, eng: eng, prog: prog, scopeFn: scopeFn, strict: strict, cap: capacity}
}

func (s *WindowStage) Name() string { return s.name }

func (s *WindowStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	inv := s.eng.BeginInvocation(ev, s.buf)
	scope := s.scopeFn(ev)
	scope.Window = event.Array(windowFieldValues(s.buf))

	_, err := s.prog.Eval(scope)
	if err != nil {
		if s.strict {
			return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeScriptEval, "window", s.name, err.Error()).Wrap(err))
		}
		return Emit(ev)
	}
	if inv.FatalErr != nil {
		return Fatal(inv.FatalErr)
	}

	s.buf = append(s.buf, ev)
	if len(s.buf) > s.cap {
		s.buf = s.buf[len(s.buf)-s.cap:]
	}

	if inv.Suppressed {
		return EmitMultiple(inv.Successors)
	}
	return Emit(ev)
}

func windowFieldValues(buf []*event.Event) []event.FieldValue {
	out := make([]event.FieldValue, len(buf))
	for i, e := range buf {
		out[i] = event.Map(e.Fields)
	}
	return out
}
