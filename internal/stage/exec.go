package stage

import (
	"context"
	"fmt"

	"kelora/internal/apperrors"
	"kelora/internal/event"
	"kelora/internal/script"
)

// compiledStatement is one statement from an --exec list, pre-split and
// pre-compiled at pipeline construction time (compile-once, execute-many).
type compiledStatement struct {
	path     string
	isAssign bool
	prog     *script.Program
}

// ExecStage evaluates a statement list with side effects on a working
// copy of e (spec.md §4.4.2): on success the working copy replaces the
// event, on failure the stage returns the original event unchanged. Exec
// may call emit_each(...), which enqueues successor events and suppresses
// the current event from this exec's own output.
type ExecStage struct {
	name    string
	eng     *script.Engine
	stmts   []compiledStatement
	scopeFn ScopeFunc
	strict  bool
}

// NewExecStage compiles src (a `;`-separated statement list) once via
// script.SplitStatements/ParseStatement, turning each piece into its own
// compiled CEL program.
func NewExecStage(name string, eng *script.Engine, src string, scopeFn ScopeFunc, strict bool) (*ExecStage, error) {
	var stmts []compiledStatement
	for _, raw := range script.SplitStatements(src) {
		st := script.ParseStatement(raw)
		prog, err := eng.Compile(st.Expr)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		stmts = append(stmts, compiledStatement{path: st.Path, isAssign: st.IsAssign, prog: prog})
	}
	return &ExecStage{name: name, eng: eng, stmts: stmts, scopeFn: scopeFn, strict: strict}, nil
}

func (s *ExecStage) Name() string { return s.name }

func (s *ExecStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	working := ev.Clone()
	inv := s.eng.BeginInvocation(working, nil)

	for _, st := range s.stmts {
		scope := s.scopeFn(working)
		val, err := st.prog.Eval(scope)
		if err != nil {
			return s.fail(ev, st.path, err)
		}
		if inv.FatalErr != nil {
			return Fatal(inv.FatalErr)
		}
		if st.isAssign {
			working.SetPath(st.path, val)
		}
	}

	if inv.Suppressed {
		return EmitMultiple(inv.Successors)
	}
	return Emit(working)
}

func (s *ExecStage) fail(original *event.Event, path string, err error) StageResult {
	if s.strict {
		op := "exec"
		if path != "" {
			op = "exec:" + path
		}
		return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeScriptEval, "exec", op, err.Error()).Wrap(err))
	}
	return Emit(original)
}
