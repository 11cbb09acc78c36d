package pipelineconfig

import (
	"kelora/internal/apperrors"
	"kelora/internal/event"
	"kelora/internal/script"
)

// RunBegin evaluates Config.Begin once before any event is read,
// producing the value bound to conf for every subsequent stage (spec.md
// §4.3 "conf (deep-frozen user config from --begin)"). A --begin error is
// always fatal regardless of --strict (spec.md §7: "script error in
// --begin/--end" is unconditionally in the Fatal tier), unlike a
// per-event --filter/--exec error, which only escalates under --strict.
//
// An empty Begin expression binds conf to an empty map, matching runs
// that never pass --begin at all.
func RunBegin(eng *script.Engine, c Config) (*confBinding, error) {
	b := newConfBinding()
	if c.Begin == "" {
		return b, nil
	}
	prog, err := eng.Compile(c.Begin)
	if err != nil {
		return nil, apperrors.New(apperrors.Fatal, apperrors.CodeScriptCompile, "pipelineconfig", "begin", err.Error()).Wrap(err)
	}
	inv := eng.BeginInvocation(nil, nil)
	v, err := prog.Eval(script.Scope{Conf: b.value})
	if err != nil {
		return nil, apperrors.New(apperrors.Fatal, apperrors.CodeScriptEval, "pipelineconfig", "begin", err.Error()).Wrap(err)
	}
	if inv.FatalErr != nil {
		return nil, inv.FatalErr
	}
	b.set(v)
	return b, nil
}

// RunEnd evaluates Config.End once after the source is drained and every
// worker has finished (spec.md §4.4.6/§7), seeing the final conf and
// cumulative metrics snapshot but no single event. Like --begin, any
// error here is unconditionally fatal.
func RunEnd(eng *script.Engine, c Config, conf *confBinding, metrics event.FieldValue) error {
	if c.End == "" {
		return nil
	}
	prog, err := eng.Compile(c.End)
	if err != nil {
		return apperrors.New(apperrors.Fatal, apperrors.CodeScriptCompile, "pipelineconfig", "end", err.Error()).Wrap(err)
	}
	inv := eng.BeginInvocation(nil, nil)
	_, err = prog.Eval(script.Scope{Conf: conf.value, Metrics: metrics})
	if err != nil {
		return apperrors.New(apperrors.Fatal, apperrors.CodeScriptEval, "pipelineconfig", "end", err.Error()).Wrap(err)
	}
	if inv.FatalErr != nil {
		return inv.FatalErr
	}
	return nil
}
