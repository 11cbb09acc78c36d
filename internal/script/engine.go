// Package script is Kelora's embedded scripting adapter (spec.md §4.3),
// implemented on top of google/cel-go — grounded on
// openshift-hyperfleet-hyperfleet-adapter's direct cel.Env/cel.Variable/
// env.Compile usage (internal/config_loader/validator.go) and reinforced
// by influxdb-telegraf's go.mod dependency on the same library.
//
// CEL compiles once into an AST and a Program (cel.Env.Compile +
// cel.Env.Program), matching the compile-once-execute-many contract
// directly. CEL has no assignment statement, so ExecStage layers a small
// statement splitter (exec.go) over individually-compiled CEL
// expressions; every expression actually evaluated is still 100% CEL
// syntax, preserving cost tracking and sandboxing.
package script

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"kelora/internal/event"
)

// Limits configures hardened-mode per-invocation resource limits
// (spec.md §4.3 "Hardening").
type Limits struct {
	Enabled       bool
	MaxOperations uint64
	MaxWallTime   time.Duration
	MaxCallDepth  int
	MaxStringLen  int
	MaxArrayLen   int
	MaxMapLen     int
}

// DefaultLimits is the --hardened preset named in spec.md §6.1.
func DefaultLimits() Limits {
	return Limits{
		Enabled:       true,
		MaxOperations: 1_000_000,
		MaxWallTime:   2 * time.Second,
		MaxCallDepth:  64,
		MaxStringLen:  1 << 20,
		MaxArrayLen:   100_000,
		MaxMapLen:     100_000,
	}
}

// Sandbox configures filesystem access gating (spec.md §4.3 "Sandbox").
type Sandbox struct {
	Enabled   bool
	AllowIO   bool // --allow-rhai-io: re-enables FS under sandbox
}

// Engine owns one compiled CEL environment plus the hardening/sandbox
// configuration cloned into every worker's Engine (spec.md §4.3 "Limits
// are cloned into worker engines").
//
// Each Engine owns its own *Invocation, a mutable side channel that the
// helper functions registered into its cel.Env close over. Because a
// worker is always synchronous with respect to its own scripting engine
// (spec.md §5), exactly one invocation is ever in flight on a given
// Engine, so there is no data race in helpers reading/writing eng.inv —
// but it does mean each worker needs its *own* Engine (its own cel.Env,
// not a shared one), which is what Clone builds.
type Engine struct {
	env     *cel.Env
	limits  Limits
	sandbox Sandbox
	inv     *Invocation

	helperFactories []HelperFactory
}

// NewEngine builds a CEL environment with the variable bindings named in
// spec.md §4.3 declared as dynamic-typed (their shape is only known at
// eval time) plus every helper function registered by the helpers
// sub-packages (passed in as HelperFactory values, keeping this package
// free of a hard dependency on any one helper category).
func NewEngine(limits Limits, sandbox Sandbox, helperFactories ...HelperFactory) (*Engine, error) {
	eng := &Engine{
		limits:          limits,
		sandbox:         sandbox,
		inv:             &Invocation{},
		helperFactories: helperFactories,
	}
	if err := eng.buildEnv(); err != nil {
		return nil, err
	}
	return eng, nil
}

func (eng *Engine) buildEnv() error {
	opts := []cel.EnvOption{
		cel.Variable("e", cel.DynType),
		cel.Variable("meta", cel.DynType),
		cel.Variable("conf", cel.DynType),
		cel.Variable("metrics", cel.DynType),
		cel.Variable("span_metrics", cel.DynType),
		cel.Variable("span_events", cel.DynType),
		cel.Variable("span_start", cel.DynType),
		cel.Variable("span_end", cel.DynType),
		cel.Variable("span_id", cel.DynType),
		cel.Variable("span_size", cel.DynType),
		cel.Variable("window", cel.DynType),
	}
	for _, factory := range eng.helperFactories {
		opts = append(opts, factory(eng)...)
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return fmt.Errorf("script: building CEL environment: %w", err)
	}
	eng.env = env
	return nil
}

// Clone returns a fresh Engine with its own cel.Env (and therefore its own
// Invocation side channel) for a new worker, carrying the same limits,
// sandbox configuration, and helper registrations.
func (eng *Engine) Clone() (*Engine, error) {
	return NewEngine(eng.limits, eng.sandbox, eng.helperFactories...)
}

// BeginInvocation resets the Engine's side channel before evaluating
// against ev, returning the Invocation so the calling stage can read back
// Successors/Suppressed/FatalErr after Eval returns.
func (eng *Engine) BeginInvocation(ev *event.Event, window []*event.Event) *Invocation {
	eng.inv.Event = ev
	eng.inv.Successors = nil
	eng.inv.Suppressed = false
	eng.inv.Window = window
	eng.inv.FatalErr = nil
	return eng.inv
}

// Invocation returns the engine's current side channel.
func (eng *Engine) Invocation() *Invocation { return eng.inv }

// SetTracker installs the per-worker tracker that track_* helpers write
// through to.
func (eng *Engine) SetTracker(t TrackerOps) { eng.inv.Tracker = t }

// SandboxAllowsIO reports whether filesystem helpers may run.
func (eng *Engine) SandboxAllowsIO() bool {
	return !eng.sandbox.Enabled || eng.sandbox.AllowIO
}

// Program is one compiled, reusable expression.
type Program struct {
	src string
	prg cel.Program
	eng *Engine
}

// Compile parses and type-checks src once, producing a reusable Program.
func (eng *Engine) Compile(src string) (*Program, error) {
	ast, iss := eng.env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("script: compile %q: %w", src, iss.Err())
	}
	progOpts := []cel.ProgramOption{cel.EvalOptions(cel.OptOptimize)}
	if eng.limits.Enabled {
		progOpts = append(progOpts, cel.EvalOptions(cel.OptTrackCost), cel.CostLimit(eng.limits.MaxOperations))
	}
	prg, err := eng.env.Program(ast, progOpts...)
	if err != nil {
		return nil, fmt.Errorf("script: building program for %q: %w", src, err)
	}
	return &Program{src: src, prg: prg, eng: eng}, nil
}

// Scope is the per-invocation variable binding set (spec.md §4.3 "Scope
// per invocation"). Only the fields relevant to the calling stage need to
// be populated; the rest evaluate to CEL's absent-variable error if
// referenced, which is the correct behavior for e.g. referencing
// span_metrics outside --span-close.
type Scope struct {
	Event       *event.Event
	Conf        event.FieldValue
	Metrics     event.FieldValue
	SpanMetrics event.FieldValue
	SpanEvents  event.FieldValue
	SpanStart   event.FieldValue
	SpanEnd     event.FieldValue
	SpanID      event.FieldValue
	SpanSize    event.FieldValue
	Window      event.FieldValue
}

func (s Scope) activation() map[string]interface{} {
	vars := map[string]interface{}{}
	if s.Event != nil {
		vars["e"] = FieldsToNative(s.Event.Fields)
		vars["meta"] = FieldsToNative(s.Event.Meta())
	}
	if !s.Conf.IsNull() {
		vars["conf"] = ToNative(s.Conf)
	}
	if !s.Metrics.IsNull() {
		vars["metrics"] = ToNative(s.Metrics)
	}
	if !s.SpanMetrics.IsNull() {
		vars["span_metrics"] = ToNative(s.SpanMetrics)
		vars["span_events"] = ToNative(s.SpanEvents)
		vars["span_start"] = ToNative(s.SpanStart)
		vars["span_end"] = ToNative(s.SpanEnd)
		vars["span_id"] = ToNative(s.SpanID)
		vars["span_size"] = ToNative(s.SpanSize)
	}
	if !s.Window.IsNull() {
		vars["window"] = ToNative(s.Window)
	}
	return vars
}

// Eval runs the program against scope, enforcing the wall-clock hardening
// limit via a context deadline (CEL's own CostLimit covers operation
// count; wall-clock is not natively tracked by the interpreter, so it is
// layered on top here with a cancellable goroutine, matching spec.md's
// "exceeded max wall time" named error).
func (p *Program) Eval(scope Scope) (event.FieldValue, error) {
	vars := scope.activation()

	if !p.eng.limits.Enabled || p.eng.limits.MaxWallTime <= 0 {
		return p.evalOnce(vars)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.eng.limits.MaxWallTime)
	defer cancel()

	type result struct {
		val event.FieldValue
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := p.evalOnce(vars)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		return event.Null, fmt.Errorf("script: exceeded max wall time (%s) evaluating %q", p.eng.limits.MaxWallTime, p.src)
	}
}

func (p *Program) evalOnce(vars map[string]interface{}) (event.FieldValue, error) {
	out, details, err := p.prg.Eval(vars)
	if err != nil {
		return event.Null, fmt.Errorf("script: evaluating %q: %w", p.src, err)
	}
	if p.eng.limits.Enabled && details != nil {
		if cost := details.ActualCost(); cost != nil && *cost > p.eng.limits.MaxOperations {
			return event.Null, fmt.Errorf("script: exceeded max operations (%d) evaluating %q", p.eng.limits.MaxOperations, p.src)
		}
	}
	return FromRefVal(out)
}

// EvalBool is a convenience for FilterStage: evaluates and requires a
// bool result, returning false and an error otherwise, matching the filter error-mapping
// rule (script error or non-bool result ⇒ false in resilient mode; the
// caller decides strict-mode Fatal from the returned error).
func (p *Program) EvalBool(scope Scope) (bool, error) {
	v, err := p.Eval(scope)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("script: expression %q did not evaluate to a boolean", p.src)
	}
	return b, nil
}
