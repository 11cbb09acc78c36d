// Package tracking registers the track_* helper contract of spec.md
// §4.3/§4.5. Every helper here is a thin pass-through to the Engine's
// current Invocation.Tracker (installed per worker by Engine.SetTracker),
// converting tracker binding-mismatch errors into CEL error values so the
// calling stage's existing strict/resilient error-mapping rule applies
// uniformly to script errors from any source.
package tracking

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"kelora/internal/script"
)

func Factory() script.HelperFactory {
	return func(eng *script.Engine) []cel.EnvOption {
		tr := func() script.TrackerOps { return eng.Invocation().Tracker }

		return []cel.EnvOption{
			cel.Function("track_count",
				cel.Overload("track_count_string", []*cel.Type{cel.StringType}, cel.BoolType,
					cel.UnaryBinding(func(k ref.Val) ref.Val {
						key, ok := k.Value().(string)
						if !ok {
							return types.NewErr("track_count: expected a string key")
						}
						if err := tr().Count(key); err != nil {
							return types.NewErr("track_count: %v", err)
						}
						return types.True
					}))),
			cel.Function("track_sum",
				cel.Overload("track_sum_string_dyn", []*cel.Type{cel.StringType, cel.DynType}, cel.BoolType,
					cel.BinaryBinding(numericTrack(func(key string, x float64, isInt bool) error { return tr().Sum(key, x, isInt) })))),
			cel.Function("track_min",
				cel.Overload("track_min_string_dyn", []*cel.Type{cel.StringType, cel.DynType}, cel.BoolType,
					cel.BinaryBinding(numericTrack(func(key string, x float64, isInt bool) error { return tr().Min(key, x, isInt) })))),
			cel.Function("track_max",
				cel.Overload("track_max_string_dyn", []*cel.Type{cel.StringType, cel.DynType}, cel.BoolType,
					cel.BinaryBinding(numericTrack(func(key string, x float64, isInt bool) error { return tr().Max(key, x, isInt) })))),
			cel.Function("track_avg",
				cel.Overload("track_avg_string_dyn", []*cel.Type{cel.StringType, cel.DynType}, cel.BoolType,
					cel.BinaryBinding(numericTrack(func(key string, x float64, isInt bool) error { return tr().Avg(key, x) })))),
			cel.Function("track_percentile",
				cel.Overload("track_percentile_string_dyn", []*cel.Type{cel.StringType, cel.DynType}, cel.BoolType,
					cel.BinaryBinding(numericTrack(func(key string, x float64, isInt bool) error { return tr().Percentile(key, x) })))),
			cel.Function("track_unique",
				cel.Overload("track_unique_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
					cel.BinaryBinding(stringTrack(func(key, x string) error { return tr().Unique(key, x) })))),
			cel.Function("track_bucket",
				cel.Overload("track_bucket_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
					cel.BinaryBinding(stringTrack(func(key, x string) error { return tr().Bucket(key, x) })))),
			cel.Function("track_list",
				cel.Overload("track_list_string_dyn", []*cel.Type{cel.StringType, cel.DynType}, cel.BoolType,
					cel.BinaryBinding(func(k, xv ref.Val) ref.Val {
						key, ok := k.Value().(string)
						if !ok {
							return types.NewErr("track_list: expected a string key")
						}
						fv, err := script.FromRefVal(xv)
						if err != nil {
							return types.NewErr("track_list: %v", err)
						}
						if err := tr().List(key, fv, 1000); err != nil {
							return types.NewErr("track_list: %v", err)
						}
						return types.True
					}))),
			cel.Function("track_top",
				cel.Overload("track_top_string_string_dyn_int", []*cel.Type{cel.StringType, cel.StringType, cel.DynType, cel.IntType}, cel.BoolType,
					cel.FunctionBinding(topBottomTrack(tr, true)))),
			cel.Function("track_bottom",
				cel.Overload("track_bottom_string_string_dyn_int", []*cel.Type{cel.StringType, cel.StringType, cel.DynType, cel.IntType}, cel.BoolType,
					cel.FunctionBinding(topBottomTrack(tr, false)))),
			cel.Function("track_error",
				cel.Overload("track_error_string_string_string", []*cel.Type{cel.StringType, cel.StringType, cel.StringType}, cel.BoolType,
					cel.FunctionBinding(func(args ...ref.Val) ref.Val {
						if len(args) != 3 {
							return types.NewErr("track_error: expected (key, message, sample)")
						}
						key, ok1 := args[0].Value().(string)
						msg, ok2 := args[1].Value().(string)
						sample, ok3 := args[2].Value().(string)
						if !ok1 || !ok2 || !ok3 {
							return types.NewErr("track_error: expected (string, string, string)")
						}
						if err := tr().ErrorExample(key, msg, sample, 100); err != nil {
							return types.NewErr("track_error: %v", err)
						}
						return types.True
					}))),
		}
	}
}

func numeric(v ref.Val) (f float64, isInt bool, ok bool) {
	switch n := v.Value().(type) {
	case int64:
		return float64(n), true, true
	case float64:
		return n, false, true
	default:
		return 0, false, false
	}
}

func numericTrack(fn func(key string, x float64, isInt bool) error) func(ref.Val, ref.Val) ref.Val {
	return func(kv, xv ref.Val) ref.Val {
		key, ok := kv.Value().(string)
		if !ok {
			return types.NewErr("track: expected a string key")
		}
		x, isInt, ok := numeric(xv)
		if !ok {
			return types.NewErr("track: expected a numeric value")
		}
		if err := fn(key, x, isInt); err != nil {
			return types.NewErr("track: %v", err)
		}
		return types.True
	}
}

func stringTrack(fn func(key, x string) error) func(ref.Val, ref.Val) ref.Val {
	return func(kv, xv ref.Val) ref.Val {
		key, ok1 := kv.Value().(string)
		x, ok2 := xv.Value().(string)
		if !ok1 || !ok2 {
			return types.NewErr("track: expected (string key, string value)")
		}
		if err := fn(key, x); err != nil {
			return types.NewErr("track: %v", err)
		}
		return types.True
	}
}

func topBottomTrack(tr func() script.TrackerOps, desc bool) func(...ref.Val) ref.Val {
	return func(args ...ref.Val) ref.Val {
		if len(args) != 4 {
			return types.NewErr("track_top/track_bottom: expected (key, label, score, n)")
		}
		key, ok1 := args[0].Value().(string)
		label, ok2 := args[1].Value().(string)
		score, _, ok3 := numeric(args[2])
		n, ok4 := args[3].Value().(int64)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return types.NewErr("track_top/track_bottom: expected (string, string, numeric, int)")
		}
		if err := tr().TopN(key, label, score, int(n), desc); err != nil {
			return types.NewErr("track_top/track_bottom: %v", err)
		}
		return types.True
	}
}
