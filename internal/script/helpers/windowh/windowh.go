// Package windowh registers the window_* helper contract of spec.md
// §4.3/§4.4.3: window_values(key), window_size(), window_events(). All
// three read Engine.Invocation().Window, which WindowStage populates
// before each evaluation and which is empty (not an error) outside a
// windowed stage, matching scripts that merely don't call these helpers.
package windowh

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"kelora/internal/event"
	"kelora/internal/script"
)

func Factory() script.HelperFactory {
	return func(eng *script.Engine) []cel.EnvOption {
		return []cel.EnvOption{
			cel.Function("window_values",
				cel.Overload("window_values_string", []*cel.Type{cel.StringType}, cel.ListType(cel.DynType),
					cel.UnaryBinding(func(kv ref.Val) ref.Val {
						key, ok := kv.Value().(string)
						if !ok {
							return types.NewErr("window_values: expected a string key")
						}
						out := make([]event.FieldValue, 0, len(eng.Invocation().Window))
						for _, ev := range eng.Invocation().Window {
							out = append(out, ev.Get(key))
						}
						return types.DefaultTypeAdapter.NativeToValue(script.ToNative(event.Array(out)))
					}))),
			cel.Function("window_size",
				cel.Overload("window_size", []*cel.Type{}, cel.IntType,
					cel.FunctionBinding(func(args ...ref.Val) ref.Val {
						return types.Int(len(eng.Invocation().Window))
					}))),
			cel.Function("window_events",
				cel.Overload("window_events", []*cel.Type{}, cel.ListType(cel.DynType),
					cel.FunctionBinding(func(args ...ref.Val) ref.Val {
						win := eng.Invocation().Window
						out := make([]event.FieldValue, 0, len(win))
						for _, ev := range win {
							out = append(out, event.Map(ev.Fields))
						}
						return types.DefaultTypeAdapter.NativeToValue(script.ToNative(event.Array(out)))
					}))),
		}
	}
}
