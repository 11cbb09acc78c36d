// Package emith registers emit_each, spec.md §4.6's helper for turning
// one event into zero or more successor events. It writes to the
// Engine's current Invocation rather than returning a value the caller
// would otherwise have no way to thread back into the stage's
// EmitMultiple result.
package emith

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
			cel.Function("emit_each",
				cel.Overload("emit_each_list", []*cel.Type{cel.ListType(cel.DynType)}, cel.BoolType,
					cel.UnaryBinding(func(items ref.Val) ref.Val {
						return emitEach(eng, items, event.Null)
					})),
				cel.Overload("emit_each_list_dyn", []*cel.Type{cel.ListType(cel.DynType), cel.DynType}, cel.BoolType,
					cel.BinaryBinding(func(items, base ref.Val) ref.Val {
						baseFV, err := script.FromRefVal(base)
						if err != nil {
							return types.NewErr("emit_each: invalid base overlay: %v", err)
						}
						return emitEach(eng, items, baseFV)
					})),
			),
		}
	}
}

// emitEach builds one successor event per item, overlaying base (if any)
// underneath the item so keys already present in the current event keep
// their position (spec.md §4.6's field-ordering rule implemented by
// OrderedMap.Merge), then records them on the invocation and marks the
// current event suppressed — even when items is empty, per the idempotence
// rule in spec.md's edge cases.
func emitEach(eng *script.Engine, items ref.Val, base event.FieldValue) ref.Val {
	itemsFV, err := script.FromRefVal(items)
	if err != nil {
		return types.NewErr("emit_each: %v", err)
	}
	arr, ok := itemsFV.AsArray()
	if !ok {
		return types.NewErr("emit_each: expected a list of maps")
	}

	inv := eng.Invocation()
	successors := make([]*event.Event, 0, len(arr))
	for _, item := range arr {
		ev := cloneCurrentEvent(inv.Event)
		if baseMap, ok := base.AsMap(); ok {
			ev.Fields.Merge(baseMap)
		}
		if itemMap, ok := item.AsMap(); ok {
			ev.Fields.Merge(itemMap)
		}
		successors = append(successors, ev)
	}
	inv.Successors = append(inv.Successors, successors...)
	inv.Suppressed = true
	return types.True
}

func cloneCurrentEvent(src *event.Event) *event.Event {
	ev := event.New(src.Filename, src.LineNumber, src.RawLine)
	ev.Fields = event.NewOrderedMap()
	ev.Fields.Merge(src.Fields)
	return ev
}
