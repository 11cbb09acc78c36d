// Package collections registers the array/map helper contract of
// spec.md §4.3 not already covered by cel-go's own ext.Lists/ext.Sets
// bundles (stdext): sorted_by, intersect, difference, union, pluck,
// contains_any, starts_with_any, push, pop. CEL lists are immutable, so
// push/pop return a new list rather than mutating in place.
package collections

import (
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"kelora/internal/event"
	"kelora/internal/script"
)

func Factory() script.HelperFactory {
	return func(eng *script.Engine) []cel.EnvOption {
		return []cel.EnvOption{
			cel.Function("push",
				cel.Overload("push_list_dyn", []*cel.Type{cel.ListType(cel.DynType), cel.DynType}, cel.ListType(cel.DynType),
					cel.BinaryBinding(push))),
			cel.Function("pop",
				cel.Overload("pop_list", []*cel.Type{cel.ListType(cel.DynType)}, cel.ListType(cel.DynType),
					cel.UnaryBinding(pop))),
			cel.Function("sorted_by",
				cel.Overload("sorted_by_list_string", []*cel.Type{cel.ListType(cel.DynType), cel.StringType}, cel.ListType(cel.DynType),
					cel.BinaryBinding(sortedBy))),
			cel.Function("intersect",
				cel.Overload("intersect_list_list", []*cel.Type{cel.ListType(cel.DynType), cel.ListType(cel.DynType)}, cel.ListType(cel.DynType),
					cel.BinaryBinding(setOp(intersect)))),
			cel.Function("difference",
				cel.Overload("difference_list_list", []*cel.Type{cel.ListType(cel.DynType), cel.ListType(cel.DynType)}, cel.ListType(cel.DynType),
					cel.BinaryBinding(setOp(difference)))),
			cel.Function("union",
				cel.Overload("union_list_list", []*cel.Type{cel.ListType(cel.DynType), cel.ListType(cel.DynType)}, cel.ListType(cel.DynType),
					cel.BinaryBinding(setOp(union)))),
			cel.Function("pluck",
				cel.Overload("pluck_list_string", []*cel.Type{cel.ListType(cel.DynType), cel.StringType}, cel.ListType(cel.DynType),
					cel.BinaryBinding(pluck))),
			cel.Function("contains_any",
				cel.Overload("contains_any_list_list", []*cel.Type{cel.ListType(cel.DynType), cel.ListType(cel.DynType)}, cel.BoolType,
					cel.BinaryBinding(containsAny))),
			cel.Function("starts_with_any",
				cel.Overload("starts_with_any_string_list", []*cel.Type{cel.StringType, cel.ListType(cel.DynType)}, cel.BoolType,
					cel.BinaryBinding(startsWithAny))),
		}
	}
}

func toFieldValues(v ref.Val) ([]event.FieldValue, error) {
	fv, err := script.FromRefVal(v)
	if err != nil {
		return nil, err
	}
	arr, ok := fv.AsArray()
	if !ok {
		return nil, errNotList
	}
	return arr, nil
}

var errNotList = &typeErr{"expected a list"}

type typeErr struct{ msg string }

func (e *typeErr) Error() string { return e.msg }

func listVal(items []event.FieldValue) ref.Val {
	return types.DefaultTypeAdapter.NativeToValue(script.ToNative(event.Array(items)))
}

func push(l, item ref.Val) ref.Val {
	arr, err := toFieldValues(l)
	if err != nil {
		return types.NewErr("push: %v", err)
	}
	itemFV, err := script.FromRefVal(item)
	if err != nil {
		return types.NewErr("push: %v", err)
	}
	out := append(append([]event.FieldValue(nil), arr...), itemFV)
	return listVal(out)
}

func pop(l ref.Val) ref.Val {
	arr, err := toFieldValues(l)
	if err != nil {
		return types.NewErr("pop: %v", err)
	}
	if len(arr) == 0 {
		return listVal(arr)
	}
	return listVal(arr[:len(arr)-1])
}

func sortedBy(l, key ref.Val) ref.Val {
	arr, err := toFieldValues(l)
	if err != nil {
		return types.NewErr("sorted_by: %v", err)
	}
	keyName, ok := key.Value().(string)
	if !ok {
		return types.NewErr("sorted_by: key must be a string")
	}
	out := append([]event.FieldValue(nil), arr...)
	sort.SliceStable(out, func(i, j int) bool {
		return fieldAt(out[i], keyName) < fieldAt(out[j], keyName)
	})
	return listVal(out)
}

func fieldAt(v event.FieldValue, key string) string {
	m, ok := v.AsMap()
	if !ok {
		return ""
	}
	fv, ok := m.Get(key)
	if !ok {
		return ""
	}
	return fv.ToString()
}

func setOp(combine func(a, b map[string]event.FieldValue, order []string) []event.FieldValue) func(ref.Val, ref.Val) ref.Val {
	return func(av, bv ref.Val) ref.Val {
		a, err := toFieldValues(av)
		if err != nil {
			return types.NewErr("set op: %v", err)
		}
		b, err := toFieldValues(bv)
		if err != nil {
			return types.NewErr("set op: %v", err)
		}
		aMap, order := indexBy(a)
		bMap, _ := indexBy(b)
		return listVal(combine(aMap, bMap, order))
	}
}

func indexBy(items []event.FieldValue) (map[string]event.FieldValue, []string) {
	m := make(map[string]event.FieldValue, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		k := it.ToString()
		if _, seen := m[k]; !seen {
			order = append(order, k)
		}
		m[k] = it
	}
	return m, order
}

func intersect(a, b map[string]event.FieldValue, order []string) []event.FieldValue {
	var out []event.FieldValue
	for _, k := range order {
		if _, ok := b[k]; ok {
			out = append(out, a[k])
		}
	}
	return out
}

func difference(a, b map[string]event.FieldValue, order []string) []event.FieldValue {
	var out []event.FieldValue
	for _, k := range order {
		if _, ok := b[k]; !ok {
			out = append(out, a[k])
		}
	}
	return out
}

func union(a, b map[string]event.FieldValue, order []string) []event.FieldValue {
	out := make([]event.FieldValue, 0, len(order))
	for _, k := range order {
		out = append(out, a[k])
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func pluck(l, key ref.Val) ref.Val {
	arr, err := toFieldValues(l)
	if err != nil {
		return types.NewErr("pluck: %v", err)
	}
	keyName, ok := key.Value().(string)
	if !ok {
		return types.NewErr("pluck: key must be a string")
	}
	out := make([]event.FieldValue, 0, len(arr))
	for _, it := range arr {
		m, ok := it.AsMap()
		if !ok {
			out = append(out, event.Null)
			continue
		}
		v, ok := m.Get(keyName)
		if !ok {
			v = event.Null
		}
		out = append(out, v)
	}
	return listVal(out)
}

func containsAny(l, candidates ref.Val) ref.Val {
	arr, err := toFieldValues(l)
	if err != nil {
		return types.NewErr("contains_any: %v", err)
	}
	cands, err := toFieldValues(candidates)
	if err != nil {
		return types.NewErr("contains_any: %v", err)
	}
	set := make(map[string]struct{}, len(arr))
	for _, v := range arr {
		set[v.ToString()] = struct{}{}
	}
	for _, c := range cands {
		if _, ok := set[c.ToString()]; ok {
			return types.True
		}
	}
	return types.False
}

func startsWithAny(s, prefixes ref.Val) ref.Val {
	str, ok := s.Value().(string)
	if !ok {
		return types.NewErr("starts_with_any: expected a string")
	}
	arr, err := toFieldValues(prefixes)
	if err != nil {
		return types.NewErr("starts_with_any: %v", err)
	}
	for _, p := range arr {
		prefix, _ := p.AsString()
		if len(str) >= len(prefix) && str[:len(prefix)] == prefix {
			return types.True
		}
	}
	return types.False
}
