package script

import (
	"fmt"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"kelora/internal/event"
)

// ToNative converts a FieldValue into the plain Go value CEL's default
// type adapter understands (map[string]interface{}, []interface{}, and
// scalar primitives), so that Program.Eval's activation map never has to
// know about FieldValue directly.
func ToNative(v event.FieldValue) interface{} {
	switch v.Kind() {
	case event.KindNull:
		return nil
	case event.KindBool:
		b, _ := v.AsBool()
		return b
	case event.KindInt:
		n, _ := v.AsInt()
		return n
	case event.KindFloat:
		f, _ := v.AsFloat()
		return f
	case event.KindString:
		s, _ := v.AsString()
		return s
	case event.KindDateTime:
		t, _ := v.AsDateTime()
		return t
	case event.KindArray:
		arr, _ := v.AsArray()
		out := make([]interface{}, len(arr))
		for i, e := range arr {
			out[i] = ToNative(e)
		}
		return out
	case event.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]interface{}, m.Len())
		for _, k := range m.Keys() {
			fv, _ := m.Get(k)
			out[k] = ToNative(fv)
		}
		return out
	default:
		return nil
	}
}

// FieldsToNative renders an OrderedMap's fields as a native map for use as
// a CEL activation variable (the mutable `e` binding, spec.md §4.3).
func FieldsToNative(m *event.OrderedMap) map[string]interface{} {
	out := make(map[string]interface{}, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out[k] = ToNative(v)
	}
	return out
}

// FromRefVal converts a CEL evaluation result back into a FieldValue.
func FromRefVal(v ref.Val) (event.FieldValue, error) {
	if v == nil || v == types.NullValue {
		return event.Null, nil
	}
	switch val := v.(type) {
	case types.Bool:
		return event.Bool(bool(val)), nil
	case types.Int:
		return event.Int(int64(val)), nil
	case types.Uint:
		return event.Int(int64(val)), nil
	case types.Double:
		return event.Float(float64(val)), nil
	case types.String:
		return event.String(string(val)), nil
	case types.Bytes:
		return event.String(string(val)), nil
	}

	if l, ok := v.(traits.Lister); ok {
		sz := int(l.Size().(types.Int))
		out := make([]event.FieldValue, 0, sz)
		it := l.Iterator()
		for it.HasNext() == types.True {
			elem, err := FromRefVal(it.Next())
			if err != nil {
				return event.Null, err
			}
			out = append(out, elem)
		}
		return event.Array(out), nil
	}

	if m, ok := v.(traits.Mapper); ok {
		om := event.NewOrderedMap()
		it := m.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			keyStr, err := refValToMapKey(k)
			if err != nil {
				return event.Null, err
			}
			vv, found := m.Find(k)
			if !found {
				continue
			}
			fv, err := FromRefVal(vv)
			if err != nil {
				return event.Null, err
			}
			om.Set(keyStr, fv)
		}
		return event.Map(om), nil
	}

	if err, ok := v.(*types.Err); ok {
		return event.Null, err.Value().(error)
	}

	native := v.Value()
	switch n := native.(type) {
	case string:
		return event.String(n), nil
	case bool:
		return event.Bool(n), nil
	case int64:
		return event.Int(n), nil
	case float64:
		return event.Float(n), nil
	case nil:
		return event.Null, nil
	default:
		return event.Null, fmt.Errorf("script: unsupported result type %T", native)
	}
}

func refValToMapKey(k ref.Val) (string, error) {
	switch t := k.(type) {
	case types.String:
		return string(t), nil
	default:
		return fmt.Sprintf("%v", k.Value()), nil
	}
}
