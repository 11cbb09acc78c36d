package sink

import (
	"bytes"
	"encoding/json"

	"kelora/internal/event"
)

// JSONFormatter renders one JSON object per line (spec.md §6.1 "json
// lines"), preserving field insertion order the way
// formatJSONOutput builds its output map, generalized from a handful of
// hardcoded keys into whatever KeyProjection selects.
type JSONFormatter struct {
	Projection KeyProjection
	Timestamps TimestampDisplay
}

func (f *JSONFormatter) Format(ev *event.Event) ([]byte, error) {
	obj := orderedJSON{pairs: f.Projection.Project(ev), ts: f.Timestamps}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	b = append(b, '\n')
	return b, nil
}

// orderedJSON implements json.Marshaler to emit KV pairs in projection
// order, since encoding/json's own map support sorts keys alphabetically
// and would scramble spec.md §3's "field ordering follows first-insertion
// order" invariant.
type orderedJSON struct {
	pairs []KV
	ts    TimestampDisplay
}

func (o orderedJSON) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range o.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(toJSONValue(kv.Value, kv.Key, o.ts))
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// toJSONValue converts one FieldValue into a value encoding/json knows
// how to marshal natively, recursing into arrays/maps and rendering
// KindDateTime through TimestampDisplay (spec.md §6.1 "--format-ts per
// field") rather than Go's default RFC3339 time.Time encoding.
func toJSONValue(v event.FieldValue, key string, ts TimestampDisplay) interface{} {
	switch v.Kind() {
	case event.KindNull:
		return nil
	case event.KindBool:
		b, _ := v.AsBool()
		return b
	case event.KindInt:
		i, _ := v.AsInt()
		return i
	case event.KindFloat:
		f, _ := v.AsFloat()
		return f
	case event.KindString:
		s, _ := v.AsString()
		return s
	case event.KindDateTime:
		t, _ := v.AsDateTime()
		return ts.render(key, t)
	case event.KindArray:
		arr, _ := v.AsArray()
		out := make([]interface{}, len(arr))
		for i, e := range arr {
			out[i] = toJSONValue(e, key, ts)
		}
		return out
	case event.KindMap:
		m, _ := v.AsMap()
		pairs := make([]KV, 0, m.Len())
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			pairs = append(pairs, KV{Key: k, Value: val})
		}
		return orderedJSON{pairs: pairs, ts: ts}
	default:
		return nil
	}
}
