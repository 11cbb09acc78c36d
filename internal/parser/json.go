package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"kelora/internal/event"
)

// JSONParser parses one JSON object per line (spec.md §6.4: "one object
// per line; nested objects preserved; numeric values preserved as int
// when representable as i64, else f64"). It decodes via json.Decoder
// token-by-token rather than into map[string]interface{} because Go maps
// do not preserve key order, and spec.md §3 requires first-insertion
// field ordering to survive a parse/emit round trip.
type JSONParser struct{}

func NewJSONParser() *JSONParser { return &JSONParser{} }

func (p *JSONParser) Name() string { return "json" }

func (p *JSONParser) Parse(line string, filename string, lineNumber int) (*event.Event, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(line)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: "json", Reason: err.Error()}
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: "json", Reason: "top-level value is not an object"}
	}

	om, err := decodeObjectBody(dec)
	if err != nil {
		return nil, &ParseError{Filename: filename, LineNumber: lineNumber, Format: "json", Reason: err.Error()}
	}

	e := event.New(filename, lineNumber, line)
	for _, k := range om.Keys() {
		v, _ := om.Get(k)
		e.Set(k, v)
	}
	return e, nil
}

// decodeObjectBody reads key/value pairs until the matching '}', assuming
// the opening '{' has already been consumed.
func decodeObjectBody(dec *json.Decoder) (*event.OrderedMap, error) {
	om := event.NewOrderedMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string")
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		om.Set(key, val)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return om, nil
}

func decodeArrayBody(dec *json.Decoder) ([]event.FieldValue, error) {
	var out []event.FieldValue
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, err
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (event.FieldValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return event.Null, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			om, err := decodeObjectBody(dec)
			if err != nil {
				return event.Null, err
			}
			return event.Map(om), nil
		case '[':
			arr, err := decodeArrayBody(dec)
			if err != nil {
				return event.Null, err
			}
			return event.Array(arr), nil
		default:
			return event.Null, fmt.Errorf("unexpected delimiter %v", t)
		}
	case nil:
		return event.Null, nil
	case bool:
		return event.Bool(t), nil
	case string:
		return event.String(t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return event.Int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return event.Null, err
		}
		return event.Float(f), nil
	default:
		return event.Null, fmt.Errorf("unsupported JSON token type %T", tok)
	}
}

// ToJSON renders an event's fields back into a JSON object, preserving
// field order, for the round-trip law in spec.md §8.
func ToJSON(e *event.Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		v := e.Get(k)
		vb, err := fieldValueToJSON(v)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func fieldValueToJSON(v event.FieldValue) ([]byte, error) {
	switch v.Kind() {
	case event.KindNull:
		return []byte("null"), nil
	case event.KindBool:
		b, _ := v.AsBool()
		return json.Marshal(b)
	case event.KindInt:
		n, _ := v.AsInt()
		return json.Marshal(n)
	case event.KindFloat:
		f, _ := v.AsFloat()
		return json.Marshal(f)
	case event.KindString:
		s, _ := v.AsString()
		return json.Marshal(s)
	case event.KindDateTime:
		t, _ := v.AsDateTime()
		return json.Marshal(t)
	case event.KindArray:
		arr, _ := v.AsArray()
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := fieldValueToJSON(e)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case event.KindMap:
		m, _ := v.AsMap()
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range m.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			fv, _ := m.Get(k)
			vb, err := fieldValueToJSON(fv)
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}
