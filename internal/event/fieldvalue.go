// Package event defines the Event and FieldValue data model that flows
// through the entire Kelora pipeline: parser output, script scope, stage
// input/output, and formatter input all speak this package's types.
package event

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tags the concrete type held by a FieldValue.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDateTime
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDateTime:
		return "datetime"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// FieldValue is the tagged sum of every value a field may hold (spec.md
// §3). Null doubles as the "unset" sentinel exposed to scripts: e.has("k")
// is false iff the key is missing or its value is Null.
type FieldValue struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	arr  []FieldValue
	m    *OrderedMap
}

// Null is the zero value of FieldValue.
var Null = FieldValue{kind: KindNull}

func Bool(v bool) FieldValue      { return FieldValue{kind: KindBool, b: v} }
func Int(v int64) FieldValue      { return FieldValue{kind: KindInt, i: v} }
func Float(v float64) FieldValue  { return FieldValue{kind: KindFloat, f: v} }
func String(v string) FieldValue  { return FieldValue{kind: KindString, s: v} }
func DateTime(v time.Time) FieldValue {
	return FieldValue{kind: KindDateTime, t: v}
}
func Array(v []FieldValue) FieldValue { return FieldValue{kind: KindArray, arr: v} }
func Map(v *OrderedMap) FieldValue    { return FieldValue{kind: KindMap, m: v} }

func (v FieldValue) Kind() Kind   { return v.kind }
func (v FieldValue) IsNull() bool { return v.kind == KindNull }

func (v FieldValue) AsBool() (bool, bool)          { return v.b, v.kind == KindBool }
func (v FieldValue) AsInt() (int64, bool)          { return v.i, v.kind == KindInt }
func (v FieldValue) AsFloat() (float64, bool)      { return v.f, v.kind == KindFloat }
func (v FieldValue) AsString() (string, bool)      { return v.s, v.kind == KindString }
func (v FieldValue) AsDateTime() (time.Time, bool) { return v.t, v.kind == KindDateTime }
func (v FieldValue) AsArray() ([]FieldValue, bool)  { return v.arr, v.kind == KindArray }
func (v FieldValue) AsMap() (*OrderedMap, bool)     { return v.m, v.kind == KindMap }

// Numeric reports whether the value is Int or Float and returns it widened
// to float64, alongside whether it was an Int originally.
func (v FieldValue) Numeric() (f float64, isInt bool, ok bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true, true
	case KindFloat:
		return v.f, false, true
	default:
		return 0, false, false
	}
}

// ToIntOr converts v to an int64, accepting radix-prefixed and
// underscore-separated string representations, or returns def.
func (v FieldValue) ToIntOr(def int64) int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString:
		n, err := parseInt(v.s)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// ToFloatOr converts v to a float64, accepting NaN/Infinity and scientific
// notation string representations, or returns def.
func (v FieldValue) ToFloatOr(def float64) float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString:
		f, err := parseFloat(v.s)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// ToBoolOr converts v to a bool using common truthy/falsy string spellings,
// or returns def.
func (v FieldValue) ToBoolOr(def bool) bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true", "t", "yes", "y", "1", "on":
			return true
		case "false", "f", "no", "n", "0", "off":
			return false
		default:
			return def
		}
	default:
		return def
	}
}

// ToString renders v as a human-readable string; it never fails.
func (v FieldValue) ToString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	case KindDateTime:
		return v.t.Format(time.RFC3339Nano)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.ToString()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KindMap:
		if v.m == nil {
			return "{}"
		}
		parts := make([]string, 0, v.m.Len())
		for _, k := range v.m.Keys() {
			val, _ := v.m.Get(k)
			parts = append(parts, k+":"+val.ToString())
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan":
		return math.NaN(), nil
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	s = strings.ReplaceAll(s, "_", "")

	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base = 16
		s = s[2:]
	case strings.HasPrefix(s, "0o") || strings.HasPrefix(s, "0O"):
		base = 8
		s = s[2:]
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		base = 2
		s = s[2:]
	}

	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}

// Equal reports deep equality between two FieldValues, comparing Map
// entries irrespective of insertion order (order is a presentation
// concern, not an equality concern).
func Equal(a, b FieldValue) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case KindString:
		return a.s == b.s
	case KindDateTime:
		return a.t.Equal(b.t)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if a.m.Len() != b.m.Len() {
			return false
		}
		for _, k := range a.m.Keys() {
			av, _ := a.m.Get(k)
			bv, ok := b.m.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone performs a deep copy; Array and Map values never share backing
// storage with the original after a clone.
func Clone(v FieldValue) FieldValue {
	switch v.kind {
	case KindArray:
		out := make([]FieldValue, len(v.arr))
		for i, e := range v.arr {
			out[i] = Clone(e)
		}
		return Array(out)
	case KindMap:
		return Map(v.m.Clone())
	default:
		return v
	}
}

func (v FieldValue) GoString() string {
	return fmt.Sprintf("FieldValue(%s:%s)", v.kind, v.ToString())
}
