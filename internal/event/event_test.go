package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasVsGetPath(t *testing.T) {
	e := New("f.log", 1, `{"a":1}`)
	e.Set("a", Int(1))
	e.Set("b", Null)

	assert.True(t, e.Has("a"))
	assert.False(t, e.Has("b"), "present-but-null must read as absent")
	assert.False(t, e.Has("missing"))

	// e.has(k) == false iff e.get_path(k, Null) == Null
	assert.Equal(t, e.Has("a"), !GetPath(Map(e.Fields), "a", Null).IsNull())
	assert.Equal(t, e.Has("b"), !GetPath(Map(e.Fields), "b", Null).IsNull())
}

func TestGetPathNestedAndNegativeIndex(t *testing.T) {
	inner := NewOrderedMap()
	inner.Set("d", Int(42))
	arr := Array([]FieldValue{Int(1), Int(2), Map(inner)})
	m := NewOrderedMap()
	m.Set("b", Array([]FieldValue{String("x"), Map(func() *OrderedMap {
		om := NewOrderedMap()
		om.Set("c", arr)
		return om
	}())}))
	root := Map(m)

	got := GetPath(root, "b[1].c[-1].d", Null)
	n, ok := got.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	assert.False(t, HasPath(root, "b[1].c[-1].missing"))
	assert.Equal(t, int64(7), GetPath(root, "nope", Int(7)).ToIntOr(0))
}

func TestFieldOrderingPreservedAcrossCloneAndMerge(t *testing.T) {
	e := New("", 0, "")
	e.Set("z", Int(1))
	e.Set("a", Int(2))
	e.Set("m", Int(3))

	clone := e.Clone()
	assert.Equal(t, []string{"z", "a", "m"}, clone.Keys())

	overlay := NewOrderedMap()
	overlay.Set("a", Int(99))  // existing key: value updates, position unchanged
	overlay.Set("new", Int(4)) // new key: appended
	clone.Fields.Merge(overlay)

	assert.Equal(t, []string{"z", "a", "m", "new"}, clone.Keys())
	v, _ := clone.Fields.Get("a")
	assert.Equal(t, int64(99), v.ToIntOr(-1))
}

func TestToIntOrRadixAndUnderscores(t *testing.T) {
	assert.Equal(t, int64(255), String("0xFF").ToIntOr(0))
	assert.Equal(t, int64(8), String("0o10").ToIntOr(0))
	assert.Equal(t, int64(5), String("0b101").ToIntOr(0))
	assert.Equal(t, int64(1000000), String("1_000_000").ToIntOr(0))
	assert.Equal(t, int64(-42), String("-42").ToIntOr(0))
	assert.Equal(t, int64(9), String("not a number").ToIntOr(9))
}

func TestToFloatOrSpecials(t *testing.T) {
	assert.True(t, String("NaN").ToFloatOr(0) != String("NaN").ToFloatOr(0)) // NaN != NaN
	assert.Equal(t, 1.5e10, String("1.5e10").ToFloatOr(0))
}

func TestTimestampAliasResolutionAndMemoization(t *testing.T) {
	e := New("", 0, "")
	e.Set("_ts", String("2024-01-02T03:04:05Z"))

	ts, ok := e.Timestamp()
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	// Memoized: changing an unrelated field must not affect the cached value.
	e.Fields.Set("other", Int(1))
	ts2, ok2 := e.Timestamp()
	assert.True(t, ok2)
	assert.Equal(t, ts, ts2)
}

func TestLevelAliasNormalization(t *testing.T) {
	e := New("", 0, "")
	e.Set("severity", String("WARNING"))
	assert.Equal(t, LevelWarn, e.LevelValue())
}

func TestParseErrorEventHasEmptyFieldMap(t *testing.T) {
	e := ParseErrorEvent("f.log", 3, "bad json", "unexpected token")
	assert.Equal(t, 0, e.Fields.Len())
	assert.True(t, e.IsParseError())
	meta := e.Meta()
	v, ok := meta.Get("parse_error")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "unexpected token", s)
}

func TestEqualMapOrderIndependent(t *testing.T) {
	a := NewOrderedMap()
	a.Set("x", Int(1))
	a.Set("y", Int(2))
	b := NewOrderedMap()
	b.Set("y", Int(2))
	b.Set("x", Int(1))
	assert.True(t, Equal(Map(a), Map(b)))
}

func TestCloneDeepCopiesArraysAndMaps(t *testing.T) {
	inner := NewOrderedMap()
	inner.Set("k", Int(1))
	v := Array([]FieldValue{Map(inner)})
	cloned := Clone(v)

	arr, _ := cloned.AsArray()
	m, _ := arr[0].AsMap()
	m.Set("k", Int(99))

	origArr, _ := v.AsArray()
	origM, _ := origArr[0].AsMap()
	orig, _ := origM.Get("k")
	assert.Equal(t, int64(1), orig.ToIntOr(0), "clone must not share backing storage")
}

func TestParseTimestampEpochHeuristics(t *testing.T) {
	sec, ok := ParseTimestamp("1700000000")
	require.True(t, ok)
	assert.Equal(t, 2023, sec.Year())

	ms, ok := ParseTimestamp("1700000000000")
	require.True(t, ok)
	assert.True(t, ms.Equal(sec) || ms.Sub(sec) < time.Second)
}
