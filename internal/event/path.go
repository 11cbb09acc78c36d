package event

import (
	"strconv"
	"strings"
)

// pathSegment is one step of a parsed path: either a map key or an array
// index (possibly negative, counted from the end).
type pathSegment struct {
	key      string
	isIndex  bool
	index    int
}

// parsePath splits "a.b.c[0].d" / "a.b[-1]" into segments. Dots separate
// map keys; "[i]" (i possibly negative) is an array index suffix attached
// to the preceding key, or may appear as a bare leading index on its own
// segment ("[0].name").
func parsePath(path string) []pathSegment {
	var segs []pathSegment
	for _, part := range strings.Split(path, ".") {
		for part != "" {
			if strings.HasPrefix(part, "[") {
				end := strings.IndexByte(part, ']')
				if end < 0 {
					break
				}
				n, err := strconv.Atoi(part[1:end])
				if err == nil {
					segs = append(segs, pathSegment{isIndex: true, index: n})
				}
				part = part[end+1:]
				continue
			}
			br := strings.IndexByte(part, '[')
			if br < 0 {
				segs = append(segs, pathSegment{key: part})
				part = ""
			} else {
				if br > 0 {
					segs = append(segs, pathSegment{key: part[:br]})
				}
				part = part[br:]
			}
		}
	}
	return segs
}

// GetPath traverses nested Maps and Arrays following dot/bracket path
// syntax, returning def on any missing or type-mismatched step.
func GetPath(v FieldValue, path string, def FieldValue) FieldValue {
	cur := v
	for _, seg := range parsePath(path) {
		if seg.isIndex {
			arr, ok := cur.AsArray()
			if !ok {
				return def
			}
			idx := seg.index
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				return def
			}
			cur = arr[idx]
			continue
		}
		m, ok := cur.AsMap()
		if !ok {
			return def
		}
		next, ok := m.Get(seg.key)
		if !ok {
			return def
		}
		cur = next
	}
	return cur
}

// HasPath reports whether path resolves to a present, non-Null value.
func HasPath(v FieldValue, path string) bool {
	got := GetPath(v, path, Null)
	return !got.IsNull()
}

// SetPath sets value at path within e's fields (ExecStage assignment
// statements, spec.md §4.4.2), creating intermediate maps for new dotted
// segments. An array index segment only mutates an existing in-range
// array; a missing or out-of-range index is a no-op, since arrays are not
// auto-grown by assignment.
func (e *Event) SetPath(path string, value FieldValue) {
	segs := parsePath(path)
	if len(segs) == 0 {
		return
	}
	if len(segs) == 1 && !segs[0].isIndex {
		e.Set(segs[0].key, value)
		return
	}
	setPathValue(Map(e.Fields), segs, value)
	e.tsMemo = nil
	e.levelMemo = nil
}

// setPathValue recursively applies one path segment to container,
// mutating map containers in place (OrderedMap.Set is a pointer
// mutation) and returning a new array value for array containers (since
// []FieldValue is copied by value), which the caller writes back into
// its own parent.
func setPathValue(container FieldValue, segs []pathSegment, value FieldValue) (FieldValue, bool) {
	seg := segs[0]
	rest := segs[1:]

	if seg.isIndex {
		arr, ok := container.AsArray()
		if !ok {
			return container, false
		}
		idx := seg.index
		if idx < 0 {
			idx += len(arr)
		}
		if idx < 0 || idx >= len(arr) {
			return container, false
		}
		out := append([]FieldValue(nil), arr...)
		if len(rest) == 0 {
			out[idx] = value
		} else {
			child, ok := setPathValue(out[idx], rest, value)
			if !ok {
				return container, false
			}
			out[idx] = child
		}
		return Array(out), true
	}

	m, ok := container.AsMap()
	if !ok {
		return container, false
	}
	if len(rest) == 0 {
		m.Set(seg.key, value)
		return container, true
	}
	child, ok := m.Get(seg.key)
	if !ok || (child.Kind() != KindMap && child.Kind() != KindArray) {
		child = Map(NewOrderedMap())
	}
	newChild, ok := setPathValue(child, rest, value)
	if !ok {
		return container, false
	}
	m.Set(seg.key, newChild)
	return container, true
}
