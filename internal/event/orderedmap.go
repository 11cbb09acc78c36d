package event

// OrderedMap is a string-keyed map of FieldValue that preserves
// first-insertion order. Both Event's field set and the Map FieldValue
// kind are backed by it (spec.md §3: "Field ordering follows
// first-insertion order... and is preserved across cloning and emit").
type OrderedMap struct {
	keys   []string
	values map[string]FieldValue
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]FieldValue)}
}

// Get returns the value for key and whether it was present. A present key
// holding Null returns (Null, true); callers that need the e.has()
// semantics (missing OR Null both count as absent) should use Has.
func (m *OrderedMap) Get(key string) (FieldValue, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has implements the e.has(key) contract: false iff the key is missing or
// its value is Null.
func (m *OrderedMap) Has(key string) bool {
	v, ok := m.values[key]
	return ok && !v.IsNull()
}

// Set inserts or updates key. New keys are appended to the end of the
// ordering; updating an existing key does not move it.
func (m *OrderedMap) Set(key string, v FieldValue) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key, preserving the relative order of the remaining keys.
func (m *OrderedMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by callers.
func (m *OrderedMap) Keys() []string { return m.keys }

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.keys) }

// Clone performs a deep copy preserving key order.
func (m *OrderedMap) Clone() *OrderedMap {
	out := &OrderedMap{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]FieldValue, len(m.values)),
	}
	for k, v := range m.values {
		out.values[k] = Clone(v)
	}
	return out
}

// Merge overlays other onto m in place: existing keys are updated in
// place (ordering unchanged), new keys from other are appended in other's
// insertion order. This implements the field-ordering rule used by
// emit_each overlays (spec.md §4.6): "keys present in the current event
// first... then any new keys from the overlay(s) in insertion order."
func (m *OrderedMap) Merge(other *OrderedMap) {
	for _, k := range other.keys {
		v, _ := other.Get(k)
		m.Set(k, v)
	}
}
