package sink

import "kelora/internal/event"

// KeyProjection implements spec.md §6.1's output key-projection surface
// ("--keys", "--core", "--exclude-keys"): which fields of an event a
// formatter actually writes, and in what order.
type KeyProjection struct {
	// Keys, if non-empty, is the exact ordered field list to emit;
	// unlisted fields are dropped and listed-but-absent fields are
	// skipped (never emitted as null).
	Keys []string
	// Core, when true and Keys is empty, restricts output to the
	// canonical timestamp/level/message fields plus whatever the parser
	// surfaced beyond them is dropped.
	Core bool
	// ExcludeKeys removes named fields after Keys/Core selection,
	// applied last so --exclude-keys can trim either a --keys list or
	// the full field set.
	ExcludeKeys []string
}

var coreKeys = []string{"ts", "level", "msg"}

func (p KeyProjection) exclude(key string) bool {
	for _, k := range p.ExcludeKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Project returns the ordered (key, value) pairs ev should be formatted
// with under p.
func (p KeyProjection) Project(ev *event.Event) []KV {
	var keys []string
	switch {
	case len(p.Keys) > 0:
		keys = p.Keys
	case p.Core:
		keys = coreKeys
	default:
		keys = ev.Fields.Keys()
	}

	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		if p.exclude(k) {
			continue
		}
		v, ok := ev.Fields.Get(k)
		if !ok {
			continue
		}
		out = append(out, KV{Key: k, Value: v})
	}
	return out
}

// KV is one projected field.
type KV struct {
	Key   string
	Value event.FieldValue
}
