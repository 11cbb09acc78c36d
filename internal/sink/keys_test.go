package sink

import (
	"testing"

	"kelora/internal/event"
)

func TestKeyProjectionCoreRestrictsToCanonicalFields(t *testing.T) {
	ev := event.New("f.log", 1, "raw")
	ev.Set("ts", event.String("now"))
	ev.Set("level", event.String("info"))
	ev.Set("msg", event.String("hi"))
	ev.Set("extra", event.String("dropped"))

	kvs := KeyProjection{Core: true}.Project(ev)
	if len(kvs) != 3 {
		t.Fatalf("expected 3 core fields, got %d: %+v", len(kvs), kvs)
	}
	for _, kv := range kvs {
		if kv.Key == "extra" {
			t.Fatalf("expected extra excluded from core projection")
		}
	}
}

func TestKeyProjectionExplicitKeysSkipAbsentFields(t *testing.T) {
	ev := event.New("f.log", 1, "raw")
	ev.Set("a", event.Int(1))

	kvs := KeyProjection{Keys: []string{"a", "missing"}}.Project(ev)
	if len(kvs) != 1 || kvs[0].Key != "a" {
		t.Fatalf("expected only present key a, got %+v", kvs)
	}
}

func TestKeyProjectionExcludeKeysAppliesAfterSelection(t *testing.T) {
	ev := event.New("f.log", 1, "raw")
	ev.Set("a", event.Int(1))
	ev.Set("b", event.Int(2))

	kvs := KeyProjection{ExcludeKeys: []string{"b"}}.Project(ev)
	if len(kvs) != 1 || kvs[0].Key != "a" {
		t.Fatalf("expected only a after excluding b, got %+v", kvs)
	}
}
