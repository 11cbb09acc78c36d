package sink

import (
	"bytes"
	"strings"
	"testing"

	"kelora/internal/event"
)

func newTestEvent(msg string, n int64) *event.Event {
	ev := event.New("f.log", 1, "raw")
	ev.Set("ts", event.String("2026-01-02T03:04:05Z"))
	ev.Set("level", event.String("info"))
	ev.Set("msg", event.String(msg))
	ev.Set("n", event.Int(n))
	return ev
}

func TestSinkWriteDelegatesToFormatter(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, NewFormatter("json", KeyProjection{}, TimestampDisplay{}, Style{}))

	if err := s.Write(newTestEvent("hello", 1)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Fatalf("expected msg field in output, got %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected trailing newline, got %q", out)
	}
}

func TestNewFormatterSelectsByName(t *testing.T) {
	cases := map[string]interface{}{
		"json":    &JSONFormatter{},
		"text":    &TextFormatter{},
		"logfmt":  &LogfmtFormatter{},
		"csv":     &CSVFormatter{},
		"tsv":     &CSVFormatter{},
		"unknown": &JSONFormatter{},
	}
	for name, want := range cases {
		got := NewFormatter(name, KeyProjection{}, TimestampDisplay{}, Style{})
		if gotType, wantType := typeName(got), typeName(want); gotType != wantType {
			t.Errorf("format %q: got %s, want %s", name, gotType, wantType)
		}
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case *JSONFormatter:
		return "json"
	case *TextFormatter:
		return "text"
	case *LogfmtFormatter:
		return "logfmt"
	case *CSVFormatter:
		return "csv"
	default:
		return "unknown"
	}
}
