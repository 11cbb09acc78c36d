package pipelineconfig

import (
	"bytes"
	"strings"
	"testing"

	"kelora/internal/event"
)

func TestBuildSinkDefaultsToTextFormat(t *testing.T) {
	var buf bytes.Buffer
	c := Defaults()
	s := BuildSink(c, &buf)

	ev := event.New("f.log", 1, "raw")
	ev.Set("msg", event.String("hello"))
	if err := s.Write(ev); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected text output to contain msg, got %q", buf.String())
	}
}

func TestBuildSinkHonorsJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	c := Defaults()
	c.OutputFormat = "json"
	s := BuildSink(c, &buf)

	ev := event.New("f.log", 1, "raw")
	ev.Set("msg", event.String("hello"))
	if err := s.Write(ev); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}
}
