package pipelineconfig

import (
	"strings"
	"testing"
)

func TestDumpYAMLIncludesResolvedFields(t *testing.T) {
	c := Defaults()
	c.Filter = `e.level == "error"`

	out, err := DumpYAML(c)
	if err != nil {
		t.Fatalf("DumpYAML: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "filter:") || !strings.Contains(s, `error`) {
		t.Fatalf("expected dump to contain the filter expression, got %q", s)
	}
	if !strings.Contains(s, "output_format: text") {
		t.Fatalf("expected dump to contain resolved default output_format, got %q", s)
	}
}
