package sink

import (
	"strings"
	"testing"
	"time"

	"kelora/internal/event"
)

func TestJSONFormatterPreservesFieldOrder(t *testing.T) {
	ev := event.New("f.log", 1, "raw")
	ev.Set("b", event.Int(2))
	ev.Set("a", event.Int(1))

	f := &JSONFormatter{}
	out, err := f.Format(ev)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	s := string(out)
	if strings.Index(s, `"b"`) > strings.Index(s, `"a"`) {
		t.Fatalf("expected insertion order b before a, got %q", s)
	}
}

func TestJSONFormatterRendersNullForAbsentField(t *testing.T) {
	ev := event.New("f.log", 1, "raw")
	ev.Set("x", event.Null)

	f := &JSONFormatter{}
	out, err := f.Format(ev)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(string(out), `"x":null`) {
		t.Fatalf("expected null rendering, got %q", out)
	}
}

func TestCSVFormatterWritesHeaderOnceThenRows(t *testing.T) {
	f := &CSVFormatter{}

	ev1 := event.New("f.log", 1, "raw")
	ev1.Set("a", event.Int(1))
	ev1.Set("b", event.String("x"))

	ev2 := event.New("f.log", 2, "raw")
	ev2.Set("a", event.Int(2))
	ev2.Set("b", event.String("y"))

	out1, err := f.Format(ev1)
	if err != nil {
		t.Fatalf("Format ev1: %v", err)
	}
	out2, err := f.Format(ev2)
	if err != nil {
		t.Fatalf("Format ev2: %v", err)
	}

	if !strings.Contains(string(out1), "a,b") {
		t.Fatalf("expected header in first row, got %q", out1)
	}
	if strings.Contains(string(out2), "a,b") {
		t.Fatalf("did not expect header repeated in second row, got %q", out2)
	}
	if !strings.Contains(string(out2), "2,y") {
		t.Fatalf("expected second data row, got %q", out2)
	}
}

func TestCSVFormatterUsesTabDelimiter(t *testing.T) {
	f := &CSVFormatter{Delimiter: '\t'}
	ev := event.New("f.log", 1, "raw")
	ev.Set("a", event.Int(1))
	ev.Set("b", event.String("x"))

	out, err := f.Format(ev)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(string(out), "a\tb") {
		t.Fatalf("expected tab-delimited header, got %q", out)
	}
}

func TestLogfmtFormatterEncodesKeyvals(t *testing.T) {
	ev := event.New("f.log", 1, "raw")
	ev.Set("msg", event.String("hello world"))
	ev.Set("n", event.Int(5))

	f := &LogfmtFormatter{}
	out, err := f.Format(ev)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `msg="hello world"`) {
		t.Fatalf("expected quoted msg, got %q", s)
	}
	if !strings.Contains(s, "n=5") {
		t.Fatalf("expected n=5, got %q", s)
	}
}

func TestTextFormatterAppliesKeyProjection(t *testing.T) {
	ev := event.New("f.log", 1, "raw")
	ev.Set("msg", event.String("hi"))
	ev.Set("extra", event.String("v"))
	ev.Set("secret", event.String("hidden"))

	f := &TextFormatter{Projection: KeyProjection{ExcludeKeys: []string{"secret"}}}
	out, err := f.Format(ev)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "extra=v") {
		t.Fatalf("expected extra=v, got %q", s)
	}
	if strings.Contains(s, "hidden") {
		t.Fatalf("expected secret excluded, got %q", s)
	}
}

func TestTimestampDisplayRendersUTC(t *testing.T) {
	parsed, err := time.Parse(time.RFC3339, "2026-01-02T03:04:05+02:00")
	if err != nil {
		t.Fatalf("time.Parse: %v", err)
	}
	ts := TimestampDisplay{UTC: true}
	v, _ := event.DateTime(parsed).AsDateTime()
	out := ts.render("ts", v)
	if !strings.Contains(out, "01:04:05Z") {
		t.Fatalf("expected UTC-shifted rendering, got %q", out)
	}
}
