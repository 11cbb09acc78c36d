package main

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestParseSpanFlagCount(t *testing.T) {
	s := parseSpanFlag("100", "")
	if s.Mode != "count" || s.Count != 100 {
		t.Fatalf("got %+v", s)
	}
}

func TestParseSpanFlagDuration(t *testing.T) {
	s := parseSpanFlag("30s", "")
	if s.Mode != "time" || s.Dur != 30*time.Second {
		t.Fatalf("got %+v", s)
	}
}

func TestParseSpanFlagField(t *testing.T) {
	s := parseSpanFlag("request_id", "")
	if s.Mode != "field" || s.Field != "request_id" {
		t.Fatalf("got %+v", s)
	}
}

func TestParseSpanFlagIdle(t *testing.T) {
	s := parseSpanFlag("", "5m")
	if s.Mode != "idle" || s.Dur != 5*time.Minute {
		t.Fatalf("got %+v", s)
	}
}

func TestSplitCommaAllMergesRepeatedAndCommaSeparated(t *testing.T) {
	got := splitCommaAll(stringList{"a,b", " c ", "d,,e"})
	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestResolveLogLevelVerboseStepsTowardTrace(t *testing.T) {
	lvl := resolveLogLevel("info", 0, 2)
	if lvl != logrus.TraceLevel {
		t.Fatalf("got %v, want trace", lvl)
	}
}

func TestResolveLogLevelQuietStepsTowardError(t *testing.T) {
	lvl := resolveLogLevel("info", 2, 0)
	if lvl != logrus.ErrorLevel {
		t.Fatalf("got %v, want error", lvl)
	}
}

func TestResolveLogLevelClampsAtBounds(t *testing.T) {
	if got := resolveLogLevel("info", 0, 100); got != logrus.TraceLevel {
		t.Fatalf("got %v, want trace", got)
	}
	if got := resolveLogLevel("info", 100, 0); got != logrus.PanicLevel {
		t.Fatalf("got %v, want panic", got)
	}
}

func TestResolveLogLevelFallsBackOnUnknownBase(t *testing.T) {
	if got := resolveLogLevel("nonsense", 0, 0); got != logrus.InfoLevel {
		t.Fatalf("got %v, want info", got)
	}
}
