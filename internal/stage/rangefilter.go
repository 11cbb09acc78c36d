package stage

import (
	"context"
	"time"

	"kelora/internal/event"
)

// LevelRangeStage implements "--levels" (spec.md §6.1): keep only events
// whose normalized level is in the configured set. Unlike FilterStage
// this needs no scripting engine, since level membership is a closed,
// native comparison rather than a user expression.
type LevelRangeStage struct {
	name   string
	levels map[event.Level]struct{}
}

func NewLevelRangeStage(name string, levels []event.Level) *LevelRangeStage {
	set := make(map[event.Level]struct{}, len(levels))
	for _, l := range levels {
		set[l] = struct{}{}
	}
	return &LevelRangeStage{name: name, levels: set}
}

func (s *LevelRangeStage) Name() string { return s.name }

func (s *LevelRangeStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	if _, ok := s.levels[ev.LevelValue()]; ok {
		return Emit(ev)
	}
	return Skip()
}

// TimeRangeStage implements "--since"/"--until" (spec.md §6.1): keep only
// events whose timestamp falls in [since, until). A zero bound is
// treated as unbounded on that side. Events with no parseable timestamp
// pass through unfiltered, matching the resilient-by-default handling
// the rest of the pipeline gives to missing/invalid ts (spec.md §4.4.4's
// "missing/invalid ts ⇒ resilient").
type TimeRangeStage struct {
	name  string
	since time.Time
	until time.Time
}

func NewTimeRangeStage(name string, since, until time.Time) *TimeRangeStage {
	return &TimeRangeStage{name: name, since: since, until: until}
}

func (s *TimeRangeStage) Name() string { return s.name }

func (s *TimeRangeStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	ts, ok := ev.Timestamp()
	if !ok {
		return Emit(ev)
	}
	if !s.since.IsZero() && ts.Before(s.since) {
		return Skip()
	}
	if !s.until.IsZero() && !ts.Before(s.until) {
		return Skip()
	}
	return Emit(ev)
}
