package stage

import (
	"context"
	"sync/atomic"

	"kelora/internal/event"
)

// HeadStage truncates input after N parsed events (--head N, spec.md
// §4.4.6). Counting happens here, at the front of the pipeline, since
// --head bounds events *entering* the pipeline rather than ones that
// reach the end of it.
type HeadStage struct {
	name    string
	limit   int64
	seen    int64
	onLimit func()
}

func NewHeadStage(name string, limit int64, onLimit func()) *HeadStage {
	return &HeadStage{name: name, limit: limit, onLimit: onLimit}
}

func (s *HeadStage) Name() string { return s.name }

func (s *HeadStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	n := atomic.AddInt64(&s.seen, 1)
	if n > s.limit {
		if s.onLimit != nil {
			s.onLimit()
		}
		return Skip()
	}
	if n == s.limit && s.onLimit != nil {
		s.onLimit()
	}
	return Emit(ev)
}

// TakeStage truncates output after N emitted events (--take N). Placed
// at the tail of the pipeline, immediately before EmitStage, so it counts
// events that survived every preceding stage.
type TakeStage struct {
	name    string
	limit   int64
	emitted int64
	onLimit func()
}

func NewTakeStage(name string, limit int64, onLimit func()) *TakeStage {
	return &TakeStage{name: name, limit: limit, onLimit: onLimit}
}

func (s *TakeStage) Name() string { return s.name }

func (s *TakeStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	n := atomic.AddInt64(&s.emitted, 1)
	if n > s.limit {
		return Skip()
	}
	if n == s.limit && s.onLimit != nil {
		s.onLimit()
	}
	return Emit(ev)
}
