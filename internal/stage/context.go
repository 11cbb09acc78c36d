package stage

import (
	"context"

	"kelora/internal/event"
)

// ContextStage implements grep-style -A/-B/-C behavior (spec.md §4.4.5): a
// ring buffer of size `before` holds events not yet known to be either
// background noise or context for an upcoming match, and a countdown
// resets to `after` on each match. An event already tagged ContextAfter
// that is still in the ring when a new match arrives is within `before`
// of that match too, so it merges to ContextBoth instead of being
// finalized twice. The ring is what makes that merge possible: emitting
// after-context events the instant they're produced (the old approach)
// means they can never be revisited once a second match arrives.
type ContextStage struct {
	name   string
	before int
	after  int

	pending      []*event.Event
	pendingAfter int
}

func NewContextStage(name string, before, after int) *ContextStage {
	return &ContextStage{name: name, before: before, after: after}
}

func (s *ContextStage) Name() string { return s.name }

// Apply treats ev as a "match" iff the preceding MatchStage tagged it
// ContextMatch. Unlike FilterStage, the match predicate that feeds a
// ContextStage must never Skip a non-matching event outright — context
// mode needs to see every event to fill its ring and count down its
// after-window — so context pipelines use MatchStage instead of
// FilterStage ahead of this stage.
func (s *ContextStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	if ev.ContextTag == event.ContextMatch {
		flushed := s.pending
		s.pending = nil
		for _, p := range flushed {
			if p.ContextTag == event.ContextAfter {
				p.ContextTag = event.ContextBoth
			} else {
				p.ContextTag = event.ContextBefore
			}
		}
		s.pendingAfter = s.after
		if len(flushed) == 0 {
			return Emit(ev)
		}
		return EmitMultiple(append(flushed, ev))
	}

	if s.pendingAfter > 0 {
		s.pendingAfter--
		ev.ContextTag = event.ContextAfter
	}

	s.pending = append(s.pending, ev)
	if len(s.pending) <= s.before {
		return Skip()
	}

	// Ring is full: the oldest entry can no longer fall within `before`
	// of any future match, so it's now final. An After-tagged entry was
	// always going to be emitted; anything else was only ever a before-
	// context candidate and is dropped unmatched.
	stale := s.pending[0]
	s.pending = s.pending[1:]
	if stale.ContextTag == event.ContextAfter {
		return Emit(stale)
	}
	return Skip()
}
