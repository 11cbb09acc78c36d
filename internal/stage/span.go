package stage

import (
	"context"
	"fmt"
	"time"

	"kelora/internal/apperrors"
	"kelora/internal/event"
	"kelora/internal/script"
	"kelora/internal/tracker"
)

// SpanMode selects one of the four tumbling-span boundary rules of
// spec.md §4.4.4.
type SpanMode int

const (
	SpanCount SpanMode = iota
	SpanTime
	SpanField
	SpanIdle
)

// SpanStage produces tumbling spans from the event stream, snapshotting
// the worker's tracker delta into span_metrics on each close and invoking
// the --span-close expression exactly once per span, even when the span
// is empty.
//
// Simplification (recorded in DESIGN.md): spec.md notes that events
// filtered out by an earlier --filter still advance time/idle boundary
// detection without being buffered. Because this pipeline's Skip result
// stops an event from reaching any later stage at all, that specific
// interaction is not modeled; SpanStage only ever sees events that
// survived every stage before it, which covers the field/count modes
// exactly and approximates time/idle mode (boundaries advance on every
// event SpanStage actually receives, the common configuration where
// --span is the first stage anyway).
type SpanStage struct {
	name      string
	mode      SpanMode
	n         int
	d         time.Duration
	fieldName string
	strict    bool

	eng       *script.Engine
	closeProg *script.Program
	scopeFn   ScopeFunc
	tr        *tracker.Tracker

	anchor      time.Time
	anchorSet   bool
	spanStart   time.Time
	spanEnd     time.Time
	spanID      string
	spanEvents  []*event.Event
	spanOpen    bool
	idleSeq     int
	lastEventTs time.Time
	lateEvents  int64
}

// LateEvents reports how many events arrived after their time-span had
// already closed (spec.md §4.4.4's "late_events counter").
func (s *SpanStage) LateEvents() int64 { return s.lateEvents }

func NewCountSpanStage(name string, n int, eng *script.Engine, closeProg *script.Program, scopeFn ScopeFunc, tr *tracker.Tracker, strict bool) *SpanStage {
	return &SpanStage{name: name, mode: SpanCount, n: n, eng: eng, closeProg: closeProg, scopeFn: scopeFn, tr: tr, strict: strict}
}

func NewTimeSpanStage(name string, d time.Duration, eng *script.Engine, closeProg *script.Program, scopeFn ScopeFunc, tr *tracker.Tracker, strict bool) *SpanStage {
	return &SpanStage{name: name, mode: SpanTime, d: d, eng: eng, closeProg: closeProg, scopeFn: scopeFn, tr: tr, strict: strict}
}

func NewFieldSpanStage(name, field string, eng *script.Engine, closeProg *script.Program, scopeFn ScopeFunc, tr *tracker.Tracker, strict bool) *SpanStage {
	return &SpanStage{name: name, mode: SpanField, fieldName: field, eng: eng, closeProg: closeProg, scopeFn: scopeFn, tr: tr, strict: strict}
}

func NewIdleSpanStage(name string, d time.Duration, eng *script.Engine, closeProg *script.Program, scopeFn ScopeFunc, tr *tracker.Tracker, strict bool) *SpanStage {
	return &SpanStage{name: name, mode: SpanIdle, d: d, eng: eng, closeProg: closeProg, scopeFn: scopeFn, tr: tr, strict: strict}
}

func (s *SpanStage) Name() string { return s.name }

func (s *SpanStage) Apply(ctx context.Context, ev *event.Event) StageResult {
	switch s.mode {
	case SpanCount:
		return s.applyCount(ev)
	case SpanTime:
		return s.applyTime(ev)
	case SpanField:
		return s.applyField(ev)
	case SpanIdle:
		return s.applyIdle(ev)
	default:
		return Emit(ev)
	}
}

func (s *SpanStage) applyCount(ev *event.Event) StageResult {
	if !s.spanOpen {
		s.openSpan(fmt.Sprintf("count-%d", s.idleSeq), time.Time{}, time.Time{})
	}
	ev.Span = event.SpanAssignment{Status: event.SpanIncluded, SpanID: s.spanID}
	s.spanEvents = append(s.spanEvents, ev)

	var closeResult *StageResult
	if len(s.spanEvents) >= s.n {
		r := s.closeSpan()
		closeResult = &r
		s.idleSeq++
	}
	return s.combine(ev, closeResult)
}

func (s *SpanStage) applyTime(ev *event.Event) StageResult {
	ts, ok := ev.Timestamp()
	if !ok {
		if s.strict {
			return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeParseFailed, "span", s.name, "missing or invalid timestamp"))
		}
		ev.Span = event.SpanAssignment{Status: event.SpanUnassigned}
		return Emit(ev)
	}
	if !s.anchorSet {
		s.anchor = ts
		s.anchorSet = true
		s.openSpan(ts.Format(time.RFC3339), ts, ts.Add(s.d))
	}

	var closeResult *StageResult
	for !ts.Before(s.spanEnd) {
		r := s.closeSpan()
		closeResult = &r
		next := s.spanEnd
		s.openSpan(next.Format(time.RFC3339), next, next.Add(s.d))
	}
	if ts.Before(s.spanStart) {
		s.lateEvents++
		ev.Span = event.SpanAssignment{Status: event.SpanLate}
		return s.combine(ev, closeResult)
	}
	ev.Span = event.SpanAssignment{Status: event.SpanIncluded, SpanID: s.spanID, SpanStart: s.spanStart, SpanEnd: s.spanEnd}
	s.spanEvents = append(s.spanEvents, ev)
	return s.combine(ev, closeResult)
}

func (s *SpanStage) applyField(ev *event.Event) StageResult {
	v := ev.Get(s.fieldName)
	id := "(unset)"
	if !v.IsNull() {
		id = v.ToString()
	} else if s.strict {
		return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeParseFailed, "span", s.name, fmt.Sprintf("field %q missing", s.fieldName)))
	}

	var closeResult *StageResult
	if s.spanOpen && id != s.spanID {
		r := s.closeSpan()
		closeResult = &r
	}
	if !s.spanOpen {
		s.openSpan(id, time.Time{}, time.Time{})
	}
	ev.Span = event.SpanAssignment{Status: event.SpanIncluded, SpanID: s.spanID}
	s.spanEvents = append(s.spanEvents, ev)
	return s.combine(ev, closeResult)
}

func (s *SpanStage) applyIdle(ev *event.Event) StageResult {
	ts, ok := ev.Timestamp()
	if !ok {
		if s.strict {
			return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeParseFailed, "span", s.name, "missing or invalid timestamp"))
		}
		ev.Span = event.SpanAssignment{Status: event.SpanUnassigned}
		return Emit(ev)
	}

	var closeResult *StageResult
	if s.spanOpen && ts.Sub(s.lastEventTs) > s.d {
		r := s.closeSpan()
		closeResult = &r
	}
	if !s.spanOpen {
		s.openSpan(fmt.Sprintf("idle-#%d-%s", s.idleSeq, ts.Format(time.RFC3339)), ts, time.Time{})
		s.idleSeq++
	}
	s.lastEventTs = ts
	ev.Span = event.SpanAssignment{Status: event.SpanIncluded, SpanID: s.spanID}
	s.spanEvents = append(s.spanEvents, ev)
	return s.combine(ev, closeResult)
}

func (s *SpanStage) openSpan(id string, start, end time.Time) {
	s.spanOpen = true
	s.spanID = id
	s.spanStart = start
	s.spanEnd = end
	s.spanEvents = nil
	s.tr.OpenSpan()
}

// closeSpan snapshots the tracker delta, runs the close-hook expression
// exactly once, and clears span-local state. It runs even when
// span_size == 0 (spec.md §4.4.4).
func (s *SpanStage) closeSpan() StageResult {
	delta := s.tr.SpanSnapshot()
	deltaMap := event.NewOrderedMap()
	for k, v := range delta {
		deltaMap.Set(k, v)
	}

	inv := s.eng.BeginInvocation(nil, nil)
	scope := s.scopeFn(nil)
	scope.SpanMetrics = event.Map(deltaMap)
	scope.SpanEvents = event.Array(windowFieldValues(s.spanEvents))
	scope.SpanStart = timeOrNull(s.spanStart)
	scope.SpanEnd = timeOrNull(s.spanEnd)
	scope.SpanID = event.String(s.spanID)
	scope.SpanSize = event.Int(int64(len(s.spanEvents)))

	s.spanOpen = false

	if s.closeProg == nil {
		return Skip()
	}
	_, err := s.closeProg.Eval(scope)
	if err != nil {
		return Fatal(apperrors.New(apperrors.Fatal, apperrors.CodeScriptEval, "span-close", s.name, err.Error()).Wrap(err))
	}
	if inv.FatalErr != nil {
		return Fatal(inv.FatalErr)
	}
	if inv.Suppressed && len(inv.Successors) > 0 {
		return EmitMultiple(inv.Successors)
	}
	return Skip()
}

func timeOrNull(t time.Time) event.FieldValue {
	if t.IsZero() {
		return event.Null
	}
	return event.DateTime(t)
}

// combine folds an optional span-close result (emitted on its own,
// independent of ev) together with ev's own emission into one
// EmitMultiple, since StageResult only carries one outcome per call.
func (s *SpanStage) combine(ev *event.Event, closeResult *StageResult) StageResult {
	if closeResult == nil {
		return Emit(ev)
	}
	if closeResult.Kind == ResultFatal {
		return *closeResult
	}
	events := []*event.Event{ev}
	if closeResult.Kind == ResultEmitMultiple {
		events = append(events, closeResult.Events...)
	}
	return EmitMultiple(events)
}
