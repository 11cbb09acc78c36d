package stage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelora/internal/event"
	"kelora/internal/script"
)

func newTestEngine(t *testing.T) *script.Engine {
	t.Helper()
	eng, err := script.NewEngine(script.Limits{}, script.Sandbox{})
	require.NoError(t, err)
	return eng
}

func simpleScope(ev *event.Event) script.Scope {
	return script.Scope{Event: ev}
}

func newEvent(fields map[string]event.FieldValue) *event.Event {
	ev := event.New("test.log", 1, "")
	for k, v := range fields {
		ev.Set(k, v)
	}
	return ev
}

func TestFilterStageEmitsOnTrue(t *testing.T) {
	eng := newTestEngine(t)
	prog, err := eng.Compile(`e.n > 1`)
	require.NoError(t, err)
	fs := NewFilterStage("filter", eng, prog, simpleScope, false)

	ev := newEvent(map[string]event.FieldValue{"n": event.Int(2)})
	res := fs.Apply(context.Background(), ev)
	assert.Equal(t, ResultEmit, res.Kind)
}

func TestFilterStageSkipsOnFalse(t *testing.T) {
	eng := newTestEngine(t)
	prog, err := eng.Compile(`e.n > 1`)
	require.NoError(t, err)
	fs := NewFilterStage("filter", eng, prog, simpleScope, false)

	ev := newEvent(map[string]event.FieldValue{"n": event.Int(0)})
	res := fs.Apply(context.Background(), ev)
	assert.Equal(t, ResultSkip, res.Kind)
}

func TestFilterStageStrictErrorIsFatal(t *testing.T) {
	eng := newTestEngine(t)
	prog, err := eng.Compile(`e.missing.nested`)
	require.NoError(t, err)
	fs := NewFilterStage("filter", eng, prog, simpleScope, true)

	ev := newEvent(nil)
	res := fs.Apply(context.Background(), ev)
	assert.Equal(t, ResultFatal, res.Kind)
}

func TestExecStageAssignsAndCommits(t *testing.T) {
	eng := newTestEngine(t)
	es, err := NewExecStage("exec", eng, `tag = "seen"`, simpleScope, false)
	require.NoError(t, err)

	ev := newEvent(nil)
	res := es.Apply(context.Background(), ev)
	require.Equal(t, ResultEmit, res.Kind)
	v := res.Event.Get("tag")
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "seen", s)
}

func TestExecStageRollsBackOriginalOnFailure(t *testing.T) {
	eng := newTestEngine(t)
	es, err := NewExecStage("exec", eng, `tag = e.missing.nested`, simpleScope, false)
	require.NoError(t, err)

	ev := newEvent(map[string]event.FieldValue{"keep": event.String("yes")})
	res := es.Apply(context.Background(), ev)
	require.Equal(t, ResultEmit, res.Kind)
	assert.False(t, res.Event.Has("tag"), "rollback must discard the working copy's mutation")
	keep, _ := res.Event.Get("keep").AsString()
	assert.Equal(t, "yes", keep)
}

func TestPipelineRunShortCircuitsOnSkip(t *testing.T) {
	eng := newTestEngine(t)
	prog, err := eng.Compile(`e.n > 1`)
	require.NoError(t, err)
	fs := NewFilterStage("filter", eng, prog, simpleScope, false)
	p := NewPipeline(fs)

	out, err := p.Run(context.Background(), newEvent(map[string]event.FieldValue{"n": event.Int(0)}))
	require.NoError(t, err)
	assert.Empty(t, out)
}

type recordingTracer struct {
	started []string
	ended   int
}

func (r *recordingTracer) StageSpan(ctx context.Context, name string) (context.Context, func(error)) {
	r.started = append(r.started, name)
	return ctx, func(error) { r.ended++ }
}

func TestPipelineRunSpansEveryStageWhenTracerSet(t *testing.T) {
	eng := newTestEngine(t)
	prog, err := eng.Compile(`e.n > 1`)
	require.NoError(t, err)
	fs := NewFilterStage("filter", eng, prog, simpleScope, false)
	hs := NewHeadStage("head", int64(5), nil)
	p := NewPipeline(fs, hs)

	rt := &recordingTracer{}
	p.SetTracer(rt)

	out, err := p.Run(context.Background(), newEvent(map[string]event.FieldValue{"n": event.Int(2)}))
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, []string{"filter", "head"}, rt.started)
	assert.Equal(t, 2, rt.ended)
}

func TestPipelineRunWithoutTracerDoesNotPanic(t *testing.T) {
	eng := newTestEngine(t)
	prog, err := eng.Compile(`true`)
	require.NoError(t, err)
	fs := NewFilterStage("filter", eng, prog, simpleScope, false)
	p := NewPipeline(fs)

	_, err = p.Run(context.Background(), newEvent(nil))
	require.NoError(t, err)
}

func TestHeadStageStopsAfterLimit(t *testing.T) {
	var limitHit bool
	hs := NewHeadStage("head", 2, func() { limitHit = true })

	for i := 0; i < 3; i++ {
		res := hs.Apply(context.Background(), newEvent(nil))
		if i < 2 {
			assert.Equal(t, ResultEmit, res.Kind)
		} else {
			assert.Equal(t, ResultSkip, res.Kind)
		}
	}
	assert.True(t, limitHit)
}

func TestContextStageBuffersBeforeAndTagsMatch(t *testing.T) {
	cs := NewContextStage("context", 2, 1)

	a := newEvent(nil)
	b := newEvent(nil)
	match := newEvent(nil)
	match.ContextTag = event.ContextMatch

	require.Equal(t, ResultSkip, cs.Apply(context.Background(), a).Kind)
	require.Equal(t, ResultSkip, cs.Apply(context.Background(), b).Kind)

	res := cs.Apply(context.Background(), match)
	require.Equal(t, ResultEmitMultiple, res.Kind)
	require.Len(t, res.Events, 3)
	assert.Equal(t, event.ContextBefore, res.Events[0].ContextTag)
	assert.Equal(t, event.ContextBefore, res.Events[1].ContextTag)
	assert.Equal(t, event.ContextMatch, res.Events[2].ContextTag)
}

func TestContextStageMergesOverlappingRangesToBoth(t *testing.T) {
	cs := NewContextStage("context", 2, 1)

	match1 := newEvent(nil)
	match1.ContextTag = event.ContextMatch
	x := newEvent(nil)
	match2 := newEvent(nil)
	match2.ContextTag = event.ContextMatch

	res := cs.Apply(context.Background(), match1)
	require.Equal(t, ResultEmit, res.Kind)
	assert.Equal(t, event.ContextMatch, res.Event.ContextTag)

	// x falls inside match1's 1-event after-window; with after=1 it's
	// held rather than emitted immediately so a following match can
	// still claim it.
	require.Equal(t, ResultSkip, cs.Apply(context.Background(), x).Kind)

	res = cs.Apply(context.Background(), match2)
	require.Equal(t, ResultEmitMultiple, res.Kind)
	require.Len(t, res.Events, 2)
	assert.Equal(t, event.ContextBoth, res.Events[0].ContextTag)
	assert.Equal(t, event.ContextMatch, res.Events[1].ContextTag)
}

func TestLevelRangeStageKeepsOnlyConfiguredLevels(t *testing.T) {
	lrs := NewLevelRangeStage("levels", []event.Level{event.LevelWarn, event.LevelError})

	warn := newEvent(map[string]event.FieldValue{"level": event.String("warn")})
	info := newEvent(map[string]event.FieldValue{"level": event.String("info")})

	assert.Equal(t, ResultEmit, lrs.Apply(context.Background(), warn).Kind)
	assert.Equal(t, ResultSkip, lrs.Apply(context.Background(), info).Kind)
}

func TestTimeRangeStageBoundsAreHalfOpen(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	trs := NewTimeRangeStage("since-until", since, until)

	inRange := newEvent(map[string]event.FieldValue{"ts": event.DateTime(since)})
	atUntil := newEvent(map[string]event.FieldValue{"ts": event.DateTime(until)})
	before := newEvent(map[string]event.FieldValue{"ts": event.DateTime(since.Add(-time.Second))})

	assert.Equal(t, ResultEmit, trs.Apply(context.Background(), inRange).Kind)
	assert.Equal(t, ResultSkip, trs.Apply(context.Background(), atUntil).Kind)
	assert.Equal(t, ResultSkip, trs.Apply(context.Background(), before).Kind)
}

func TestTimeRangeStagePassesEventsWithoutTimestamp(t *testing.T) {
	trs := NewTimeRangeStage("since-until", time.Now(), time.Time{})
	ev := newEvent(nil)
	assert.Equal(t, ResultEmit, trs.Apply(context.Background(), ev).Kind)
}
