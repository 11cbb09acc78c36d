package pipelineconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelora/internal/event"
	"kelora/internal/tracker"
)

type memSink struct {
	events []*event.Event
}

func (m *memSink) Write(ev *event.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func TestFactoryBuildsFilterExecEmitPipeline(t *testing.T) {
	c := Defaults()
	c.Filter = "e.n > 1"
	c.Exec = []string{`tag = "seen"`}

	eng, err := NewBaseEngine(c)
	require.NoError(t, err)
	conf := newConfBinding()
	sink := &memSink{}

	factory := Factory(c, conf, sink, nil, nil, nil)
	pipeline, err := factory(eng, tracker.New(false))
	require.NoError(t, err)

	low := event.New("t.log", 1, "")
	low.Set("n", event.Int(0))
	_, err = pipeline.Run(context.Background(), low)
	require.NoError(t, err)

	high := event.New("t.log", 2, "")
	high.Set("n", event.Int(5))
	_, err = pipeline.Run(context.Background(), high)
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	tag, ok := sink.events[0].Get("tag").AsString()
	require.True(t, ok)
	assert.Equal(t, "seen", tag)
}

func TestFactoryAppliesLevelFilter(t *testing.T) {
	c := Defaults()
	c.Levels = []string{"error"}

	eng, err := NewBaseEngine(c)
	require.NoError(t, err)
	sink := &memSink{}
	factory := Factory(c, newConfBinding(), sink, nil, nil, nil)
	pipeline, err := factory(eng, tracker.New(false))
	require.NoError(t, err)

	info := event.New("t.log", 1, "")
	info.Set("level", event.String("info"))
	_, err = pipeline.Run(context.Background(), info)
	require.NoError(t, err)

	bad := event.New("t.log", 2, "")
	bad.Set("level", event.String("error"))
	_, err = pipeline.Run(context.Background(), bad)
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	lvl, _ := sink.events[0].Get("level").AsString()
	assert.Equal(t, "error", lvl)
}

func TestFactoryRejectsUnknownSpanMode(t *testing.T) {
	c := Defaults()
	c.Span = SpanModeConfig{Mode: "count", Count: 2}
	c.SpanClose = "emit_each([])"
	c.Span.Mode = "bogus"

	eng, err := NewBaseEngine(c)
	require.NoError(t, err)
	_, err = Factory(c, newConfBinding(), &memSink{}, nil, nil, nil)(eng, tracker.New(false))
	assert.Error(t, err)
}

func TestRunBeginBindsConf(t *testing.T) {
	c := Defaults()
	c.Begin = `{"threshold": 5}`

	eng, err := NewBaseEngine(c)
	require.NoError(t, err)
	conf, err := RunBegin(eng, c)
	require.NoError(t, err)

	m, ok := conf.value.AsMap()
	require.True(t, ok)
	v, ok := m.Get("threshold")
	require.True(t, ok)
	n, _ := v.AsInt()
	assert.EqualValues(t, 5, n)
}

func TestRunBeginErrorIsFatalEvenWithoutStrict(t *testing.T) {
	c := Defaults()
	c.Begin = `1 / 0`

	eng, err := NewBaseEngine(c)
	require.NoError(t, err)
	_, err = RunBegin(eng, c)
	assert.Error(t, err)
}
