package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kelora/internal/event"
	"kelora/internal/parser"
	"kelora/internal/script"
	"kelora/internal/stage"
	"kelora/internal/tracker"
)

// fakeSource is a closed-channel LineSource seeded with a fixed line set,
// grounded on the teacher's dispatcher_race_test.go style of hand-rolled
// test doubles over a real queue rather than a mock framework.
type fakeSource struct {
	ch  chan Line
	err error
}

func newFakeSource(lines []Line) *fakeSource {
	ch := make(chan Line, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return &fakeSource{ch: ch}
}

func (f *fakeSource) Lines() <-chan Line { return f.ch }
func (f *fakeSource) Err() error         { return f.err }

// collectorSink records every event written to it, guarded by a mutex
// since the parallel scheduler may deliver from several worker goroutines.
type collectorSink struct {
	mu     sync.Mutex
	events []*event.Event
}

func (s *collectorSink) Write(ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *collectorSink) snapshot() []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*event.Event(nil), s.events...)
}

func jsonLines(msgs ...string) []Line {
	out := make([]Line, len(msgs))
	for i, m := range msgs {
		out[i] = Line{Filename: "test.log", LineNumber: i + 1, Text: m}
	}
	return out
}

func newSequentialFixture(t *testing.T, lines []Line) (*Sequential, *collectorSink) {
	t.Helper()
	sink := &collectorSink{}
	p := parser.NewJSONParser()
	emitStage := stage.NewEmitStage("emit", sink)
	pipeline := stage.NewPipeline(emitStage)
	source := newFakeSource(lines)
	chunker := NewChunker(MultilineConfig{Mode: MultilineNone})
	return NewSequential(source, chunker, p, pipeline, false, nil), sink
}

func TestSequentialRunDeliversAllEvents(t *testing.T) {
	lines := jsonLines(`{"n":1}`, `{"n":2}`, `{"n":3}`)
	sched, sink := newSequentialFixture(t, lines)

	err := sched.Run(context.Background())
	require.NoError(t, err)

	events := sink.snapshot()
	require.Len(t, events, 3)
	for i, ev := range events {
		n, _ := ev.Get("n").AsInt()
		assert.Equal(t, int64(i+1), n)
	}
}

func TestSequentialRunSkipsParseErrorsResiliently(t *testing.T) {
	var parseErrs int
	lines := jsonLines(`{"n":1}`, `not json`, `{"n":2}`)
	sink := &collectorSink{}
	p := parser.NewJSONParser()
	pipeline := stage.NewPipeline(stage.NewEmitStage("emit", sink))
	chunker := NewChunker(MultilineConfig{Mode: MultilineNone})
	sched := NewSequential(newFakeSource(lines), chunker, p, pipeline, false, func(pe *parser.ParseError) {
		parseErrs++
	})

	err := sched.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, parseErrs)
	assert.Len(t, sink.snapshot(), 2)
}

func simpleScopeFn(ev *event.Event) script.Scope { return script.Scope{Event: ev} }

func TestParallelRunDeliversEveryEventInOrder(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	n := 40
	msgs := make([]string, n)
	for i := 0; i < n; i++ {
		msgs[i] = `{"n":` + itoa(i) + `}`
	}
	lines := jsonLines(msgs...)

	sink := &collectorSink{}
	baseEng, err := script.NewEngine(script.Limits{}, script.Sandbox{})
	require.NoError(t, err)

	factory := func(eng *script.Engine, tr *tracker.Tracker) (*stage.Pipeline, error) {
		return stage.NewPipeline(stage.NewEmitStage("emit", sink)), nil
	}

	cfg := ParallelConfig{Workers: 4, Batch: BatchConfig{Size: 5, Timeout: 50 * time.Millisecond}, MaxOutstanding: 64}
	chunker := NewChunker(MultilineConfig{Mode: MultilineNone})
	p := NewParallel(cfg, newFakeSource(lines), chunker, parser.NewJSONParser(), baseEng, factory, sink, false, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	events := sink.snapshot()
	require.Len(t, events, n)
	for i, ev := range events {
		v, _ := ev.Get("n").AsInt()
		assert.Equal(t, int64(i), v, "ordered mode must preserve input order")
	}
}

func TestParallelRunUnorderedDeliversEveryEvent(t *testing.T) {
	n := 30
	msgs := make([]string, n)
	for i := 0; i < n; i++ {
		msgs[i] = `{"n":` + itoa(i) + `}`
	}
	lines := jsonLines(msgs...)

	sink := &collectorSink{}
	baseEng, err := script.NewEngine(script.Limits{}, script.Sandbox{})
	require.NoError(t, err)

	factory := func(eng *script.Engine, tr *tracker.Tracker) (*stage.Pipeline, error) {
		return stage.NewPipeline(stage.NewEmitStage("emit", sink)), nil
	}

	cfg := ParallelConfig{Workers: 4, Unordered: true, Batch: BatchConfig{Size: 4, Timeout: 30 * time.Millisecond}}
	chunker := NewChunker(MultilineConfig{Mode: MultilineNone})
	p := NewParallel(cfg, newFakeSource(lines), chunker, parser.NewJSONParser(), baseEng, factory, sink, false, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Len(t, sink.snapshot(), n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
