package diag

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelora/internal/parser"
	"kelora/internal/tracker"
)

func TestCollectorBuildReflectsCounters(t *testing.T) {
	c := NewCollector(true)
	c.AddLinesRead(10)
	c.AddEventsParsed(9)
	c.RecordParseError(&parser.ParseError{Filename: "a.log", LineNumber: 3, Format: "json", Reason: "bad"})
	c.AddEventsEmitted(8)
	c.AddEventsSkipped(1)

	s := c.Build(nil)
	assert.True(t, s.Strict)
	assert.Equal(t, int64(10), s.LinesRead)
	assert.Equal(t, int64(9), s.EventsParsed)
	assert.Equal(t, int64(1), s.ParseErrors)
	assert.Equal(t, int64(8), s.EventsEmitted)
	assert.Equal(t, int64(1), s.EventsSkipped)
	assert.Nil(t, s.Tracker)
}

func TestRenderTrackerCoversCountSumMinMax(t *testing.T) {
	tr := tracker.New(false)
	require.NoError(t, tr.Count("hits"))
	require.NoError(t, tr.Count("hits"))
	require.NoError(t, tr.Sum("bytes", 10, true))
	require.NoError(t, tr.Sum("bytes", 5, true))
	require.NoError(t, tr.Min("latency_min", 3.5, false))
	require.NoError(t, tr.Max("latency_max", 9.5, false))

	rendered := RenderTracker(tr)
	assert.EqualValues(t, 2, rendered["hits"])
	assert.EqualValues(t, 15, rendered["bytes"])
	assert.EqualValues(t, 3.5, rendered["latency_min"])
	assert.EqualValues(t, 9.5, rendered["latency_max"])
}

func TestWriteSummaryOmitsHeadersWhenDisabled(t *testing.T) {
	c := NewCollector(false)
	c.AddLinesRead(1)
	s := c.Build(nil)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s, false))
	assert.False(t, strings.Contains(buf.String(), sectionEmoji))

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, s, true))
	assert.True(t, strings.Contains(buf.String(), sectionEmoji))
}

func TestWriteMetricsFileRoundTrips(t *testing.T) {
	c := NewCollector(false)
	c.AddEventsEmitted(4)
	s := c.Build(nil)

	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, WriteMetricsFile(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"events_emitted": 4`)
}

func TestTraceSelectorMatching(t *testing.T) {
	all := ParseTraceSelector("*")
	assert.True(t, all.Matches("anything"))

	scoped := ParseTraceSelector("filter,exec")
	assert.True(t, scoped.Matches("filter"))
	assert.False(t, scoped.Matches("window"))

	off := ParseTraceSelector("")
	assert.False(t, off.Enabled())
}
