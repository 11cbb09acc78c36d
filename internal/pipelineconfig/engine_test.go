package pipelineconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelora/internal/event"
	"kelora/internal/script"
	"kelora/internal/tracker"
)

func TestNewBaseEngineWiresEveryHelperFactory(t *testing.T) {
	eng, err := NewBaseEngine(Defaults())
	require.NoError(t, err)
	eng.SetTracker(tracker.New(false))

	prog, err := eng.Compile(`track_count("hits") && ip_valid("127.0.0.1")`)
	require.NoError(t, err)

	ev := event.New("t.log", 1, "")
	_, err = prog.Eval(script.Scope{Event: ev})
	assert.NoError(t, err)
}

func TestParseLevelStrictRejectsUnknownSpelling(t *testing.T) {
	assert.Equal(t, -1, parseLevelStrict("nope"))
	assert.NotEqual(t, -1, parseLevelStrict("warn"))
}

func TestLevelSetEmptyWhenUnconfigured(t *testing.T) {
	assert.Nil(t, levelSet(Defaults()))
}
