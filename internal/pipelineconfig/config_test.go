package pipelineconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}

func TestValidateRejectsContextWithoutFilter(t *testing.T) {
	c := Defaults()
	c.ContextBefore = 1
	err := c.Validate()
	assert := assert.New(t)
	assert.Error(err)
	assert.Contains(err.Error(), "context")
}

func TestValidateRejectsHardenedAndUnlimitedTogether(t *testing.T) {
	c := Defaults()
	c.Hardened = true
	c.ScriptUnlimited = true
	err := c.Validate()
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestValidateRejectsUnknownSpanMode(t *testing.T) {
	c := Defaults()
	c.Span = SpanModeConfig{Mode: "bogus"}
	c.SpanClose = "emit_each([])"
	err := c.Validate()
	assert.ErrorContains(t, err, "unknown span mode")
}

func TestValidateRejectsSpanWithoutClose(t *testing.T) {
	c := Defaults()
	c.Span = SpanModeConfig{Mode: "count", Count: 10}
	err := c.Validate()
	assert.ErrorContains(t, err, "span-close")
}

func TestValidateRejectsUnknownLevel(t *testing.T) {
	c := Defaults()
	c.Levels = []string{"warn", "not-a-level"}
	err := c.Validate()
	assert.ErrorContains(t, err, "not-a-level")
}

func TestValidateAccumulatesMultipleProblems(t *testing.T) {
	c := Defaults()
	c.Parallel = 0
	c.BatchSize = 0
	err := c.Validate()
	assert.ErrorContains(t, err, "parallel")
	assert.ErrorContains(t, err, "batch_size")
}
