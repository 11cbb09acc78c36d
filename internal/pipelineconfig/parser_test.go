package pipelineconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParserResolvesConfiguredFormat(t *testing.T) {
	c := Defaults()
	c.Format = "json"
	p, err := BuildParser(c)
	require.NoError(t, err)
	assert.Equal(t, "json", p.Name())
}

func TestBuildParserDefaultsToAuto(t *testing.T) {
	p, err := BuildParser(Defaults())
	require.NoError(t, err)
	assert.Equal(t, "auto", p.Name())
}
