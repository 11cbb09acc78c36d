package diag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerDisabledSelectorIsNoop(t *testing.T) {
	tr, err := NewTracer(ParseTraceSelector(""), DefaultTracerConfig())
	require.NoError(t, err)

	ctx, end := tr.StageSpan(context.Background(), "filter")
	assert.NotNil(t, ctx)
	end(nil)
	end(errors.New("boom")) // must not panic even though no span was started

	require.NoError(t, tr.Shutdown(context.Background()))
}
