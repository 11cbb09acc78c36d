package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kelora/internal/tracker"
)

func TestServerStatsHandlerEncodesSummary(t *testing.T) {
	c := NewCollector(false)
	c.AddEventsEmitted(3)

	tr := tracker.New(false)
	require.NoError(t, tr.Count("lines"))

	s := NewServer(":0", c, func() *tracker.Tracker { return tr }, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 3, got.EventsEmitted)
	assert.EqualValues(t, 1, got.Tracker["lines"])
}

func TestServerMetricsRouteIsRegistered(t *testing.T) {
	s := NewServer(":0", NewCollector(false), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerShutdownWithoutStartIsSafe(t *testing.T) {
	s := NewServer(":0", NewCollector(false), nil, nil)
	require.NoError(t, s.Shutdown(context.Background()))
}
