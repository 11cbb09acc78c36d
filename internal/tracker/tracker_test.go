package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountAndSumBasic(t *testing.T) {
	tr := New(false)
	require.NoError(t, tr.Count("hits"))
	require.NoError(t, tr.Count("hits"))
	require.NoError(t, tr.Sum("bytes", 10, true))
	require.NoError(t, tr.Sum("bytes", 5, true))

	v, ok := tr.Get("hits")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.Count)

	v2, ok := tr.Get("bytes")
	require.True(t, ok)
	assert.Equal(t, int64(15), v2.IntSum)
}

func TestRebindMismatchStrictVsResilient(t *testing.T) {
	strict := New(true)
	require.NoError(t, strict.Count("k"))
	err := strict.Sum("k", 1, true)
	assert.Error(t, err)

	resilient := New(false)
	require.NoError(t, resilient.Count("k"))
	err2 := resilient.Sum("k", 1, true)
	assert.NoError(t, err2)
	v, _ := resilient.Get("k")
	assert.Equal(t, OpCount, v.Op, "resilient rebind attempt must not change the existing binding")
}

func TestMergeCombinesWorkerTrackers(t *testing.T) {
	a := New(false)
	b := New(false)
	require.NoError(t, a.Count("hits"))
	require.NoError(t, b.Count("hits"))
	require.NoError(t, b.Count("hits"))

	require.NoError(t, a.Merge(b))
	v, ok := a.Get("hits")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.Count)
}

func TestSpanSnapshotDelta(t *testing.T) {
	tr := New(false)
	require.NoError(t, tr.Count("hits"))
	tr.OpenSpan()
	require.NoError(t, tr.Count("hits"))
	require.NoError(t, tr.Count("hits"))

	snap := tr.SpanSnapshot()
	n, ok := snap["hits"].AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(2), n, "span delta must exclude pre-span count")

	full := tr.Snapshot()
	n2, _ := full["hits"].AsInt()
	assert.Equal(t, int64(3), n2)
}

func TestUniqueTracksSampleAndCount(t *testing.T) {
	tr := New(false)
	require.NoError(t, tr.Unique("ips", "1.1.1.1"))
	require.NoError(t, tr.Unique("ips", "1.1.1.1"))
	require.NoError(t, tr.Unique("ips", "2.2.2.2"))

	v, ok := tr.Get("ips")
	require.True(t, ok)
	assert.Equal(t, 2, len(v.UniqueSet))
}

func TestTopNKeepsBoundedDescendingOrder(t *testing.T) {
	tr := New(false)
	require.NoError(t, tr.TopN("slow", "a", 1.0, 2, true))
	require.NoError(t, tr.TopN("slow", "b", 5.0, 2, true))
	require.NoError(t, tr.TopN("slow", "c", 3.0, 2, true))

	v, ok := tr.Get("slow")
	require.True(t, ok)
	require.Len(t, v.TopN, 2)
	assert.Equal(t, "b", v.TopN[0].key)
	assert.Equal(t, "c", v.TopN[1].key)
}

func TestPercentileApproxMonotonic(t *testing.T) {
	tr := New(false)
	for i := 1; i <= 100; i++ {
		require.NoError(t, tr.Percentile("latency", float64(i)))
	}
	v, ok := tr.Get("latency")
	require.True(t, ok)
	p50 := v.PercentileResult(0.5)
	p99 := v.PercentileResult(0.99)
	assert.True(t, p99 >= p50)
}
