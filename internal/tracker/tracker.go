// Package tracker implements the per-worker aggregator store (spec.md §4.5
// "Tracker and aggregators"): an ordered map from user key to Value,
// each Value recording which operation its key is bound to, and the
// merge functions used to combine per-worker trackers into one global
// tracker at shutdown.
//
// Grounded on the teacher's internal/metrics package, which keeps a
// similar registry of named counters/gauges behind a mutex and exposes
// typed accessor methods per metric kind; generalized here from a fixed
// set of Prometheus-shaped metrics to an open, user-named key space whose
// operation is chosen at first use.
package tracker

import (
	"fmt"
	"sort"
	"sync"

	"kelora/internal/apperrors"
	"kelora/internal/event"
)

// Op identifies one of the canonical aggregation operations.
type Op string

const (
	OpCount     Op = "count"
	OpSum       Op = "sum"
	OpMin       Op = "min"
	OpMax       Op = "max"
	OpAvg       Op = "avg"
	OpUnique    Op = "unique"
	OpBucket    Op = "bucket"
	OpTopN      Op = "top_n"
	OpBottomN   Op = "bottom_n"
	OpList      Op = "list"
	OpErrSample Op = "error_examples"
	OpPercentile Op = "percentile_approx"
)

// Value holds the accumulator state for one tracker key. Only the field
// matching Op is meaningful; the others are zero.
type Value struct {
	Op Op

	Count int64
	Sum   float64
	SumIsInt bool
	IntSum   int64

	Min, Max       float64
	MinIsInt, MaxIsInt bool
	IntMin, IntMax int64
	haveMinMax     bool

	AvgSum float64
	AvgN   int64

	UniqueSet    map[string]struct{}
	UniqueSample []string
	UniqueCap    int

	Bucket map[string]int64

	TopN    []rankedEntry
	N       int
	Desc    bool // true = top-N (descending), false = bottom-N

	List    []event.FieldValue
	ListCap int

	ErrorSamples []ErrorExample
	ErrCap       int

	Digest *tdigest
}

type rankedEntry struct {
	key   string
	value float64
}

// ErrorExample is one recorded sample for the error-examples op.
type ErrorExample struct {
	Message string
	Sample  string
}

// Tracker is the per-worker ordered store of tracked keys.
type Tracker struct {
	mu      sync.Mutex
	keys    []string
	values  map[string]*Value
	strict  bool

	spanBase map[string]*Value // snapshot taken at span open, for span_metrics deltas
}

func New(strict bool) *Tracker {
	return &Tracker{values: make(map[string]*Value), strict: strict}
}

// bind returns the Value for key, creating it bound to op on first use.
// A mismatched op on an existing key is an error in strict mode, or the
// call is ignored (existing binding kept) in resilient mode.
func (t *Tracker) bind(key string, op Op, newFn func() *Value) (*Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.values[key]
	if !ok {
		v = newFn()
		v.Op = op
		t.values[key] = v
		t.keys = append(t.keys, key)
		return v, nil
	}
	if v.Op != op {
		if t.strict {
			return nil, apperrors.New(apperrors.Hard, apperrors.CodeTrackerUnknownOp, "tracker", "bind",
				fmt.Sprintf("key %q already bound to op %q, cannot rebind to %q", key, v.Op, op))
		}
		return v, nil
	}
	return v, nil
}

// Count implements track_count(key).
func (t *Tracker) Count(key string) error {
	v, err := t.bind(key, OpCount, func() *Value { return &Value{} })
	if err != nil {
		return err
	}
	t.mu.Lock()
	v.Count++
	t.mu.Unlock()
	return nil
}

// Sum implements track_sum(key, x).
func (t *Tracker) Sum(key string, x float64, isInt bool) error {
	v, err := t.bind(key, OpSum, func() *Value { return &Value{SumIsInt: true} })
	if err != nil {
		return err
	}
	t.mu.Lock()
	if v.SumIsInt && isInt {
		v.IntSum += int64(x)
	} else {
		if v.SumIsInt {
			v.Sum = float64(v.IntSum)
			v.SumIsInt = false
		}
		v.Sum += x
	}
	t.mu.Unlock()
	return nil
}

// Min implements track_min(key, x).
func (t *Tracker) Min(key string, x float64, isInt bool) error {
	return t.minmax(key, OpMin, x, isInt, false)
}

// Max implements track_max(key, x).
func (t *Tracker) Max(key string, x float64, isInt bool) error {
	return t.minmax(key, OpMax, x, isInt, true)
}

func (t *Tracker) minmax(key string, op Op, x float64, isInt bool, wantMax bool) error {
	v, err := t.bind(key, op, func() *Value { return &Value{} })
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !v.haveMinMax {
		v.Min, v.Max = x, x
		v.MinIsInt, v.MaxIsInt = isInt, isInt
		v.IntMin, v.IntMax = int64(x), int64(x)
		v.haveMinMax = true
		return nil
	}
	if wantMax {
		if x > v.Max {
			v.Max = x
			v.MaxIsInt = isInt
			v.IntMax = int64(x)
		}
	} else {
		if x < v.Min {
			v.Min = x
			v.MinIsInt = isInt
			v.IntMin = int64(x)
		}
	}
	return nil
}

// Avg implements track_avg(key, x).
func (t *Tracker) Avg(key string, x float64) error {
	v, err := t.bind(key, OpAvg, func() *Value { return &Value{} })
	if err != nil {
		return err
	}
	t.mu.Lock()
	v.AvgSum += x
	v.AvgN++
	t.mu.Unlock()
	return nil
}

// AvgResult returns sum/n, or 0 if n == 0.
func (v *Value) AvgResult() float64 {
	if v.AvgN == 0 {
		return 0
	}
	return v.AvgSum / float64(v.AvgN)
}

const defaultUniqueSampleCap = 20

// Unique implements track_unique(key, x).
func (t *Tracker) Unique(key string, x string) error {
	v, err := t.bind(key, OpUnique, func() *Value {
		return &Value{UniqueSet: make(map[string]struct{}), UniqueCap: defaultUniqueSampleCap}
	})
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := v.UniqueSet[x]; !seen {
		v.UniqueSet[x] = struct{}{}
		if len(v.UniqueSample) < v.UniqueCap {
			v.UniqueSample = append(v.UniqueSample, x)
		}
	}
	return nil
}

// Bucket implements track_bucket(key, x).
func (t *Tracker) Bucket(key string, x string) error {
	v, err := t.bind(key, OpBucket, func() *Value { return &Value{Bucket: make(map[string]int64)} })
	if err != nil {
		return err
	}
	t.mu.Lock()
	v.Bucket[x]++
	t.mu.Unlock()
	return nil
}

// TopN implements track_top(key, x, score, n) (and BottomN via desc=false).
func (t *Tracker) TopN(key string, x string, score float64, n int, desc bool) error {
	op := OpTopN
	if !desc {
		op = OpBottomN
	}
	v, err := t.bind(key, op, func() *Value { return &Value{N: n, Desc: desc} })
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v.TopN = append(v.TopN, rankedEntry{key: x, value: score})
	sortRanked(v.TopN, v.Desc)
	if len(v.TopN) > v.N {
		v.TopN = v.TopN[:v.N]
	}
	return nil
}

func sortRanked(r []rankedEntry, desc bool) {
	sort.SliceStable(r, func(i, j int) bool {
		if desc {
			return r[i].value > r[j].value
		}
		return r[i].value < r[j].value
	})
}

const defaultListCap = 1000

// List implements track_list(key, value [, cap]).
func (t *Tracker) List(key string, v2 event.FieldValue, cap int) error {
	v, err := t.bind(key, OpList, func() *Value {
		c := cap
		if c <= 0 {
			c = defaultListCap
		}
		return &Value{ListCap: c}
	})
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v.List = append(v.List, v2)
	if len(v.List) > v.ListCap {
		v.List = v.List[len(v.List)-v.ListCap:]
	}
	return nil
}

const defaultErrCap = 100

// ErrorExample implements track_error(key, msg, sample [, cap]).
func (t *Tracker) ErrorExample(key, msg, sample string, cap int) error {
	v, err := t.bind(key, OpErrSample, func() *Value {
		c := cap
		if c <= 0 {
			c = defaultErrCap
		}
		return &Value{ErrCap: c}
	})
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	v.ErrorSamples = append(v.ErrorSamples, ErrorExample{Message: msg, Sample: sample})
	if len(v.ErrorSamples) > v.ErrCap {
		v.ErrorSamples = v.ErrorSamples[len(v.ErrorSamples)-v.ErrCap:]
	}
	return nil
}

// Percentile implements track_percentile(key, x).
func (t *Tracker) Percentile(key string, x float64) error {
	v, err := t.bind(key, OpPercentile, func() *Value { return &Value{Digest: newTDigest()} })
	if err != nil {
		return err
	}
	t.mu.Lock()
	v.Digest.add(x)
	t.mu.Unlock()
	return nil
}

// PercentileResult returns the approximate value at quantile q ∈ [0,1].
func (v *Value) PercentileResult(q float64) float64 {
	if v.Digest == nil {
		return 0
	}
	return v.Digest.quantile(q)
}

// Keys returns tracker keys in first-bind order.
func (t *Tracker) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.keys...)
}

// Get returns the Value bound to key, if any.
func (t *Tracker) Get(key string) (*Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[key]
	return v, ok
}

// OpenSpan takes a private snapshot of the current values, used to compute
// span-local deltas for span_metrics (spec.md §4.4.4).
func (t *Tracker) OpenSpan() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spanBase = make(map[string]*Value, len(t.values))
	for k, v := range t.values {
		clone := *v
		t.spanBase[k] = &clone
	}
}

// SpanSnapshot returns a Snapshot describing the delta since the last
// OpenSpan call, with an entry for every bound key (unchanged keys
// included); keys created within the span report their full value.
func (t *Tracker) SpanSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := make(Snapshot)
	for _, k := range t.keys {
		v := t.values[k]
		base, hadBase := t.spanBase[k]
		delta := deltaValue(v, base, hadBase)
		snap[k] = delta
	}
	return snap
}
