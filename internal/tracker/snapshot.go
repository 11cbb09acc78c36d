package tracker

import "kelora/internal/event"

// Snapshot is a read-only rendering of tracker state exposed to scripts as
// `metrics` (cumulative) or `span_metrics` (span-local delta), both named
// in spec.md §4.3.
type Snapshot map[string]event.FieldValue

// Snapshot renders the tracker's current cumulative state, for the
// `metrics` scope binding.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := make(Snapshot, len(t.keys))
	for _, k := range t.keys {
		snap[k] = renderValue(t.values[k])
	}
	return snap
}

func renderValue(v *Value) event.FieldValue {
	switch v.Op {
	case OpCount:
		return event.Int(v.Count)
	case OpSum:
		if v.SumIsInt {
			return event.Int(v.IntSum)
		}
		return event.Float(v.Sum)
	case OpMin:
		if !v.haveMinMax {
			return event.Null
		}
		if v.MinIsInt {
			return event.Int(v.IntMin)
		}
		return event.Float(v.Min)
	case OpMax:
		if !v.haveMinMax {
			return event.Null
		}
		if v.MaxIsInt {
			return event.Int(v.IntMax)
		}
		return event.Float(v.Max)
	case OpAvg:
		m := event.NewOrderedMap()
		m.Set("sum", event.Float(v.AvgSum))
		m.Set("n", event.Int(v.AvgN))
		m.Set("avg", event.Float(v.AvgResult()))
		return event.Map(m)
	case OpUnique:
		m := event.NewOrderedMap()
		m.Set("count", event.Int(int64(len(v.UniqueSet))))
		sample := make([]event.FieldValue, len(v.UniqueSample))
		for i, s := range v.UniqueSample {
			sample[i] = event.String(s)
		}
		m.Set("sample", event.Array(sample))
		return event.Map(m)
	case OpBucket:
		m := event.NewOrderedMap()
		for k, c := range v.Bucket {
			m.Set(k, event.Int(c))
		}
		return event.Map(m)
	case OpTopN, OpBottomN:
		arr := make([]event.FieldValue, len(v.TopN))
		for i, r := range v.TopN {
			em := event.NewOrderedMap()
			em.Set("key", event.String(r.key))
			em.Set("score", event.Float(r.value))
			arr[i] = event.Map(em)
		}
		return event.Array(arr)
	case OpList:
		return event.Array(append([]event.FieldValue(nil), v.List...))
	case OpErrSample:
		arr := make([]event.FieldValue, len(v.ErrorSamples))
		for i, e := range v.ErrorSamples {
			em := event.NewOrderedMap()
			em.Set("message", event.String(e.Message))
			em.Set("sample", event.String(e.Sample))
			arr[i] = event.Map(em)
		}
		return event.Array(arr)
	case OpPercentile:
		m := event.NewOrderedMap()
		m.Set("p50", event.Float(v.PercentileResult(0.5)))
		m.Set("p90", event.Float(v.PercentileResult(0.9)))
		m.Set("p99", event.Float(v.PercentileResult(0.99)))
		return event.Map(m)
	default:
		return event.Null
	}
}

// deltaValue computes the span-local delta of v against its base snapshot
// (taken at span open); hadBase==false means the key was created within
// the span, so the delta is v itself.
func deltaValue(v, base *Value, hadBase bool) event.FieldValue {
	if !hadBase {
		return renderValue(v)
	}
	switch v.Op {
	case OpCount:
		return event.Int(v.Count - base.Count)
	case OpSum:
		if v.SumIsInt && base.SumIsInt {
			return event.Int(v.IntSum - base.IntSum)
		}
		return event.Float(sumAsFloat(v) - sumAsFloat(base))
	case OpAvg:
		m := event.NewOrderedMap()
		dsum := v.AvgSum - base.AvgSum
		dn := v.AvgN - base.AvgN
		m.Set("sum", event.Float(dsum))
		m.Set("n", event.Int(dn))
		avg := 0.0
		if dn != 0 {
			avg = dsum / float64(dn)
		}
		m.Set("avg", event.Float(avg))
		return event.Map(m)
	case OpUnique:
		// Min/max/unique/bucket/etc. are not naturally delta-able without
		// per-span re-tracking; span_metrics reports their span-end state
		// for these ops, matching "snapshots the span's tracker delta"
		// read as best-effort for non-additive aggregates.
		return renderValue(v)
	default:
		return renderValue(v)
	}
}

func sumAsFloat(v *Value) float64 {
	if v.SumIsInt {
		return float64(v.IntSum)
	}
	return v.Sum
}
