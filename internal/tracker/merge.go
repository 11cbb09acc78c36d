package tracker

// Merge combines other's values into t, following the per-op merge
// functions of spec.md §4.5. Used by the parallel scheduler's coordinator
// to combine per-worker trackers into one global tracker at shutdown.
func (t *Tracker) Merge(other *Tracker) error {
	other.mu.Lock()
	otherKeys := append([]string(nil), other.keys...)
	otherValues := make(map[string]*Value, len(other.values))
	for k, v := range other.values {
		otherValues[k] = v
	}
	other.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range otherKeys {
		ov := otherValues[k]
		v, ok := t.values[k]
		if !ok {
			clone := *ov
			t.values[k] = &clone
			t.keys = append(t.keys, k)
			continue
		}
		mergeInto(v, ov)
	}
	return nil
}

func mergeInto(v, ov *Value) {
	switch v.Op {
	case OpCount:
		v.Count += ov.Count
	case OpSum:
		if v.SumIsInt && ov.SumIsInt {
			v.IntSum += ov.IntSum
		} else {
			v.Sum = sumAsFloat(v) + sumAsFloat(ov)
			v.SumIsInt = false
		}
	case OpMin:
		mergeMin(v, ov)
	case OpMax:
		mergeMax(v, ov)
	case OpAvg:
		v.AvgSum += ov.AvgSum
		v.AvgN += ov.AvgN
	case OpUnique:
		for x := range ov.UniqueSet {
			if _, seen := v.UniqueSet[x]; !seen {
				v.UniqueSet[x] = struct{}{}
				if len(v.UniqueSample) < v.UniqueCap {
					v.UniqueSample = append(v.UniqueSample, x)
				}
			}
		}
	case OpBucket:
		for k, c := range ov.Bucket {
			v.Bucket[k] += c
		}
	case OpTopN, OpBottomN:
		v.TopN = append(v.TopN, ov.TopN...)
		sortRanked(v.TopN, v.Desc)
		if len(v.TopN) > v.N {
			v.TopN = v.TopN[:v.N]
		}
	case OpList:
		v.List = append(v.List, ov.List...)
		if len(v.List) > v.ListCap {
			v.List = v.List[len(v.List)-v.ListCap:]
		}
	case OpErrSample:
		v.ErrorSamples = append(v.ErrorSamples, ov.ErrorSamples...)
		if len(v.ErrorSamples) > v.ErrCap {
			v.ErrorSamples = v.ErrorSamples[len(v.ErrorSamples)-v.ErrCap:]
		}
	case OpPercentile:
		if v.Digest == nil {
			v.Digest = newTDigest()
		}
		v.Digest.merge(ov.Digest)
	}
}

func mergeMin(v, ov *Value) {
	if !ov.haveMinMax {
		return
	}
	if !v.haveMinMax {
		v.Min, v.MinIsInt, v.IntMin, v.haveMinMax = ov.Min, ov.MinIsInt, ov.IntMin, true
		return
	}
	if ov.Min < v.Min {
		v.Min, v.MinIsInt, v.IntMin = ov.Min, ov.MinIsInt, ov.IntMin
	}
}

func mergeMax(v, ov *Value) {
	if !ov.haveMinMax {
		return
	}
	if !v.haveMinMax {
		v.Max, v.MaxIsInt, v.IntMax, v.haveMinMax = ov.Max, ov.MaxIsInt, ov.IntMax, true
		return
	}
	if ov.Max > v.Max {
		v.Max, v.MaxIsInt, v.IntMax = ov.Max, ov.MaxIsInt, ov.IntMax
	}
}
