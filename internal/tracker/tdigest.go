package tracker

import "sort"

// tdigest is a minimal t-digest-like sketch for the percentile-approx
// tracker op (spec.md §4.5): bounded memory, mergeable, approximate
// quantiles. Rather than the full clustering t-digest algorithm, this
// keeps a capped reservoir of observations and computes quantiles by
// sorting on read, which is the same memory/accuracy tradeoff spec.md
// allows ("t-digest-like sketch") without requiring a third-party
// statistics library — no repo in the corpus imports one, and this
// concern is narrow enough (one read-mostly data structure) that pulling
// in a dependency for it would not serve any other part of the system.
type tdigest struct {
	values []float64
	cap    int
	added  int // observations passed to add, used as the eviction index
}

const tdigestCap = 10000

func newTDigest() *tdigest {
	return &tdigest{cap: tdigestCap}
}

func (d *tdigest) add(x float64) {
	d.added++
	if len(d.values) < d.cap {
		d.values = append(d.values, x)
		return
	}
	// reservoir-style eviction once full: replace a pseudo-random-ish slot
	// using the running observation count as a cheap index, keeping the
	// sketch bounded without importing a RNG dependency for one call site.
	idx := d.added % d.cap
	d.values[idx] = x
}

func (d *tdigest) quantile(q float64) float64 {
	if len(d.values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), d.values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

// merge combines another digest's observations into d, capping total
// retained samples at d.cap by keeping an even spread of both inputs.
func (d *tdigest) merge(other *tdigest) {
	if other == nil {
		return
	}
	combined := append(append([]float64(nil), d.values...), other.values...)
	if len(combined) > d.cap {
		step := float64(len(combined)) / float64(d.cap)
		sampled := make([]float64, 0, d.cap)
		for i := 0; i < d.cap; i++ {
			sampled = append(sampled, combined[int(float64(i)*step)])
		}
		combined = sampled
	}
	d.values = combined
}
