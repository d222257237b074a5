package metrics

import "sort"

// exactLimit bounds how many samples an accumulator keeps verbatim before
// spilling into a digest. Small result sets (browser specs, HTTP requests)
// stay exact; load streams never get close to keeping samples.
const exactLimit = 4096

// Accumulator collects latency observations and answers percentile queries.
// It runs in one of two modes: exact, where samples are retained and
// percentiles use the nearest-rank definition, and digest, where observations
// feed a bounded-memory HDR histogram. Accumulators start exact and switch to
// digest mode once the sample bound is exceeded or when merged with a digest
// accumulator. Either way results are independent of recording order.
type Accumulator struct {
	samples []float64
	digest  *Digest
	errors  int64
}

// NewAccumulator returns an accumulator in exact mode.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// NewDigestAccumulator returns an accumulator that starts in digest mode.
// Streaming parsers use this so memory stays bounded from the first sample.
func NewDigestAccumulator() *Accumulator {
	return &Accumulator{digest: NewDigest()}
}

// Record adds one observation in milliseconds.
func (a *Accumulator) Record(ms float64) {
	if a.digest != nil {
		a.digest.Record(ms)
		return
	}
	a.samples = append(a.samples, ms)
	if len(a.samples) > exactLimit {
		a.spill()
	}
}

// RecordError counts an observation flagged as failed by the producing tool.
// Errors ride along so merged accumulators keep their error totals.
func (a *Accumulator) RecordError() {
	a.errors++
}

// Errors returns the number of failed observations.
func (a *Accumulator) Errors() int64 {
	return a.errors
}

// Count returns the number of latency observations.
func (a *Accumulator) Count() int64 {
	if a.digest != nil {
		return a.digest.Count()
	}
	return int64(len(a.samples))
}

// Digested reports whether the accumulator has switched to digest mode.
func (a *Accumulator) Digested() bool {
	return a.digest != nil
}

func (a *Accumulator) spill() {
	d := NewDigest()
	for _, s := range a.samples {
		d.Record(s)
	}
	a.samples = nil
	a.digest = d
}

// Merge folds another accumulator into this one. Merging with a digest
// accumulator promotes this one to digest mode first.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	a.errors += other.errors
	if other.digest != nil {
		if a.digest == nil {
			a.spill()
		}
		a.digest.Merge(other.digest)
		return
	}
	if a.digest != nil {
		for _, s := range other.samples {
			a.digest.Record(s)
		}
		return
	}
	a.samples = append(a.samples, other.samples...)
	if len(a.samples) > exactLimit {
		a.spill()
	}
}

// Clone returns an independent copy, so one task's accumulator can feed
// several run-level unions without aliasing.
func (a *Accumulator) Clone() *Accumulator {
	out := &Accumulator{errors: a.errors}
	if a.digest != nil {
		out.digest = NewDigest()
		out.digest.Merge(a.digest)
		return out
	}
	out.samples = append(out.samples, a.samples...)
	return out
}

// Snapshot summarizes the distribution recorded so far.
func (a *Accumulator) Snapshot() Stats {
	if a.digest != nil {
		return a.digest.Snapshot()
	}
	n := len(a.samples)
	if n == 0 {
		return Stats{}
	}
	sorted := make([]float64, n)
	copy(sorted, a.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	return Stats{
		Avg:   sum / float64(n),
		Min:   sorted[0],
		Max:   sorted[n-1],
		P50:   Percentile(sorted, 50),
		P95:   Percentile(sorted, 95),
		P99:   Percentile(sorted, 99),
		Count: int64(n),
	}
}
