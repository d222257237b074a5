package metrics

import (
	"math"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded into the histogram in microseconds so sub-millisecond
// observations keep their precision. One hour is the largest trackable value;
// anything beyond is clamped rather than dropped.
const (
	digestMinMicros = 1
	digestMaxMicros = int64(3_600_000_000)
	digestSigFigs   = 3
)

// Digest is a bounded-memory latency distribution backed by an HDR histogram.
// Recording is O(1), memory does not grow with the sample count, and merging
// two digests is exact at the bucket level, which keeps aggregation
// order-independent. With three significant figures the relative quantile
// error stays well below one percent.
//
// Mean, min and max are tracked exactly alongside the histogram since the
// bucketed values are quantized.
type Digest struct {
	hist  *hdrhistogram.Histogram
	sum   float64
	count int64
	min   float64
	max   float64
}

// NewDigest returns an empty digest.
func NewDigest() *Digest {
	return &Digest{
		hist: hdrhistogram.New(digestMinMicros, digestMaxMicros, digestSigFigs),
	}
}

// Record adds one observation in milliseconds.
func (d *Digest) Record(ms float64) {
	if ms < 0 || math.IsNaN(ms) {
		ms = 0
	}
	us := int64(math.Round(ms * 1000))
	if us < digestMinMicros {
		us = digestMinMicros
	}
	if us > digestMaxMicros {
		us = digestMaxMicros
	}
	// RecordValue only fails outside the trackable range, which the clamps
	// above rule out.
	_ = d.hist.RecordValue(us)

	d.sum += ms
	if d.count == 0 || ms < d.min {
		d.min = ms
	}
	if ms > d.max {
		d.max = ms
	}
	d.count++
}

// Count returns the number of recorded observations.
func (d *Digest) Count() int64 {
	return d.count
}

// Quantile returns the value at percentile p (0..100) in milliseconds.
func (d *Digest) Quantile(p float64) float64 {
	if d.count == 0 {
		return 0
	}
	return float64(d.hist.ValueAtQuantile(p)) / 1000
}

// Merge folds another digest into this one.
func (d *Digest) Merge(other *Digest) {
	if other == nil || other.count == 0 {
		return
	}
	d.hist.Merge(other.hist)
	d.sum += other.sum
	if d.count == 0 || other.min < d.min {
		d.min = other.min
	}
	if other.max > d.max {
		d.max = other.max
	}
	d.count += other.count
}

// Snapshot summarizes the distribution.
func (d *Digest) Snapshot() Stats {
	if d.count == 0 {
		return Stats{}
	}
	return Stats{
		Avg:   d.sum / float64(d.count),
		Min:   d.min,
		Max:   d.max,
		P50:   d.Quantile(50),
		P95:   d.Quantile(95),
		P99:   d.Quantile(99),
		Count: d.count,
	}
}
