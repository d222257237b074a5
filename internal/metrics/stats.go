package metrics

import "math"

// Stats is a point-in-time summary of a latency distribution. Values are
// milliseconds.
type Stats struct {
	Avg   float64
	Min   float64
	Max   float64
	P50   float64
	P95   float64
	P99   float64
	Count int64
}

// Percentile returns the nearest-rank percentile of an ascending-sorted
// sample slice: index = ceil(p/100 * N) - 1, clamped to the valid range.
// An empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
