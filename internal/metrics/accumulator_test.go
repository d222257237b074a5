package metrics

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_ExactMode(t *testing.T) {
	acc := NewAccumulator()
	for _, v := range []float64{30, 10, 20, 50, 40} {
		acc.Record(v)
	}

	assert.False(t, acc.Digested())

	stats := acc.Snapshot()
	assert.Equal(t, int64(5), stats.Count)
	assert.Equal(t, 30.0, stats.Avg)
	assert.Equal(t, 10.0, stats.Min)
	assert.Equal(t, 50.0, stats.Max)
	assert.Equal(t, 30.0, stats.P50) // ceil(2.5)-1 = index 2
	assert.Equal(t, 50.0, stats.P95)
	assert.Equal(t, 50.0, stats.P99)
}

func TestAccumulator_EmptySnapshot(t *testing.T) {
	assert.Equal(t, Stats{}, NewAccumulator().Snapshot())
	assert.Equal(t, Stats{}, NewDigestAccumulator().Snapshot())
}

func TestAccumulator_OrderIndependence(t *testing.T) {
	values := []float64{5, 120, 33, 74, 1, 990, 250, 18, 62, 47}

	forward := NewAccumulator()
	for _, v := range values {
		forward.Record(v)
	}

	reversed := NewAccumulator()
	for i := len(values) - 1; i >= 0; i-- {
		reversed.Record(values[i])
	}

	assert.Equal(t, forward.Snapshot(), reversed.Snapshot())
}

func TestAccumulator_SpillsToDigest(t *testing.T) {
	acc := NewAccumulator()
	for i := 0; i < exactLimit+100; i++ {
		acc.Record(float64(i%500 + 1))
	}

	assert.True(t, acc.Digested())
	assert.Equal(t, int64(exactLimit+100), acc.Snapshot().Count)
}

func TestAccumulator_MergeExact(t *testing.T) {
	a := NewAccumulator()
	a.Record(10)
	a.Record(20)
	a.RecordError()

	b := NewAccumulator()
	b.Record(30)
	b.Record(40)

	a.Merge(b)

	stats := a.Snapshot()
	assert.Equal(t, int64(4), stats.Count)
	assert.Equal(t, 25.0, stats.Avg)
	assert.Equal(t, int64(1), a.Errors())
	assert.False(t, a.Digested())
}

func TestAccumulator_MergeWithDigestPromotes(t *testing.T) {
	exact := NewAccumulator()
	exact.Record(100)
	exact.Record(200)

	digested := NewDigestAccumulator()
	digested.Record(300)
	digested.Record(400)
	digested.RecordError()

	exact.Merge(digested)

	require.True(t, exact.Digested())
	stats := exact.Snapshot()
	assert.Equal(t, int64(4), stats.Count)
	assert.Equal(t, 100.0, stats.Min)
	assert.Equal(t, 400.0, stats.Max)
	assert.InDelta(t, 250.0, stats.Avg, 0.001)
	assert.Equal(t, int64(1), exact.Errors())
}

func TestAccumulator_CloneIsIndependent(t *testing.T) {
	orig := NewAccumulator()
	orig.Record(10)

	clone := orig.Clone()
	clone.Record(1000)

	assert.Equal(t, int64(1), orig.Count())
	assert.Equal(t, int64(2), clone.Count())
}

func TestDigest_SubMillisecondPrecision(t *testing.T) {
	d := NewDigest()
	for i := 0; i < 1000; i++ {
		d.Record(0.5)
	}
	d.Record(2.25)

	snap := d.Snapshot()
	assert.InDelta(t, 0.5, snap.P50, 0.01)
	assert.InDelta(t, 2.25, snap.Max, 0.0001)
}

func TestDigest_MergeMatchesCombinedRecording(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	combined := NewDigest()
	left := NewDigest()
	right := NewDigest()

	for i := 0; i < 20000; i++ {
		v := rng.Float64()*900 + 1
		combined.Record(v)
		if i%2 == 0 {
			left.Record(v)
		} else {
			right.Record(v)
		}
	}

	left.Merge(right)

	assert.Equal(t, combined.Count(), left.Count())
	assert.Equal(t, combined.Snapshot().P99, left.Snapshot().P99)
	assert.Equal(t, combined.Snapshot().P50, left.Snapshot().P50)
}

// The digest path must stay within one percent of the exact nearest-rank
// percentile on large inputs; this is what makes it safe to stream load-test
// latencies instead of retaining them.
func TestDigest_AccuracyAgainstExact(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	const n = 100_000
	samples := make([]float64, n)
	digest := NewDigest()
	for i := range samples {
		// Heavy-tailed mix: mostly fast responses with a slow tail, the
		// shape real load tests produce.
		v := 20 + rng.ExpFloat64()*80
		if rng.Float64() < 0.02 {
			v += rng.Float64() * 2000
		}
		samples[i] = v
		digest.Record(v)
	}

	sort.Float64s(samples)

	for _, p := range []float64{50, 95, 99} {
		exact := Percentile(samples, p)
		approx := digest.Quantile(p)
		relErr := math.Abs(approx-exact) / exact
		assert.LessOrEqualf(t, relErr, 0.01, "p%.0f: exact=%f approx=%f relative error=%f", p, exact, approx, relErr)
	}
}
