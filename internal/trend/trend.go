// Package trend compares a run summary against recent history and
// classifies each tracked metric as improving, stable, or degrading.
//
// The previous value for a metric is the mean of the last window
// historical summaries, which smooths single-run spikes. A change only
// counts as movement when it clears the metric's noise floor: rate
// metrics use an absolute floor in percentage points, latency and
// duration metrics use a floor relative to the previous value. Runs
// that carry no latency data contribute no p95 or error-rate values,
// neither as the current run nor as history.
package trend

import (
	"math"

	"gauntlet/internal/config"
	"gauntlet/internal/harness"
)

// Metric names used in trend snapshots.
const (
	MetricPassRate  = "passRate"
	MetricDuration  = "duration"
	MetricP95       = "p95"
	MetricErrorRate = "errorRate"
)

// WarningNoHistory is emitted when no historical summaries were
// available and every snapshot defaults to stable.
const WarningNoHistory = "no-history"

// Analyzer classifies metric movement between a run and its history.
type Analyzer struct {
	window int
	floors config.NoiseFloors
}

// New builds an analyzer from the trend section of the configuration.
// The noise floors arrive already resolved, including any environment
// variable overrides applied at load time.
func New(cfg config.TrendConfig) *Analyzer {
	window := cfg.Window
	if window <= 0 {
		window = config.DefaultTrendWindow
	}
	return &Analyzer{window: window, floors: cfg.NoiseFloors}
}

// metric describes one tracked series: how to read its value from a
// summary, which direction is an improvement, and the absolute noise
// floor given the previous value.
type metric struct {
	name        string
	lowerBetter bool
	value       func(*harness.RunSummary) (float64, bool)
	floor       func(previous float64) float64
}

func (a *Analyzer) metrics() []metric {
	return []metric{
		{
			name: MetricPassRate,
			value: func(s *harness.RunSummary) (float64, bool) {
				return s.Totals.TaskPassRate, true
			},
			floor: func(float64) float64 { return a.floors.PassRatePoints / 100 },
		},
		{
			name:        MetricDuration,
			lowerBetter: true,
			value: func(s *harness.RunSummary) (float64, bool) {
				return float64(s.DurationMillis), true
			},
			floor: func(previous float64) float64 { return a.floors.DurationRatio * previous },
		},
		{
			name:        MetricP95,
			lowerBetter: true,
			value: func(s *harness.RunSummary) (float64, bool) {
				if s.AggregateLatency == nil {
					return 0, false
				}
				return s.AggregateLatency.P95, true
			},
			floor: func(previous float64) float64 { return a.floors.P95Ratio * previous },
		},
		{
			name:        MetricErrorRate,
			lowerBetter: true,
			value: func(s *harness.RunSummary) (float64, bool) {
				if s.AggregateLatency == nil || s.AggregateLatency.Samples == 0 {
					return 0, false
				}
				return float64(s.AggregateLatency.Errors) / float64(s.AggregateLatency.Samples), true
			},
			floor: func(float64) float64 { return a.floors.ErrorRatePoints / 100 },
		},
	}
}

// Analyze returns one snapshot per tracked metric the current run
// measures, plus analysis warnings. History is expected newest first,
// the order the artifact store returns it in; only the first window
// entries are considered, and fewer entries than the window is fine.
func (a *Analyzer) Analyze(current *harness.RunSummary, history []harness.RunSummary) ([]harness.TrendSnapshot, []string) {
	recent := make([]harness.RunSummary, 0, a.window)
	for _, h := range history {
		if len(recent) == a.window {
			break
		}
		if h.RunID == current.RunID {
			continue
		}
		recent = append(recent, h)
	}

	var warnings []string
	if len(recent) == 0 {
		warnings = append(warnings, WarningNoHistory)
	}

	var snapshots []harness.TrendSnapshot
	for _, m := range a.metrics() {
		cur, ok := m.value(current)
		if !ok {
			continue
		}
		snapshots = append(snapshots, a.snapshot(m, cur, recent))
	}
	return snapshots, warnings
}

func (a *Analyzer) snapshot(m metric, current float64, recent []harness.RunSummary) harness.TrendSnapshot {
	snap := harness.TrendSnapshot{
		Metric:    m.name,
		Current:   current,
		Direction: harness.TrendStable,
	}

	var sum float64
	var n int
	for i := range recent {
		if v, ok := m.value(&recent[i]); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return snap
	}

	previous := sum / float64(n)
	snap.Previous = &previous
	snap.AbsoluteChange = current - previous
	if previous != 0 {
		snap.RelativeChange = snap.AbsoluteChange / previous
	}

	switch {
	case math.Abs(snap.AbsoluteChange) <= m.floor(previous):
		snap.Direction = harness.TrendStable
	case (snap.AbsoluteChange > 0) != m.lowerBetter:
		snap.Direction = harness.TrendImproving
	default:
		snap.Direction = harness.TrendDegrading
	}
	return snap
}
