// Package slo evaluates latency and error-rate objectives against
// normalized results. Evaluation is pure: policy and result in, failures
// out. The scheduler turns a non-empty failure set on an otherwise clean
// task into a failed state; the aggregator evaluates the run-level policy
// against merged stats the same way.
package slo

import (
	"path"
	"sort"
	"strings"

	"gauntlet/internal/harness"
)

// Metric names used in failure records. They double as task failure
// reasons, so reports can name the predicate that missed.
const (
	MetricP95       = "p95"
	MetricP99       = "p99"
	MetricErrorRate = "errorRate"
	MetricMinCases  = "minCases"
)

// LabelAggregate marks failures of the whole-result distribution, as
// opposed to a single labeled endpoint.
const LabelAggregate = "aggregate"

// Evaluate checks a result against a policy and returns one failure per
// breached predicate, in p95, p99, errorRate, minCases order. Thresholds
// are strict upper bounds: a value equal to its threshold already fails.
//
// Percentile thresholds normally need samples to evaluate; with zero
// samples the percentile is undefined and counts as a breach only when
// minCases > 0, because a policy that demands volume treats absent data
// as a finding rather than a pass. Per-label thresholds apply only to
// labels matched by a policy label pattern, with the base policy filling
// fields the override leaves unset.
func Evaluate(policy *harness.SLOPolicy, result *harness.NormalizedResult, scope string) []harness.SLOFailure {
	if policy == nil || result == nil {
		return nil
	}

	var failures []harness.SLOFailure
	undefinedFails := policy.MinCases > 0
	failures = append(failures, check(policy, scope, LabelAggregate, result.AggregateLatency, result.ErrorRate, undefinedFails)...)
	if policy.MinCases > 0 && result.Totals.Cases < policy.MinCases {
		failures = append(failures, harness.SLOFailure{
			Scope: scope, Label: LabelAggregate, Metric: MetricMinCases,
			Threshold: float64(policy.MinCases), Actual: float64(result.Totals.Cases),
		})
	}

	labels := make([]string, 0, len(result.LatencyByLabel))
	for label := range result.LatencyByLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		override := matchOverride(policy, label)
		if override == nil {
			continue
		}
		stats := result.LatencyByLabel[label]
		failures = append(failures, check(policy.Merged(override), scope, label, stats, labelErrorRate(stats), false)...)
	}
	return failures
}

// ReasonSet renders the distinct breached metrics of a failure set as a
// task failure reason, in evaluation order.
func ReasonSet(failures []harness.SLOFailure) string {
	var reasons []string
	seen := make(map[string]bool, len(failures))
	for _, f := range failures {
		if seen[f.Metric] {
			continue
		}
		seen[f.Metric] = true
		reasons = append(reasons, f.Metric)
	}
	return strings.Join(reasons, ", ")
}

// check emits one failure per breached threshold, in p95, p99, errorRate
// order. The error-rate threshold always applies; percentile thresholds
// follow the undefined-percentile rule above.
func check(policy *harness.SLOPolicy, scope, label string, stats *harness.LatencyStats, errorRate float64, undefinedFails bool) []harness.SLOFailure {
	var failures []harness.SLOFailure

	defined := stats != nil && stats.Samples > 0
	p95, p99 := 0.0, 0.0
	if defined {
		p95, p99 = stats.P95, stats.P99
	}

	if policy.P95LtMillis != nil && (defined && p95 >= *policy.P95LtMillis || !defined && undefinedFails) {
		failures = append(failures, harness.SLOFailure{
			Scope: scope, Label: label, Metric: MetricP95,
			Threshold: *policy.P95LtMillis, Actual: p95,
		})
	}
	if policy.P99LtMillis != nil && (defined && p99 >= *policy.P99LtMillis || !defined && undefinedFails) {
		failures = append(failures, harness.SLOFailure{
			Scope: scope, Label: label, Metric: MetricP99,
			Threshold: *policy.P99LtMillis, Actual: p99,
		})
	}
	if policy.ErrorRateLtRatio != nil && errorRate >= *policy.ErrorRateLtRatio {
		failures = append(failures, harness.SLOFailure{
			Scope: scope, Label: label, Metric: MetricErrorRate,
			Threshold: *policy.ErrorRateLtRatio, Actual: errorRate,
		})
	}
	return failures
}

// matchOverride finds the label override whose glob pattern matches. The
// longest matching pattern wins; ties break lexicographically so results
// are stable.
func matchOverride(policy *harness.SLOPolicy, label string) *harness.SLOPolicy {
	var bestPattern string
	var best *harness.SLOPolicy

	patterns := make([]string, 0, len(policy.Labels))
	for pattern := range policy.Labels {
		patterns = append(patterns, pattern)
	}
	sort.Strings(patterns)

	for _, pattern := range patterns {
		matched, err := path.Match(pattern, label)
		if err != nil || !matched {
			continue
		}
		if best == nil || len(pattern) > len(bestPattern) {
			bestPattern = pattern
			best = policy.Labels[pattern]
		}
	}
	return best
}

func labelErrorRate(stats *harness.LatencyStats) float64 {
	if stats == nil || stats.Samples == 0 {
		return 0
	}
	return float64(stats.Errors) / float64(stats.Samples)
}
