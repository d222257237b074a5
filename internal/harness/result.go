package harness

import (
	"time"

	"gauntlet/internal/metrics"
)

// CaseTotals counts individual test cases inside one result.
type CaseTotals struct {
	// Cases is the total number of cases observed.
	Cases int `json:"cases"`
	// Passed counts cases that succeeded.
	Passed int `json:"passed"`
	// Failed counts cases with assertion failures.
	Failed int `json:"failed"`
	// Skipped counts cases the tool marked skipped or pending.
	Skipped int `json:"skipped"`
	// Errored counts cases that broke before producing a verdict.
	Errored int `json:"errored"`
}

// Add folds another set of totals into this one.
func (t *CaseTotals) Add(other CaseTotals) {
	t.Cases += other.Cases
	t.Passed += other.Passed
	t.Failed += other.Failed
	t.Skipped += other.Skipped
	t.Errored += other.Errored
}

// LatencyStats summarizes a latency distribution. All values are
// milliseconds.
type LatencyStats struct {
	// Avg is the arithmetic mean.
	Avg float64 `json:"avg"`
	// Min is the smallest observed value.
	Min float64 `json:"min"`
	// Max is the largest observed value.
	Max float64 `json:"max"`
	// P50 is the median (nearest-rank).
	P50 float64 `json:"p50"`
	// P95 is the 95th percentile.
	P95 float64 `json:"p95"`
	// P99 is the 99th percentile.
	P99 float64 `json:"p99"`
	// Samples is the number of observations behind these figures.
	Samples int64 `json:"samples"`
	// Errors counts observations flagged as failed by the producing tool.
	Errors int64 `json:"errors"`

	// Accumulator is the in-memory distribution backing these figures. It
	// lets run-level stats be recomputed from the union of task-level
	// observations instead of averaging percentiles. Never serialized;
	// aggregation rebuilds it from raw artifacts when replaying from disk.
	Accumulator *metrics.Accumulator `json:"-"`
}

// FromAccumulator builds stats from a populated accumulator and keeps the
// accumulator attached for later merging.
func FromAccumulator(acc *metrics.Accumulator, errors int64) *LatencyStats {
	snap := acc.Snapshot()
	return &LatencyStats{
		Avg:         snap.Avg,
		Min:         snap.Min,
		Max:         snap.Max,
		P50:         snap.P50,
		P95:         snap.P95,
		P99:         snap.P99,
		Samples:     snap.Count,
		Errors:      errors,
		Accumulator: acc,
	}
}

// NormalizedResult is the tool-independent shape every parser produces.
type NormalizedResult struct {
	// Tool names the format family that produced the raw artifact.
	Tool string `json:"tool,omitempty"`
	// Totals counts the individual cases.
	Totals CaseTotals `json:"totals"`
	// DurationMillis is the tool-reported duration when available, else the
	// attempt's wall-clock duration.
	DurationMillis int64 `json:"durationMillis"`
	// LatencyByLabel carries one distribution per label (request name, spec
	// file, transaction).
	LatencyByLabel map[string]*LatencyStats `json:"latencyMillisByLabel,omitempty"`
	// AggregateLatency is the distribution across all labels.
	AggregateLatency *LatencyStats `json:"aggregateLatencyMillis,omitempty"`
	// ErrorRate is failed observations over total observations, 0..1.
	ErrorRate float64 `json:"errorRate"`
	// ThroughputPerSecond is reported by load suites; zero elsewhere.
	ThroughputPerSecond float64 `json:"throughputPerSecond,omitempty"`
	// Warnings carries non-fatal parse findings (malformed rows, empty
	// output, skipped SLO evaluation).
	Warnings []string `json:"warnings,omitempty"`
}

// SLOPolicy declares latency and reliability thresholds. All comparisons are
// strict: a value equal to its threshold fails. Nil fields are not enforced.
//
// The type carries both tag sets because it appears in config.yaml (yaml.v3)
// and in suite definition files and summaries (JSON-convention YAML/JSON).
type SLOPolicy struct {
	// P95LtMillis requires the 95th percentile to stay below this bound.
	P95LtMillis *float64 `json:"p95LtMillis,omitempty" yaml:"p95LtMillis,omitempty"`
	// P99LtMillis requires the 99th percentile to stay below this bound.
	P99LtMillis *float64 `json:"p99LtMillis,omitempty" yaml:"p99LtMillis,omitempty"`
	// ErrorRateLtRatio requires the error rate to stay below this ratio.
	ErrorRateLtRatio *float64 `json:"errorRateLtRatio,omitempty" yaml:"errorRateLtRatio,omitempty"`
	// MinCases skips SLO evaluation entirely when fewer cases ran.
	MinCases int `json:"minCases,omitempty" yaml:"minCases,omitempty"`
	// Labels maps glob patterns to per-label overrides. An override
	// replaces only the fields it sets; the longest matching pattern wins.
	Labels map[string]*SLOPolicy `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Merged overlays child onto the receiver: child fields that are set replace
// the receiver's, everything else is inherited. Label override maps are not
// merged; the child's map wins when present.
func (p *SLOPolicy) Merged(child *SLOPolicy) *SLOPolicy {
	if p == nil {
		return child
	}
	if child == nil {
		return p
	}
	out := &SLOPolicy{
		P95LtMillis:      p.P95LtMillis,
		P99LtMillis:      p.P99LtMillis,
		ErrorRateLtRatio: p.ErrorRateLtRatio,
		MinCases:         p.MinCases,
		Labels:           p.Labels,
	}
	if child.P95LtMillis != nil {
		out.P95LtMillis = child.P95LtMillis
	}
	if child.P99LtMillis != nil {
		out.P99LtMillis = child.P99LtMillis
	}
	if child.ErrorRateLtRatio != nil {
		out.ErrorRateLtRatio = child.ErrorRateLtRatio
	}
	if child.MinCases > 0 {
		out.MinCases = child.MinCases
	}
	if child.Labels != nil {
		out.Labels = child.Labels
	}
	return out
}

// Verdict classifies the overall outcome of a run.
type Verdict string

const (
	// VerdictPass means every task passed or was skipped and no SLO failed.
	VerdictPass Verdict = "pass"
	// VerdictSLOFail means the only failures are SLO threshold violations.
	VerdictSLOFail Verdict = "sloFail"
	// VerdictFatal means at least one task failed, errored or timed out.
	VerdictFatal Verdict = "fatal"
)

// SLOFailure records a single threshold violation.
type SLOFailure struct {
	// Scope is "run" for run-level violations or a task key string.
	Scope string `json:"scope"`
	// Label is the violating label, or "aggregate".
	Label string `json:"label"`
	// Metric is one of p95, p99, errorRate.
	Metric string `json:"metric"`
	// Threshold is the configured bound.
	Threshold float64 `json:"threshold"`
	// Actual is the observed value.
	Actual float64 `json:"actual"`
}

// TaskTotals counts tasks by final state plus the case totals underneath
// them. Both pass-rate views are kept: operators steer by tasks, trend
// dashboards often want cases.
type TaskTotals struct {
	Tasks        int     `json:"tasks"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	Errored      int     `json:"errored"`
	Timeout      int     `json:"timeout"`
	Skipped      int     `json:"skipped"`
	Cases        int     `json:"cases"`
	CasesPassed  int     `json:"casesPassed"`
	CasesFailed  int     `json:"casesFailed"`
	CasesSkipped int     `json:"casesSkipped"`
	CasesErrored int     `json:"casesErrored"`
	TaskPassRate float64 `json:"taskPassRate"`
	CasePassRate float64 `json:"casePassRate"`
}

// GroupStats aggregates task outcomes for one grouping dimension (per suite,
// per environment).
type GroupStats struct {
	Tasks          int   `json:"tasks"`
	Passed         int   `json:"passed"`
	Failed         int   `json:"failed"`
	Errored        int   `json:"errored"`
	Timeout        int   `json:"timeout"`
	Skipped        int   `json:"skipped"`
	DurationMillis int64 `json:"durationMillis"`
}

// RunSummary is the artifact of record for a run. It is written as
// summary.json, appended to history, and rendered into every other report
// format. Serialization is deterministic: tasks are sorted by key and maps
// marshal with sorted keys.
type RunSummary struct {
	// RunID identifies the run.
	RunID string `json:"runId"`
	// Environment the run targeted.
	Environment string `json:"environment"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`
	// EndedAt is when the last task finished.
	EndedAt time.Time `json:"endedAt"`
	// DurationMillis spans the whole run.
	DurationMillis int64 `json:"durationMillis"`
	// Verdict classifies the run.
	Verdict Verdict `json:"verdict"`
	// ExitCode is the process exit code the run maps to.
	ExitCode int `json:"exitCode"`
	// Totals counts tasks and cases.
	Totals TaskTotals `json:"totals"`
	// SLOFailures lists every threshold violation.
	SLOFailures []SLOFailure `json:"sloFailures,omitempty"`
	// Tasks holds the final state of every task, sorted by key.
	Tasks []Task `json:"tasks"`
	// BySuite groups outcomes per suite.
	BySuite map[string]*GroupStats `json:"bySuite,omitempty"`
	// ByEnvironment groups outcomes per environment.
	ByEnvironment map[string]*GroupStats `json:"byEnvironment,omitempty"`
	// LatencyByLabel is the run-level union of task distributions.
	LatencyByLabel map[string]*LatencyStats `json:"latencyMillisByLabel,omitempty"`
	// AggregateLatency is the run-level distribution across all labels.
	AggregateLatency *LatencyStats `json:"aggregateLatencyMillis,omitempty"`
	// Warnings aggregates non-fatal findings from all tasks plus run-level
	// ones.
	Warnings []string `json:"warnings,omitempty"`
}

// Trend classifies the direction of a metric between runs.
type Trend string

const (
	// TrendImproving means the metric moved in the favorable direction
	// beyond the noise floor.
	TrendImproving Trend = "improving"
	// TrendStable means the change stayed within the noise floor.
	TrendStable Trend = "stable"
	// TrendDegrading means the metric moved in the unfavorable direction
	// beyond the noise floor.
	TrendDegrading Trend = "degrading"
)

// TrendSnapshot compares one metric of the current run against recent
// history.
type TrendSnapshot struct {
	// Metric names the compared metric.
	Metric string `json:"metric"`
	// Current is the metric's value in the current run.
	Current float64 `json:"current"`
	// Previous is the smoothed historical value; nil when there is no
	// history.
	Previous *float64 `json:"previous"`
	// AbsoluteChange is Current minus Previous, zero without history.
	AbsoluteChange float64 `json:"absoluteChange"`
	// RelativeChange is AbsoluteChange over Previous where Previous is
	// non-zero.
	RelativeChange float64 `json:"relativeChange,omitempty"`
	// Direction classifies the change against the metric's noise floor.
	Direction Trend `json:"trend"`
}
