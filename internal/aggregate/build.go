package aggregate

import (
	"fmt"
	"sort"
	"time"

	"gauntlet/internal/exitcode"
	"gauntlet/internal/harness"
	"gauntlet/internal/metrics"
	"gauntlet/internal/slo"
)

// Build folds the terminal tasks of a run into its summary. The fold is
// pure: the same manifest and tasks always produce the same summary,
// which is what makes re-aggregation from disk reproducible.
func Build(manifest *harness.RunManifest, tasks []*harness.Task) *harness.RunSummary {
	summary := &harness.RunSummary{
		RunID:         manifest.RunID,
		Environment:   manifest.Environment,
		StartedAt:     manifest.StartedAt,
		BySuite:       make(map[string]*harness.GroupStats),
		ByEnvironment: make(map[string]*harness.GroupStats),
	}

	ordered := make([]*harness.Task, len(tasks))
	copy(ordered, tasks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key.Less(ordered[j].Key) })

	var (
		cases     harness.CaseTotals
		endedAt   time.Time
		runAgg    = metrics.NewAccumulator()
		labelAccs = make(map[string]*metrics.Accumulator)
	)

	for _, task := range ordered {
		summary.Tasks = append(summary.Tasks, *task)

		countState(&summary.Totals, task.State)
		groupInto(summary.BySuite, task.Key.SuiteID, task)
		groupInto(summary.ByEnvironment, task.Key.Environment, task)

		if task.EndedAt.After(endedAt) {
			endedAt = task.EndedAt
		}

		switch {
		case task.Result != nil:
			cases.Add(task.Result.Totals)
		case task.State == harness.StateErrored || task.State == harness.StateTimeout:
			// A task that broke without a result counts the way parsers
			// normalize empty output: one errored case.
			cases.Add(harness.CaseTotals{Errored: 1})
		}

		if task.Result != nil {
			for _, warning := range task.Result.Warnings {
				summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %s", task.Key, warning))
			}
			mergeLatency(runAgg, labelAccs, task.Result)
		}

		summary.SLOFailures = append(summary.SLOFailures, task.SLOFailures...)
	}

	summary.Totals.Cases = cases.Cases
	summary.Totals.CasesPassed = cases.Passed
	summary.Totals.CasesFailed = cases.Failed
	summary.Totals.CasesSkipped = cases.Skipped
	summary.Totals.CasesErrored = cases.Errored
	summary.Totals.TaskPassRate = passRate(summary.Totals.Passed, summary.Totals.Tasks-summary.Totals.Skipped)
	summary.Totals.CasePassRate = passRate(cases.Passed, cases.Cases-cases.Skipped)

	if runAgg.Count() > 0 {
		summary.AggregateLatency = harness.FromAccumulator(runAgg, runAgg.Errors())
	}
	if len(labelAccs) > 0 {
		summary.LatencyByLabel = make(map[string]*harness.LatencyStats, len(labelAccs))
		for label, acc := range labelAccs {
			summary.LatencyByLabel[label] = harness.FromAccumulator(acc, acc.Errors())
		}
	}

	summary.SLOFailures = append(summary.SLOFailures, runLevelSLO(manifest, summary)...)

	if endedAt.IsZero() {
		endedAt = manifest.StartedAt
	}
	summary.EndedAt = endedAt
	summary.DurationMillis = endedAt.Sub(manifest.StartedAt).Milliseconds()

	summary.Verdict = verdictFor(ordered, summary.SLOFailures)
	summary.ExitCode = exitcode.For(summary.Verdict, summary.Tasks)
	return summary
}

// mergeLatency folds one task's distributions into the run-level union.
// Stats without an accumulator (results deserialized from disk whose raw
// artifacts are gone) cannot be merged and are skipped.
func mergeLatency(runAgg *metrics.Accumulator, labels map[string]*metrics.Accumulator, result *harness.NormalizedResult) {
	if result.AggregateLatency != nil && result.AggregateLatency.Accumulator != nil {
		runAgg.Merge(result.AggregateLatency.Accumulator)
	}
	for label, stats := range result.LatencyByLabel {
		if stats == nil || stats.Accumulator == nil {
			continue
		}
		if labels[label] == nil {
			labels[label] = metrics.NewAccumulator()
		}
		labels[label].Merge(stats.Accumulator)
	}
}

// runLevelSLO evaluates the run-wide policy against the merged
// distributions. Per-task evaluation already applied the same policy to
// each task; this pass catches breaches that only appear in the union.
// Runs without any latency data are left to the per-task checks.
func runLevelSLO(manifest *harness.RunManifest, summary *harness.RunSummary) []harness.SLOFailure {
	if manifest.DefaultSLO == nil {
		return nil
	}
	if summary.AggregateLatency == nil && len(summary.LatencyByLabel) == 0 {
		return nil
	}
	merged := &harness.NormalizedResult{
		Totals: harness.CaseTotals{
			Cases:   summary.Totals.Cases,
			Passed:  summary.Totals.CasesPassed,
			Failed:  summary.Totals.CasesFailed,
			Skipped: summary.Totals.CasesSkipped,
			Errored: summary.Totals.CasesErrored,
		},
		AggregateLatency: summary.AggregateLatency,
		LatencyByLabel:   summary.LatencyByLabel,
	}
	if agg := summary.AggregateLatency; agg != nil && agg.Samples > 0 {
		merged.ErrorRate = float64(agg.Errors) / float64(agg.Samples)
	}
	return slo.Evaluate(manifest.DefaultSLO, merged, "run")
}

// verdictFor classifies the run. Fatal wins whenever any task errored,
// timed out, or failed on something other than an SLO threshold; a run
// whose only failures are SLO breaches is sloFail; otherwise pass.
func verdictFor(tasks []*harness.Task, failures []harness.SLOFailure) harness.Verdict {
	fatal := false
	for _, task := range tasks {
		switch task.State {
		case harness.StateErrored, harness.StateTimeout:
			fatal = true
		case harness.StateFailed:
			if !sloOnlyFailure(task) {
				fatal = true
			}
		}
	}
	if fatal {
		return harness.VerdictFatal
	}
	if len(failures) > 0 {
		return harness.VerdictSLOFail
	}
	return harness.VerdictPass
}

// sloOnlyFailure reports whether a failed task failed purely on SLO
// thresholds: clean exit, no failed or errored cases, recorded breaches.
func sloOnlyFailure(task *harness.Task) bool {
	if task.ExitCode != 0 || len(task.SLOFailures) == 0 || task.Result == nil {
		return false
	}
	return task.Result.Totals.Failed == 0 && task.Result.Totals.Errored == 0
}

func countState(totals *harness.TaskTotals, state harness.TaskState) {
	totals.Tasks++
	switch state {
	case harness.StatePassed:
		totals.Passed++
	case harness.StateFailed:
		totals.Failed++
	case harness.StateErrored:
		totals.Errored++
	case harness.StateTimeout:
		totals.Timeout++
	case harness.StateSkipped:
		totals.Skipped++
	}
}

func groupInto(groups map[string]*harness.GroupStats, key string, task *harness.Task) {
	g := groups[key]
	if g == nil {
		g = &harness.GroupStats{}
		groups[key] = g
	}
	g.Tasks++
	g.DurationMillis += task.DurationMillis
	switch task.State {
	case harness.StatePassed:
		g.Passed++
	case harness.StateFailed:
		g.Failed++
	case harness.StateErrored:
		g.Errored++
	case harness.StateTimeout:
		g.Timeout++
	case harness.StateSkipped:
		g.Skipped++
	}
}

// passRate divides passed by the considered population, excluding
// skips. An empty population rates zero.
func passRate(passed, considered int) float64 {
	if considered <= 0 {
		return 0
	}
	return float64(passed) / float64(considered)
}
