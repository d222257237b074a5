// Package exitcode maps run verdicts to conventional process exit codes.
//
// A passing run exits 0. A run whose only failures are SLO breaches exits
// 99, the convention load tools use for threshold violations, so CI can
// gate budgets separately from crashes. A fatal run reuses the exit code
// of the first failing task so the underlying tool's code survives to the
// caller.
package exitcode

import (
	"fmt"

	"gauntlet/internal/harness"
)

const (
	// Success is the exit code of a passing run.
	Success = 0
	// Failure is the fallback exit code when no task carries a usable one.
	Failure = 1
	// SLOFail is reserved for runs that failed only on SLO thresholds.
	SLOFail = 99
)

// For maps a verdict to the run's process exit code. Fatal runs surface
// the first non-zero exit code among the tasks in key order; 99 is never
// borrowed from a task because it is reserved for SLO failure. When no
// task carries a usable code the fallback is Failure.
func For(verdict harness.Verdict, tasks []harness.Task) int {
	switch verdict {
	case harness.VerdictPass:
		return Success
	case harness.VerdictSLOFail:
		return SLOFail
	}

	sorted := make([]harness.Task, len(tasks))
	copy(sorted, tasks)
	harness.SortTasks(sorted)
	for _, task := range sorted {
		if task.ExitCode != Success && task.ExitCode != SLOFail {
			return task.ExitCode
		}
	}
	return Failure
}

// RunError carries a run's non-zero exit code through the command error
// path so the process can terminate with it.
type RunError struct {
	Verdict harness.Verdict
	Code    int
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("run finished with verdict %s (exit code %d)", e.Verdict, e.Code)
}
