// Package scheduler turns a run manifest into a task matrix and executes
// it with bounded parallelism.
//
// A task is one suite crossed with the run environment and, for browser
// suites, one browser. Tasks run under a global concurrency limit and a
// per-suite lock (waived by parallelWithinSuite). Each task loops through
// attempts: execute the suite command, collect its artifacts, parse them,
// classify the outcome, and judge the result against the suite's SLO
// policy. Errored and timed-out attempts retry while attempts remain;
// failed attempts (assertion or SLO) retry only when the run and suite
// both opt in, and stop as soon as the failure looks deterministic. Parse
// failures and cancellations never retry.
//
// Every attempt is persisted to the artifact store as it completes, so a
// run directory can be re-aggregated later without re-running anything.
// Progress is published on a non-blocking event fan-out consumed by the
// terminal reporter and the agent.
package scheduler
