// Package harness defines the domain model shared by every component: suite
// definitions, run configuration, tasks, normalized results, SLO policies,
// run summaries and trend snapshots.
//
// The package is deliberately free of I/O. Types here are the contract
// between the scheduler (which produces tasks), the parsers (which produce
// NormalizedResult values), the aggregator (which folds them into a
// RunSummary) and the report emitters (which render that summary). Everything
// is JSON-tagged with camelCase names because summary.json is the artifact of
// record and its shape is part of the harness contract.
//
// # Task lifecycle
//
// A task is one matrix cell (suite x environment x optional browser) and
// moves through pending, running and exactly one terminal state:
//
//	passed   - process exited 0, artifacts parsed, no failed cases
//	failed   - assertion failures (non-zero exit or failed cases)
//	errored  - could not produce a usable result (spawn error, missing or
//	           unparseable artifacts, cancellation)
//	timeout  - exceeded its wall-clock budget and was killed
//	skipped  - excluded before execution (environment allowlist, selection)
//
// # Latency distributions
//
// LatencyStats carries the serialized summary figures plus an unexported
// reference to the metrics.Accumulator that produced them. Run-level
// distributions are computed by merging task-level accumulators, never by
// averaging already-computed percentiles.
package harness
