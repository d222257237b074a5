// Package aggregate folds terminal task outcomes into the run summary.
//
// Build is a pure fold over the manifest and the final task states: task
// and case totals, per-suite and per-environment groupings, the run-level
// latency union, SLO verdicts and the process exit code. Latency
// percentiles are never averaged across tasks; each task's accumulator is
// merged into a run-level distribution and the percentiles are read off
// the union.
//
// Rebuilder reproduces the same summary from a run directory alone. It
// replays the manifest and the persisted attempt records, re-parses raw
// artifacts so distributions regain their in-memory accumulators, and
// hands the reconstructed tasks to the same Build. Because Build is pure
// and nothing consults the wall clock, rebuilding a finished run yields
// byte-identical summaries however often it is repeated.
package aggregate
