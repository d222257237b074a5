// Package app wires the harness together into complete operations: the
// full run pipeline, suite inventory loading and the health check. The
// command layer and the agent both drive these entry points so a run
// behaves identically whether it was started from the CLI or over MCP.
//
// # Run pipeline
//
// Run performs one harness run end to end:
//
//  1. Load and validate configuration from the harness root, with
//     environment variable overrides applied.
//  2. Load suite definitions and apply the requested selection. A
//     selection that yields nothing to run fails with a
//     ConfigurationError before any run directory is created.
//  3. Snapshot the run parameters into a manifest and persist it.
//  4. Execute the task matrix through the scheduler.
//  5. Aggregate terminal tasks into the run summary.
//  6. Compare the summary against history and classify trends.
//  7. Emit reports, publish the latest pointer and append history.
//
// A run that completes with a non-zero exit code returns its result
// together with an *exitcode.RunError carrying the code, so callers can
// inspect the summary and still terminate with the right status.
//
// # Health check
//
// CheckHealth inspects a harness root without running anything:
// configuration validity, suite definition parseability, tool binaries on
// PATH and artifact root writability. It reports findings instead of
// stopping at the first problem.
package app
