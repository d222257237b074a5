// Package agent exposes the harness to MCP clients and to an interactive
// console.
//
// # MCP Server
//
// Server speaks the Model Context Protocol over stdio so that editor
// assistants and automation agents can drive test runs without shelling
// out to the CLI. Five tools are registered:
//
//   - run_suites: execute suites and return the aggregated summary,
//     trend snapshots and the run directory as JSON
//   - list_suites: enumerate the suite definitions of the harness root
//   - get_summary: fetch the stored summary of a run ID or "latest"
//   - get_trends: classify the latest run against the history baseline
//   - health_check: report whether the harness is able to run at all
//
// Tool handlers never fail the MCP call for domain outcomes: a fatal run
// still returns its summary as the tool result, with the verdict and exit
// code inside the payload. Tool errors are reserved for invalid arguments
// and infrastructure problems (unreadable root, no runs recorded).
//
// Because stdio carries the protocol, nothing in this package writes to
// stdout; callers route logging to stderr before starting the server.
//
// # Console
//
// REPL is a readline driven console over the same operations, for poking
// at a harness root interactively: run suites, inspect summaries, watch
// trends, check health. It keeps the target environment as session state
// so repeated runs do not need flags.
package agent
