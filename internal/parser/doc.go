// Package parser normalizes tool-specific output artifacts into the
// harness result model.
//
// One parser exists per suite kind: Playwright JSON reports for browser
// suites, Newman JSON exports for http-collection suites, k6 JSON lines
// for load-stream suites, JMeter JTL CSV for load-csv suites, axe-core
// JSON for scanner suites and Pact verifier JSON for contract suites.
//
// Parsers are lenient up to a point: individual malformed rows are
// tolerated and counted, but once more than a tenth of the input is
// malformed the whole artifact is rejected with a ParseFailureError. A
// parse failure means the tool's output cannot be trusted, so the task is
// errored and never retried. Empty output is not a parse failure; it
// normalizes to a result with zero cases and one errored case so the run
// records that the tool produced nothing.
package parser
