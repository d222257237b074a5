// Package report renders a run summary into its output formats.
//
// The JSON emitter writes summary.json, the artifact of record: two-space
// indented, struct field order, map keys sorted by encoding/json, trailing
// newline. Re-encoding the same summary yields the same bytes, which is
// what makes rebuilt summaries comparable to live ones.
//
// The JUnit emitter writes summary.junit.xml for CI systems that ingest
// JUnit XML. Each suite becomes a testsuite, each task a testcase named
// after its environment and browser.
//
// The HTML emitter writes report.html, a single self-contained page with
// no external assets so it can be served from the artifact tree or opened
// from disk.
//
// The terminal reporter is the only emitter that does not write to disk.
// It prints live progress lines from scheduler events and a final result
// table.
//
// Disk emitters go through the artifact store's atomic writer, so a
// half-written report is never observable.
package report
