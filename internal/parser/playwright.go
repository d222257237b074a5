package parser

import (
	"context"
	"encoding/json"
	"fmt"

	"gauntlet/internal/harness"
	"gauntlet/internal/metrics"
)

// PlaywrightParser normalizes Playwright's JSON reporter output
// (--reporter=json) for browser suites.
type PlaywrightParser struct{}

// NewPlaywrightParser creates a PlaywrightParser.
func NewPlaywrightParser() *PlaywrightParser {
	return &PlaywrightParser{}
}

// Tool implements Parser.
func (p *PlaywrightParser) Tool() string { return "playwright" }

type pwReport struct {
	Suites []pwSuite `json:"suites"`
	Stats  pwStats   `json:"stats"`
}

type pwStats struct {
	Duration float64 `json:"duration"`
}

type pwSuite struct {
	Title  string    `json:"title"`
	Suites []pwSuite `json:"suites"`
	Specs  []pwSpec  `json:"specs"`
}

type pwSpec struct {
	Title string   `json:"title"`
	Tests []pwTest `json:"tests"`
}

type pwTest struct {
	// Status is the spec-level verdict: expected, unexpected, flaky or
	// skipped.
	Status  string     `json:"status"`
	Results []pwResult `json:"results"`
}

type pwResult struct {
	Status   string  `json:"status"`
	Duration float64 `json:"duration"`
}

// Parse implements Parser.
func (p *PlaywrightParser) Parse(_ context.Context, set ArtifactSet) (*harness.NormalizedResult, error) {
	path, err := pickArtifact(p.Tool(), set, ".json")
	if err != nil {
		return nil, err
	}
	data, err := readArtifact(p.Tool(), path)
	if err != nil {
		return nil, err
	}
	if isEmptyPayload(data) {
		return emptyResult(p.Tool()), nil
	}

	var report pwReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("invalid JSON: %v", err))
	}

	acc := metrics.NewAccumulator()
	totals := harness.CaseTotals{}
	malformed := 0
	total := 0
	flaky := 0

	var walk func(suite pwSuite)
	walk = func(suite pwSuite) {
		for _, spec := range suite.Specs {
			for _, test := range spec.Tests {
				total++
				switch testStatus(test) {
				case "expected":
					totals.Passed++
				case "flaky":
					totals.Passed++
					flaky++
				case "unexpected":
					totals.Failed++
				case "skipped":
					totals.Skipped++
				default:
					malformed++
					continue
				}
				if d := lastDuration(test); d > 0 {
					acc.Record(d)
				}
			}
		}
		for _, child := range suite.Suites {
			walk(child)
		}
	}
	for _, suite := range report.Suites {
		walk(suite)
	}

	if exceedsTolerance(malformed, total) {
		return nil, &ParseFailureError{
			Tool:          p.Tool(),
			Path:          path,
			Reason:        "too many malformed test entries",
			MalformedRows: malformed,
			TotalRows:     total,
		}
	}
	if total == 0 {
		return emptyResult(p.Tool()), nil
	}

	totals.Cases = total - malformed

	result := &harness.NormalizedResult{
		Tool:           p.Tool(),
		Totals:         totals,
		DurationMillis: int64(report.Stats.Duration),
	}
	if acc.Count() > 0 {
		result.AggregateLatency = harness.FromAccumulator(acc, 0)
	}
	if malformed > 0 {
		result.Warnings = append(result.Warnings, malformedWarning(malformed, total))
	}
	if flaky > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("flaky-tests:%d", flaky))
	}
	return result, nil
}

// testStatus resolves a test's verdict, falling back to the last attempt's
// raw status when the spec-level one is absent.
func testStatus(test pwTest) string {
	if test.Status != "" {
		return test.Status
	}
	if len(test.Results) == 0 {
		return ""
	}
	switch test.Results[len(test.Results)-1].Status {
	case "passed":
		return "expected"
	case "failed", "timedOut", "interrupted":
		return "unexpected"
	case "skipped":
		return "skipped"
	}
	return ""
}

// lastDuration returns the duration of the attempt that decided the test.
func lastDuration(test pwTest) float64 {
	if len(test.Results) == 0 {
		return 0
	}
	return test.Results[len(test.Results)-1].Duration
}
