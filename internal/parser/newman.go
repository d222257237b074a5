package parser

import (
	"context"
	"encoding/json"
	"fmt"

	"gauntlet/internal/harness"
	"gauntlet/internal/metrics"
)

// NewmanParser normalizes Newman's JSON export
// (--reporters json --reporter-json-export) for http-collection suites.
type NewmanParser struct{}

// NewNewmanParser creates a NewmanParser.
func NewNewmanParser() *NewmanParser {
	return &NewmanParser{}
}

// Tool implements Parser.
func (p *NewmanParser) Tool() string { return "newman" }

type newmanExport struct {
	Run newmanRun `json:"run"`
}

type newmanRun struct {
	Stats      newmanStats       `json:"stats"`
	Timings    newmanTimings     `json:"timings"`
	Executions []newmanExecution `json:"executions"`
}

type newmanStats struct {
	Requests   newmanCounter `json:"requests"`
	Assertions newmanCounter `json:"assertions"`
}

type newmanCounter struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

type newmanTimings struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
}

type newmanExecution struct {
	Item       newmanItem        `json:"item"`
	Response   *newmanResponse   `json:"response"`
	Assertions []newmanAssertion `json:"assertions"`
}

type newmanItem struct {
	Name string `json:"name"`
}

type newmanResponse struct {
	Code         int     `json:"code"`
	ResponseTime float64 `json:"responseTime"`
}

type newmanAssertion struct {
	Assertion string          `json:"assertion"`
	Skipped   bool            `json:"skipped"`
	Error     json.RawMessage `json:"error"`
}

// Parse implements Parser. Assertion counts come from run.stats (Newman's
// own accounting); per-request latency comes from run.executions.
func (p *NewmanParser) Parse(_ context.Context, set ArtifactSet) (*harness.NormalizedResult, error) {
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

	var export newmanExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("invalid JSON: %v", err))
	}
	run := export.Run

	if run.Stats.Assertions.Total == 0 && len(run.Executions) == 0 {
		return emptyResult(p.Tool()), nil
	}

	aggregate := metrics.NewAccumulator()
	byLabel := make(map[string]*metrics.Accumulator)
	malformed := 0
	skipped := 0

	for _, execution := range run.Executions {
		if execution.Response == nil || execution.Item.Name == "" {
			malformed++
			continue
		}
		latency := execution.Response.ResponseTime
		aggregate.Record(latency)
		label := execution.Item.Name
		if byLabel[label] == nil {
			byLabel[label] = metrics.NewAccumulator()
		}
		byLabel[label].Record(latency)
		if execution.Response.Code >= 500 {
			aggregate.RecordError()
			byLabel[label].RecordError()
		}
		for _, assertion := range execution.Assertions {
			if assertion.Skipped {
				skipped++
			}
		}
	}

	if exceedsTolerance(malformed, len(run.Executions)) {
		return nil, &ParseFailureError{
			Tool:          p.Tool(),
			Path:          path,
			Reason:        "too many executions without responses",
			MalformedRows: malformed,
			TotalRows:     len(run.Executions),
		}
	}

	totals := harness.CaseTotals{
		Cases:   run.Stats.Assertions.Total,
		Failed:  run.Stats.Assertions.Failed,
		Skipped: skipped,
	}
	totals.Passed = totals.Cases - totals.Failed - totals.Skipped
	if totals.Passed < 0 {
		totals.Passed = 0
	}

	result := &harness.NormalizedResult{
		Tool:   p.Tool(),
		Totals: totals,
	}
	if malformed > 0 {
		result.Warnings = append(result.Warnings, malformedWarning(malformed, len(run.Executions)))
	}
	if run.Timings.Completed > run.Timings.Started && run.Timings.Started > 0 {
		result.DurationMillis = run.Timings.Completed - run.Timings.Started
	}
	if run.Stats.Assertions.Total > 0 {
		result.ErrorRate = float64(run.Stats.Assertions.Failed) / float64(run.Stats.Assertions.Total)
	}
	if run.Stats.Requests.Total > 0 && result.DurationMillis > 0 {
		result.ThroughputPerSecond = float64(run.Stats.Requests.Total) / (float64(result.DurationMillis) / 1000.0)
	}
	if aggregate.Count() > 0 {
		result.AggregateLatency = harness.FromAccumulator(aggregate, aggregate.Errors())
		result.LatencyByLabel = make(map[string]*harness.LatencyStats, len(byLabel))
		for label, acc := range byLabel {
			result.LatencyByLabel[label] = harness.FromAccumulator(acc, acc.Errors())
		}
	}
	return result, nil
}
