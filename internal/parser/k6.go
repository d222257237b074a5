package parser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gauntlet/internal/harness"
	"gauntlet/internal/metrics"
)

// K6Parser normalizes k6's JSON lines output (--out json=...) for
// load-stream suites. The stream can be far larger than memory, so points
// fold into HDR digests line by line and the file is never buffered whole.
type K6Parser struct{}

// NewK6Parser creates a K6Parser.
func NewK6Parser() *K6Parser {
	return &K6Parser{}
}

// Tool implements Parser.
func (p *K6Parser) Tool() string { return "k6" }

// k6Line is one JSONL record: a Point sample, a Metric declaration
// (ignored) or an end-of-run summary.
type k6Line struct {
	Type    string                     `json:"type"`
	Metric  string                     `json:"metric"`
	Data    k6Point                    `json:"data"`
	Metrics map[string]k6SummaryMetric `json:"metrics"`
}

type k6Point struct {
	Time  time.Time         `json:"time"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags"`
}

// k6SummaryMetric is one entry of a summary record, shaped like k6's
// summary export.
type k6SummaryMetric struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	P50 float64 `json:"med"`
	P95 float64 `json:"p(95)"`
	P99 float64 `json:"p(99)"`
}

// maxLineBytes bounds a single JSONL line. k6 lines are small; anything
// beyond this is corrupt output.
const maxLineBytes = 1024 * 1024

// cancelCheckEvery is how many lines go by between context checks.
const cancelCheckEvery = 10000

// Parse implements Parser.
func (p *K6Parser) Parse(ctx context.Context, set ArtifactSet) (*harness.NormalizedResult, error) {
	path, err := pickArtifact(p.Tool(), set, ".jsonl", ".ndjson", ".json")
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("cannot read artifact: %v", err))
	}
	defer file.Close()

	aggregate := metrics.NewDigestAccumulator()
	byLabel := make(map[string]*metrics.Accumulator)

	var (
		total, malformed    int
		checksTotal         int
		checksPassed        int
		requests            float64
		taggedErrors        int64
		reqFailedPoints     int64
		firstSeen, lastSeen time.Time
		summary             *k6SummaryMetric
	)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || isEmptyPayload(line) {
			continue
		}
		total++
		if total%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		var record k6Line
		if err := json.Unmarshal(line, &record); err != nil {
			malformed++
			continue
		}
		if record.Type == "summary" {
			if m, ok := record.Metrics["http_req_duration"]; ok {
				summary = &m
			}
			continue
		}
		if record.Type != "Point" {
			continue
		}

		switch record.Metric {
		case "http_req_duration":
			if record.Data.Time.IsZero() {
				malformed++
				continue
			}
			trackWindow(&firstSeen, &lastSeen, record.Data.Time)
			aggregate.Record(record.Data.Value)
			label := record.Data.Tags["name"]
			if label == "" {
				label = "http_req_duration"
			}
			if byLabel[label] == nil {
				byLabel[label] = metrics.NewDigestAccumulator()
			}
			byLabel[label].Record(record.Data.Value)
			if record.Data.Tags["expected_response"] == "false" {
				aggregate.RecordError()
				byLabel[label].RecordError()
				taggedErrors++
			}
		case "http_reqs":
			requests += record.Data.Value
			trackWindow(&firstSeen, &lastSeen, record.Data.Time)
		case "http_req_failed":
			if record.Data.Value > 0 {
				reqFailedPoints++
			}
		case "checks":
			checksTotal++
			if record.Data.Value != 0 {
				checksPassed++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("stream read failed: %v", err))
	}

	if total == 0 {
		return emptyResult(p.Tool()), nil
	}
	if exceedsTolerance(malformed, total) {
		return nil, &ParseFailureError{
			Tool:          p.Tool(),
			Path:          path,
			Reason:        "too many malformed lines",
			MalformedRows: malformed,
			TotalRows:     total,
		}
	}

	totals := harness.CaseTotals{
		Cases:  checksTotal,
		Passed: checksPassed,
		Failed: checksTotal - checksPassed,
	}

	result := &harness.NormalizedResult{
		Tool:   p.Tool(),
		Totals: totals,
	}
	if malformed > 0 {
		result.Warnings = append(result.Warnings, malformedWarning(malformed, total))
	}
	if checksTotal == 0 {
		result.Warnings = append(result.Warnings, "no-checks")
	}
	if !firstSeen.IsZero() && lastSeen.After(firstSeen) {
		result.DurationMillis = lastSeen.Sub(firstSeen).Milliseconds()
	}
	if requests > 0 {
		// Both the expected_response tag and http_req_failed points mark
		// the same failing requests; taking the larger count avoids
		// double counting streams that carry both.
		requestErrors := taggedErrors
		if reqFailedPoints > requestErrors {
			requestErrors = reqFailedPoints
		}
		result.ErrorRate = float64(requestErrors) / requests
		if result.ErrorRate > 1 {
			result.ErrorRate = 1
		}
		if result.DurationMillis > 0 {
			result.ThroughputPerSecond = requests / (float64(result.DurationMillis) / 1000.0)
		}
	}
	if aggregate.Count() > 0 {
		result.AggregateLatency = harness.FromAccumulator(aggregate, aggregate.Errors())
		result.LatencyByLabel = make(map[string]*harness.LatencyStats, len(byLabel))
		for label, acc := range byLabel {
			result.LatencyByLabel[label] = harness.FromAccumulator(acc, acc.Errors())
		}
		if summary != nil {
			// The end-of-run summary holds exact percentiles where the
			// digest approximates them. Label stats stay digest-derived.
			result.AggregateLatency.Avg = summary.Avg
			result.AggregateLatency.Min = summary.Min
			result.AggregateLatency.Max = summary.Max
			result.AggregateLatency.P50 = summary.P50
			result.AggregateLatency.P95 = summary.P95
			result.AggregateLatency.P99 = summary.P99
		}
	}
	return result, nil
}

func trackWindow(first, last *time.Time, t time.Time) {
	if t.IsZero() {
		return
	}
	if first.IsZero() || t.Before(*first) {
		*first = t
	}
	if t.After(*last) {
		*last = t
	}
}
