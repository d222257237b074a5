package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gauntlet/internal/harness"
	"gauntlet/internal/metrics"
)

// JTLParser normalizes JMeter JTL result files (CSV with a header row)
// for load-csv suites. Files are streamed record by record into HDR
// digests, never loaded whole.
type JTLParser struct{}

// NewJTLParser creates a JTLParser.
func NewJTLParser() *JTLParser {
	return &JTLParser{}
}

// Tool implements Parser.
func (p *JTLParser) Tool() string { return "jmeter" }

// Columns the parser needs. JMeter writes more (threadName, bytes,
// Latency, ...); everything else is ignored.
var jtlRequiredColumns = []string{"timeStamp", "elapsed", "label", "responseCode", "success"}

// Parse implements Parser.
func (p *JTLParser) Parse(ctx context.Context, set ArtifactSet) (*harness.NormalizedResult, error) {
	path, err := pickArtifact(p.Tool(), set, ".jtl", ".csv")
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("cannot read artifact: %v", err))
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return emptyResult(p.Tool()), nil
	}
	if err != nil {
		return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("unreadable header row: %v", err))
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range jtlRequiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("header missing required column %q", required))
		}
	}
	minFields := 0
	for _, required := range jtlRequiredColumns {
		if idx := columns[required]; idx >= minFields {
			minFields = idx + 1
		}
	}

	aggregate := metrics.NewDigestAccumulator()
	byLabel := make(map[string]*metrics.Accumulator)

	var (
		total, malformed  int
		passed, failed    int
		requestErrors     int
		windowStartMillis int64
		windowEndMillis   int64
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				total++
				malformed++
				continue
			}
			return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("stream read failed: %v", err))
		}

		total++
		if total%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(record) < minFields {
			malformed++
			continue
		}

		timeStamp, tsErr := strconv.ParseInt(record[columns["timeStamp"]], 10, 64)
		elapsed, elErr := strconv.ParseFloat(record[columns["elapsed"]], 64)
		if tsErr != nil || elErr != nil || elapsed < 0 {
			malformed++
			continue
		}

		label := record[columns["label"]]
		code := strings.TrimSpace(record[columns["responseCode"]])
		success := strings.EqualFold(record[columns["success"]], "true")

		aggregate.Record(elapsed)
		if byLabel[label] == nil {
			byLabel[label] = metrics.NewDigestAccumulator()
		}
		byLabel[label].Record(elapsed)

		if isTransportError(code) {
			aggregate.RecordError()
			byLabel[label].RecordError()
			requestErrors++
		}
		if success {
			passed++
		} else {
			failed++
		}

		if windowStartMillis == 0 || timeStamp < windowStartMillis {
			windowStartMillis = timeStamp
		}
		if end := timeStamp + int64(elapsed); end > windowEndMillis {
			windowEndMillis = end
		}
	}

	if total == 0 {
		return emptyResult(p.Tool()), nil
	}
	if exceedsTolerance(malformed, total) {
		return nil, &ParseFailureError{
			Tool:          p.Tool(),
			Path:          path,
			Reason:        "too many malformed rows",
			MalformedRows: malformed,
			TotalRows:     total,
		}
	}

	valid := total - malformed
	if valid == 0 {
		return emptyResult(p.Tool()), nil
	}

	result := &harness.NormalizedResult{
		Tool: p.Tool(),
		Totals: harness.CaseTotals{
			Cases:  valid,
			Passed: passed,
			Failed: failed,
		},
		ErrorRate: float64(requestErrors) / float64(valid),
	}
	if malformed > 0 {
		result.Warnings = append(result.Warnings, malformedWarning(malformed, total))
	}
	if windowEndMillis > windowStartMillis {
		result.DurationMillis = windowEndMillis - windowStartMillis
		result.ThroughputPerSecond = float64(valid) / (float64(result.DurationMillis) / 1000.0)
	}
	result.AggregateLatency = harness.FromAccumulator(aggregate, aggregate.Errors())
	result.LatencyByLabel = make(map[string]*harness.LatencyStats, len(byLabel))
	for label, acc := range byLabel {
		result.LatencyByLabel[label] = harness.FromAccumulator(acc, acc.Errors())
	}
	return result, nil
}

// isTransportError reports whether a JTL response code marks a transport
// level failure: 5xx, or JMeter's textual "Non HTTP response code" style
// entries.
func isTransportError(code string) bool {
	if code == "" {
		return true
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return true
	}
	return n >= 500
}
