package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const k6StreamFixture = `{"type":"Metric","metric":"http_req_duration","data":{"name":"http_req_duration","type":"trend"}}
{"type":"Point","metric":"http_req_duration","data":{"time":"2026-01-15T10:00:00Z","value":100,"tags":{"name":"GET /users","expected_response":"true","status":"200"}}}
{"type":"Point","metric":"http_req_duration","data":{"time":"2026-01-15T10:00:01Z","value":250,"tags":{"name":"GET /users","expected_response":"false","status":"500"}}}
{"type":"Point","metric":"http_req_duration","data":{"time":"2026-01-15T10:00:02Z","value":80,"tags":{"name":"POST /login","expected_response":"true","status":"200"}}}
{"type":"Point","metric":"http_reqs","data":{"time":"2026-01-15T10:00:02Z","value":3,"tags":{}}}
{"type":"Point","metric":"checks","data":{"time":"2026-01-15T10:00:02Z","value":1,"tags":{"check":"status is 200"}}}
{"type":"Point","metric":"checks","data":{"time":"2026-01-15T10:00:02Z","value":0,"tags":{"check":"body has token"}}}
`

func TestK6Parser_NormalizesStream(t *testing.T) {
	set := writeArtifacts(t, map[string]string{"out.jsonl": k6StreamFixture})

	result, err := NewK6Parser().Parse(context.Background(), set)
	require.NoError(t, err)

	assert.Equal(t, "k6", result.Tool)
	assert.Equal(t, 2, result.Totals.Cases, "one case per check point")
	assert.Equal(t, 1, result.Totals.Passed)
	assert.Equal(t, 1, result.Totals.Failed)
	assert.Equal(t, int64(2000), result.DurationMillis)
	assert.InDelta(t, 1.0/3.0, result.ErrorRate, 1e-9)
	assert.InDelta(t, 1.5, result.ThroughputPerSecond, 1e-9)

	require.NotNil(t, result.AggregateLatency)
	assert.Equal(t, int64(3), result.AggregateLatency.Samples)
	assert.Equal(t, 80.0, result.AggregateLatency.Min)
	assert.Equal(t, 250.0, result.AggregateLatency.Max)
	assert.InDelta(t, (100.0+250.0+80.0)/3.0, result.AggregateLatency.Avg, 1e-9)
	assert.InEpsilon(t, 250.0, result.AggregateLatency.P99, 0.01)

	require.Contains(t, result.LatencyByLabel, "GET /users")
	require.Contains(t, result.LatencyByLabel, "POST /login")
	assert.Equal(t, int64(2), result.LatencyByLabel["GET /users"].Samples)
	assert.Equal(t, int64(1), result.LatencyByLabel["GET /users"].Errors)
}

func TestK6Parser_SummaryPercentilesPreferred(t *testing.T) {
	stream := k6StreamFixture +
		`{"type":"summary","metrics":{"http_req_duration":{"avg":120.5,"min":78.2,"max":260.1,"med":101.4,"p(95)":248.3,"p(99)":259.7}}}` + "\n"
	set := writeArtifacts(t, map[string]string{"out.jsonl": stream})

	result, err := NewK6Parser().Parse(context.Background(), set)
	require.NoError(t, err)

	require.NotNil(t, result.AggregateLatency)
	assert.Equal(t, 120.5, result.AggregateLatency.Avg, "summary values win over the digest")
	assert.Equal(t, 78.2, result.AggregateLatency.Min)
	assert.Equal(t, 260.1, result.AggregateLatency.Max)
	assert.Equal(t, 101.4, result.AggregateLatency.P50)
	assert.Equal(t, 248.3, result.AggregateLatency.P95)
	assert.Equal(t, 259.7, result.AggregateLatency.P99)

	assert.Equal(t, int64(3), result.AggregateLatency.Samples, "sample count stays point-derived")
	assert.Equal(t, int64(1), result.AggregateLatency.Errors)

	require.Contains(t, result.LatencyByLabel, "GET /users")
	assert.Equal(t, int64(2), result.LatencyByLabel["GET /users"].Samples, "labels keep digest stats")
}

func TestK6Parser_NoChecksStillYieldsLatency(t *testing.T) {
	stream := `{"type":"Point","metric":"http_req_duration","data":{"time":"2026-01-15T10:00:00Z","value":42,"tags":{"name":"GET /"}}}
`
	set := writeArtifacts(t, map[string]string{"out.jsonl": stream})

	result, err := NewK6Parser().Parse(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Totals.Cases)
	assert.Equal(t, 0, result.Totals.Errored)
	assert.Contains(t, result.Warnings, "no-checks")
	require.NotNil(t, result.AggregateLatency)
	assert.Equal(t, int64(1), result.AggregateLatency.Samples)
}

func TestK6Parser_ToleratesFewMalformedLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("this is not json\n")
	for i := 0; i < 10; i++ {
		b.WriteString(`{"type":"Point","metric":"checks","data":{"time":"2026-01-15T10:00:00Z","value":1,"tags":{}}}` + "\n")
	}
	set := writeArtifacts(t, map[string]string{"out.jsonl": b.String()})

	result, err := NewK6Parser().Parse(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Totals.Cases)
	assert.Contains(t, result.Warnings, "malformed-rows: 1/11")
}

func TestK6Parser_TooManyMalformedLines(t *testing.T) {
	stream := `garbage line one
garbage line two
{"type":"Point","metric":"checks","data":{"time":"2026-01-15T10:00:00Z","value":1,"tags":{}}}
`
	set := writeArtifacts(t, map[string]string{"out.jsonl": stream})

	_, err := NewK6Parser().Parse(context.Background(), set)
	require.Error(t, err)

	var parseFailure *ParseFailureError
	require.ErrorAs(t, err, &parseFailure)
	assert.Equal(t, 2, parseFailure.MalformedRows)
	assert.Equal(t, 3, parseFailure.TotalRows)
}

func TestK6Parser_EmptyStream(t *testing.T) {
	set := writeArtifacts(t, map[string]string{"out.jsonl": "\n\n"})

	result, err := NewK6Parser().Parse(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Totals.Errored)
	assert.Contains(t, result.Warnings, "empty-output")
}

func TestK6Parser_CancellationIsNotAParseFailure(t *testing.T) {
	var b strings.Builder
	for i := 0; i < cancelCheckEvery+1; i++ {
		b.WriteString(`{"type":"Point","metric":"checks","data":{"time":"2026-01-15T10:00:00Z","value":1,"tags":{}}}` + "\n")
	}
	set := writeArtifacts(t, map[string]string{"out.jsonl": b.String()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewK6Parser().Parse(ctx, set)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, &ParseFailureError{}))
}
