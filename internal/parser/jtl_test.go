package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jtlHeader = "timeStamp,elapsed,label,responseCode,responseMessage,threadName,dataType,success,failureMessage,bytes,sentBytes,grpThreads,allThreads,URL,Latency,IdleTime,Connect\n"

const jtlFixture = jtlHeader +
	"1700000000000,120,Home,200,OK,TG 1-1,text,true,,1234,567,10,10,https://shop/,100,0,20\n" +
	"1700000000100,95,Home,200,OK,TG 1-2,text,true,,1234,567,10,10,https://shop/,80,0,15\n" +
	"1700000000200,310,Login,500,Internal Server Error,TG 1-3,text,false,Server error,512,400,10,10,https://shop/login,290,0,18\n" +
	"1700000000300,88,Login,200,OK,TG 1-4,text,true,,900,400,10,10,https://shop/login,70,0,12\n" +
	"1700000000400,150,Login,200,OK,TG 1-5,text,false,Assertion failed: token,900,400,10,10,https://shop/login,130,0,14\n" +
	"1700000000500,60,Home,200,OK,TG 1-6,text,true,,1234,567,10,10,https://shop/,50,0,10\n"

func TestJTLParser_NormalizesResults(t *testing.T) {
	set := writeArtifacts(t, map[string]string{"load.jtl": jtlFixture})

	result, err := NewJTLParser().Parse(context.Background(), set)
	require.NoError(t, err)

	assert.Equal(t, "jmeter", result.Tool)
	assert.Equal(t, 6, result.Totals.Cases)
	assert.Equal(t, 4, result.Totals.Passed)
	assert.Equal(t, 2, result.Totals.Failed)
	assert.InDelta(t, 1.0/6.0, result.ErrorRate, 1e-9, "only the 500 is a transport error")

	// Window spans first timeStamp to last timeStamp+elapsed.
	assert.Equal(t, int64(560), result.DurationMillis)
	assert.InDelta(t, 6.0/0.56, result.ThroughputPerSecond, 1e-6)

	require.NotNil(t, result.AggregateLatency)
	assert.Equal(t, int64(6), result.AggregateLatency.Samples)
	assert.Equal(t, 60.0, result.AggregateLatency.Min)
	assert.Equal(t, 310.0, result.AggregateLatency.Max)

	require.Contains(t, result.LatencyByLabel, "Login")
	assert.Equal(t, int64(3), result.LatencyByLabel["Login"].Samples)
	assert.Equal(t, int64(1), result.LatencyByLabel["Login"].Errors)
}

func TestJTLParser_HeaderMissingRequiredColumn(t *testing.T) {
	set := writeArtifacts(t, map[string]string{"load.jtl": "timeStamp,elapsed,label,responseCode\n1700000000000,10,Home,200\n"})

	_, err := NewJTLParser().Parse(context.Background(), set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required column "success"`)
}

func TestJTLParser_ToleratesFewMalformedRows(t *testing.T) {
	content := jtlHeader
	for i := 0; i < 10; i++ {
		content += "1700000000000,10,Home,200,OK,TG,text,true,,1,1,1,1,u,5,0,1\n"
	}
	content += "not-a-timestamp,xx,Home,200,OK,TG,text,true,,1,1,1,1,u,5,0,1\n"

	set := writeArtifacts(t, map[string]string{"load.jtl": content})

	result, err := NewJTLParser().Parse(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, 10, result.Totals.Cases)
	assert.Contains(t, result.Warnings, "malformed-rows: 1/11")
}

func TestJTLParser_TooManyMalformedRows(t *testing.T) {
	content := jtlHeader +
		"1700000000000,10,Home,200,OK,TG,text,true,,1,1,1,1,u,5,0,1\n" +
		"garbage\n"

	set := writeArtifacts(t, map[string]string{"load.jtl": content})

	_, err := NewJTLParser().Parse(context.Background(), set)
	require.Error(t, err)

	var parseFailure *ParseFailureError
	require.ErrorAs(t, err, &parseFailure)
	assert.Equal(t, 1, parseFailure.MalformedRows)
	assert.Equal(t, 2, parseFailure.TotalRows)
}

func TestJTLParser_EmptyFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero bytes", ""},
		{"header only", jtlHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := writeArtifacts(t, map[string]string{"load.jtl": tt.content})

			result, err := NewJTLParser().Parse(context.Background(), set)
			require.NoError(t, err)
			assert.Equal(t, 0, result.Totals.Cases)
			assert.Equal(t, 1, result.Totals.Errored)
			assert.Contains(t, result.Warnings, "empty-output")
		})
	}
}

func TestIsTransportError(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"200", false},
		{"204", false},
		{"404", false},
		{"500", true},
		{"503", true},
		{"Non HTTP response code: java.net.ConnectException", true},
		{"", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isTransportError(tt.code), "code %q", tt.code)
	}
}
