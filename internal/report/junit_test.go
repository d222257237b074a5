package report

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/artifact"
)

func TestMarshalJUnit_SuitePerSuiteCasePerCell(t *testing.T) {
	data, err := marshalJUnit(sampleSummary())
	require.NoError(t, err)

	var root junitSuites
	require.NoError(t, xml.Unmarshal(data, &root))

	assert.Equal(t, "run-report", root.Name)
	assert.Equal(t, 6, root.Tests)
	assert.Equal(t, 2, root.Failures)
	assert.Equal(t, 2, root.Errors, "errored and timed-out tasks both count as errors")
	assert.Equal(t, 1, root.Skipped)

	names := make([]string, 0, len(root.Suites))
	for _, suite := range root.Suites {
		names = append(names, suite.Name)
	}
	assert.Equal(t, []string{"checkout-api", "checkout-load", "contract-pact", "scan-zap", "ui-smoke"}, names)
}

func TestMarshalJUnit_CaseNamesAndClassnames(t *testing.T) {
	data, err := marshalJUnit(sampleSummary())
	require.NoError(t, err)

	var root junitSuites
	require.NoError(t, xml.Unmarshal(data, &root))

	var ui junitSuite
	for _, suite := range root.Suites {
		if suite.Name == "ui-smoke" {
			ui = suite
		}
	}
	require.Len(t, ui.Cases, 2)
	assert.Equal(t, "ui-smoke", ui.Cases[0].Classname)
	assert.Equal(t, "staging/chromium", ui.Cases[0].Name)
	assert.Equal(t, "staging/firefox", ui.Cases[1].Name)
	assert.InDelta(t, 45.0, ui.Cases[0].Time, 1e-9)
}

func TestMarshalJUnit_FailureKinds(t *testing.T) {
	data, err := marshalJUnit(sampleSummary())
	require.NoError(t, err)

	var root junitSuites
	require.NoError(t, xml.Unmarshal(data, &root))

	byName := make(map[string]junitSuite)
	for _, suite := range root.Suites {
		byName[suite.Name] = suite
	}

	sloCase := byName["checkout-load"].Cases[0]
	require.NotNil(t, sloCase.Failure)
	assert.Equal(t, junitTypeSLO, sloCase.Failure.Type)
	assert.Equal(t, "p95", sloCase.Failure.Message)
	assert.Contains(t, sloCase.Failure.Content, "512.4ms >= 300.0ms")

	assertionCase := byName["ui-smoke"].Cases[0]
	require.NotNil(t, assertionCase.Failure)
	assert.Equal(t, junitTypeAssertion, assertionCase.Failure.Type)
	assert.Contains(t, assertionCase.Failure.Content, "2 of 10 cases failed")

	erroredCase := byName["ui-smoke"].Cases[1]
	require.Nil(t, erroredCase.Failure)
	require.NotNil(t, erroredCase.Error)
	assert.Equal(t, junitTypeErrored, erroredCase.Error.Type)
	assert.Equal(t, "empty-output", erroredCase.Error.Message)

	timeoutCase := byName["scan-zap"].Cases[0]
	require.NotNil(t, timeoutCase.Error)
	assert.Equal(t, junitTypeTimeout, timeoutCase.Error.Type)

	skippedCase := byName["contract-pact"].Cases[0]
	require.NotNil(t, skippedCase.Skipped)
	assert.NotEmpty(t, skippedCase.Skipped.Message)

	passedCase := byName["checkout-api"].Cases[0]
	assert.Nil(t, passedCase.Failure)
	assert.Nil(t, passedCase.Error)
	assert.Nil(t, passedCase.Skipped)
}

func TestJUnitEmitter_WritesIntoRunDir(t *testing.T) {
	store := artifact.New(t.TempDir())
	summary := sampleSummary()

	err := NewJUnit(store).Emit(context.Background(), summary)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.RunDir(summary.RunID), artifact.JUnitFileName))
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, xml.Header))
	assert.True(t, strings.HasSuffix(text, "</testsuites>\n"))
	assert.Contains(t, text, `classname="checkout-api"`)
}
