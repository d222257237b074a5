package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/artifact"
	"gauntlet/internal/harness"
)

func TestHTMLEmitter_RendersSelfContainedPage(t *testing.T) {
	store := artifact.New(t.TempDir())
	summary := sampleSummary()
	previous := 0.95
	trends := []harness.TrendSnapshot{
		{Metric: "passRate", Current: 0.2, Previous: &previous, AbsoluteChange: -0.75, RelativeChange: -0.789, Direction: harness.TrendDegrading},
		{Metric: "duration", Current: 120000, Direction: harness.TrendStable},
	}

	err := NewHTML(store, trends).Emit(context.Background(), summary)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.RunDir(summary.RunID), artifact.HTMLFileName))
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "FATAL (exit 1)")
	assert.Contains(t, page, `class="banner fatal"`)
	assert.Contains(t, page, "Run run-report")

	// Per-suite and per-task tables.
	assert.Contains(t, page, "<td>checkout-load</td>")
	assert.Contains(t, page, "ui-smoke/staging/chromium")
	assert.Contains(t, page, `class="state-timeout"`)

	// Relative artifact links stay relative so the page works from disk.
	assert.Contains(t, page, `href="checkout-api/staging/stdout.log"`)
	assert.Contains(t, page, `href="checkout-api/staging/stderr.log"`)

	// SLO violations, trends, warnings.
	assert.Contains(t, page, "checkout-load/staging aggregate p95 512.4ms &gt;= 300.0ms")
	assert.Contains(t, page, "<td>passRate</td>")
	assert.Contains(t, page, `class="degrading"`)
	assert.Contains(t, page, "ui-smoke/staging/firefox: empty-output")

	// Self-contained: no external stylesheet or script references.
	assert.NotContains(t, page, "<link")
	assert.NotContains(t, page, "<script")
}

func TestHTMLEmitter_OmitsEmptySections(t *testing.T) {
	store := artifact.New(t.TempDir())
	summary := &harness.RunSummary{
		RunID:       "run-clean",
		Environment: "staging",
		StartedAt:   reportStart(),
		EndedAt:     reportStart(),
		Verdict:     harness.VerdictPass,
		Totals:      harness.TaskTotals{TaskPassRate: 1},
	}

	err := NewHTML(store, nil).Emit(context.Background(), summary)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.RunDir(summary.RunID), artifact.HTMLFileName))
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, "PASS (exit 0)")
	assert.NotContains(t, page, "SLO violations")
	assert.NotContains(t, page, "Trends")
	assert.NotContains(t, page, "Warnings")
}

func TestHTMLEmitter_TrendRowWithoutBaseline(t *testing.T) {
	store := artifact.New(t.TempDir())
	trends := []harness.TrendSnapshot{
		{Metric: "p95", Current: 500, Direction: harness.TrendStable},
	}

	err := NewHTML(store, trends).Emit(context.Background(), sampleSummary())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.RunDir("run-report"), artifact.HTMLFileName))
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, "<td>p95</td>")
	assert.Contains(t, page, "<td>n/a</td>")
	assert.Contains(t, page, `class="stable"`)
}
