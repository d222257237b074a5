package report

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"gauntlet/internal/config"
	"gauntlet/internal/harness"
	"gauntlet/internal/trend"
)

// RenderTrends prints one row per metric with the current value, the
// smoothed baseline and the classified direction.
func RenderTrends(out io.Writer, trends []harness.TrendSnapshot, warnings []string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"METRIC", "CURRENT", "BASELINE", "CHANGE", "TREND"})
	for _, snap := range trends {
		tw.AppendRow(table.Row{
			snap.Metric,
			metricValue(snap.Metric, snap.Current),
			baselineCell(snap),
			changeCell(snap),
			directionCell(snap.Direction),
		})
	}
	tw.Render()

	for _, warning := range warnings {
		if warning == trend.WarningNoHistory {
			fmt.Fprintln(out, "⚠️  No history yet, every metric defaults to stable.")
			continue
		}
		fmt.Fprintf(out, "⚠️  %s\n", warning)
	}
}

// RenderSuites prints the suite inventory table followed by one line per
// unloadable definition file.
func RenderSuites(out io.Writer, suites []harness.SuiteDefinition, issues []config.LoadIssue) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "KIND", "ENVIRONMENTS", "BROWSERS", "TIMEOUT", "RETRIES", "SLO"})
	for _, suite := range suites {
		tw.AppendRow(table.Row{
			suite.ID,
			string(suite.Kind),
			listCell(suite.Environments),
			listCell(suite.Browsers),
			(time.Duration(suite.TimeoutMillis) * time.Millisecond).String(),
			suite.EffectiveMaxAttempts() - 1,
			yesNo(suite.SLO != nil),
		})
	}
	tw.Render()

	for _, issue := range issues {
		fmt.Fprintf(out, "⚠️  %s: %v\n", filepath.Base(issue.File), issue.Err)
	}
}

// metricValue formats a trend metric in its natural unit: rates as
// percentages, durations and latencies as time.
func metricValue(metric string, value float64) string {
	switch metric {
	case trend.MetricPassRate, trend.MetricErrorRate:
		return fmt.Sprintf("%.1f%%", value*100)
	case trend.MetricDuration:
		return (time.Duration(value) * time.Millisecond).String()
	case trend.MetricP95:
		return fmt.Sprintf("%.1fms", value)
	default:
		return fmt.Sprintf("%.2f", value)
	}
}

func baselineCell(snap harness.TrendSnapshot) string {
	if snap.Previous == nil {
		return "-"
	}
	return metricValue(snap.Metric, *snap.Previous)
}

func changeCell(snap harness.TrendSnapshot) string {
	if snap.Previous == nil {
		return "-"
	}
	switch snap.Metric {
	case trend.MetricPassRate, trend.MetricErrorRate:
		return fmt.Sprintf("%+.1fpp", snap.AbsoluteChange*100)
	default:
		return fmt.Sprintf("%+.1f%%", snap.RelativeChange*100)
	}
}

func directionCell(direction harness.Trend) string {
	switch direction {
	case harness.TrendImproving:
		return text.FgGreen.Sprint("📈 improving")
	case harness.TrendDegrading:
		return text.FgRed.Sprint("📉 degrading")
	default:
		return "stable"
	}
}

func listCell(values []string) string {
	if len(values) == 0 {
		return "any"
	}
	out := values[0]
	for _, v := range values[1:] {
		out += ", " + v
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
