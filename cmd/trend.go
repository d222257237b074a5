package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gauntlet/internal/app"
	"gauntlet/internal/harness"
	"gauntlet/internal/report"
	"gauntlet/internal/trend"
)

var (
	trendRoot   string
	trendMetric string
	trendWindow int
	trendJSON   bool
)

// trendMetrics are the accepted values for --metric.
var trendMetrics = []string{
	"all",
	trend.MetricPassRate,
	trend.MetricDuration,
	trend.MetricP95,
	trend.MetricErrorRate,
}

// trendCmd represents the trend command
var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Compare the latest run against recent history",
	Long: `The trend command compares the latest run's headline metrics (task
pass rate, run duration, aggregate p95 latency, error rate) against the
mean of the recent runs recorded in history and classifies each one as
improving, stable or degrading.

Small movements inside the configured noise floors count as stable, so
a one-case wobble does not page anyone. The first run of a harness has
no baseline and reports every metric as stable with a no-history
warning.

Example usage:
  gauntlet trend                     # All metrics as a table
  gauntlet trend --metric p95        # A single metric
  gauntlet trend --window 5          # Shorter baseline window
  gauntlet trend --json              # Machine-readable output`,
	Args: cobra.NoArgs,
	RunE: runTrend,
}

func init() {
	rootCmd.AddCommand(trendCmd)

	trendCmd.Flags().StringVar(&trendRoot, "root", ".", "Harness root directory (config.yaml, suites/, artifacts/)")
	trendCmd.Flags().StringVar(&trendMetric, "metric", "all", "Metric to report (all, passRate, duration, p95, errorRate)")
	trendCmd.Flags().IntVar(&trendWindow, "window", 0, "History entries to average as the baseline (0 = configured window)")
	trendCmd.Flags().BoolVar(&trendJSON, "json", false, "Emit the trend report as JSON")

	_ = trendCmd.RegisterFlagCompletionFunc("metric", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return trendMetrics, cobra.ShellCompDirectiveNoFileComp
	})

	trendCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if trendWindow < 0 {
			return fmt.Errorf("window must not be negative, got %d", trendWindow)
		}
		for _, metric := range trendMetrics {
			if trendMetric == metric {
				return nil
			}
		}
		return fmt.Errorf("unknown metric %q, expected one of %v", trendMetric, trendMetrics)
	}
}

func runTrend(cmd *cobra.Command, args []string) error {
	initLogging(os.Stderr, false)

	analysis, err := app.AnalyzeTrends(trendRoot, trendWindow)
	if err != nil {
		return err
	}
	if trendMetric != "all" {
		analysis.Trends = filterTrends(analysis.Trends, trendMetric)
	}

	out := cmd.OutOrStdout()
	if trendJSON {
		data, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Trends for run %s\n", analysis.RunID)
	report.RenderTrends(out, analysis.Trends, analysis.Warnings)
	return nil
}

func filterTrends(trends []harness.TrendSnapshot, metric string) []harness.TrendSnapshot {
	var kept []harness.TrendSnapshot
	for _, snapshot := range trends {
		if snapshot.Metric == metric {
			kept = append(kept, snapshot)
		}
	}
	return kept
}
