package cmd

import (
	"strings"
	"testing"

	"gauntlet/internal/harness"
	"gauntlet/internal/trend"
)

func TestTrendCommandProperties(t *testing.T) {
	// Test trend command properties
	if trendCmd.Use != "trend" {
		t.Errorf("Expected Use to be 'trend', got %s", trendCmd.Use)
	}

	if trendCmd.RunE == nil {
		t.Error("Expected RunE function to be set")
	}

	for _, name := range []string{"root", "metric", "window", "json"} {
		if trendCmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected flag --%s to be registered", name)
		}
	}

	if flag := trendCmd.Flags().Lookup("metric"); flag.DefValue != "all" {
		t.Errorf("Expected --metric default 'all', got %q", flag.DefValue)
	}
}

func TestTrendMetricValidation(t *testing.T) {
	originalMetric := trendMetric
	originalWindow := trendWindow
	defer func() {
		trendMetric = originalMetric
		trendWindow = originalWindow
	}()
	trendWindow = 0

	// Every documented metric is accepted
	for _, metric := range trendMetrics {
		trendMetric = metric
		if err := trendCmd.PreRunE(trendCmd, nil); err != nil {
			t.Errorf("Expected metric %q to be accepted, got: %v", metric, err)
		}
	}

	// Unknown metrics are rejected with the list of valid ones
	trendMetric = "latency"
	err := trendCmd.PreRunE(trendCmd, nil)
	if err == nil {
		t.Fatal("Expected error for unknown metric")
	}
	if !strings.Contains(err.Error(), `unknown metric "latency"`) {
		t.Errorf("Expected unknown metric message, got: %v", err)
	}
	if !strings.Contains(err.Error(), "passRate") {
		t.Errorf("Expected error to list valid metrics, got: %v", err)
	}
}

func TestTrendWindowValidation(t *testing.T) {
	originalMetric := trendMetric
	originalWindow := trendWindow
	defer func() {
		trendMetric = originalMetric
		trendWindow = originalWindow
	}()
	trendMetric = "all"

	trendWindow = -1
	if err := trendCmd.PreRunE(trendCmd, nil); err == nil {
		t.Error("Expected error for negative window")
	}

	trendWindow = 5
	if err := trendCmd.PreRunE(trendCmd, nil); err != nil {
		t.Errorf("Expected positive window to be accepted, got: %v", err)
	}
}

func TestFilterTrends(t *testing.T) {
	trends := []harness.TrendSnapshot{
		{Metric: trend.MetricPassRate, Current: 1.0},
		{Metric: trend.MetricDuration, Current: 60000},
		{Metric: trend.MetricP95, Current: 250},
		{Metric: trend.MetricErrorRate, Current: 0},
	}

	filtered := filterTrends(trends, trend.MetricP95)
	if len(filtered) != 1 {
		t.Fatalf("Expected 1 snapshot after filtering, got %d", len(filtered))
	}
	if filtered[0].Metric != trend.MetricP95 {
		t.Errorf("Expected p95 snapshot, got %s", filtered[0].Metric)
	}

	if got := filterTrends(trends, "nope"); len(got) != 0 {
		t.Errorf("Expected no snapshots for unknown metric, got %d", len(got))
	}
}
