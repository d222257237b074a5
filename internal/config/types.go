package config

import "gauntlet/internal/harness"

// Config is the top-level configuration structure for gauntlet, loaded from
// config.yaml at the harness root.
type Config struct {
	// Environment is the default target environment for runs.
	Environment string `yaml:"environment,omitempty"`
	// ArtifactRoot is where the runs, latest and history directories live.
	ArtifactRoot string `yaml:"artifactRoot,omitempty"`
	// SuitesDir is the directory holding suite definition files.
	SuitesDir string `yaml:"suitesDir,omitempty"`
	// Concurrency caps how many tasks run at once. Zero selects
	// min(NumCPU, 4).
	Concurrency int `yaml:"concurrency,omitempty"`
	// HistoryKeep bounds how many summaries the history directory retains.
	HistoryKeep int `yaml:"historyKeep,omitempty"`
	// Browsers is the default browser matrix for browser suites when the
	// run does not request one.
	Browsers []string `yaml:"browsers,omitempty"`
	// SLO is the run-level SLO policy; suites may override it.
	SLO *harness.SLOPolicy `yaml:"slo,omitempty"`
	// Trend configures history comparison.
	Trend TrendConfig `yaml:"trend,omitempty"`
}

// TrendConfig controls how runs are compared against history.
type TrendConfig struct {
	// Window is how many historical summaries feed the smoothed baseline.
	Window int `yaml:"window,omitempty"`
	// NoiseFloors suppress trend classification for changes smaller than
	// normal run-to-run variance.
	NoiseFloors NoiseFloors `yaml:"noiseFloors,omitempty"`
}

// NoiseFloors holds per-metric thresholds below which a change counts as
// stable. Rate metrics use percentage points, duration metrics use ratios.
type NoiseFloors struct {
	// PassRatePoints is the floor for pass-rate changes, in percentage
	// points.
	PassRatePoints float64 `yaml:"passRatePoints,omitempty"`
	// DurationRatio is the floor for run-duration changes, as a ratio of
	// the previous value.
	DurationRatio float64 `yaml:"durationRatio,omitempty"`
	// P95Ratio is the floor for aggregate p95 changes, as a ratio of the
	// previous value.
	P95Ratio float64 `yaml:"p95Ratio,omitempty"`
	// ErrorRatePoints is the floor for error-rate changes, in percentage
	// points.
	ErrorRatePoints float64 `yaml:"errorRatePoints,omitempty"`
}
