package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/harness"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	config, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultEnvironment, config.Environment)
	assert.Equal(t, DefaultArtifactRoot, config.ArtifactRoot)
	assert.Equal(t, DefaultSuitesDir, config.SuitesDir)
	assert.Equal(t, DefaultHistoryKeep, config.HistoryKeep)
	assert.Equal(t, DefaultTrendWindow, config.Trend.Window)
	assert.Equal(t, 1.0, config.Trend.NoiseFloors.PassRatePoints)
	assert.Equal(t, 0.05, config.Trend.NoiseFloors.DurationRatio)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	content := []byte("environment: production\nconcurrency: 2\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0644))

	config, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 2, config.Concurrency)
	assert.Equal(t, DefaultArtifactRoot, config.ArtifactRoot)
	assert.Equal(t, DefaultTrendWindow, config.Trend.Window)
}

func TestLoadConfig_FullFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`environment: staging
artifactRoot: /var/qa/artifacts
suitesDir: definitions
historyKeep: 50
browsers: [chromium, firefox]
slo:
  p95LtMillis: 800
  errorRateLtRatio: 0.01
  minCases: 5
trend:
  window: 5
  noiseFloors:
    passRatePoints: 2.0
    p95Ratio: 0.1
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0644))

	config, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/var/qa/artifacts", config.ArtifactRoot)
	assert.Equal(t, "definitions", config.SuitesDir)
	assert.Equal(t, 50, config.HistoryKeep)
	assert.Equal(t, []string{"chromium", "firefox"}, config.Browsers)
	require.NotNil(t, config.SLO)
	assert.Equal(t, 800.0, *config.SLO.P95LtMillis)
	assert.Equal(t, 0.01, *config.SLO.ErrorRateLtRatio)
	assert.Equal(t, 5, config.SLO.MinCases)
	assert.Equal(t, 5, config.Trend.Window)
	assert.Equal(t, 2.0, config.Trend.NoiseFloors.PassRatePoints)
	assert.Equal(t, 0.1, config.Trend.NoiseFloors.P95Ratio)
	// Unset floors keep defaults.
	assert.Equal(t, 0.05, config.Trend.NoiseFloors.DurationRatio)
	assert.Equal(t, 0.5, config.Trend.NoiseFloors.ErrorRatePoints)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("environment: [unclosed"), 0644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := []byte("environment: staging\nartifactRoot: from-file\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0644))

	t.Setenv(EnvTestEnv, "production")
	t.Setenv(EnvArtifactRoot, "/tmp/from-env")
	t.Setenv(EnvNoiseFloorPassRate, "3.5")
	t.Setenv(EnvNoiseFloorP95, "0.2")

	config, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "/tmp/from-env", config.ArtifactRoot)
	assert.Equal(t, 3.5, config.Trend.NoiseFloors.PassRatePoints)
	assert.Equal(t, 0.2, config.Trend.NoiseFloors.P95Ratio)
}

func TestLoadConfig_InvalidEnvOverrideIgnored(t *testing.T) {
	dir := t.TempDir()

	t.Setenv(EnvNoiseFloorDuration, "not-a-number")
	t.Setenv(EnvNoiseFloorErrorRate, "-1")

	config, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.05, config.Trend.NoiseFloors.DurationRatio)
	assert.Equal(t, 0.5, config.Trend.NoiseFloors.ErrorRatePoints)
}

func TestLoadConfigFile_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ci-overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: qa\nhistoryKeep: 25\n"), 0644))

	config, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "qa", config.Environment)
	assert.Equal(t, 25, config.HistoryKeep)
	assert.Equal(t, DefaultArtifactRoot, config.ArtifactRoot)
}

func TestLoadConfigFile_MissingFileIsAnError(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFile_EnvStillWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: qa\n"), 0644))

	t.Setenv(EnvTestEnv, "production")

	config, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "production", config.Environment)
}

func TestValidateConfig(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		errs := ValidateConfig(GetDefaultConfig())
		assert.False(t, errs.HasErrors())
	})

	t.Run("collects every finding", func(t *testing.T) {
		bad := GetDefaultConfig()
		bad.Environment = " "
		bad.Concurrency = -1
		bad.HistoryKeep = 0

		errs := ValidateConfig(bad)
		require.True(t, errs.HasErrors())
		assert.Len(t, errs, 3)
		assert.Contains(t, errs.Error(), "environment")
		assert.Contains(t, errs.Error(), "concurrency")
		assert.Contains(t, errs.Error(), "historyKeep")
	})

	t.Run("slo bounds", func(t *testing.T) {
		f := func(v float64) *float64 { return &v }
		bad := GetDefaultConfig()
		bad.SLO = &harness.SLOPolicy{P95LtMillis: f(-5), ErrorRateLtRatio: f(1.5)}

		errs := ValidateConfig(bad)
		assert.Len(t, errs, 2)
	})
}
