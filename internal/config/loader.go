package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gauntlet/pkg/logging"

	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Environment variable overrides applied after the file is loaded. The noise
// floor variables let CI jobs tune trend sensitivity without editing files.
const (
	EnvTestEnv             = "TEST_ENV"
	EnvArtifactRoot        = "ARTIFACT_ROOT"
	EnvNoiseFloorPassRate  = "NOISE_FLOOR_PASS_RATE"
	EnvNoiseFloorDuration  = "NOISE_FLOOR_DURATION"
	EnvNoiseFloorP95       = "NOISE_FLOOR_P95"
	EnvNoiseFloorErrorRate = "NOISE_FLOOR_ERROR_RATE"
)

// LoadConfig loads configuration from the given harness root directory.
// A missing config.yaml is not an error: defaults apply. Environment
// variable overrides are applied last, so they win over file values.
func LoadConfig(rootPath string) (Config, error) {
	configFilePath := filepath.Join(rootPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("config", "No config.yaml found at %s, using defaults", configFilePath)
			applyEnvOverrides(&config)
			return config, nil
		}
		return Config{}, fmt.Errorf("failed to read %s: %w", configFilePath, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("config", "Loaded configuration from %s", configFilePath)

	applyDefaults(&config)
	applyEnvOverrides(&config)
	return config, nil
}

// LoadConfigFile loads configuration from an explicit file instead of the
// root's config.yaml. Unlike LoadConfig, a missing file is an error: the
// caller asked for that file specifically.
func LoadConfigFile(path string) (Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Info("config", "Loaded configuration from %s", path)

	applyDefaults(&config)
	applyEnvOverrides(&config)
	return config, nil
}

// applyDefaults fills fields the file left empty. Partial configs are normal.
func applyDefaults(config *Config) {
	if config.Environment == "" {
		config.Environment = DefaultEnvironment
	}
	if config.ArtifactRoot == "" {
		config.ArtifactRoot = DefaultArtifactRoot
	}
	if config.SuitesDir == "" {
		config.SuitesDir = DefaultSuitesDir
	}
	if config.HistoryKeep <= 0 {
		config.HistoryKeep = DefaultHistoryKeep
	}
	if config.Trend.Window <= 0 {
		config.Trend.Window = DefaultTrendWindow
	}
	floors := &config.Trend.NoiseFloors
	defaults := GetDefaultConfig().Trend.NoiseFloors
	if floors.PassRatePoints <= 0 {
		floors.PassRatePoints = defaults.PassRatePoints
	}
	if floors.DurationRatio <= 0 {
		floors.DurationRatio = defaults.DurationRatio
	}
	if floors.P95Ratio <= 0 {
		floors.P95Ratio = defaults.P95Ratio
	}
	if floors.ErrorRatePoints <= 0 {
		floors.ErrorRatePoints = defaults.ErrorRatePoints
	}
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv(EnvTestEnv); env != "" {
		config.Environment = env
	}
	if root := os.Getenv(EnvArtifactRoot); root != "" {
		config.ArtifactRoot = root
	}
	overrideFloat(EnvNoiseFloorPassRate, &config.Trend.NoiseFloors.PassRatePoints)
	overrideFloat(EnvNoiseFloorDuration, &config.Trend.NoiseFloors.DurationRatio)
	overrideFloat(EnvNoiseFloorP95, &config.Trend.NoiseFloors.P95Ratio)
	overrideFloat(EnvNoiseFloorErrorRate, &config.Trend.NoiseFloors.ErrorRatePoints)
}

func overrideFloat(name string, target *float64) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		logging.Warn("config", "Ignoring invalid %s=%q", name, raw)
		return
	}
	*target = value
}
