package config

const (
	// DefaultEnvironment is the environment targeted when none is given.
	DefaultEnvironment = "staging"

	// DefaultArtifactRoot is where run artifacts land relative to the
	// harness root.
	DefaultArtifactRoot = "artifacts"

	// DefaultSuitesDir holds suite definition files relative to the harness
	// root.
	DefaultSuitesDir = "suites"

	// DefaultHistoryKeep bounds the history directory.
	DefaultHistoryKeep = 200

	// DefaultTrendWindow is how many historical summaries feed the trend
	// baseline.
	DefaultTrendWindow = 10
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Environment:  DefaultEnvironment,
		ArtifactRoot: DefaultArtifactRoot,
		SuitesDir:    DefaultSuitesDir,
		HistoryKeep:  DefaultHistoryKeep,
		Trend: TrendConfig{
			Window: DefaultTrendWindow,
			NoiseFloors: NoiseFloors{
				PassRatePoints:  1.0,
				DurationRatio:   0.05,
				P95Ratio:        0.05,
				ErrorRatePoints: 0.5,
			},
		},
	}
}
