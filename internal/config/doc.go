// Package config provides configuration management for gauntlet.
//
// Configuration is loaded from a harness root directory containing:
//   - config.yaml (main configuration file, optional)
//   - a suites directory with one suite definition per YAML file
//
// # Main configuration
//
// config.yaml carries harness-wide settings: the default environment, the
// artifact root, concurrency, the run-level SLO policy, trend noise floors
// and history retention. A missing file means defaults; a malformed file is
// an error. Fields left out of a partial file keep their defaults.
//
// # Environment overrides
//
// After the file is loaded, environment variables win:
//
//	TEST_ENV                overrides environment
//	ARTIFACT_ROOT           overrides artifactRoot
//	NOISE_FLOOR_PASS_RATE   overrides trend.noiseFloors.passRatePoints
//	NOISE_FLOOR_DURATION    overrides trend.noiseFloors.durationRatio
//	NOISE_FLOOR_P95         overrides trend.noiseFloors.p95Ratio
//	NOISE_FLOOR_ERROR_RATE  overrides trend.noiseFloors.errorRatePoints
//
// # Suite definitions
//
// Suite files use the JSON field convention (sigs.k8s.io/yaml) so their
// shape matches the summaries the harness writes:
//
//	id: checkout-e2e
//	kind: browser
//	command: ["npx", "playwright", "test", "--reporter=json"]
//	timeoutMillis: 300000
//	maxAttempts: 2
//	retryOnFailure: true
//	artifactGlobs: ["playwright-report/report.json"]
//	slo:
//	  p95LtMillis: 800
//
// A file that fails to parse or validate is reported as a LoadIssue and
// skipped; the rest of the inventory stays usable. Health-check treats any
// issue as a failure.
package config
