package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/artifact"
	"gauntlet/internal/executor"
	"gauntlet/internal/exitcode"
	"gauntlet/internal/harness"
	"gauntlet/internal/report"
	"gauntlet/internal/trend"
)

const passingNewmanExport = `{
  "run": {
    "stats": {"requests": {"total": 2, "failed": 0}, "assertions": {"total": 3, "failed": 0}},
    "timings": {"started": 1700000000000, "completed": 1700000001000},
    "executions": [
      {"item": {"name": "list"}, "response": {"code": 200, "responseTime": 40}, "assertions": [{"assertion": "status ok"}]},
      {"item": {"name": "create"}, "response": {"code": 201, "responseTime": 60}, "assertions": [{"assertion": "created"}]}
    ]
  }
}`

const failingNewmanExport = `{
  "run": {
    "stats": {"requests": {"total": 2, "failed": 1}, "assertions": {"total": 3, "failed": 1}},
    "timings": {"started": 1700000000000, "completed": 1700000001000},
    "executions": [
      {"item": {"name": "list"}, "response": {"code": 200, "responseTime": 40}, "assertions": [{"assertion": "status ok"}]},
      {"item": {"name": "create"}, "response": {"code": 500, "responseTime": 60}, "assertions": [{"assertion": "created", "error": {"message": "got 500"}}]}
    ]
  }
}`

// scriptedRunner fakes suite processes: it drops a canned artifact into
// the working directory and reports a canned exit code.
type scriptedRunner struct {
	artifactName string
	artifact     string
	exitCode     int
}

func (r *scriptedRunner) Run(ctx context.Context, spec executor.Spec) (executor.Outcome, error) {
	if r.artifactName != "" {
		path := filepath.Join(spec.Dir, r.artifactName)
		if err := os.WriteFile(path, []byte(r.artifact), 0644); err != nil {
			return executor.Outcome{}, err
		}
	}
	now := time.Now()
	return executor.Outcome{
		ExitCode:       r.exitCode,
		StartedAt:      now,
		EndedAt:        now.Add(50 * time.Millisecond),
		DurationMillis: 50,
	}, nil
}

func passingRunner() *scriptedRunner {
	return &scriptedRunner{artifactName: "newman.json", artifact: passingNewmanExport}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// testRoot builds a harness root with one http-collection suite and an
// existing working directory. CI variables are cleared so the test sees
// only what it writes.
func testRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("TEST_ENV", "")
	t.Setenv("ARTIFACT_ROOT", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "suites"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "work"), 0755))
	writeFile(t, filepath.Join(root, "suites", "checkout-api.yaml"), `
id: checkout-api
kind: http-collection
command: ["newman", "run", "checkout.json"]
workDir: work
artifactGlobs: ["newman.json"]
timeoutMillis: 60000
`)
	return root
}

func TestRun_PassingRunWritesFullArtifactSet(t *testing.T) {
	root := testRoot(t)

	res, err := Run(context.Background(), RunOptions{RootPath: root, Runner: passingRunner()})
	require.NoError(t, err)
	require.NotNil(t, res)

	summary := res.Summary
	assert.Equal(t, harness.VerdictPass, summary.Verdict)
	assert.Equal(t, 0, summary.ExitCode)
	assert.Equal(t, "staging", summary.Environment)
	assert.Equal(t, 1, summary.Totals.Tasks)
	assert.Equal(t, 1, summary.Totals.Passed)
	assert.Equal(t, 3, summary.Totals.Cases)
	assert.Equal(t, 3, summary.Totals.CasesPassed)

	runDir := filepath.Join(root, "artifacts", "runs", summary.RunID)
	assert.Equal(t, runDir, res.RunDir)
	assert.FileExists(t, filepath.Join(runDir, artifact.ManifestFileName))
	assert.FileExists(t, filepath.Join(runDir, artifact.SummaryFileName))
	assert.FileExists(t, filepath.Join(runDir, artifact.JUnitFileName))
	assert.FileExists(t, filepath.Join(runDir, artifact.HTMLFileName))
	assert.FileExists(t, filepath.Join(runDir, "checkout-api", "staging", artifact.StdoutLogName))
	assert.FileExists(t, filepath.Join(runDir, "checkout-api", "staging", "attempt-1.json"))
	assert.FileExists(t, filepath.Join(runDir, "checkout-api", "staging", "newman.json"))

	// The written summary is the canonical encoding of the in-memory one.
	onDisk, err := os.ReadFile(filepath.Join(runDir, artifact.SummaryFileName))
	require.NoError(t, err)
	encoded, err := report.Encode(summary)
	require.NoError(t, err)
	assert.Equal(t, encoded, onDisk)

	latest, err := os.ReadFile(filepath.Join(root, "artifacts", "latest", artifact.SummaryFileName))
	require.NoError(t, err)
	assert.Equal(t, onDisk, latest)

	entries, err := os.ReadDir(filepath.Join(root, "artifacts", "history"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// The manifest snapshot carries the resolved working directory.
	store := artifact.New(filepath.Join(root, "artifacts"))
	manifest, err := store.ReadManifest(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, "staging", manifest.Environment)
	require.Len(t, manifest.Suites, 1)
	assert.Equal(t, filepath.Join(root, "work"), manifest.Suites[0].WorkDir)

	// First run has nothing to compare against.
	assert.Contains(t, res.TrendWarnings, trend.WarningNoHistory)
	for _, snap := range res.Trends {
		assert.Equal(t, harness.TrendStable, snap.Direction)
		assert.Nil(t, snap.Previous)
	}
}

func TestRun_SecondRunGetsTrendBaseline(t *testing.T) {
	root := testRoot(t)
	ctx := context.Background()

	_, err := Run(ctx, RunOptions{RootPath: root, Runner: passingRunner()})
	require.NoError(t, err)
	time.Sleep(3 * time.Millisecond)

	res, err := Run(ctx, RunOptions{RootPath: root, Runner: passingRunner()})
	require.NoError(t, err)

	assert.Empty(t, res.TrendWarnings)
	require.Len(t, res.Trends, 4, "latency-bearing runs report all four metrics")

	var passRate *harness.TrendSnapshot
	for i := range res.Trends {
		if res.Trends[i].Metric == trend.MetricPassRate {
			passRate = &res.Trends[i]
		}
	}
	require.NotNil(t, passRate)
	require.NotNil(t, passRate.Previous)
	assert.Equal(t, 1.0, *passRate.Previous)
	assert.Equal(t, harness.TrendStable, passRate.Direction)

	entries, err := os.ReadDir(filepath.Join(root, "artifacts", "history"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_AssertionFailureYieldsFatalRunError(t *testing.T) {
	root := testRoot(t)
	runner := &scriptedRunner{artifactName: "newman.json", artifact: failingNewmanExport, exitCode: 1}

	res, err := Run(context.Background(), RunOptions{RootPath: root, Runner: runner})
	require.Error(t, err)
	require.NotNil(t, res, "a finished run returns its result even when it failed")

	var runErr *exitcode.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, harness.VerdictFatal, runErr.Verdict)
	assert.Equal(t, 1, runErr.Code)

	assert.Equal(t, harness.VerdictFatal, res.Summary.Verdict)
	require.Len(t, res.Summary.Tasks, 1)
	assert.Equal(t, harness.StateFailed, res.Summary.Tasks[0].State)
	assert.Equal(t, "1 of 3 cases failed", res.Summary.Tasks[0].FailureReason)

	// Failed runs still leave the full artifact set behind.
	assert.FileExists(t, filepath.Join(res.RunDir, artifact.SummaryFileName))
	assert.FileExists(t, filepath.Join(root, "artifacts", "latest", artifact.SummaryFileName))
}

func TestRun_SLOBreachExitsReserved(t *testing.T) {
	root := testRoot(t)
	writeFile(t, filepath.Join(root, "config.yaml"), `
slo:
  p95LtMillis: 10
`)

	res, err := Run(context.Background(), RunOptions{RootPath: root, Runner: passingRunner()})
	require.Error(t, err)
	require.NotNil(t, res)

	var runErr *exitcode.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, harness.VerdictSLOFail, runErr.Verdict)
	assert.Equal(t, exitcode.SLOFail, runErr.Code)

	assert.Equal(t, harness.VerdictSLOFail, res.Summary.Verdict)
	assert.NotEmpty(t, res.Summary.SLOFailures)
	require.Len(t, res.Summary.Tasks, 1)
	assert.Equal(t, harness.StateFailed, res.Summary.Tasks[0].State)
	assert.Equal(t, 0, res.Summary.Tasks[0].ExitCode)
}

func TestRun_UnknownSuiteFailsBeforeRunDir(t *testing.T) {
	root := testRoot(t)

	res, err := Run(context.Background(), RunOptions{
		RootPath: root,
		SuiteIDs: []string{"nope"},
		Runner:   passingRunner(),
	})
	require.Error(t, err)
	assert.Nil(t, res)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), `unknown suite "nope"`)
	assert.NoDirExists(t, filepath.Join(root, "artifacts"))
}

func TestRun_ExcludedEnvironmentFailsBeforeRunDir(t *testing.T) {
	root := t.TempDir()
	t.Setenv("TEST_ENV", "")
	t.Setenv("ARTIFACT_ROOT", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "suites"), 0755))
	writeFile(t, filepath.Join(root, "suites", "prod-only.yaml"), `
id: prod-only
kind: scanner
command: ["zap-scan"]
environments: [production]
timeoutMillis: 60000
`)

	res, err := Run(context.Background(), RunOptions{RootPath: root, Runner: passingRunner()})
	require.Error(t, err)
	assert.Nil(t, res)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), `"staging"`)
	assert.NoDirExists(t, filepath.Join(root, "artifacts"))
}

func TestRun_EmptySuitesDirFailsBeforeRunDir(t *testing.T) {
	root := t.TempDir()
	t.Setenv("TEST_ENV", "")
	t.Setenv("ARTIFACT_ROOT", "")

	res, err := Run(context.Background(), RunOptions{RootPath: root, Runner: passingRunner()})
	require.Error(t, err)
	assert.Nil(t, res)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "no suite definitions")
	assert.NoDirExists(t, filepath.Join(root, "artifacts"))
}

func TestRun_InvalidConfigRejected(t *testing.T) {
	root := testRoot(t)
	writeFile(t, filepath.Join(root, "config.yaml"), "concurrency: -2\n")

	res, err := Run(context.Background(), RunOptions{RootPath: root, Runner: passingRunner()})
	require.Error(t, err)
	assert.Nil(t, res)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "concurrency")
	assert.NoDirExists(t, filepath.Join(root, "artifacts"))
}

func TestRun_NoReportsSkipsAuxiliaryEmitters(t *testing.T) {
	root := testRoot(t)

	res, err := Run(context.Background(), RunOptions{
		RootPath:  root,
		NoReports: true,
		Runner:    passingRunner(),
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(res.RunDir, artifact.SummaryFileName))
	assert.NoFileExists(t, filepath.Join(res.RunDir, artifact.JUnitFileName))
	assert.NoFileExists(t, filepath.Join(res.RunDir, artifact.HTMLFileName))
	assert.FileExists(t, filepath.Join(root, "artifacts", "latest", artifact.SummaryFileName))
}

func TestRun_EnvironmentFlagOverridesConfig(t *testing.T) {
	root := testRoot(t)
	writeFile(t, filepath.Join(root, "config.yaml"), "environment: production\n")

	res, err := Run(context.Background(), RunOptions{
		RootPath:    root,
		Environment: "staging",
		Runner:      passingRunner(),
	})
	require.NoError(t, err)
	assert.Equal(t, "staging", res.Summary.Environment)
}

func TestRun_ExplicitConfigFileReplacesRootConfig(t *testing.T) {
	root := testRoot(t)
	writeFile(t, filepath.Join(root, "config.yaml"), "environment: production\n")
	writeFile(t, filepath.Join(root, "ci.yaml"), "environment: qa\n")

	res, err := Run(context.Background(), RunOptions{
		RootPath:   root,
		ConfigFile: "ci.yaml",
		Runner:     passingRunner(),
	})
	require.NoError(t, err)
	assert.Equal(t, "qa", res.Summary.Environment)
}

func TestRun_TestEnvVariableAppliesWithoutFlag(t *testing.T) {
	root := testRoot(t)
	t.Setenv("TEST_ENV", "qa")

	res, err := Run(context.Background(), RunOptions{RootPath: root, Runner: passingRunner()})
	require.NoError(t, err)
	assert.Equal(t, "qa", res.Summary.Environment)
	require.Len(t, res.Summary.Tasks, 1)
	assert.Equal(t, "checkout-api/qa", res.Summary.Tasks[0].Key.String())
}

func TestRun_ProgressWriterSeesLiveAndFinalOutput(t *testing.T) {
	root := testRoot(t)
	var buf bytes.Buffer

	_, err := Run(context.Background(), RunOptions{
		RootPath: root,
		Progress: &buf,
		Runner:   passingRunner(),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "checkout-api/staging started")
	assert.Contains(t, out, "checkout-api/staging passed")
	assert.Contains(t, out, "All suites passed")
}
