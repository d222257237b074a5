package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"gauntlet/internal/aggregate"
	"gauntlet/internal/artifact"
	"gauntlet/internal/config"
	"gauntlet/internal/executor"
	"gauntlet/internal/exitcode"
	"gauntlet/internal/harness"
	"gauntlet/internal/parser"
	"gauntlet/internal/report"
	"gauntlet/internal/scheduler"
	"gauntlet/internal/trend"
	"gauntlet/pkg/logging"
)

// ConfigurationError reports a run that never started: broken
// configuration, an unknown suite selection, or a selection that expands
// to nothing runnable. No run directory exists when it is returned.
type ConfigurationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return e.Message
}

func configurationErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// RunOptions carries the per-invocation overrides for a run. Zero values
// defer to config.yaml and its environment variable overrides.
type RunOptions struct {
	// RootPath is the harness root directory holding config.yaml and the
	// suites directory. Empty means the current directory.
	RootPath string
	// ConfigFile replaces the root's config.yaml with an explicit file.
	// Relative paths in the loaded configuration still anchor at RootPath.
	ConfigFile string
	// Environment overrides the configured target environment.
	Environment string
	// SuiteIDs restricts the run to the named suites. Empty runs all.
	SuiteIDs []string
	// Browsers overrides the configured browser matrix.
	Browsers []string
	// NoRetry disables failure retries even where suites opt in. Errored
	// and timed-out attempts still retry while attempts remain.
	NoRetry bool
	// NoReports skips the JUnit, HTML and terminal reports. The JSON
	// summary, latest pointer and history entry are always written.
	NoReports bool
	// FailFast stops scheduling new tasks after the first fatal-class
	// failure.
	FailFast bool
	// GlobalTimeoutMillis bounds the whole run. Zero means unbounded.
	GlobalTimeoutMillis int64
	// Concurrency overrides the configured task concurrency.
	Concurrency int
	// Progress receives live per-task lines and the final terminal
	// report. Nil keeps the run silent.
	Progress io.Writer
	// Runner substitutes the process launcher. Nil uses the real
	// executor.
	Runner scheduler.ProcessRunner
}

// RunResult is what a finished run leaves behind in memory. The summary
// matches runs/<runId>/summary.json byte for byte once encoded.
type RunResult struct {
	Summary *harness.RunSummary
	Trends  []harness.TrendSnapshot
	// TrendWarnings carry analysis caveats such as missing history. They
	// are not part of the summary, so rebuilt summaries stay
	// byte-identical to the original.
	TrendWarnings []string
	RunDir        string
}

// Run executes one full harness run: load and validate configuration,
// select suites, execute the task matrix, aggregate, compare against
// history and emit reports. A completed run with a non-zero exit code
// returns its result alongside an *exitcode.RunError carrying that code;
// the result is nil only when the run never started.
func Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	root, err := filepath.Abs(opts.RootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve harness root: %w", err)
	}

	cfg, err := loadRunConfig(root, opts.ConfigFile)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}
	applyOverrides(&cfg, opts)
	if errs := config.ValidateConfig(cfg); errs.HasErrors() {
		return nil, &ConfigurationError{Message: errs.Error()}
	}

	suitesDir := resolvePath(root, cfg.SuitesDir)
	suites, issues, err := config.LoadSuites(suitesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load suite definitions: %w", err)
	}
	for _, issue := range issues {
		logging.Warn("app", "Skipping suite file %s: %v", issue.File, issue.Err)
	}
	if len(suites) == 0 {
		return nil, configurationErrorf("no suite definitions found in %s", suitesDir)
	}
	selected, err := config.SelectSuites(suites, opts.SuiteIDs)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}

	manifest := newManifest(cfg, opts, selected, root)
	if err := checkRunnable(manifest); err != nil {
		return nil, err
	}

	store := artifact.New(resolvePath(root, cfg.ArtifactRoot))
	runDir, err := store.EnsureRunDir(manifest.RunID)
	if err != nil {
		return nil, err
	}
	if err := store.WriteManifest(manifest.RunID, manifest); err != nil {
		return nil, err
	}

	runner := opts.Runner
	if runner == nil {
		runner = executor.New()
	}
	sched := scheduler.New(store, runner, parser.DefaultRegistry())

	var term *report.Terminal
	progressDone := make(chan struct{})
	if opts.Progress != nil {
		term = report.NewTerminal(opts.Progress)
		events := sched.Events().Subscribe()
		go func() {
			defer close(progressDone)
			for event := range events {
				term.Progress(event)
			}
		}()
	} else {
		close(progressDone)
	}

	logging.Info("app", "Starting run %s (environment %s, %d suites)",
		manifest.RunID, manifest.Environment, len(manifest.Suites))
	tasks, err := sched.Run(ctx, manifest, scheduler.Options{
		Concurrency: cfg.Concurrency,
		FailFast:    opts.FailFast,
	})
	sched.Events().Close()
	<-progressDone
	if err != nil {
		return nil, err
	}

	summary := aggregate.Build(manifest, tasks)

	// History is read before this run is appended so the baseline never
	// includes the run under analysis.
	history, err := store.History(cfg.Trend.Window)
	if err != nil {
		logging.Warn("app", "Trend history unavailable: %v", err)
	}
	trends, trendWarnings := trend.New(cfg.Trend).Analyze(summary, history)
	for _, warning := range trendWarnings {
		logging.Info("app", "Trend analysis: %s", warning)
	}

	result := &RunResult{
		Summary:       summary,
		Trends:        trends,
		TrendWarnings: trendWarnings,
		RunDir:        runDir,
	}

	emitters := []report.Emitter{report.NewJSON(store)}
	if !opts.NoReports {
		emitters = append(emitters, report.NewJUnit(store), report.NewHTML(store, trends))
		if term != nil {
			emitters = append(emitters, term)
		}
	}
	infraErr := report.EmitAll(ctx, summary, emitters...)
	if err := publish(store, summary, cfg.HistoryKeep); err != nil {
		infraErr = errors.Join(infraErr, err)
	}

	// The verdict's exit code outranks infrastructure trouble: CI keys off
	// the run outcome, and emission failures were already logged.
	if summary.ExitCode != exitcode.Success {
		return result, &exitcode.RunError{Verdict: summary.Verdict, Code: summary.ExitCode}
	}
	return result, infraErr
}

// loadRunConfig loads either the root's config.yaml or an explicitly
// named file.
func loadRunConfig(root, configFile string) (config.Config, error) {
	if configFile == "" {
		return config.LoadConfig(root)
	}
	return config.LoadConfigFile(resolvePath(root, configFile))
}

// applyOverrides folds command line overrides into the loaded
// configuration. Flags outrank both the file and environment variables.
func applyOverrides(cfg *config.Config, opts RunOptions) {
	if opts.Environment != "" {
		cfg.Environment = opts.Environment
	}
	if len(opts.Browsers) > 0 {
		cfg.Browsers = opts.Browsers
	}
	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}
}

// newManifest snapshots the run parameters. Suite working directories are
// resolved against the harness root here so the persisted manifest replays
// identically regardless of the process working directory.
func newManifest(cfg config.Config, opts RunOptions, selected []harness.SuiteDefinition, root string) *harness.RunManifest {
	now := time.Now().UTC()
	suites := make([]harness.SuiteDefinition, len(selected))
	copy(suites, selected)
	for i := range suites {
		suites[i].WorkDir = resolvePath(root, suites[i].WorkDir)
	}
	return &harness.RunManifest{
		RunID:               harness.NewRunID(now),
		Environment:         cfg.Environment,
		StartedAt:           now,
		Browsers:            cfg.Browsers,
		RetryEnabled:        !opts.NoRetry,
		GlobalTimeoutMillis: opts.GlobalTimeoutMillis,
		Suites:              suites,
		DefaultSLO:          cfg.SLO,
	}
}

// checkRunnable rejects selections that expand to nothing, before any run
// directory is created.
func checkRunnable(manifest *harness.RunManifest) error {
	tasks := scheduler.ExpandTasks(manifest)
	if len(tasks) == 0 {
		return configurationErrorf("requested browsers %v match no selected suite", manifest.Browsers)
	}
	for _, task := range tasks {
		if task.State != harness.StateSkipped {
			return nil
		}
	}
	return configurationErrorf("environment %q is not allowed by any selected suite", manifest.Environment)
}

// publish makes the finished run visible outside its own directory: the
// latest pointer, the history entry and the history bound.
func publish(store *artifact.Store, summary *harness.RunSummary, keep int) error {
	if err := store.PublishLatest(summary.RunID); err != nil {
		return err
	}
	data, err := report.Encode(summary)
	if err != nil {
		return err
	}
	if _, err := store.AppendHistory(data, summary.EndedAt); err != nil {
		return err
	}
	return store.PruneHistory(keep)
}

// resolvePath anchors a relative configuration path at the harness root.
func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
