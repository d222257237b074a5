package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gauntlet/internal/artifact"
	"gauntlet/internal/executor"
	"gauntlet/internal/harness"
	"gauntlet/internal/parser"
	"gauntlet/internal/slo"
	"gauntlet/internal/template"
	"gauntlet/pkg/logging"
)

// Failure reasons recorded on tasks the scheduler never ran.
const (
	ReasonCancelled     = "cancelled"
	ReasonGlobalTimeout = "global-timeout"
	ReasonFailFast      = "fail-fast"
	ReasonEnvExcluded   = "environment not in suite allowlist"
)

// ProcessRunner launches one suite process. *executor.Executor implements
// it; tests substitute their own.
type ProcessRunner interface {
	Run(ctx context.Context, spec executor.Spec) (executor.Outcome, error)
}

// Options tune one scheduling run.
type Options struct {
	// Concurrency bounds simultaneously running tasks. Non-positive means
	// DefaultConcurrency.
	Concurrency int
	// FailFast stops scheduling new tasks after the first fatal-class
	// task; tasks already running finish normally.
	FailFast bool
}

// DefaultConcurrency is the global task parallelism bound when the
// configuration does not override it.
func DefaultConcurrency() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Scheduler expands a run manifest into tasks and drives them through the
// execute, collect, parse, retry loop.
type Scheduler struct {
	store     *artifact.Store
	runner    ProcessRunner
	parsers   *parser.Registry
	templates *template.Engine
	events    *Events
}

// New creates a Scheduler.
func New(store *artifact.Store, runner ProcessRunner, parsers *parser.Registry) *Scheduler {
	return &Scheduler{
		store:     store,
		runner:    runner,
		parsers:   parsers,
		templates: template.New(),
		events:    NewEvents(),
	}
}

// Events exposes the scheduler's event fan-out for subscribers.
func (s *Scheduler) Events() *Events {
	return s.events
}

// ExpandTasks builds the task matrix for a manifest: every selected suite
// crossed with the run environment and, for browser suites, its effective
// browser list. Suites that exclude the run environment yield one skipped
// task so the exclusion shows up in reports.
func ExpandTasks(manifest *harness.RunManifest) []*harness.Task {
	var tasks []*harness.Task
	for _, suite := range manifest.Suites {
		if !suite.AllowsEnvironment(manifest.Environment) {
			tasks = append(tasks, &harness.Task{
				Key:           harness.TaskKey{SuiteID: suite.ID, Environment: manifest.Environment},
				State:         harness.StateSkipped,
				MaxAttempts:   suite.EffectiveMaxAttempts(),
				FailureReason: ReasonEnvExcluded,
			})
			continue
		}
		for _, browser := range suite.EffectiveBrowsers(manifest.Browsers) {
			tasks = append(tasks, &harness.Task{
				Key:         harness.TaskKey{SuiteID: suite.ID, Environment: manifest.Environment, Browser: browser},
				State:       harness.StatePending,
				MaxAttempts: suite.EffectiveMaxAttempts(),
			})
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Key.Less(tasks[j].Key) })
	return tasks
}

// Run executes the manifest's task matrix and returns all tasks in key
// order, every one in a terminal state. Cancellation does not return an
// error: remaining tasks are errored with a cancellation reason and the
// partial result set is still returned for aggregation.
func (s *Scheduler) Run(ctx context.Context, manifest *harness.RunManifest, opts Options) ([]*harness.Task, error) {
	tasks := ExpandTasks(manifest)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency()
	}

	runCtx := ctx
	if manifest.GlobalTimeoutMillis > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(manifest.GlobalTimeoutMillis)*time.Millisecond)
		defer cancel()
	}

	// Suites default to one task at a time; parallelWithinSuite waives the
	// suite lock.
	suiteLocks := make(map[string]*sync.Mutex)
	for _, suite := range manifest.Suites {
		if !suite.ParallelWithinSuite {
			suiteLocks[suite.ID] = &sync.Mutex{}
		}
	}

	logging.Info("scheduler", "Scheduling %d tasks (concurrency %d)", len(tasks), concurrency)

	var fatalSeen atomic.Bool
	sem := semaphore.NewWeighted(int64(concurrency))
	group, groupCtx := errgroup.WithContext(runCtx)

	for _, task := range tasks {
		if task.State == harness.StateSkipped {
			s.events.Publish(Event{Type: EventTaskFinished, Key: task.Key, State: task.State, Message: task.FailureReason})
			continue
		}
		task := task
		group.Go(func() error {
			if opts.FailFast && fatalSeen.Load() {
				s.skipForFailFast(manifest.RunID, task)
				return nil
			}
			if err := sem.Acquire(groupCtx, 1); err != nil {
				s.markUnrun(manifest.RunID, task, harness.StateErrored, cancelReason(groupCtx))
				return nil
			}
			defer sem.Release(1)

			if opts.FailFast && fatalSeen.Load() {
				s.skipForFailFast(manifest.RunID, task)
				return nil
			}
			if groupCtx.Err() != nil {
				s.markUnrun(manifest.RunID, task, harness.StateErrored, cancelReason(groupCtx))
				return nil
			}

			if lock := suiteLocks[task.Key.SuiteID]; lock != nil {
				lock.Lock()
				defer lock.Unlock()
			}

			suite, ok := manifest.Suite(task.Key.SuiteID)
			if !ok {
				s.markUnrun(manifest.RunID, task, harness.StateErrored, fmt.Sprintf("suite %s missing from manifest", task.Key.SuiteID))
				return nil
			}

			s.runTask(groupCtx, manifest, *suite, task)

			if fatalClass(task.State) {
				fatalSeen.Store(true)
			}
			return nil
		})
	}

	_ = group.Wait()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Key.Less(tasks[j].Key) })
	return tasks, nil
}

// runTask drives one task through its attempt loop.
func (s *Scheduler) runTask(ctx context.Context, manifest *harness.RunManifest, suite harness.SuiteDefinition, task *harness.Task) {
	s.events.Publish(Event{Type: EventTaskStarted, Key: task.Key, State: harness.StateRunning, Attempt: 1})
	task.State = harness.StateRunning

	var records []*harness.AttemptRecord
	for attempt := 1; attempt <= task.MaxAttempts; attempt++ {
		record, parseFailed := s.runAttempt(ctx, manifest, suite, task, attempt)
		records = append(records, record)
		if err := s.store.WriteAttempt(manifest.RunID, record); err != nil {
			logging.Error("scheduler", err, "Failed to persist attempt %d for %s", attempt, task.Key)
		}

		task.Attempts = attempt
		task.State = record.State
		task.ExitCode = record.ExitCode
		task.Result = record.Result
		task.SLOFailures = record.SLOFailures
		task.FailureReason = record.FailureReason

		if !s.shouldRetry(manifest, suite, task, records, parseFailed) {
			break
		}
		logging.Info("scheduler", "Retrying %s (attempt %d of %d ended %s)", task.Key, attempt, task.MaxAttempts, record.State)
		s.events.Publish(Event{Type: EventTaskRetried, Key: task.Key, State: record.State, Attempt: attempt + 1})
	}

	if len(records) > 0 {
		task.StartedAt = records[0].StartedAt
		task.EndedAt = records[len(records)-1].EndedAt
		task.DurationMillis = task.EndedAt.Sub(task.StartedAt).Milliseconds()
	}

	s.events.Publish(Event{Type: EventTaskFinished, Key: task.Key, State: task.State, Attempt: task.Attempts, Message: task.FailureReason})
}

// runAttempt executes the suite command once, collects its artifacts and
// parses them. The returned flag marks deterministic failures (parse
// failures, unknown placeholders) that block retries.
func (s *Scheduler) runAttempt(ctx context.Context, manifest *harness.RunManifest, suite harness.SuiteDefinition, task *harness.Task, attempt int) (*harness.AttemptRecord, bool) {
	record := &harness.AttemptRecord{Key: task.Key, Attempt: attempt}

	taskDir, err := s.store.TaskDir(manifest.RunID, task.Key)
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = err.Error()
		return record, false
	}

	stdout, err := s.store.OpenLog(taskDir, artifact.StdoutLogName)
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = err.Error()
		return record, false
	}
	defer stdout.Close()
	stderr, err := s.store.OpenLog(taskDir, artifact.StderrLogName)
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = err.Error()
		return record, false
	}
	defer stderr.Close()

	task.StdoutPath = s.store.RelToRun(manifest.RunID, stdout.Name())
	task.StderrPath = s.store.RelToRun(manifest.RunID, stderr.Name())

	vars := template.TaskVars(manifest.RunID, task.Key)
	command, err := s.templates.Expand(suite.Command, vars)
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = fmt.Sprintf("command expansion failed: %v", err)
		return record, true
	}

	overrides := map[string]string{"TEST_ENV": manifest.Environment}
	if task.Key.Browser != "" {
		overrides["BROWSER"] = task.Key.Browser
	}

	outcome, err := s.runner.Run(ctx, executor.Spec{
		Command:       command,
		Dir:           suite.WorkDir,
		Env:           executor.BuildEnv(suite.EnvAllowlist, overrides),
		Stdout:        stdout,
		Stderr:        stderr,
		TimeoutMillis: suite.TimeoutMillis,
	})
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = err.Error()
		return record, false
	}

	record.ExitCode = outcome.ExitCode
	record.TimedOut = outcome.TimedOut
	record.StartedAt = outcome.StartedAt
	record.EndedAt = outcome.EndedAt
	record.DurationMillis = outcome.DurationMillis

	if outcome.Cancelled {
		record.State = harness.StateErrored
		record.FailureReason = cancelReason(ctx)
		return record, false
	}
	if outcome.TimedOut {
		record.State = harness.StateTimeout
		record.FailureReason = fmt.Sprintf("timed out after %dms", suite.TimeoutMillis)
		return record, false
	}

	globs, err := s.templates.Expand(suite.ArtifactGlobs, vars)
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = fmt.Sprintf("artifact glob expansion failed: %v", err)
		return record, true
	}
	paths, err := s.store.CollectArtifacts(taskDir, suite.WorkDir, globs)
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = fmt.Sprintf("artifact collection failed: %v", err)
		return record, false
	}
	record.ArtifactPaths = paths

	toolParser, err := s.parsers.Get(suite.Kind)
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = err.Error()
		return record, false
	}

	result, err := toolParser.Parse(ctx, parser.ArtifactSet{
		TaskDir: taskDir,
		Paths:   paths,
		Stdout:  stdout.Name(),
		Stderr:  stderr.Name(),
	})
	if err != nil {
		record.State = harness.StateErrored
		record.FailureReason = err.Error()
		return record, errors.Is(err, &parser.ParseFailureError{})
	}
	record.Result = result

	record.State = classify(outcome.ExitCode, result)
	switch record.State {
	case harness.StateErrored:
		record.FailureReason = erroredReason(result)
	case harness.StateFailed:
		record.FailureReason = failureReason(outcome.ExitCode, result)
	}

	if record.State != harness.StateErrored {
		policy := manifest.DefaultSLO.Merged(suite.SLO)
		record.SLOFailures = slo.Evaluate(policy, result, task.Key.String())
		if record.State == harness.StatePassed && len(record.SLOFailures) > 0 {
			record.State = harness.StateFailed
			record.FailureReason = slo.ReasonSet(record.SLOFailures)
		}
	}
	return record, false
}

// classify maps an exit code and parsed result to a task state. Errored
// cases mean the tool produced nothing judgeable (empty output), which is
// an errored task, not a failed one. A clean exit only passes when the
// parsed cases agree, so a tool that swallows its own exit code cannot
// turn a broken run green.
func classify(exitCode int, result *harness.NormalizedResult) harness.TaskState {
	if result.Totals.Errored > 0 {
		return harness.StateErrored
	}
	if exitCode != 0 || result.Totals.Failed > 0 {
		return harness.StateFailed
	}
	return harness.StatePassed
}

func erroredReason(result *harness.NormalizedResult) string {
	for _, w := range result.Warnings {
		if w == "empty-output" {
			return w
		}
	}
	return fmt.Sprintf("%d errored cases", result.Totals.Errored)
}

func failureReason(exitCode int, result *harness.NormalizedResult) string {
	if result.Totals.Failed > 0 {
		return fmt.Sprintf("%d of %d cases failed", result.Totals.Failed, result.Totals.Cases)
	}
	return fmt.Sprintf("exit code %d", exitCode)
}

// shouldRetry decides whether the latest attempt earns another one.
// Errored and timed-out attempts retry while attempts remain, except parse
// failures, which repeat identically. Failed attempts retry only when the
// run and the suite both opt in, and not once the failure looks
// deterministic: the same assertion-failure count on the two most recent
// attempts.
func (s *Scheduler) shouldRetry(manifest *harness.RunManifest, suite harness.SuiteDefinition, task *harness.Task, records []*harness.AttemptRecord, parseFailed bool) bool {
	if task.Attempts >= task.MaxAttempts {
		return false
	}
	switch task.State {
	case harness.StateErrored, harness.StateTimeout:
		if parseFailed {
			return false
		}
		if reason := records[len(records)-1].FailureReason; reason == ReasonCancelled || reason == ReasonGlobalTimeout {
			return false
		}
		return true
	case harness.StateFailed:
		if !manifest.RetryEnabled || !suite.RetryOnFailure {
			return false
		}
		return !deterministicLooking(records)
	default:
		return false
	}
}

// deterministicLooking reports whether the two most recent attempts failed
// the same way: same reason, same assertion-failure counts. Such a failure
// will not change on a third try.
func deterministicLooking(records []*harness.AttemptRecord) bool {
	if len(records) < 2 {
		return false
	}
	last := records[len(records)-1]
	prev := records[len(records)-2]
	if last.Result == nil || prev.Result == nil {
		return false
	}
	if last.State != harness.StateFailed || prev.State != harness.StateFailed {
		return false
	}
	return last.FailureReason == prev.FailureReason &&
		last.Result.Totals.Failed == prev.Result.Totals.Failed &&
		last.Result.Totals.Errored == prev.Result.Totals.Errored
}

// skipForFailFast marks a task the scheduler chose not to start.
func (s *Scheduler) skipForFailFast(runID string, task *harness.Task) {
	s.markUnrun(runID, task, harness.StateSkipped, ReasonFailFast)
}

// markUnrun records a terminal state for a task that never executed. The
// synthetic attempt record (attempt 0) keeps the run directory
// re-aggregatable: without it a rebuild could not tell an unrun task from
// a missing one.
func (s *Scheduler) markUnrun(runID string, task *harness.Task, state harness.TaskState, reason string) {
	task.State = state
	task.FailureReason = reason

	record := &harness.AttemptRecord{
		Key:           task.Key,
		Attempt:       0,
		State:         state,
		FailureReason: reason,
	}
	if err := s.store.WriteAttempt(runID, record); err != nil {
		logging.Error("scheduler", err, "Failed to persist unrun marker for %s", task.Key)
	}
	s.events.Publish(Event{Type: EventTaskFinished, Key: task.Key, State: state, Message: reason})
}

// cancelReason distinguishes operator cancellation from the global run
// timeout.
func cancelReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonGlobalTimeout
	}
	return ReasonCancelled
}

// fatalClass reports whether a task state should trip fail-fast.
func fatalClass(state harness.TaskState) bool {
	switch state {
	case harness.StateFailed, harness.StateErrored, harness.StateTimeout:
		return true
	}
	return false
}
