package aggregate

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"gauntlet/internal/artifact"
	"gauntlet/internal/harness"
	"gauntlet/internal/parser"
	"gauntlet/internal/scheduler"
	"gauntlet/pkg/logging"
)

// Rebuilder reconstructs run summaries from artifacts on disk.
type Rebuilder struct {
	store   *artifact.Store
	parsers *parser.Registry
}

// NewRebuilder creates a Rebuilder over the given store and parsers.
func NewRebuilder(store *artifact.Store, parsers *parser.Registry) *Rebuilder {
	return &Rebuilder{store: store, parsers: parsers}
}

// Rebuild reproduces the summary of a run from its manifest and attempt
// records, without re-running anything and without consulting the wall
// clock. Raw artifacts are re-parsed so latency distributions regain the
// accumulators that never survive serialization; the reconstructed tasks
// then go through the same Build as a live run.
func (r *Rebuilder) Rebuild(ctx context.Context, runID string) (*harness.RunSummary, error) {
	manifest, err := r.store.ReadManifest(runID)
	if err != nil {
		return nil, err
	}

	tasks := scheduler.ExpandTasks(manifest)
	for _, task := range tasks {
		if task.State == harness.StateSkipped {
			// Environment exclusions are re-derived from the manifest;
			// they never ran and left no records.
			continue
		}
		if err := r.replayTask(ctx, manifest, task); err != nil {
			return nil, err
		}
	}
	return Build(manifest, tasks), nil
}

// replayTask restores one task's terminal state from its attempt records.
// The highest attempt wins; attempt 0 is the marker for tasks the
// scheduler never started.
func (r *Rebuilder) replayTask(ctx context.Context, manifest *harness.RunManifest, task *harness.Task) error {
	records, err := r.store.ListAttempts(manifest.RunID, task.Key)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		task.State = harness.StateErrored
		task.FailureReason = "no attempt records on disk"
		return nil
	}

	final := records[len(records)-1]
	task.State = final.State
	task.FailureReason = final.FailureReason
	if final.Attempt == 0 {
		return nil
	}

	task.Attempts = final.Attempt
	task.ExitCode = final.ExitCode
	task.SLOFailures = final.SLOFailures
	task.StartedAt = records[0].StartedAt
	task.EndedAt = final.EndedAt
	task.DurationMillis = task.EndedAt.Sub(task.StartedAt).Milliseconds()
	task.Result = r.replayResult(ctx, manifest, task, &final)

	if _, err := os.Stat(filepath.Join(r.taskDir(manifest.RunID, task.Key), artifact.StdoutLogName)); err == nil {
		task.StdoutPath = path.Join(append(task.Key.Segments(), artifact.StdoutLogName)...)
		task.StderrPath = path.Join(append(task.Key.Segments(), artifact.StderrLogName)...)
	}
	return nil
}

// replayResult re-parses the final attempt's raw artifacts. When that is
// impossible, the serialized result is used as recorded; the run-level
// latency union then misses this task's samples.
func (r *Rebuilder) replayResult(ctx context.Context, manifest *harness.RunManifest, task *harness.Task, record *harness.AttemptRecord) *harness.NormalizedResult {
	if record.Result == nil {
		return nil
	}
	suite, ok := manifest.Suite(task.Key.SuiteID)
	if !ok {
		return record.Result
	}
	toolParser, err := r.parsers.Get(suite.Kind)
	if err != nil {
		return record.Result
	}

	taskDir := r.taskDir(manifest.RunID, task.Key)
	result, err := toolParser.Parse(ctx, parser.ArtifactSet{
		TaskDir: taskDir,
		Paths:   record.ArtifactPaths,
		Stdout:  filepath.Join(taskDir, artifact.StdoutLogName),
		Stderr:  filepath.Join(taskDir, artifact.StderrLogName),
	})
	if err != nil {
		logging.Warn("aggregate", "Re-parse of %s failed, using recorded result: %v", task.Key, err)
		return record.Result
	}
	return result
}

// taskDir resolves a task directory without creating it; rebuilds only
// read.
func (r *Rebuilder) taskDir(runID string, key harness.TaskKey) string {
	parts := append([]string{r.store.RunDir(runID)}, key.Segments()...)
	return filepath.Join(parts...)
}
