package harness

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SuiteKind identifies the tool family a suite belongs to. The kind selects
// the parser used for the suite's artifacts.
type SuiteKind string

const (
	// KindBrowser represents browser end-to-end suites producing a JSON
	// report tree (Playwright-style).
	KindBrowser SuiteKind = "browser"
	// KindHTTPCollection represents HTTP collection runs producing a summary
	// JSON document (Newman-style).
	KindHTTPCollection SuiteKind = "http-collection"
	// KindLoadStream represents load suites emitting a JSONL metric stream
	// (k6-style).
	KindLoadStream SuiteKind = "load-stream"
	// KindLoadCSV represents load suites emitting CSV result tables
	// (JMeter JTL-style).
	KindLoadCSV SuiteKind = "load-csv"
	// KindScanner represents scanner suites producing a findings JSON
	// document (axe-style).
	KindScanner SuiteKind = "scanner"
	// KindContract represents contract verification suites producing a
	// verification JSON document (Pact-style).
	KindContract SuiteKind = "contract"
)

// Valid reports whether the kind is one of the known suite kinds.
func (k SuiteKind) Valid() bool {
	switch k {
	case KindBrowser, KindHTTPCollection, KindLoadStream, KindLoadCSV, KindScanner, KindContract:
		return true
	}
	return false
}

// ParseSuiteKind converts a string into a SuiteKind.
func ParseSuiteKind(s string) (SuiteKind, error) {
	k := SuiteKind(strings.TrimSpace(s))
	if !k.Valid() {
		return "", fmt.Errorf("unknown suite kind %q", s)
	}
	return k, nil
}

// Matrix reports whether tasks for this kind fan out across browsers.
func (k SuiteKind) Matrix() bool {
	return k == KindBrowser
}

// SuiteDefinition describes a single test suite: how to run it and how to
// interpret what it leaves behind.
type SuiteDefinition struct {
	// ID is the unique identifier for the suite.
	ID string `json:"id"`
	// Kind selects the parser for the suite's artifacts.
	Kind SuiteKind `json:"kind"`
	// Description provides a human-readable summary.
	Description string `json:"description,omitempty"`
	// Command is the argv vector to execute. Never passed through a shell.
	Command []string `json:"command"`
	// WorkDir is the working directory for the command, relative to the
	// harness root. Empty means the harness root itself.
	WorkDir string `json:"workDir,omitempty"`
	// EnvAllowlist names additional environment variables copied from the
	// parent process into the suite process. Everything not listed here or
	// in the base set is withheld.
	EnvAllowlist []string `json:"envAllowlist,omitempty"`
	// Environments restricts which environments the suite runs in.
	// Empty allows all.
	Environments []string `json:"environments,omitempty"`
	// Browsers restricts the browser matrix for browser suites.
	// Empty allows all requested browsers.
	Browsers []string `json:"browsers,omitempty"`
	// TimeoutMillis is the per-attempt wall-clock budget.
	TimeoutMillis int64 `json:"timeoutMillis"`
	// MaxAttempts caps how many times a task may run. Defaults to 1.
	MaxAttempts int `json:"maxAttempts,omitempty"`
	// RetryOnFailure allows re-running after an assertion failure. Errored
	// and timed-out attempts are retried regardless, as long as attempts
	// remain.
	RetryOnFailure bool `json:"retryOnFailure,omitempty"`
	// ParallelWithinSuite allows matrix cells of the same suite to run
	// concurrently. Off means cells are serialized.
	ParallelWithinSuite bool `json:"parallelWithinSuite,omitempty"`
	// ArtifactGlobs lists glob patterns, relative to the working directory,
	// of files the suite produces that should be collected into the task
	// directory after each attempt.
	ArtifactGlobs []string `json:"artifactGlobs,omitempty"`
	// SLO overrides the run-level SLO policy for this suite.
	SLO *SLOPolicy `json:"slo,omitempty"`
}

// Validate checks structural validity of the definition.
func (s *SuiteDefinition) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("suite is missing an id")
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("suite %s: unknown kind %q", s.ID, s.Kind)
	}
	if len(s.Command) == 0 {
		return fmt.Errorf("suite %s: command must not be empty", s.ID)
	}
	if s.TimeoutMillis <= 0 {
		return fmt.Errorf("suite %s: timeoutMillis must be positive", s.ID)
	}
	if s.MaxAttempts < 0 {
		return fmt.Errorf("suite %s: maxAttempts must not be negative", s.ID)
	}
	for pattern := range s.sloLabelPatterns() {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("suite %s: empty SLO label pattern", s.ID)
		}
	}
	return nil
}

func (s *SuiteDefinition) sloLabelPatterns() map[string]*SLOPolicy {
	if s.SLO == nil {
		return nil
	}
	return s.SLO.Labels
}

// EffectiveMaxAttempts returns MaxAttempts with the default applied.
func (s *SuiteDefinition) EffectiveMaxAttempts() int {
	if s.MaxAttempts <= 0 {
		return 1
	}
	return s.MaxAttempts
}

// AllowsEnvironment reports whether the suite may run in the given
// environment.
func (s *SuiteDefinition) AllowsEnvironment(env string) bool {
	if len(s.Environments) == 0 {
		return true
	}
	for _, e := range s.Environments {
		if e == env {
			return true
		}
	}
	return false
}

// EffectiveBrowsers intersects the requested browser list with the suite's
// allowlist. Non-browser suites always yield a single empty entry.
func (s *SuiteDefinition) EffectiveBrowsers(requested []string) []string {
	if !s.Kind.Matrix() {
		return []string{""}
	}
	if len(requested) == 0 {
		if len(s.Browsers) > 0 {
			out := make([]string, len(s.Browsers))
			copy(out, s.Browsers)
			return out
		}
		return []string{""}
	}
	if len(s.Browsers) == 0 {
		out := make([]string, len(requested))
		copy(out, requested)
		return out
	}
	allowed := make(map[string]bool, len(s.Browsers))
	for _, b := range s.Browsers {
		allowed[b] = true
	}
	var out []string
	for _, b := range requested {
		if allowed[b] {
			out = append(out, b)
		}
	}
	return out
}

// RunConfiguration captures the parameters of a single harness run.
type RunConfiguration struct {
	// RunID uniquely identifies the run and names its artifact directory.
	RunID string `json:"runId"`
	// Environment is the target environment (e.g. staging, production).
	Environment string `json:"environment"`
	// SuiteIDs selects which suites to run. Empty selects all.
	SuiteIDs []string `json:"suiteIds,omitempty"`
	// Browsers is the requested browser matrix for browser suites.
	Browsers []string `json:"browsers,omitempty"`
	// RetryEnabled allows failure retries where suites opt in. Errored and
	// timed-out attempts are retried regardless.
	RetryEnabled bool `json:"retryEnabled"`
	// ReportsEnabled controls emission of JUnit and HTML reports. The JSON
	// summary is always written.
	ReportsEnabled bool `json:"reportsEnabled"`
	// FailFast stops scheduling new tasks after the first fatal-class
	// failure.
	FailFast bool `json:"failFast,omitempty"`
	// GlobalTimeoutMillis bounds the whole run. Zero means unbounded.
	GlobalTimeoutMillis int64 `json:"globalTimeoutMillis,omitempty"`
	// Concurrency overrides the global task concurrency. Zero selects
	// min(NumCPU, 4).
	Concurrency int `json:"concurrency,omitempty"`
	// ArtifactRoot is the root directory for runs, latest and history.
	ArtifactRoot string `json:"artifactRoot"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`
}

// RunManifest is persisted at run start so aggregation can be replayed from
// disk without consulting the wall clock or the live configuration.
type RunManifest struct {
	// RunID identifies the run.
	RunID string `json:"runId"`
	// Environment the run targeted.
	Environment string `json:"environment"`
	// StartedAt is carried into rebuilt summaries verbatim.
	StartedAt time.Time `json:"startedAt"`
	// Browsers is the requested browser matrix.
	Browsers []string `json:"browsers,omitempty"`
	// RetryEnabled records whether failure retries were allowed.
	RetryEnabled bool `json:"retryEnabled"`
	// GlobalTimeoutMillis records the run-wide bound.
	GlobalTimeoutMillis int64 `json:"globalTimeoutMillis,omitempty"`
	// Suites is the snapshot of the selected suite definitions, including
	// their SLO overrides and artifact globs, as resolved at run time.
	Suites []SuiteDefinition `json:"suites"`
	// DefaultSLO is the run-level SLO policy active for suites without an
	// override.
	DefaultSLO *SLOPolicy `json:"defaultSlo,omitempty"`
}

// Suite returns the manifest's definition for the given suite ID.
func (m *RunManifest) Suite(id string) (*SuiteDefinition, bool) {
	for i := range m.Suites {
		if m.Suites[i].ID == id {
			return &m.Suites[i], true
		}
	}
	return nil, false
}

// TaskKey identifies a single matrix cell: one suite in one environment,
// optionally pinned to one browser.
type TaskKey struct {
	// SuiteID is the suite this task belongs to.
	SuiteID string `json:"suiteId"`
	// Environment the task ran against.
	Environment string `json:"environment"`
	// Browser is set for browser suites only.
	Browser string `json:"browser,omitempty"`
}

// String renders the key as suite/env or suite/env/browser.
func (k TaskKey) String() string {
	if k.Browser == "" {
		return k.SuiteID + "/" + k.Environment
	}
	return k.SuiteID + "/" + k.Environment + "/" + k.Browser
}

// Segments returns the key's path segments for directory layout.
func (k TaskKey) Segments() []string {
	if k.Browser == "" {
		return []string{k.SuiteID, k.Environment}
	}
	return []string{k.SuiteID, k.Environment, k.Browser}
}

// Less orders keys by suite, then environment, then browser.
func (k TaskKey) Less(other TaskKey) bool {
	if k.SuiteID != other.SuiteID {
		return k.SuiteID < other.SuiteID
	}
	if k.Environment != other.Environment {
		return k.Environment < other.Environment
	}
	return k.Browser < other.Browser
}

// SortTasks orders tasks by key so summaries serialize deterministically.
func SortTasks(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Key.Less(tasks[j].Key)
	})
}

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	// StatePending indicates the task has not started yet.
	StatePending TaskState = "pending"
	// StateRunning indicates the task process is executing.
	StateRunning TaskState = "running"
	// StatePassed indicates the task completed and all its cases passed.
	StatePassed TaskState = "passed"
	// StateFailed indicates the task completed with assertion failures.
	StateFailed TaskState = "failed"
	// StateErrored indicates the task could not produce a usable result.
	StateErrored TaskState = "errored"
	// StateTimeout indicates the task exceeded its wall-clock budget.
	StateTimeout TaskState = "timeout"
	// StateSkipped indicates the task was excluded before execution.
	StateSkipped TaskState = "skipped"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	switch s {
	case StatePassed, StateFailed, StateErrored, StateTimeout, StateSkipped:
		return true
	}
	return false
}

// Task is one schedulable unit of work and its final outcome.
type Task struct {
	// Key identifies the matrix cell.
	Key TaskKey `json:"key"`
	// State is the final lifecycle state.
	State TaskState `json:"state"`
	// Attempts is how many attempts actually ran.
	Attempts int `json:"attempts"`
	// MaxAttempts is the cap that applied to this task.
	MaxAttempts int `json:"maxAttempts"`
	// ExitCode is the process exit code of the final attempt.
	ExitCode int `json:"exitCode"`
	// StartedAt is when the first attempt began.
	StartedAt time.Time `json:"startedAt"`
	// EndedAt is when the final attempt finished.
	EndedAt time.Time `json:"endedAt"`
	// DurationMillis spans from StartedAt to EndedAt.
	DurationMillis int64 `json:"durationMillis"`
	// Result is the normalized result of the final attempt, if any.
	Result *NormalizedResult `json:"result,omitempty"`
	// SLOFailures lists objective breaches found in the final attempt's
	// result.
	SLOFailures []SLOFailure `json:"sloFailures,omitempty"`
	// FailureReason explains failed, errored, timed-out and skipped states.
	FailureReason string `json:"failureReason,omitempty"`
	// StdoutPath is the stdout log location, relative to the run directory.
	StdoutPath string `json:"stdoutPath,omitempty"`
	// StderrPath is the stderr log location, relative to the run directory.
	StderrPath string `json:"stderrPath,omitempty"`
}

// AttemptRecord is the durable record of a single attempt, written to the
// task directory as attempt-<n>.json. Earlier attempts are retained when a
// task is retried; the highest attempt number wins during aggregation.
type AttemptRecord struct {
	// Key identifies the matrix cell.
	Key TaskKey `json:"key"`
	// Attempt numbers attempts from 1.
	Attempt int `json:"attempt"`
	// State is the outcome of this attempt.
	State TaskState `json:"state"`
	// ExitCode is the process exit code.
	ExitCode int `json:"exitCode"`
	// TimedOut marks attempts killed for exceeding the budget.
	TimedOut bool `json:"timedOut,omitempty"`
	// StartedAt is when the attempt began.
	StartedAt time.Time `json:"startedAt"`
	// EndedAt is when the attempt finished.
	EndedAt time.Time `json:"endedAt"`
	// DurationMillis is the attempt's wall-clock duration.
	DurationMillis int64 `json:"durationMillis"`
	// Result is the parsed result, when parsing succeeded.
	Result *NormalizedResult `json:"result,omitempty"`
	// SLOFailures lists objective breaches found in this attempt's result.
	SLOFailures []SLOFailure `json:"sloFailures,omitempty"`
	// FailureReason explains non-passed outcomes.
	FailureReason string `json:"failureReason,omitempty"`
	// ArtifactPaths lists collected raw artifacts, relative to the task
	// directory, so aggregation can re-parse them later.
	ArtifactPaths []string `json:"artifactPaths,omitempty"`
}
