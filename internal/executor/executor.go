// Package executor runs suite commands as child processes with an
// allowlisted environment, per-task timeouts and process-group teardown.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"gauntlet/pkg/logging"
)

const (
	// ExitTimeout is the synthetic exit code recorded when a task is
	// killed for exceeding its timeout. Matches the GNU timeout(1)
	// convention so downstream tooling recognizes it.
	ExitTimeout = 124

	// ExitSignalled is recorded when the process died to a signal we did
	// not send, leaving no real exit code.
	ExitSignalled = 1

	// DefaultGraceMillis is how long a process group gets between SIGTERM
	// and SIGKILL.
	DefaultGraceMillis = 5000
)

// baseAllowlist is the set of parent environment variables every suite
// process inherits. Suites extend it via their envAllowlist.
var baseAllowlist = []string{
	"TEST_ENV",
	"BASE_URL",
	"API_BASE_URL",
	"PATH",
	"HOME",
	"TMPDIR",
}

// Spec describes one process invocation. Command is argv style; no shell
// is involved.
type Spec struct {
	Command       []string
	Dir           string
	Env           []string
	Stdout        io.Writer
	Stderr        io.Writer
	TimeoutMillis int64
	GraceMillis   int64
}

// Outcome reports how an invocation ended. TimedOut and Cancelled are
// mutually exclusive; both imply the process group was torn down by us.
type Outcome struct {
	ExitCode       int
	TimedOut       bool
	Cancelled      bool
	StartedAt      time.Time
	EndedAt        time.Time
	DurationMillis int64
}

// Executor launches processes. The zero value is ready to use.
type Executor struct{}

// New creates an Executor.
func New() *Executor {
	return &Executor{}
}

// BuildEnv assembles a child environment from the base allowlist plus
// extra variable names, all resolved against the parent environment, with
// overrides applied last. The result is sorted for reproducible attempt
// records.
func BuildEnv(extra []string, overrides map[string]string) []string {
	values := make(map[string]string)
	for _, name := range baseAllowlist {
		if v, ok := os.LookupEnv(name); ok {
			values[name] = v
		}
	}
	for _, name := range extra {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v, ok := os.LookupEnv(name); ok {
			values[name] = v
		}
	}
	for name, v := range overrides {
		values[name] = v
	}

	env := make([]string, 0, len(values))
	for name, v := range values {
		env = append(env, name+"="+v)
	}
	sort.Strings(env)
	return env
}

// Run starts the command and waits for it to finish, time out, or be
// cancelled. Non-zero exits are reported through the Outcome, not as an
// error; the returned error covers failures to launch at all.
func (e *Executor) Run(ctx context.Context, spec Spec) (Outcome, error) {
	if len(spec.Command) == 0 {
		return Outcome{}, fmt.Errorf("empty command")
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	// Own process group so teardown reaches grandchildren too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("failed to start %q: %w", spec.Command[0], err)
	}
	pgid := cmd.Process.Pid

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	grace := time.Duration(spec.GraceMillis) * time.Millisecond
	if grace <= 0 {
		grace = DefaultGraceMillis * time.Millisecond
	}

	var timeoutCh <-chan time.Time
	if spec.TimeoutMillis > 0 {
		timer := time.NewTimer(time.Duration(spec.TimeoutMillis) * time.Millisecond)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	outcome := Outcome{StartedAt: started}
	var waitErr error

	select {
	case waitErr = <-waitCh:
	case <-timeoutCh:
		outcome.TimedOut = true
		logging.Warn("executor", "Command %q exceeded %dms timeout, terminating process group %d",
			spec.Command[0], spec.TimeoutMillis, pgid)
		waitErr = terminate(pgid, waitCh, grace)
	case <-ctx.Done():
		outcome.Cancelled = true
		logging.Debug("executor", "Run cancelled, terminating process group %d", pgid)
		waitErr = terminate(pgid, waitCh, grace)
	}

	outcome.EndedAt = time.Now()
	outcome.DurationMillis = outcome.EndedAt.Sub(started).Milliseconds()
	outcome.ExitCode = exitCodeFrom(waitErr)
	if outcome.TimedOut {
		outcome.ExitCode = ExitTimeout
	}
	return outcome, nil
}

// terminate asks the whole process group to exit, escalating to SIGKILL
// after the grace period. It always waits for cmd.Wait to return so the
// child is fully reaped.
func terminate(pgid int, waitCh <-chan error, grace time.Duration) error {
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		logging.Debug("executor", "SIGTERM to group %d failed: %v", pgid, err)
	}
	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
	}

	logging.Warn("executor", "Process group %d ignored SIGTERM for %v, sending SIGKILL", pgid, grace)
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		logging.Debug("executor", "SIGKILL to group %d failed: %v", pgid, err)
	}
	return <-waitCh
}

// exitCodeFrom maps a cmd.Wait error to an exit code. Processes killed by
// a signal carry no code, so those normalize to ExitSignalled.
func exitCodeFrom(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		return ExitSignalled
	}
	return ExitSignalled
}
