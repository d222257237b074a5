package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/harness"
)

func TestInterestingFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"attempt-1.json", true},
		{"attempt-12.json", true},
		{"summary.json", true},
		{"manifest.json", true},
		{"summary.json.tmp-123456", false},
		{"attempt-1.json.tmp-987", false},
		{"stdout.log", false},
		{"report.html", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, interestingFile(tt.name), tt.name)
	}
}

func TestWatcher_NotifiesOnAttemptRecord(t *testing.T) {
	store := newTestStore(t)
	runDir, err := store.EnsureRunDir("run-1")
	require.NoError(t, err)

	w := NewWatcher(runDir, 50*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	key := harness.TaskKey{SuiteID: "checkout", Environment: "staging"}
	require.NoError(t, store.WriteAttempt("run-1", &harness.AttemptRecord{Key: key, Attempt: 1, State: harness.StatePassed}))

	// WriteAttempt creates the task directory first; keep rewriting the
	// record so it lands in a watched directory regardless of when the
	// watcher picks the new directory up.
	require.Eventually(t, func() bool {
		if err := store.WriteAttempt("run-1", &harness.AttemptRecord{Key: key, Attempt: 1, State: harness.StatePassed}); err != nil {
			return false
		}
		select {
		case change := <-w.Changes():
			return filepath.Base(change.Path) == "attempt-1.json"
		default:
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 100*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "summary.json")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	var first Change
	require.Eventually(t, func() bool {
		select {
		case first = <-w.Changes():
			return true
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, path, first.Path)
	assert.True(t, first.Op.Has(fsnotify.Create) || first.Op.Has(fsnotify.Write))

	// The burst collapsed into one notification; the channel drains empty
	// once the debounce window has passed.
	time.Sleep(300 * time.Millisecond)
	extra := 0
	for {
		select {
		case <-w.Changes():
			extra++
			continue
		default:
		}
		break
	}
	assert.LessOrEqual(t, extra, 1, "burst of writes produced %d extra notifications", extra+1)
}

func TestWatcher_IgnoresStagingFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 50*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.json.tmp-42"), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stdout.log"), []byte("hi"), 0644))

	select {
	case change := <-w.Changes():
		t.Fatalf("unexpected notification for %s", change.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StartStopLifecycle(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 50*time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second Start must fail while running")

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop(), "Stop is idempotent")
}

func TestWatcher_ContextCancelStopsLoop(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	cancel()

	select {
	case <-w.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit after context cancellation")
	}
}
