package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gauntlet/pkg/logging"
)

// Change describes a debounced filesystem change inside a watched run
// directory.
type Change struct {
	// Path is the absolute path of the changed file.
	Path string
	// Op is the merged fsnotify operation observed during the debounce
	// window.
	Op fsnotify.Op
}

// debounceEntry tracks a pending change notification for a file.
type debounceEntry struct {
	change Change
	timer  *time.Timer
}

// Watcher observes a run directory for attempt records and summaries being
// written while a run is in flight. Rapid event storms for one file are
// debounced into a single Change; tmp files from atomic writes are ignored.
//
// fsnotify does not watch recursively, so task directories are added to the
// watch set as they appear.
type Watcher struct {
	runDir           string
	watcher          *fsnotify.Watcher
	changes          chan Change
	debounceInterval time.Duration

	debounceMu sync.Mutex
	pending    map[string]*debounceEntry

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// DefaultDebounceInterval batches bursts of writes, for example a runner
// flushing several artifacts at the end of an attempt.
const DefaultDebounceInterval = 500 * time.Millisecond

// NewWatcher creates a watcher for the given run directory. A
// non-positive debounce falls back to DefaultDebounceInterval.
func NewWatcher(runDir string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	return &Watcher{
		runDir:           runDir,
		changes:          make(chan Change, 100),
		debounceInterval: debounce,
		pending:          make(map[string]*debounceEntry),
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Changes returns the channel debounced change notifications arrive on.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start begins watching. It returns once the watch set is established; the
// event loop runs until Stop is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running for %s", w.runDir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	if err := addWatchTree(watcher, w.runDir); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.running = true

	go w.processEvents(ctx)

	logging.Info("watch", "Watching run directory %s (debounce %v)", w.runDir, w.debounceInterval)
	return nil
}

// Stop halts the event loop and releases the underlying watcher. Pending
// debounce timers are cancelled without firing.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	close(w.stopCh)
	<-w.doneCh

	err := w.watcher.Close()
	w.watcher = nil
	w.running = false
	return err
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)
	defer w.cleanupPendingEvents()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watch", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)

	// New task directories must join the watch set before files land in
	// them.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addWatchTree(w.watcher, event.Name); err != nil {
				logging.Warn("watch", "Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !interestingFile(name) {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if entry, exists := w.pending[event.Name]; exists {
		entry.timer.Stop()
		entry.change.Op = entry.change.Op | event.Op
		entry.timer = time.AfterFunc(w.debounceInterval, func() {
			w.fireDebouncedEvent(event.Name)
		})
		return
	}

	entry := &debounceEntry{
		change: Change{Path: event.Name, Op: event.Op},
	}
	entry.timer = time.AfterFunc(w.debounceInterval, func() {
		w.fireDebouncedEvent(event.Name)
	})
	w.pending[event.Name] = entry
}

func (w *Watcher) fireDebouncedEvent(path string) {
	w.debounceMu.Lock()
	entry, exists := w.pending[path]
	if exists {
		delete(w.pending, path)
	}
	w.debounceMu.Unlock()

	if !exists {
		return
	}

	// Non-blocking send: a slow consumer drops notifications rather than
	// stalling the event loop.
	select {
	case w.changes <- entry.change:
	default:
		logging.Warn("watch", "Change channel full, dropping notification for %s", path)
	}
}

func (w *Watcher) cleanupPendingEvents() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	for path, entry := range w.pending {
		entry.timer.Stop()
		delete(w.pending, path)
	}
}

// interestingFile reports whether a change to the named file should wake
// consumers. Attempt records and summaries qualify; staging files from
// atomic writes never do.
func interestingFile(name string) bool {
	if strings.Contains(name, ".tmp-") {
		return false
	}
	if strings.HasPrefix(name, attemptPrefix) && strings.HasSuffix(name, attemptSuffix) {
		return true
	}
	return name == SummaryFileName || name == ManifestFileName
}

func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
