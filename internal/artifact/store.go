package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gauntlet/internal/harness"
	"gauntlet/pkg/logging"
)

// Well-known names inside the artifact root and run directories.
const (
	RunsDirName    = "runs"
	LatestDirName  = "latest"
	HistoryDirName = "history"

	SummaryFileName  = "summary.json"
	JUnitFileName    = "summary.junit.xml"
	HTMLFileName     = "report.html"
	ManifestFileName = "manifest.json"

	StdoutLogName = "stdout.log"
	StderrLogName = "stderr.log"

	attemptPrefix = "attempt-"
	attemptSuffix = ".json"
)

// Store manages the on-disk artifact layout:
//
//	<root>/runs/<runId>/summary.json
//	<root>/runs/<runId>/summary.junit.xml
//	<root>/runs/<runId>/report.html
//	<root>/runs/<runId>/manifest.json
//	<root>/runs/<runId>/<suiteId>/<env>/[<browser>/]...
//	<root>/latest/
//	<root>/history/summary-<millis>.json
//
// Every file lands via an atomic write (temp file in the target directory,
// fsync, rename) so concurrent readers never observe partial content.
type Store struct {
	root string
}

// New creates a store rooted at the given directory. The directory is
// created lazily on first write.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the artifact root directory.
func (s *Store) Root() string {
	return s.root
}

// RunDir returns the directory of a run without creating it.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.root, RunsDirName, runID)
}

// EnsureRunDir creates and returns the run directory.
func (s *Store) EnsureRunDir(runID string) (string, error) {
	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory %s: %w", dir, err)
	}
	return dir, nil
}

// TaskDir creates and returns the per-task directory
// (<runDir>/<suiteId>/<env>[/<browser>]).
func (s *Store) TaskDir(runID string, key harness.TaskKey) (string, error) {
	parts := append([]string{s.RunDir(runID)}, key.Segments()...)
	dir := filepath.Join(parts...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create task directory %s: %w", dir, err)
	}
	return dir, nil
}

// RelToRun converts an absolute path inside a run directory into the
// run-relative form stored in summaries. Paths outside the run directory are
// returned unchanged.
func (s *Store) RelToRun(runID, path string) string {
	rel, err := filepath.Rel(s.RunDir(runID), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// WriteFileAtomic writes data to path through a temp file and rename so
// readers never see a half-written file. The parent directory is created
// when missing.
func (s *Store) WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("failed to write %s: %w", path, err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to sync %s: %w", path, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

// WriteManifest persists the run manifest.
func (s *Store) WriteManifest(runID string, manifest *harness.RunManifest) error {
	data, err := marshalIndented(manifest)
	if err != nil {
		return err
	}
	return s.WriteFileAtomic(filepath.Join(s.RunDir(runID), ManifestFileName), data)
}

// ReadManifest loads the run manifest.
func (s *Store) ReadManifest(runID string) (*harness.RunManifest, error) {
	path := filepath.Join(s.RunDir(runID), ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for run %s: %w", runID, err)
	}
	var manifest harness.RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest for run %s: %w", runID, err)
	}
	return &manifest, nil
}

// WriteSummary persists the canonical summary bytes.
func (s *Store) WriteSummary(runID string, data []byte) error {
	return s.WriteFileAtomic(filepath.Join(s.RunDir(runID), SummaryFileName), data)
}

// ReadSummary loads and decodes a run's summary.
func (s *Store) ReadSummary(runID string) (*harness.RunSummary, error) {
	path := filepath.Join(s.RunDir(runID), SummaryFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary for run %s: %w", runID, err)
	}
	var summary harness.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary for run %s: %w", runID, err)
	}
	return &summary, nil
}

// WriteAttempt persists one attempt record into the task directory.
func (s *Store) WriteAttempt(runID string, record *harness.AttemptRecord) error {
	dir, err := s.TaskDir(runID, record.Key)
	if err != nil {
		return err
	}
	data, err := marshalIndented(record)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s%d%s", attemptPrefix, record.Attempt, attemptSuffix)
	return s.WriteFileAtomic(filepath.Join(dir, name), data)
}

// ListAttempts returns a task's attempt records ordered by attempt number.
// Retried tasks keep every record; the highest attempt is the one that
// counts.
func (s *Store) ListAttempts(runID string, key harness.TaskKey) ([]harness.AttemptRecord, error) {
	parts := append([]string{s.RunDir(runID)}, key.Segments()...)
	dir := filepath.Join(parts...)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read task directory %s: %w", dir, err)
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, attemptPrefix) || !strings.HasSuffix(name, attemptSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, attemptPrefix), attemptSuffix))
		if err != nil {
			continue
		}
		files = append(files, numbered{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	var records []harness.AttemptRecord
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attempt record %s: %w", f.path, err)
		}
		var record harness.AttemptRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempt record %s: %w", f.path, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// OpenLog opens (truncating) a log file in the given task directory for
// streaming process output.
func (s *Store) OpenLog(taskDir, name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(taskDir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s in %s: %w", name, taskDir, err)
	}
	return f, nil
}

// CollectArtifacts copies files matching the globs (relative to workDir)
// into the task directory, preserving their workDir-relative layout.
// Returns the collected paths relative to the task directory, sorted.
// Matches already inside the task directory are listed without copying.
func (s *Store) CollectArtifacts(taskDir, workDir string, globs []string) ([]string, error) {
	var collected []string
	for _, pattern := range globs {
		matches, err := filepath.Glob(filepath.Join(workDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid artifact glob %q: %w", pattern, err)
		}
		for _, match := range matches {
			rels, err := s.collectOne(taskDir, workDir, match)
			if err != nil {
				return nil, err
			}
			collected = append(collected, rels...)
		}
	}
	sort.Strings(collected)
	return collected, nil
}

func (s *Store) collectOne(taskDir, workDir, match string) ([]string, error) {
	if inside(taskDir, match) {
		rel, err := filepath.Rel(taskDir, match)
		if err != nil {
			return nil, err
		}
		return []string{filepath.ToSlash(rel)}, nil
	}

	info, err := os.Stat(match)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact %s: %w", match, err)
	}

	if !info.IsDir() {
		rel, err := copyIntoTaskDir(taskDir, workDir, match)
		if err != nil {
			return nil, err
		}
		return []string{rel}, nil
	}

	var rels []string
	err = filepath.WalkDir(match, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := copyIntoTaskDir(taskDir, workDir, path)
		if err != nil {
			return err
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rels, nil
}

func copyIntoTaskDir(taskDir, workDir, src string) (string, error) {
	rel, err := filepath.Rel(workDir, src)
	if err != nil || strings.HasPrefix(rel, "..") {
		// Fall back to the base name for matches outside the work dir.
		rel = filepath.Base(src)
	}
	dst := filepath.Join(taskDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory for %s: %w", dst, err)
	}
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to collect artifact %s: %w", src, err)
	}
	return filepath.ToSlash(rel), nil
}

// PublishLatest replaces <root>/latest with a copy of the run directory.
// The copy is staged next to the final location and swapped in by rename,
// so a reader of latest/ sees either the old run or the new one complete.
func (s *Store) PublishLatest(runID string) error {
	runDir := s.RunDir(runID)
	if _, err := os.Stat(runDir); err != nil {
		return fmt.Errorf("cannot publish run %s as latest: %w", runID, err)
	}

	staging, err := os.MkdirTemp(s.root, LatestDirName+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to stage latest: %w", err)
	}
	if err := copyTree(runDir, staging); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("failed to copy run %s into latest staging: %w", runID, err)
	}

	final := filepath.Join(s.root, LatestDirName)
	if err := os.RemoveAll(final); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("failed to remove previous latest: %w", err)
	}
	if err := os.Rename(staging, final); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("failed to swap latest into place: %w", err)
	}

	logging.Debug("artifact", "Published run %s as latest", runID)
	return nil
}

// AppendHistory stores summary bytes under
// history/summary-<unix-millis>.json and returns the file path.
func (s *Store) AppendHistory(data []byte, endedAt time.Time) (string, error) {
	name := fmt.Sprintf("summary-%d.json", endedAt.UnixMilli())
	path := filepath.Join(s.root, HistoryDirName, name)
	if err := s.WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// History returns up to n historical summaries, newest first. Entries that
// fail to decode are skipped with a warning; one corrupt file must not take
// trend analysis down.
func (s *Store) History(n int) ([]harness.RunSummary, error) {
	names, err := s.historyFiles()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(names) > n {
		names = names[:n]
	}

	var summaries []harness.RunSummary
	for _, name := range names {
		path := filepath.Join(s.root, HistoryDirName, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn("artifact", "Skipping unreadable history entry %s: %v", name, err)
			continue
		}
		var summary harness.RunSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			logging.Warn("artifact", "Skipping corrupt history entry %s: %v", name, err)
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// PruneHistory removes the oldest entries beyond keep.
func (s *Store) PruneHistory(keep int) error {
	if keep < 1 {
		keep = 1
	}
	names, err := s.historyFiles()
	if err != nil {
		return err
	}
	for _, name := range names[min(keep, len(names)):] {
		path := filepath.Join(s.root, HistoryDirName, name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to prune history entry %s: %w", name, err)
		}
		logging.Debug("artifact", "Pruned history entry %s", name)
	}
	return nil
}

// historyFiles lists history file names, newest first. The millisecond
// timestamp in the name is fixed-width, so lexicographic order is
// chronological.
func (s *Store) historyFiles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, HistoryDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "summary-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// ListRuns returns all run IDs, newest first.
func (s *Store) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, RunsDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// ResolveRun maps "latest" (or an empty ID) to the newest run and verifies
// explicit IDs exist.
func (s *Store) ResolveRun(idOrLatest string) (string, error) {
	if idOrLatest == "" || idOrLatest == LatestDirName {
		ids, err := s.ListRuns()
		if err != nil {
			return "", err
		}
		if len(ids) == 0 {
			return "", fmt.Errorf("no runs found under %s", filepath.Join(s.root, RunsDirName))
		}
		return ids[0], nil
	}
	if _, err := os.Stat(s.RunDir(idOrLatest)); err != nil {
		return "", fmt.Errorf("run %s not found: %w", idOrLatest, err)
	}
	return idOrLatest, nil
}

func marshalIndented(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	return append(data, '\n'), nil
}

func inside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
