// Package artifact owns the on-disk layout of run output.
//
// Everything a run produces lives under a single artifact root:
//
//	<root>/runs/<runId>/          one directory per run
//	<root>/latest/                copy of the most recent finished run
//	<root>/history/               rolling summary files for trend analysis
//
// Inside a run directory, each task gets <suiteId>/<env>[/<browser>]
// holding stdout.log, stderr.log, one attempt-<n>.json per attempt, and
// whatever raw artifacts the runner declared via globs. The run root holds
// summary.json, summary.junit.xml, report.html and manifest.json.
//
// All writes go through WriteFileAtomic (temp file, fsync, rename), and
// latest/ is replaced by staging a full copy and renaming it into place.
// External consumers tailing the artifact root therefore never observe a
// partially written file or a half-updated latest directory.
//
// Watcher layers fsnotify on top of a run directory so `aggregate --watch`
// can re-aggregate as attempt records land, with debouncing to absorb
// write bursts.
package artifact
