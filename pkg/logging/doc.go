// Package logging provides a structured logging system for gauntlet with
// unified log handling and level filtering.
//
// The package wraps Go's standard slog package. All internal packages log
// through the package-level Debug/Info/Warn/Error functions, tagging every
// entry with a subsystem identifier so output can be filtered per component.
//
// # Usage
//
//	import "gauntlet/pkg/logging"
//
//	// Initialize with Info level logging to stderr
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("scheduler", "starting run %s", runID)
//	logging.Debug("parser", "parsed %d cases from %s", n, path)
//	logging.Error("artifact", err, "failed to publish latest")
//
// Agent mode uses InitJSON with stderr instead: stdout carries the MCP
// protocol stream and must stay clean.
//
// # Subsystems
//
// Stable subsystem names used across the codebase: scheduler, executor,
// parser, artifact, aggregate, trend, report, config, agent, watch.
//
// The package is safe for concurrent use; filtering happens at the handler
// level so suppressed messages cost no allocation.
package logging
