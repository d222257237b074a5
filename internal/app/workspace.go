package app

import (
	"fmt"
	"path/filepath"

	"gauntlet/internal/artifact"
	"gauntlet/internal/config"
	"gauntlet/internal/harness"
	"gauntlet/internal/trend"
)

// Workspace is a harness root opened for read operations: inspecting runs,
// history and trends without starting anything.
type Workspace struct {
	Root   string
	Config config.Config
	Store  *artifact.Store
}

// OpenWorkspace loads the configuration of a harness root and opens its
// artifact store. Unlike Run it creates nothing on disk.
func OpenWorkspace(rootPath string) (*Workspace, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve harness root %s: %w", rootPath, err)
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, err
	}
	return &Workspace{
		Root:   root,
		Config: cfg,
		Store:  artifact.New(resolvePath(root, cfg.ArtifactRoot)),
	}, nil
}

// ReadSummary loads the stored summary of a run. The selector is a run ID
// or "latest".
func ReadSummary(rootPath, selector string) (*harness.RunSummary, error) {
	ws, err := OpenWorkspace(rootPath)
	if err != nil {
		return nil, err
	}
	runID, err := ws.Store.ResolveRun(selector)
	if err != nil {
		return nil, err
	}
	return ws.Store.ReadSummary(runID)
}

// TrendReport bundles the trend analysis of the most recent run.
type TrendReport struct {
	RunID    string                  `json:"runId"`
	Trends   []harness.TrendSnapshot `json:"trends"`
	Warnings []string                `json:"warnings,omitempty"`
}

// AnalyzeTrends compares the latest summary against stored history. A
// window of zero keeps the configured one. The extra history entry read
// here covers the latest run's own slot, which the analyzer skips.
func AnalyzeTrends(rootPath string, window int) (*TrendReport, error) {
	ws, err := OpenWorkspace(rootPath)
	if err != nil {
		return nil, err
	}
	trendCfg := ws.Config.Trend
	if window > 0 {
		trendCfg.Window = window
	}
	runID, err := ws.Store.ResolveRun("latest")
	if err != nil {
		return nil, err
	}
	summary, err := ws.Store.ReadSummary(runID)
	if err != nil {
		return nil, err
	}
	history, err := ws.Store.History(trendCfg.Window + 1)
	if err != nil {
		return nil, err
	}
	trends, warnings := trend.New(trendCfg).Analyze(summary, history)
	return &TrendReport{RunID: runID, Trends: trends, Warnings: warnings}, nil
}
