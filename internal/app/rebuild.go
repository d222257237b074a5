package app

import (
	"context"

	"gauntlet/internal/aggregate"
	"gauntlet/internal/harness"
	"gauntlet/internal/parser"
	"gauntlet/internal/report"
	"gauntlet/internal/trend"
	"gauntlet/pkg/logging"
)

// RebuildResult is what a rebuild leaves behind: the reconstructed
// summary and the trend analysis recomputed against stored history.
type RebuildResult struct {
	Summary       *harness.RunSummary
	Trends        []harness.TrendSnapshot
	TrendWarnings []string
	RunDir        string
}

// RebuildRun reconstructs a run's summary from the artifacts on disk and
// rewrites the run's reports. The selector is a run ID or "latest". The
// latest pointer and the history file are left alone, so rebuilding an
// old run never repoints trend baselines at it.
func RebuildRun(ctx context.Context, rootPath, selector string, withReports bool) (*RebuildResult, error) {
	ws, err := OpenWorkspace(rootPath)
	if err != nil {
		return nil, err
	}
	runID, err := ws.Store.ResolveRun(selector)
	if err != nil {
		return nil, err
	}

	summary, err := aggregate.NewRebuilder(ws.Store, parser.DefaultRegistry()).Rebuild(ctx, runID)
	if err != nil {
		return nil, err
	}

	// The analyzer skips the rebuilt run's own history entry, so reading
	// one extra keeps the baseline at the configured window.
	history, err := ws.Store.History(ws.Config.Trend.Window + 1)
	if err != nil {
		logging.Warn("app", "Trend history unavailable: %v", err)
	}
	trends, warnings := trend.New(ws.Config.Trend).Analyze(summary, history)

	emitters := []report.Emitter{report.NewJSON(ws.Store)}
	if withReports {
		emitters = append(emitters, report.NewJUnit(ws.Store), report.NewHTML(ws.Store, trends))
	}
	if err := report.EmitAll(ctx, summary, emitters...); err != nil {
		return nil, err
	}

	return &RebuildResult{
		Summary:       summary,
		Trends:        trends,
		TrendWarnings: warnings,
		RunDir:        ws.Store.RunDir(runID),
	}, nil
}
