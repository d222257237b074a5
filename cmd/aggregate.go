package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"gauntlet/internal/app"
	"gauntlet/internal/artifact"
	"gauntlet/internal/report"
)

var (
	aggregateRoot  string
	aggregateWatch bool
	aggregateQuiet bool
)

// completeRunArg completes the run argument with recorded run IDs plus
// the "latest" shorthand.
func completeRunArg(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	completions := []string{"latest"}
	ws, err := app.OpenWorkspace(aggregateRoot)
	if err != nil {
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
	runs, err := ws.Store.ListRuns()
	if err != nil {
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
	return append(completions, runs...), cobra.ShellCompDirectiveNoFileComp
}

// aggregateCmd represents the aggregate command
var aggregateCmd = &cobra.Command{
	Use:   "aggregate [runId]",
	Short: "Rebuild a run's summary and reports from its artifacts",
	Long: `The aggregate command reconstructs a run summary from the manifest
and attempt records already on disk, re-parses the raw tool output and
rewrites summary.json, summary.junit.xml and report.html.

Nothing is re-executed. Rebuilding a finished run reproduces its
summary.json byte for byte; rebuilding a run that was interrupted or
whose reports were lost recovers whatever the attempt records hold.
The latest pointer and trend history are never touched, so aggregating
an old run does not shift baselines.

With --watch the run directory is observed for changes and the reports
are rebuilt whenever attempt records land, which turns report.html into
a live view of a run executing in another process. Stop watching with
Ctrl+C.

Example usage:
  gauntlet aggregate                      # Rebuild the latest run
  gauntlet aggregate 20260312-143205-a1b2 # Rebuild a specific run
  gauntlet aggregate --watch              # Follow a run in progress`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeRunArg,
	RunE:              runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringVar(&aggregateRoot, "root", ".", "Harness root directory (config.yaml, suites/, artifacts/)")
	aggregateCmd.Flags().BoolVar(&aggregateWatch, "watch", false, "Keep watching the run directory and rebuild on changes")
	aggregateCmd.Flags().BoolVar(&aggregateQuiet, "quiet", false, "Suppress the spinner and the summary table")
}

func runAggregate(cmd *cobra.Command, args []string) error {
	initLogging(os.Stderr, false)

	selector := "latest"
	if len(args) == 1 {
		selector = args[0]
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	result, err := rebuildOnce(ctx, selector)
	if err != nil {
		return err
	}
	if !aggregateWatch {
		if !aggregateQuiet {
			return report.NewTerminal(cmd.OutOrStdout()).Emit(ctx, result.Summary)
		}
		return nil
	}
	return watchRun(ctx, cmd, result)
}

// rebuildOnce rebuilds a run behind a spinner; aggregation of large runs
// re-parses every raw artifact and can take a moment.
func rebuildOnce(ctx context.Context, selector string) (*app.RebuildResult, error) {
	if !aggregateQuiet {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Rebuilding summary from artifacts..."
		s.Start()
		defer s.Stop()
	}
	return app.RebuildRun(ctx, aggregateRoot, selector, true)
}

// watchRun rebuilds the run whenever its directory changes, until the
// context is canceled. The initial result pins the run ID so "latest"
// does not drift to runs started while watching.
func watchRun(ctx context.Context, cmd *cobra.Command, initial *app.RebuildResult) error {
	runID := initial.Summary.RunID
	watcher := artifact.NewWatcher(initial.RunDir, 0)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching run %s, rebuilding on changes (Ctrl+C to stop)...\n", runID)
	printWatchStatus(out, initial)

	last := initial
	for {
		select {
		case <-ctx.Done():
			if !aggregateQuiet {
				fmt.Fprintln(out)
				return report.NewTerminal(out).Emit(context.Background(), last.Summary)
			}
			return nil
		case change, ok := <-watcher.Changes():
			if !ok {
				return nil
			}
			result, err := app.RebuildRun(ctx, aggregateRoot, runID, true)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				// Attempt files are written atomically, so a failed rebuild
				// here means the run directory itself is in trouble.
				fmt.Fprintf(out, "rebuild after change to %s failed: %v\n", filepath.Base(change.Path), err)
				continue
			}
			last = result
			printWatchStatus(out, last)
		}
	}
}

func printWatchStatus(out io.Writer, result *app.RebuildResult) {
	totals := result.Summary.Totals
	fmt.Fprintf(out, "[%s] verdict=%s tasks=%d passed=%d failed=%d errored=%d\n",
		time.Now().Format("15:04:05"), result.Summary.Verdict,
		totals.Tasks, totals.Passed, totals.Failed, totals.Errored)
}
