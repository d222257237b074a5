package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"gauntlet/internal/app"
)

var (
	runRoot        string
	runConfigFile  string
	runEnvironment string
	runSuites      []string
	runBrowsers    []string
	runNoRetry     bool
	runNoReports   bool
	runFailFast    bool
	runTimeoutMs   int64
	runConcurrency int
	runQuiet       bool
)

// completeSuitesFlag completes --suites with the IDs found in the suites
// directory.
func completeSuitesFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	inventory, err := app.LoadInventory(runRoot)
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	var ids []string
	for _, suite := range inventory.Suites {
		ids = append(ids, suite.ID)
	}
	return ids, cobra.ShellCompDirectiveDefault
}

// completeEnvironmentFlag completes --environment with the environments
// the suite definitions name.
func completeEnvironmentFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	inventory, err := app.LoadInventory(runRoot)
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	seen := make(map[string]bool)
	for _, suite := range inventory.Suites {
		for _, env := range suite.Environments {
			seen[env] = true
		}
	}
	var envs []string
	for env := range seen {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	return envs, cobra.ShellCompDirectiveDefault
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute test suites and aggregate the results into one run",
	Long: `The run command executes the selected test suites as external
processes, normalizes their output and aggregates everything into a run
summary with a single verdict.

Each suite task gets its own directory under the run's artifact tree with
captured stdout/stderr, per-attempt records and the raw tool output.
After execution the summary is compared against recent history and each
headline metric (pass rate, duration, p95, error rate) is classified as
improving, stable or degrading.

Suite selection:
- By default every suite allowed in the target environment runs.
- --suites restricts the run to the named suite IDs.
- Browser matrix suites expand to one task per configured browser.

Reports written per run: summary.json (always), summary.junit.xml and
report.html (unless --no-reports), plus a latest/ pointer and a history
entry for trend baselines.

Example usage:
  gauntlet run                                 # Run all suites
  gauntlet run --environment production        # Target another environment
  gauntlet run --suites checkout-api,ui-smoke  # Run a subset
  gauntlet run --browsers chromium             # Shrink the browser matrix
  gauntlet run --no-retry --fail-fast          # Strict CI gate
  gauntlet run --timeout-ms 600000             # Bound the whole run

The exit code is the run's verdict: 0 pass, 99 SLO-only failures,
otherwise the first failing task's exit code.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Harness location
	runCmd.Flags().StringVar(&runRoot, "root", ".", "Harness root directory (config.yaml, suites/, artifacts/)")
	runCmd.Flags().StringVar(&runConfigFile, "config", "", "Explicit configuration file (default: <root>/config.yaml)")

	// Selection
	runCmd.Flags().StringVarP(&runEnvironment, "environment", "e", "", "Target environment (default: from config or TEST_ENV)")
	runCmd.Flags().StringSliceVar(&runSuites, "suites", nil, "Suite IDs to run (default: all)")
	runCmd.Flags().StringSliceVar(&runBrowsers, "browsers", nil, "Browser matrix for browser suites (default: from config)")

	// Execution control
	runCmd.Flags().BoolVar(&runNoRetry, "no-retry", false, "Disable retries for suites that allow them")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop scheduling new tasks after the first fatal failure")
	runCmd.Flags().Int64Var(&runTimeoutMs, "timeout-ms", 0, "Global timeout for the whole run in milliseconds (0 = unbounded)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Tasks running at once (0 = min(NumCPU, 4))")

	// Output
	runCmd.Flags().BoolVar(&runNoReports, "no-reports", false, "Write only summary.json, skip JUnit/HTML/terminal reports")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress live progress and the final result table")

	_ = runCmd.RegisterFlagCompletionFunc("suites", completeSuitesFlag)
	_ = runCmd.RegisterFlagCompletionFunc("environment", completeEnvironmentFlag)

	runCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if runConcurrency < 0 || runConcurrency > 64 {
			return fmt.Errorf("concurrency must be between 1 and 64 (or 0 for auto), got %d", runConcurrency)
		}
		if runTimeoutMs < 0 {
			return fmt.Errorf("timeout-ms must not be negative, got %d", runTimeoutMs)
		}
		return nil
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	initLogging(os.Stderr, false)

	// Create context with signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		if !runQuiet {
			fmt.Println("\nReceived interrupt signal, stopping the run gracefully...")
		}
		cancel()
	}()

	var progress io.Writer
	if !runQuiet {
		progress = cmd.OutOrStdout()
	}

	_, err := app.Run(ctx, app.RunOptions{
		RootPath:            runRoot,
		ConfigFile:          runConfigFile,
		Environment:         runEnvironment,
		SuiteIDs:            runSuites,
		Browsers:            runBrowsers,
		NoRetry:             runNoRetry,
		NoReports:           runNoReports,
		FailFast:            runFailFast,
		GlobalTimeoutMillis: runTimeoutMs,
		Concurrency:         runConcurrency,
		Progress:            progress,
	})
	return err
}
