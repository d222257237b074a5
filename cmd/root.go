package cmd

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gauntlet/internal/exitcode"
	"gauntlet/pkg/logging"
)

// Exit codes for CLI commands. 99 is reserved for runs whose only
// failures are SLO threshold breaches, so CI can treat performance
// regressions differently from functional ones.
const (
	// ExitCodeSuccess indicates every selected task passed.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a fatal run or a general error (invalid
	// arguments, unreadable configuration, I/O trouble).
	ExitCodeError = 1
	// ExitCodeSLOFail indicates the run passed functionally but breached
	// at least one SLO threshold.
	ExitCodeSLOFail = 99
)

// rootLogLevel holds the --log-level persistent flag shared by every
// subcommand.
var rootLogLevel string

// rootCmd represents the base command for the gauntlet harness.
var rootCmd = &cobra.Command{
	Use:   "gauntlet",
	Short: "Run test suites, aggregate their results and track trends",
	Long: `gauntlet executes heterogeneous test suites (browser, HTTP collection,
load, scanner, contract) as external processes, normalizes their output
into one result model and aggregates a run verdict with SLO evaluation
and trend analysis against previous runs.

Exit codes: 0 when everything passed, 99 when the only failures were SLO
threshold breaches, otherwise the first failing task's exit code (1 if
none applies).`,
	// SilenceUsage keeps error output clean; usage on demand via --help.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gauntlet version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error to the process exit code. Completed runs
// carry their own code; everything else is a general error.
func getExitCode(err error) int {
	var runErr *exitcode.RunError
	if errors.As(err, &runErr) {
		return runErr.Code
	}
	return ExitCodeError
}

// initLogging configures the process logger from the --log-level flag.
// Commands sharing stdout with reports or a wire protocol log to stderr.
func initLogging(out io.Writer, jsonFormat bool) {
	level := logging.ParseLogLevel(rootLogLevel)
	if jsonFormat {
		logging.InitJSON(level, out)
		return
	}
	logging.InitForCLI(level, out)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
