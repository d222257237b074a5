package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gauntlet/internal/app"
)

var (
	healthCheckRoot   string
	healthCheckConfig string
	healthCheckJSON   bool
)

// healthCheckCmd represents the health-check command
var healthCheckCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Verify the harness root can run suites",
	Long: `The health-check command verifies a harness root without executing
anything: the configuration loads and validates, the suite definitions
parse, every suite's tool binary resolves the way the executor would
resolve it, command placeholders reference variables that exist, and the
artifact root accepts writes.

Warnings (for example a suite file that fails to parse) leave the root
healthy; only failures do not. The exit code is 0 when healthy and 1
otherwise, so the command slots straight into CI as a preflight gate.

Example usage:
  gauntlet health-check                    # Check the current directory
  gauntlet health-check --root ./qa        # Check another root
  gauntlet health-check --config ci.yaml   # Check a CI configuration
  gauntlet health-check --json             # Machine-readable report`,
	Args: cobra.NoArgs,
	RunE: runHealthCheck,
}

func init() {
	rootCmd.AddCommand(healthCheckCmd)

	healthCheckCmd.Flags().StringVar(&healthCheckRoot, "root", ".", "Harness root directory (config.yaml, suites/, artifacts/)")
	healthCheckCmd.Flags().StringVar(&healthCheckConfig, "config", "", "Explicit configuration file (default: <root>/config.yaml)")
	healthCheckCmd.Flags().BoolVar(&healthCheckJSON, "json", false, "Emit the health report as JSON")
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	initLogging(os.Stderr, false)

	health := app.CheckHealth(healthCheckRoot, healthCheckConfig)
	out := cmd.OutOrStdout()

	if healthCheckJSON {
		data, err := json.MarshalIndent(health, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		for _, check := range health.Checks {
			icon := "✅"
			switch check.Status {
			case app.StatusWarn:
				icon = "⚠️"
			case app.StatusFail:
				icon = "❌"
			}
			if check.Detail != "" {
				fmt.Fprintf(out, "%s %s: %s\n", icon, check.Name, check.Detail)
			} else {
				fmt.Fprintf(out, "%s %s\n", icon, check.Name)
			}
		}
	}

	if !health.Healthy {
		return fmt.Errorf("harness root %s is not healthy", healthCheckRoot)
	}
	return nil
}
