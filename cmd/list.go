package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"gauntlet/internal/app"
	"gauntlet/internal/harness"
	"gauntlet/internal/report"
)

var (
	listRoot string
	listJSON bool
)

// Resource configurations mapping canonical names to their aliases
var listResourceAliases = map[string][]string{
	"suites": {"suite", "suites"},
	"runs":   {"run", "runs"},
}

// Build resource types for autocompletion
func getListResourceTypes() []string {
	var types []string
	for _, aliases := range listResourceAliases {
		types = append(types, aliases...)
	}
	sort.Strings(types)
	return types
}

// Build resource mappings for lookup
func getListResourceMappings() map[string]string {
	mappings := make(map[string]string)
	for canonical, aliases := range listResourceAliases {
		for _, alias := range aliases {
			mappings[alias] = canonical
		}
	}
	return mappings
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List suites or recorded runs",
	Long: `List resources of a harness root.

Available resource types:
  suite(s)   - List the suite definitions with kind, matrix and SLO info
  run(s)     - List the recorded runs, newest first, with their verdicts

Examples:
  gauntlet list suites
  gauntlet list runs
  gauntlet list runs --json`,
	Args:                  cobra.ExactArgs(1),
	ValidArgs:             getListResourceTypes(),
	ArgAliases:            []string{"resource_type"},
	DisableFlagsInUseLine: true,
	RunE:                  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listRoot, "root", ".", "Harness root directory (config.yaml, suites/, artifacts/)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Emit the listing as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	initLogging(os.Stderr, false)

	resourceType := args[0]
	canonical, exists := getListResourceMappings()[resourceType]
	if !exists {
		return fmt.Errorf("unknown resource type '%s'. Available types: %s",
			resourceType, strings.Join(getListResourceTypes(), ", "))
	}

	switch canonical {
	case "suites":
		return listSuitesResource(cmd)
	default:
		return listRunsResource(cmd)
	}
}

func listSuitesResource(cmd *cobra.Command) error {
	inventory, err := app.LoadInventory(listRoot)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if listJSON {
		data, err := json.MarshalIndent(inventory, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	if len(inventory.Suites) == 0 {
		fmt.Fprintf(out, "No suite definitions found in %s\n", inventory.SuitesDir)
		return nil
	}
	report.RenderSuites(out, inventory.Suites, inventory.Issues)
	return nil
}

// runListing is one row of the runs listing. Runs whose summary is
// missing (interrupted before aggregation) report complete=false.
type runListing struct {
	RunID          string          `json:"runId"`
	Verdict        harness.Verdict `json:"verdict,omitempty"`
	Environment    string          `json:"environment,omitempty"`
	Tasks          int             `json:"tasks,omitempty"`
	Passed         int             `json:"passed,omitempty"`
	DurationMillis int64           `json:"durationMillis,omitempty"`
	Complete       bool            `json:"complete"`
}

func listRunsResource(cmd *cobra.Command) error {
	ws, err := app.OpenWorkspace(listRoot)
	if err != nil {
		return err
	}
	runs, err := ws.Store.ListRuns()
	if err != nil {
		return err
	}

	listings := make([]runListing, 0, len(runs))
	for _, runID := range runs {
		listing := runListing{RunID: runID}
		if summary, err := ws.Store.ReadSummary(runID); err == nil {
			listing.Verdict = summary.Verdict
			listing.Environment = summary.Environment
			listing.Tasks = summary.Totals.Tasks
			listing.Passed = summary.Totals.Passed
			listing.DurationMillis = summary.DurationMillis
			listing.Complete = true
		}
		listings = append(listings, listing)
	}

	out := cmd.OutOrStdout()
	if listJSON {
		data, err := json.MarshalIndent(listings, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	if len(listings) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"RUN ID", "VERDICT", "ENVIRONMENT", "TASKS", "PASSED", "DURATION"})
	for _, listing := range listings {
		if !listing.Complete {
			tw.AppendRow(table.Row{listing.RunID, "incomplete", "-", "-", "-", "-"})
			continue
		}
		tw.AppendRow(table.Row{
			listing.RunID,
			string(listing.Verdict),
			listing.Environment,
			listing.Tasks,
			listing.Passed,
			(time.Duration(listing.DurationMillis) * time.Millisecond).String(),
		})
	}
	tw.Render()
	return nil
}
