package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"gauntlet/internal/app"
	"gauntlet/internal/exitcode"
	"gauntlet/internal/report"
)

// errExit signals a clean shutdown from the exit command.
var errExit = errors.New("exit")

// maxListedRuns caps the runs command output.
const maxListedRuns = 20

// REPL is an interactive console over the same operations the MCP tools
// expose.
type REPL struct {
	rootPath    string
	environment string
	out         io.Writer
}

// NewREPL creates a console bound to a harness root.
func NewREPL(rootPath string) *REPL {
	return &REPL{rootPath: rootPath, out: os.Stdout}
}

// Run drives the read-eval-print loop until exit, EOF or context
// cancellation.
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "gauntlet » ",
		HistoryFile:       filepath.Join(os.TempDir(), ".gauntlet_history"),
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(r.out, "Interactive harness console. Type 'help' for commands, TAB completes.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if err := r.execute(ctx, input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
		fmt.Fprintln(r.out)
	}
}

// execute dispatches one console command.
func (r *REPL) execute(ctx context.Context, input string) error {
	fields := strings.Fields(input)
	command, args := fields[0], fields[1:]

	switch command {
	case "run":
		return r.runSuites(ctx, args)
	case "suites":
		return r.listSuites()
	case "runs":
		return r.listRuns()
	case "summary":
		return r.showSummary(ctx, args)
	case "trend":
		return r.showTrends(args)
	case "health":
		return r.showHealth()
	case "env":
		return r.setEnvironment(args)
	case "help", "?":
		r.printHelp()
		return nil
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command %q, try 'help'", command)
	}
}

// runSuites starts a run with live progress on the console. A failing
// verdict is not a console error, the result table already told the
// story.
func (r *REPL) runSuites(ctx context.Context, suiteIDs []string) error {
	_, err := app.Run(ctx, app.RunOptions{
		RootPath:    r.rootPath,
		Environment: r.environment,
		SuiteIDs:    suiteIDs,
		Progress:    r.out,
	})
	var runErr *exitcode.RunError
	if errors.As(err, &runErr) {
		return nil
	}
	return err
}

func (r *REPL) listSuites() error {
	inventory, err := app.LoadInventory(r.rootPath)
	if err != nil {
		return err
	}
	if len(inventory.Suites) == 0 && len(inventory.Issues) == 0 {
		fmt.Fprintf(r.out, "No suite definitions found in %s\n", inventory.SuitesDir)
		return nil
	}
	report.RenderSuites(r.out, inventory.Suites, inventory.Issues)
	return nil
}

func (r *REPL) listRuns() error {
	ws, err := app.OpenWorkspace(r.rootPath)
	if err != nil {
		return err
	}
	runs, err := ws.Store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(r.out, "No runs recorded yet.")
		return nil
	}
	if len(runs) > maxListedRuns {
		fmt.Fprintf(r.out, "Newest %d of %d runs:\n", maxListedRuns, len(runs))
		runs = runs[:maxListedRuns]
	}
	for _, runID := range runs {
		fmt.Fprintln(r.out, runID)
	}
	return nil
}

func (r *REPL) showSummary(ctx context.Context, args []string) error {
	selector := "latest"
	if len(args) > 0 {
		selector = args[0]
	}
	summary, err := app.ReadSummary(r.rootPath, selector)
	if err != nil {
		return err
	}
	return report.NewTerminal(r.out).Emit(ctx, summary)
}

func (r *REPL) showTrends(args []string) error {
	window := 0
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("window must be a positive number, got %q", args[0])
		}
		window = parsed
	}
	trendReport, err := app.AnalyzeTrends(r.rootPath, window)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Trends for run %s\n", trendReport.RunID)
	report.RenderTrends(r.out, trendReport.Trends, trendReport.Warnings)
	return nil
}

func (r *REPL) showHealth() error {
	health := app.CheckHealth(r.rootPath, "")
	for _, check := range health.Checks {
		symbol := "✅"
		switch check.Status {
		case app.StatusWarn:
			symbol = "⚠️"
		case app.StatusFail:
			symbol = "❌"
		}
		if check.Detail != "" {
			fmt.Fprintf(r.out, "%s %s: %s\n", symbol, check.Name, check.Detail)
		} else {
			fmt.Fprintf(r.out, "%s %s\n", symbol, check.Name)
		}
	}
	if health.Healthy {
		fmt.Fprintln(r.out, "Harness is healthy.")
	} else {
		fmt.Fprintln(r.out, "Harness has problems, see the failed checks above.")
	}
	return nil
}

func (r *REPL) setEnvironment(args []string) error {
	if len(args) == 0 {
		if r.environment == "" {
			fmt.Fprintln(r.out, "Environment: (from config)")
		} else {
			fmt.Fprintf(r.out, "Environment: %s\n", r.environment)
		}
		return nil
	}
	r.environment = args[0]
	fmt.Fprintf(r.out, "Environment set to %s\n", r.environment)
	return nil
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out, "  run [suite...]       Run all suites, or just the listed ones")
	fmt.Fprintln(r.out, "  suites               List suite definitions")
	fmt.Fprintln(r.out, "  runs                 List recorded run IDs, newest first")
	fmt.Fprintln(r.out, "  summary [id|latest]  Show the result table of a run")
	fmt.Fprintln(r.out, "  trend [window]       Compare the latest run against history")
	fmt.Fprintln(r.out, "  health               Check whether the harness can run")
	fmt.Fprintln(r.out, "  env [name]           Show or set the target environment")
	fmt.Fprintln(r.out, "  help                 Show this help")
	fmt.Fprintln(r.out, "  exit                 Leave the console")
}

// completer wires tab completion: static commands plus suite IDs, looked
// up fresh on every completion attempt.
func (r *REPL) completer() *readline.PrefixCompleter {
	suiteIDs := readline.PcItemDynamic(func(string) []string {
		inventory, err := app.LoadInventory(r.rootPath)
		if err != nil {
			return nil
		}
		ids := make([]string, len(inventory.Suites))
		for i, suite := range inventory.Suites {
			ids[i] = suite.ID
		}
		return ids
	})
	return readline.NewPrefixCompleter(
		readline.PcItem("run", suiteIDs),
		readline.PcItem("suites"),
		readline.PcItem("runs"),
		readline.PcItem("summary", readline.PcItem("latest")),
		readline.PcItem("trend"),
		readline.PcItem("health"),
		readline.PcItem("env"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}
