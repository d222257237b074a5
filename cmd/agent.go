package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gauntlet/internal/agent"
)

var (
	agentRoot string
	agentREPL bool
)

// agentCmd represents the agent command
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "MCP server and interactive console for the harness",
	Long: `The agent command exposes the harness over the Model Context
Protocol on stdio, so AI assistants can start runs, inspect summaries
and follow trends through tools instead of shelling out.

The agent command can run in two modes:
1. MCP server mode (default): Speaks MCP over stdio. Configure it in
   your AI assistant's MCP settings; logs go to stderr as JSON so the
   protocol stream stays clean.
2. REPL mode (--repl): An interactive console over the same operations,
   with history and TAB completion. Useful for exploring a harness root
   by hand.

Tools exposed in MCP server mode:
- run_suites     - Execute suites and return the summary with trends
- list_suites    - The suite inventory of the harness root
- get_summary    - A stored run summary (by ID or latest)
- get_trends     - Trend analysis of the latest run against history
- health_check   - Preflight validation of the harness root

Example usage:
  gauntlet agent                 # MCP server on stdio
  gauntlet agent --repl          # Interactive console
  gauntlet agent --root ./qa     # Serve another harness root`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().StringVar(&agentRoot, "root", ".", "Harness root directory (config.yaml, suites/, artifacts/)")
	agentCmd.Flags().BoolVar(&agentREPL, "repl", false, "Start interactive REPL mode")
}

func runAgent(cmd *cobra.Command, args []string) error {
	if agentREPL {
		initLogging(os.Stderr, false)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		return agent.NewREPL(agentRoot).Run(ctx)
	}

	// stdout carries the MCP protocol, so logs must go to stderr.
	initLogging(os.Stderr, true)
	return agent.NewServer(agentRoot, GetVersion()).Start()
}
