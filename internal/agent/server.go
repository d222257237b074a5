package agent

import (
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"gauntlet/pkg/logging"
)

// defaultRunTimeout bounds a run_suites call when the configuration does
// not carry a global timeout, so a wedged suite cannot hang the MCP call
// forever.
const defaultRunTimeout = 30 * time.Minute

// Server exposes the harness over the Model Context Protocol. It serves
// on stdio; stdout belongs to the protocol and all logging goes to
// stderr.
type Server struct {
	mcpServer  *server.MCPServer
	rootPath   string
	runTimeout time.Duration
}

// NewServer creates an MCP server bound to a harness root.
func NewServer(rootPath, version string) *Server {
	mcpServer := server.NewMCPServer(
		"gauntlet",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{
		mcpServer:  mcpServer,
		rootPath:   rootPath,
		runTimeout: defaultRunTimeout,
	}
	s.registerTools()
	return s
}

// Start serves MCP over stdio until the client disconnects.
func (s *Server) Start() error {
	logging.Info("agent", "MCP server starting on stdio for root %s", s.rootPath)
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	runSuitesTool := mcp.NewTool("run_suites",
		mcp.WithDescription("Execute test suites and return the aggregated run summary with trend snapshots"),
		mcp.WithString("environment",
			mcp.Description("Target environment (defaults to the configured one)"),
		),
		mcp.WithString("suites",
			mcp.Description("Comma separated suite IDs to run (defaults to every suite)"),
		),
		mcp.WithString("browsers",
			mcp.Description("Comma separated browser list for browser matrix suites"),
		),
		mcp.WithBoolean("fail_fast",
			mcp.Description("Stop scheduling new tasks after the first fatal failure"),
		),
		mcp.WithBoolean("no_retry",
			mcp.Description("Disable retries for suites that allow them"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Global timeout for the whole run in milliseconds"),
		),
		mcp.WithNumber("concurrency",
			mcp.Description("How many tasks run at once (1-64)"),
		),
	)
	s.mcpServer.AddTool(runSuitesTool, s.handleRunSuites)

	listSuitesTool := mcp.NewTool("list_suites",
		mcp.WithDescription("List the suite definitions available in the harness root"),
	)
	s.mcpServer.AddTool(listSuitesTool, s.handleListSuites)

	getSummaryTool := mcp.NewTool("get_summary",
		mcp.WithDescription("Retrieve the aggregated summary of a recorded run"),
		mcp.WithString("run",
			mcp.Description("Run ID or 'latest' (default)"),
		),
	)
	s.mcpServer.AddTool(getSummaryTool, s.handleGetSummary)

	getTrendsTool := mcp.NewTool("get_trends",
		mcp.WithDescription("Compare the latest run against stored history and classify each metric trend"),
		mcp.WithNumber("window",
			mcp.Description("Number of historical summaries feeding the baseline (defaults to the configured window)"),
		),
	)
	s.mcpServer.AddTool(getTrendsTool, s.handleGetTrends)

	healthCheckTool := mcp.NewTool("health_check",
		mcp.WithDescription("Verify the harness can run: configuration, suite definitions, tool binaries and artifact root"),
	)
	s.mcpServer.AddTool(healthCheckTool, s.handleHealthCheck)
}
