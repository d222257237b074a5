package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"gauntlet/internal/app"
	"gauntlet/internal/exitcode"
	"gauntlet/internal/harness"
	"gauntlet/pkg/logging"
)

// runOutcome pairs a completed run with the error it finished with, so
// the handler can tell verdict errors from infrastructure trouble.
type runOutcome struct {
	result *app.RunResult
	err    error
}

// handleRunSuites executes a full run. The work happens in a goroutine so
// the handler can honor the call timeout; a run that completes with a
// non-zero exit code is still a successful tool call, the verdict travels
// inside the summary payload.
func (s *Server) handleRunSuites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	opts := app.RunOptions{RootPath: s.rootPath}
	if environment, ok := args["environment"].(string); ok {
		opts.Environment = environment
	}
	if suites, ok := args["suites"].(string); ok {
		opts.SuiteIDs = splitList(suites)
	}
	if browsers, ok := args["browsers"].(string); ok {
		opts.Browsers = splitList(browsers)
	}
	if failFast, ok := args["fail_fast"].(bool); ok {
		opts.FailFast = failFast
	}
	if noRetry, ok := args["no_retry"].(bool); ok {
		opts.NoRetry = noRetry
	}
	if timeoutMs, ok := args["timeout_ms"].(float64); ok {
		if timeoutMs < 0 {
			return mcp.NewToolResultError("timeout_ms must not be negative"), nil
		}
		opts.GlobalTimeoutMillis = int64(timeoutMs)
	}
	if concurrency, ok := args["concurrency"].(float64); ok {
		if concurrency < 1 || concurrency > 64 {
			return mcp.NewToolResultError("concurrency must be between 1 and 64"), nil
		}
		opts.Concurrency = int(concurrency)
	}

	callTimeout := s.runTimeout
	if opts.GlobalTimeoutMillis > 0 {
		callTimeout = time.Duration(opts.GlobalTimeoutMillis)*time.Millisecond + time.Minute
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resultChan := make(chan runOutcome, 1)
	errorChan := make(chan error, 1)

	go func() {
		result, err := app.Run(timeoutCtx, opts)
		if result == nil {
			errorChan <- err
			return
		}
		// A RunError only mirrors the exit code already present in the
		// summary, so the result is still the better answer.
		resultChan <- runOutcome{result: result, err: err}
	}()

	select {
	case outcome := <-resultChan:
		payload := struct {
			Summary       *harness.RunSummary     `json:"summary"`
			Trends        []harness.TrendSnapshot `json:"trends,omitempty"`
			TrendWarnings []string                `json:"trendWarnings,omitempty"`
			RunDir        string                  `json:"runDir"`
			Warning       string                  `json:"warning,omitempty"`
		}{
			Summary:       outcome.result.Summary,
			Trends:        outcome.result.Trends,
			TrendWarnings: outcome.result.TrendWarnings,
			RunDir:        outcome.result.RunDir,
		}
		var runErr *exitcode.RunError
		if outcome.err != nil && !errors.As(outcome.err, &runErr) {
			payload.Warning = fmt.Sprintf("run completed but artifacts may be incomplete: %v", outcome.err)
		}
		jsonData, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format run result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	case err := <-errorChan:
		return mcp.NewToolResultError(fmt.Sprintf("Run failed to start: %v", err)), nil
	case <-timeoutCtx.Done():
		logging.Warn("agent", "run_suites call abandoned after %v", callTimeout)
		return mcp.NewToolResultError(fmt.Sprintf("Run did not finish within %v", callTimeout)), nil
	}
}

func (s *Server) handleListSuites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	inventory, err := app.LoadInventory(s.rootPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load suites: %v", err)), nil
	}

	type suiteInfo struct {
		ID            string   `json:"id"`
		Kind          string   `json:"kind"`
		Description   string   `json:"description,omitempty"`
		Command       []string `json:"command"`
		Environments  []string `json:"environments,omitempty"`
		Browsers      []string `json:"browsers,omitempty"`
		TimeoutMillis int64    `json:"timeoutMillis"`
		MaxAttempts   int      `json:"maxAttempts"`
		HasSLO        bool     `json:"hasSlo"`
	}

	list := make([]suiteInfo, len(inventory.Suites))
	for i, suite := range inventory.Suites {
		list[i] = suiteInfo{
			ID:            suite.ID,
			Kind:          string(suite.Kind),
			Description:   suite.Description,
			Command:       suite.Command,
			Environments:  suite.Environments,
			Browsers:      suite.Browsers,
			TimeoutMillis: suite.TimeoutMillis,
			MaxAttempts:   suite.EffectiveMaxAttempts(),
			HasSLO:        suite.SLO != nil,
		}
	}

	payload := struct {
		SuitesDir string      `json:"suitesDir"`
		Suites    []suiteInfo `json:"suites"`
		Issues    []string    `json:"issues,omitempty"`
	}{SuitesDir: inventory.SuitesDir, Suites: list}
	for _, issue := range inventory.Issues {
		payload.Issues = append(payload.Issues, fmt.Sprintf("%s: %v", issue.File, issue.Err))
	}

	jsonData, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format suite list: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (s *Server) handleGetSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	selector := "latest"
	if run, ok := args["run"].(string); ok && run != "" {
		selector = run
	}

	summary, err := app.ReadSummary(s.rootPath, selector)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read summary: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (s *Server) handleGetTrends(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	window := 0
	if raw, ok := args["window"].(float64); ok {
		if raw < 1 {
			return mcp.NewToolResultError("window must be at least 1"), nil
		}
		window = int(raw)
	}

	trendReport, err := app.AnalyzeTrends(s.rootPath, window)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Trend analysis failed: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(trendReport, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format trend report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (s *Server) handleHealthCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	health := app.CheckHealth(s.rootPath, "")

	jsonData, err := json.MarshalIndent(health, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format health report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// splitList parses a comma separated argument into trimmed entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
