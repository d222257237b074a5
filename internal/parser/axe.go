package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"gauntlet/internal/harness"
)

// AxeParser normalizes axe-core accessibility scan output for scanner
// suites. The artifact is either a single page result or an array of them
// (one per scanned URL).
type AxeParser struct{}

// NewAxeParser creates an AxeParser.
func NewAxeParser() *AxeParser {
	return &AxeParser{}
}

// Tool implements Parser.
func (p *AxeParser) Tool() string { return "axe" }

type axeResult struct {
	URL        string    `json:"url"`
	Violations []axeRule `json:"violations"`
	Passes     []axeRule `json:"passes"`
	Incomplete []axeRule `json:"incomplete"`
}

type axeRule struct {
	ID     string `json:"id"`
	Impact string `json:"impact"`
}

// Parse implements Parser. Each rule evaluation is one case: passes[] are
// passed, incomplete[] are skipped, violations[] are failed. Violations
// below serious impact additionally get a warning naming the rule, so
// triage can start from the report.
func (p *AxeParser) Parse(_ context.Context, set ArtifactSet) (*harness.NormalizedResult, error) {
	path, err := pickArtifact(p.Tool(), set, ".json")
	if err != nil {
		return nil, err
	}
	data, err := readArtifact(p.Tool(), path)
	if err != nil {
		return nil, err
	}
	if isEmptyPayload(data) {
		return emptyResult(p.Tool()), nil
	}

	var pages []axeResult
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		if err := json.Unmarshal(data, &pages); err != nil {
			return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("invalid JSON: %v", err))
		}
	} else {
		var single axeResult
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("invalid JSON: %v", err))
		}
		pages = []axeResult{single}
	}

	totals := harness.CaseTotals{}
	total := 0
	malformed := 0
	minorRules := make(map[string]struct{})

	for _, page := range pages {
		for _, rule := range page.Passes {
			total++
			if rule.ID == "" {
				malformed++
				continue
			}
			totals.Passed++
		}
		for _, rule := range page.Incomplete {
			total++
			if rule.ID == "" {
				malformed++
				continue
			}
			totals.Skipped++
		}
		for _, rule := range page.Violations {
			total++
			if rule.ID == "" {
				malformed++
				continue
			}
			totals.Failed++
			switch rule.Impact {
			case "serious", "critical":
			default:
				minorRules[rule.ID] = struct{}{}
			}
		}
	}

	if exceedsTolerance(malformed, total) {
		return nil, &ParseFailureError{
			Tool:          p.Tool(),
			Path:          path,
			Reason:        "too many rule entries without ids",
			MalformedRows: malformed,
			TotalRows:     total,
		}
	}
	if total == 0 {
		return emptyResult(p.Tool()), nil
	}

	totals.Cases = total - malformed

	result := &harness.NormalizedResult{
		Tool:   p.Tool(),
		Totals: totals,
	}
	if malformed > 0 {
		result.Warnings = append(result.Warnings, malformedWarning(malformed, total))
	}
	if len(minorRules) > 0 {
		ids := make([]string, 0, len(minorRules))
		for id := range minorRules {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			result.Warnings = append(result.Warnings, "axe-minor: "+id)
		}
	}
	return result, nil
}
