package parser

import (
	"context"
	"encoding/json"
	"fmt"

	"gauntlet/internal/harness"
)

// PactParser normalizes Pact provider verification output for contract
// suites.
type PactParser struct{}

// NewPactParser creates a PactParser.
func NewPactParser() *PactParser {
	return &PactParser{}
}

// Tool implements Parser.
func (p *PactParser) Tool() string { return "pact" }

type pactReport struct {
	Provider     pactParty         `json:"provider"`
	Consumer     pactParty         `json:"consumer"`
	Interactions []pactInteraction `json:"interactions"`
}

type pactParty struct {
	Name string `json:"name"`
}

type pactInteraction struct {
	Description string            `json:"description"`
	Success     bool              `json:"success"`
	Pending     bool              `json:"pending"`
	Mismatches  []json.RawMessage `json:"mismatches"`
}

// Parse implements Parser. One interaction is one case. Pending
// interactions are skipped regardless of outcome; their failures are
// advisory until the pact is declared supported.
func (p *PactParser) Parse(_ context.Context, set ArtifactSet) (*harness.NormalizedResult, error) {
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

	var report pactReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, NewParseFailure(p.Tool(), path, fmt.Sprintf("invalid JSON: %v", err))
	}
	if len(report.Interactions) == 0 {
		return emptyResult(p.Tool()), nil
	}

	totals := harness.CaseTotals{}
	malformed := 0
	pending := 0

	for _, interaction := range report.Interactions {
		if interaction.Description == "" {
			malformed++
			continue
		}
		if interaction.Pending {
			totals.Skipped++
			pending++
			continue
		}
		if interaction.Success && len(interaction.Mismatches) == 0 {
			totals.Passed++
		} else {
			totals.Failed++
		}
	}

	total := len(report.Interactions)
	if exceedsTolerance(malformed, total) {
		return nil, &ParseFailureError{
			Tool:          p.Tool(),
			Path:          path,
			Reason:        "too many interactions without descriptions",
			MalformedRows: malformed,
			TotalRows:     total,
		}
	}

	totals.Cases = total - malformed

	result := &harness.NormalizedResult{
		Tool:   p.Tool(),
		Totals: totals,
	}
	if malformed > 0 {
		result.Warnings = append(result.Warnings, malformedWarning(malformed, total))
	}
	if pending > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("pending-interactions:%d", pending))
	}
	return result, nil
}
