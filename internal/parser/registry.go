package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gauntlet/internal/harness"
)

// ArtifactSet is the collected output of one attempt, handed to a parser.
type ArtifactSet struct {
	// TaskDir is the directory the artifacts were collected into.
	TaskDir string
	// Paths are the collected artifact paths relative to TaskDir, sorted.
	Paths []string
	// Stdout and Stderr are the paths of the captured process logs.
	Stdout string
	Stderr string
}

// Parser turns one tool's artifacts into a normalized result.
type Parser interface {
	// Tool names the tool whose output this parser understands.
	Tool() string
	// Parse reads the artifact set and normalizes it. A returned
	// *ParseFailureError marks the attempt errored and non-retryable.
	Parse(ctx context.Context, set ArtifactSet) (*harness.NormalizedResult, error)
}

// Registry maps suite kinds to parsers. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	parsers map[harness.SuiteKind]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[harness.SuiteKind]Parser)}
}

// DefaultRegistry returns a registry with all built-in parsers installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(harness.KindBrowser, NewPlaywrightParser())
	r.Register(harness.KindHTTPCollection, NewNewmanParser())
	r.Register(harness.KindLoadStream, NewK6Parser())
	r.Register(harness.KindLoadCSV, NewJTLParser())
	r.Register(harness.KindScanner, NewAxeParser())
	r.Register(harness.KindContract, NewPactParser())
	return r
}

// Register installs a parser for a suite kind, replacing any previous one.
func (r *Registry) Register(kind harness.SuiteKind, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[kind] = p
}

// Get returns the parser for a suite kind.
func (r *Registry) Get(kind harness.SuiteKind) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[kind]
	if !ok {
		return nil, fmt.Errorf("no parser registered for suite kind %q", kind)
	}
	return p, nil
}

// Kinds lists registered suite kinds, sorted.
func (r *Registry) Kinds() []harness.SuiteKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]harness.SuiteKind, 0, len(r.parsers))
	for kind := range r.parsers {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// pickArtifact selects the lexicographically first collected artifact with
// one of the given extensions and returns its absolute path. A missing
// artifact is a parse failure: the tool never produced its report.
func pickArtifact(tool string, set ArtifactSet, exts ...string) (string, error) {
	var candidates []string
	for _, rel := range set.Paths {
		for _, ext := range exts {
			if strings.HasSuffix(rel, ext) {
				candidates = append(candidates, rel)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return "", NewParseFailure(tool, "", fmt.Sprintf("no %s artifact collected", strings.Join(exts, "/")))
	}
	sort.Strings(candidates)
	return filepath.Join(set.TaskDir, candidates[0]), nil
}

// readArtifact loads an artifact fully. Unreadable files are parse
// failures rather than transient errors; the attempt already finished and
// whatever it left behind is all there is.
func readArtifact(tool, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewParseFailure(tool, path, fmt.Sprintf("cannot read artifact: %v", err))
	}
	return data, nil
}

// emptyResult is the normalization of a tool that produced no output:
// zero cases, one errored case and a warning, so the condition surfaces in
// totals instead of counting as a silent pass.
func emptyResult(tool string) *harness.NormalizedResult {
	return &harness.NormalizedResult{
		Tool:     tool,
		Totals:   harness.CaseTotals{Cases: 0, Errored: 1},
		Warnings: []string{"empty-output"},
	}
}

// isEmptyPayload treats whitespace-only content as empty.
func isEmptyPayload(data []byte) bool {
	return len(strings.TrimSpace(string(data))) == 0
}

// malformedWarning records tolerated malformed rows. Rows under the
// tolerance are excluded from metrics, not silently dropped.
func malformedWarning(malformed, total int) string {
	return fmt.Sprintf("malformed-rows: %d/%d", malformed, total)
}
