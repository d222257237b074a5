package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/harness"
)

// writeArtifacts lays files into a temp task dir and returns the matching
// ArtifactSet.
func writeArtifacts(t *testing.T, files map[string]string) ArtifactSet {
	t.Helper()
	dir := t.TempDir()
	set := ArtifactSet{TaskDir: dir}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		set.Paths = append(set.Paths, name)
	}
	return set
}

func TestDefaultRegistry_CoversAllSuiteKinds(t *testing.T) {
	registry := DefaultRegistry()

	kinds := []harness.SuiteKind{
		harness.KindBrowser,
		harness.KindHTTPCollection,
		harness.KindLoadStream,
		harness.KindLoadCSV,
		harness.KindScanner,
		harness.KindContract,
	}
	for _, kind := range kinds {
		p, err := registry.Get(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.NotEmpty(t, p.Tool())
	}
	assert.Len(t, registry.Kinds(), len(kinds))
}

func TestRegistry_GetUnknownKind(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Get(harness.KindBrowser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parser registered")
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	registry := NewRegistry()
	registry.Register(harness.KindBrowser, NewPlaywrightParser())
	registry.Register(harness.KindBrowser, NewAxeParser())

	p, err := registry.Get(harness.KindBrowser)
	require.NoError(t, err)
	assert.Equal(t, "axe", p.Tool())
}

func TestPickArtifact(t *testing.T) {
	set := writeArtifacts(t, map[string]string{
		"results/b.json": "{}",
		"results/a.json": "{}",
		"trace.zip":      "binary",
	})

	path, err := pickArtifact("playwright", set, ".json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(set.TaskDir, "results/a.json"), path, "lexicographically first wins")

	_, err = pickArtifact("jmeter", set, ".jtl", ".csv")
	require.Error(t, err)

	var parseFailure *ParseFailureError
	require.ErrorAs(t, err, &parseFailure)
	assert.Equal(t, "jmeter", parseFailure.Tool)
}

func TestParseFailureError_Is(t *testing.T) {
	err := NewParseFailure("k6", "out.jsonl", "boom")
	wrapped := errors.Join(errors.New("outer"), err)

	assert.True(t, errors.Is(wrapped, &ParseFailureError{}))
	assert.False(t, errors.Is(errors.New("plain"), &ParseFailureError{}))
}

func TestParseFailureError_Message(t *testing.T) {
	withRows := &ParseFailureError{Tool: "jmeter", Path: "load.jtl", Reason: "too many malformed rows", MalformedRows: 15, TotalRows: 100}
	assert.Equal(t, "jmeter: parse failure in load.jtl: too many malformed rows (15 of 100 rows malformed)", withRows.Error())

	structural := NewParseFailure("pact", "report.json", "invalid JSON")
	assert.Equal(t, "pact: parse failure in report.json: invalid JSON", structural.Error())
}

func TestExceedsTolerance(t *testing.T) {
	tests := []struct {
		malformed, total int
		want             bool
	}{
		{0, 100, false},
		{10, 100, false}, // exactly 10% is still tolerated
		{11, 100, true},
		{1, 9, true},
		{1, 10, false},
		{0, 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exceedsTolerance(tt.malformed, tt.total),
			"%d/%d", tt.malformed, tt.total)
	}
}

func TestParsers_MissingArtifactIsParseFailure(t *testing.T) {
	registry := DefaultRegistry()
	empty := ArtifactSet{TaskDir: t.TempDir()}

	for _, kind := range registry.Kinds() {
		p, err := registry.Get(kind)
		require.NoError(t, err)

		_, err = p.Parse(context.Background(), empty)
		require.Error(t, err, "kind %s", kind)
		assert.True(t, errors.Is(err, &ParseFailureError{}), "kind %s: %v", kind, err)
	}
}
