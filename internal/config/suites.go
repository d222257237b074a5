package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"gauntlet/internal/harness"
	"gauntlet/pkg/logging"
)

// LoadIssue records a suite definition file that could not be used. One bad
// file must not take down the rest of the inventory; callers that need
// strictness (health-check) fail when any issue is present.
type LoadIssue struct {
	// File is the path of the offending definition.
	File string
	// Err is what went wrong.
	Err error
}

// LoadSuites reads every suite definition under dir. Files use the JSON
// field convention (sigs.k8s.io/yaml), one suite per file. The returned
// slice is sorted by suite ID. Files that fail to parse or validate are
// reported as issues and skipped.
func LoadSuites(dir string) ([]harness.SuiteDefinition, []LoadIssue, error) {
	var suites []harness.SuiteDefinition
	var issues []LoadIssue
	seen := map[string]string{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAMLFile(d.Name()) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			issues = append(issues, LoadIssue{File: path, Err: fmt.Errorf("failed to read: %w", err)})
			return nil
		}

		var suite harness.SuiteDefinition
		if err := yaml.Unmarshal(data, &suite); err != nil {
			issues = append(issues, LoadIssue{File: path, Err: fmt.Errorf("failed to unmarshal: %w", err)})
			return nil
		}
		if suite.ID == "" {
			suite.ID = nameFromFileName(d.Name())
		}
		if err := suite.Validate(); err != nil {
			issues = append(issues, LoadIssue{File: path, Err: err})
			return nil
		}
		if prev, dup := seen[suite.ID]; dup {
			issues = append(issues, LoadIssue{File: path, Err: fmt.Errorf("duplicate suite id %q (already defined in %s)", suite.ID, prev)})
			return nil
		}
		seen[suite.ID] = path

		suites = append(suites, suite)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			// No suites directory yet: empty inventory, not an error.
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to scan suites directory %s: %w", dir, err)
	}

	for _, issue := range issues {
		logging.Warn("config", "Skipping suite definition %s: %v", issue.File, issue.Err)
	}

	sort.Slice(suites, func(i, j int) bool { return suites[i].ID < suites[j].ID })
	return suites, issues, nil
}

// SelectSuites narrows the inventory to the requested IDs, preserving
// inventory order. An unknown ID is an error: a typo silently selecting
// nothing would report a green empty run.
func SelectSuites(suites []harness.SuiteDefinition, ids []string) ([]harness.SuiteDefinition, error) {
	if len(ids) == 0 {
		return suites, nil
	}

	byID := make(map[string]harness.SuiteDefinition, len(suites))
	for _, s := range suites {
		byID[s.ID] = s
	}

	requested := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("unknown suite %q", id)
		}
		requested[id] = true
	}

	var out []harness.SuiteDefinition
	for _, s := range suites {
		if requested[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func nameFromFileName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
