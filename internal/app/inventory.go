package app

import (
	"fmt"
	"path/filepath"

	"gauntlet/internal/config"
	"gauntlet/internal/harness"
)

// SuiteInventory is the loadable suite set of a harness root.
type SuiteInventory struct {
	// SuitesDir is the resolved directory the definitions came from.
	SuitesDir string `json:"suitesDir"`
	// Suites holds every definition that loaded and validated, sorted by
	// ID.
	Suites []harness.SuiteDefinition `json:"suites"`
	// Issues names the files that failed to load.
	Issues []config.LoadIssue `json:"-"`
}

// LoadInventory reads the suite definitions of a harness root, applying
// the same configuration resolution a run would.
func LoadInventory(rootPath string) (*SuiteInventory, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve harness root: %w", err)
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, err
	}
	suitesDir := resolvePath(root, cfg.SuitesDir)
	suites, issues, err := config.LoadSuites(suitesDir)
	if err != nil {
		return nil, err
	}
	return &SuiteInventory{SuitesDir: suitesDir, Suites: suites, Issues: issues}, nil
}
