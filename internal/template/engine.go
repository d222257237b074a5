// Package template expands {{ placeholder }} variables in suite command
// lines and artifact globs before execution. Suite definitions use it to
// reference the run's parameters, so one definition serves every
// environment and browser of the matrix:
//
//	command: ["newman", "run", "checkout.json", "--env-var", "env={{ environment }}"]
//	artifactGlobs: ["report-{{ browser }}.json"]
//
// Available variables are runId, suiteId, environment and, for browser
// matrix tasks, browser. Spellings with and without a leading dot are
// both accepted, so definitions written like Go templates keep working.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// Engine substitutes placeholder variables of the form {{ name }}.
type Engine struct {
	pattern *regexp.Regexp
}

// New creates an Engine.
func New() *Engine {
	return &Engine{
		pattern: regexp.MustCompile(`\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`),
	}
}

// Expand substitutes every placeholder in args and returns the expanded
// copy. Arguments without placeholders pass through verbatim.
func (e *Engine) Expand(args []string, vars map[string]string) ([]string, error) {
	if len(args) == 0 {
		return args, nil
	}
	expanded := make([]string, len(args))
	for i, arg := range args {
		value, err := e.ExpandString(arg, vars)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q): %w", i, arg, err)
		}
		expanded[i] = value
	}
	return expanded, nil
}

// ExpandString substitutes every placeholder in one string. A placeholder
// with no bound variable is an error naming it; a typoed
// {{ enviroment }} must not reach the tool as a literal argument.
func (e *Engine) ExpandString(s string, vars map[string]string) (string, error) {
	var missing []string
	seen := make(map[string]bool)

	result := e.pattern.ReplaceAllStringFunc(s, func(match string) string {
		name := e.pattern.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			return match
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("unknown placeholders: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// Placeholders returns the distinct placeholder names referenced by args,
// in order of first appearance.
func (e *Engine) Placeholders(args []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, arg := range args {
		for _, match := range e.pattern.FindAllStringSubmatch(arg, -1) {
			if !seen[match[1]] {
				seen[match[1]] = true
				names = append(names, match[1])
			}
		}
	}
	return names
}
