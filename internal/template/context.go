package template

import "gauntlet/internal/harness"

// TaskVars builds the substitution context of one task execution. The
// browser variable is only bound for browser matrix tasks, so a
// {{ browser }} reference in a non-browser suite fails loudly instead of
// expanding to nothing.
func TaskVars(runID string, key harness.TaskKey) map[string]string {
	vars := map[string]string{
		"runId":       runID,
		"suiteId":     key.SuiteID,
		"environment": key.Environment,
	}
	if key.Browser != "" {
		vars["browser"] = key.Browser
	}
	return vars
}
