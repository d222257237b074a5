package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/harness"
)

func TestExpand_SubstitutesAllSpellings(t *testing.T) {
	engine := New()

	args := []string{
		"newman",
		"run",
		"--env-var", "env={{ environment }}",
		"--env-var", "browser={{browser}}",
		"--reporters", "{{ .suiteId }}-{{.runId}}",
	}
	vars := map[string]string{
		"environment": "staging",
		"browser":     "chromium",
		"suiteId":     "checkout-api",
		"runId":       "20260101-120000-abcd",
	}

	expanded, err := engine.Expand(args, vars)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"newman",
		"run",
		"--env-var", "env=staging",
		"--env-var", "browser=chromium",
		"--reporters", "checkout-api-20260101-120000-abcd",
	}, expanded)
}

func TestExpand_LeavesPlainArgumentsAlone(t *testing.T) {
	engine := New()

	args := []string{"k6", "run", "script.js"}
	expanded, err := engine.Expand(args, map[string]string{"environment": "qa"})

	require.NoError(t, err)
	assert.Equal(t, args, expanded)
}

func TestExpand_UnknownPlaceholderIsAnError(t *testing.T) {
	engine := New()

	_, err := engine.Expand(
		[]string{"run", "--env={{ enviroment }}"},
		map[string]string{"environment": "staging"},
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown placeholders: enviroment")
	assert.Contains(t, err.Error(), "argument 1")
}

func TestExpand_RepeatedUnknownNamedOnce(t *testing.T) {
	engine := New()

	_, err := engine.ExpandString("{{ missing }} and {{ missing }}", nil)

	require.Error(t, err)
	assert.Equal(t, "unknown placeholders: missing", err.Error())
}

func TestExpandString_IrregularWhitespace(t *testing.T) {
	engine := New()

	result, err := engine.ExpandString("url-{{   environment   }}", map[string]string{"environment": "prod"})

	require.NoError(t, err)
	assert.Equal(t, "url-prod", result)
}

func TestExpand_EmptyArgs(t *testing.T) {
	engine := New()

	expanded, err := engine.Expand(nil, nil)

	require.NoError(t, err)
	assert.Empty(t, expanded)
}

func TestPlaceholders_DistinctInOrder(t *testing.T) {
	engine := New()

	names := engine.Placeholders([]string{
		"--env={{ environment }}",
		"--out=report-{{ browser }}.json",
		"--tag={{ environment }}",
	})

	assert.Equal(t, []string{"environment", "browser"}, names)
}

func TestTaskVars_BrowserOnlyWhenPresent(t *testing.T) {
	withBrowser := TaskVars("20260101-120000-abcd", harness.TaskKey{
		SuiteID:     "ui-smoke",
		Environment: "staging",
		Browser:     "firefox",
	})
	assert.Equal(t, "firefox", withBrowser["browser"])
	assert.Equal(t, "staging", withBrowser["environment"])
	assert.Equal(t, "ui-smoke", withBrowser["suiteId"])
	assert.Equal(t, "20260101-120000-abcd", withBrowser["runId"])

	withoutBrowser := TaskVars("20260101-120000-abcd", harness.TaskKey{
		SuiteID:     "checkout-api",
		Environment: "staging",
	})
	_, bound := withoutBrowser["browser"]
	assert.False(t, bound, "browser must stay unbound for non-browser tasks")
}
