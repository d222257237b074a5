package app

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"gauntlet/internal/config"
	"gauntlet/internal/harness"
	"gauntlet/internal/parser"
	"gauntlet/internal/template"
)

// CheckStatus classifies one health check.
type CheckStatus string

const (
	// StatusOK means the check passed.
	StatusOK CheckStatus = "ok"
	// StatusWarn means runs will work but something deserves attention.
	StatusWarn CheckStatus = "warn"
	// StatusFail means runs would break.
	StatusFail CheckStatus = "fail"
)

// Check is one named health finding.
type Check struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// HealthReport aggregates the health checks of a harness root. Healthy
// means no check failed; warnings are allowed.
type HealthReport struct {
	Healthy bool    `json:"healthy"`
	Checks  []Check `json:"checks"`
}

// CheckHealth verifies a harness root can run suites: the configuration
// loads and validates, suite definitions parse, every suite's tool binary
// resolves, and the artifact root accepts writes. Nothing is executed. A
// non-empty configFile replaces the root's config.yaml.
func CheckHealth(rootPath, configFile string) *HealthReport {
	health := &HealthReport{}

	root, err := filepath.Abs(rootPath)
	if err != nil {
		health.fail("root", err.Error())
		return health.finish()
	}

	cfg, err := loadRunConfig(root, configFile)
	if err != nil {
		health.fail("config", err.Error())
		return health.finish()
	}
	if errs := config.ValidateConfig(cfg); errs.HasErrors() {
		health.fail("config", errs.Error())
	} else {
		health.ok("config", "")
	}

	suitesDir := resolvePath(root, cfg.SuitesDir)
	suites, issues, err := config.LoadSuites(suitesDir)
	switch {
	case err != nil:
		health.fail("suites", err.Error())
	case len(issues) > 0:
		health.warn("suites", describeIssues(issues))
	case len(suites) == 0:
		health.warn("suites", fmt.Sprintf("no suite definitions found in %s", suitesDir))
	default:
		health.ok("suites", fmt.Sprintf("%d suites loaded", len(suites)))
	}

	for _, tool := range suiteTools(suites) {
		requiredBy := "required by " + strings.Join(tool.suites, ", ")
		if err := lookupTool(tool.binary); err != nil {
			health.fail("tool:"+tool.binary, fmt.Sprintf("%v (%s)", err, requiredBy))
		} else {
			health.ok("tool:"+tool.binary, requiredBy)
		}
	}

	// Placeholder references are checked statically so a typoed variable
	// fails the preflight instead of erroring the first run that hits it.
	engine := template.New()
	for _, suite := range suites {
		if unknown := unboundPlaceholders(engine, suite); len(unknown) > 0 {
			health.fail("placeholders:"+suite.ID, "unbindable placeholders: "+strings.Join(unknown, ", "))
		}
	}

	if len(suites) > 0 {
		checkParsers(health, suites)
	}

	if err := checkWritable(resolvePath(root, cfg.ArtifactRoot)); err != nil {
		health.fail("artifact-root", err.Error())
	} else {
		health.ok("artifact-root", "")
	}

	return health.finish()
}

func (r *HealthReport) ok(name, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: StatusOK, Detail: detail})
}

func (r *HealthReport) warn(name, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: StatusWarn, Detail: detail})
}

func (r *HealthReport) fail(name, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: StatusFail, Detail: detail})
}

// finish derives the overall health from the recorded checks.
func (r *HealthReport) finish() *HealthReport {
	r.Healthy = true
	for _, check := range r.Checks {
		if check.Status == StatusFail {
			r.Healthy = false
			break
		}
	}
	return r
}

type toolUse struct {
	binary string
	suites []string
}

// suiteTools maps each distinct command binary to the suites invoking it,
// sorted for stable check output.
func suiteTools(suites []harness.SuiteDefinition) []toolUse {
	uses := make(map[string][]string)
	for _, suite := range suites {
		if len(suite.Command) == 0 {
			continue
		}
		uses[suite.Command[0]] = append(uses[suite.Command[0]], suite.ID)
	}
	tools := make([]toolUse, 0, len(uses))
	for binary, ids := range uses {
		sort.Strings(ids)
		tools = append(tools, toolUse{binary: binary, suites: ids})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].binary < tools[j].binary })
	return tools
}

// unboundPlaceholders lists the placeholder names a suite references that
// no task of the suite will bind. The browser variable only exists for
// browser matrix tasks.
func unboundPlaceholders(engine *template.Engine, suite harness.SuiteDefinition) []string {
	args := append(append([]string{}, suite.Command...), suite.ArtifactGlobs...)
	bindable := map[string]bool{"runId": true, "suiteId": true, "environment": true}
	if suite.Kind == harness.KindBrowser {
		bindable["browser"] = true
	}
	var unknown []string
	for _, name := range engine.Placeholders(args) {
		if !bindable[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// checkParsers verifies every loaded suite kind has a registered parser.
// Configuration validation already rejects unknown kinds, so a failure
// here means a kind exists without a parser behind it.
func checkParsers(health *HealthReport, suites []harness.SuiteDefinition) {
	registry := parser.DefaultRegistry()
	var unparseable []string
	for _, suite := range suites {
		if _, err := registry.Get(suite.Kind); err != nil {
			unparseable = append(unparseable, fmt.Sprintf("%s (%s)", suite.ID, suite.Kind))
		}
	}
	if len(unparseable) > 0 {
		health.fail("parsers", "no parser registered for: "+strings.Join(unparseable, ", "))
		return
	}
	kinds := registry.Kinds()
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	health.ok("parsers", "formats: "+strings.Join(names, ", "))
}

// lookupTool resolves a suite command binary the way the executor will:
// explicit paths against the filesystem, bare names against PATH.
func lookupTool(binary string) error {
	if strings.ContainsRune(binary, os.PathSeparator) {
		_, err := os.Stat(binary)
		return err
	}
	_, err := exec.LookPath(binary)
	return err
}

// checkWritable proves the directory accepts writes by creating and
// removing a probe file.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

func describeIssues(issues []config.LoadIssue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = fmt.Sprintf("%s: %v", filepath.Base(issue.File), issue.Err)
	}
	return "unloadable suite files: " + strings.Join(parts, "; ")
}
