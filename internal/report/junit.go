package report

import (
	"context"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"gauntlet/internal/artifact"
	"gauntlet/internal/harness"
	"gauntlet/internal/slo"
)

// JUnit failure type attributes. CI dashboards group by these, so SLO
// breaches stay distinguishable from assertion failures.
const (
	junitTypeAssertion = "AssertionFailure"
	junitTypeSLO       = "SLOViolation"
	junitTypeErrored   = "ExecutionError"
	junitTypeTimeout   = "Timeout"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     float64      `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     float64     `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Classname string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitDetail  `xml:"failure,omitempty"`
	Error     *junitDetail  `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitDetail struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitEmitter writes summary.junit.xml into the run directory. One
// testsuite per suite, one testcase per matrix cell: classname is the
// suite id, the case name is the environment plus browser.
type JUnitEmitter struct {
	store *artifact.Store
}

// NewJUnit creates the JUnit XML emitter.
func NewJUnit(store *artifact.Store) *JUnitEmitter {
	return &JUnitEmitter{store: store}
}

func (e *JUnitEmitter) Name() string { return "junit" }

func (e *JUnitEmitter) Emit(ctx context.Context, summary *harness.RunSummary) error {
	data, err := marshalJUnit(summary)
	if err != nil {
		return err
	}
	path := filepath.Join(e.store.RunDir(summary.RunID), artifact.JUnitFileName)
	return e.store.WriteFileAtomic(path, data)
}

func marshalJUnit(summary *harness.RunSummary) ([]byte, error) {
	root := junitSuites{
		Name:     summary.RunID,
		Tests:    summary.Totals.Tasks,
		Failures: summary.Totals.Failed,
		Errors:   summary.Totals.Errored + summary.Totals.Timeout,
		Skipped:  summary.Totals.Skipped,
		Time:     seconds(summary.DurationMillis),
	}

	// Tasks arrive sorted by key, so suites come out in suite-id order
	// with their cases already ordered within.
	index := make(map[string]int)
	for _, task := range summary.Tasks {
		suiteID := task.Key.SuiteID
		i, ok := index[suiteID]
		if !ok {
			i = len(root.Suites)
			index[suiteID] = i
			root.Suites = append(root.Suites, junitSuite{Name: suiteID})
		}
		suite := &root.Suites[i]
		suite.Tests++
		suite.Time += seconds(task.DurationMillis)
		suite.Cases = append(suite.Cases, junitCaseFor(task))

		switch task.State {
		case harness.StateFailed:
			suite.Failures++
		case harness.StateErrored, harness.StateTimeout:
			suite.Errors++
		case harness.StateSkipped:
			suite.Skipped++
		}
	}

	data, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode junit report for run %s: %w", summary.RunID, err)
	}
	out := make([]byte, 0, len(xml.Header)+len(data)+1)
	out = append(out, xml.Header...)
	out = append(out, data...)
	return append(out, '\n'), nil
}

func junitCaseFor(task harness.Task) junitCase {
	c := junitCase{
		Classname: task.Key.SuiteID,
		Name:      strings.Join(task.Key.Segments()[1:], "/"),
		Time:      seconds(task.DurationMillis),
	}

	switch task.State {
	case harness.StateFailed:
		c.Failure = &junitDetail{
			Message: task.FailureReason,
			Type:    failureType(task),
			Content: failureContent(task),
		}
	case harness.StateErrored:
		c.Error = &junitDetail{Message: task.FailureReason, Type: junitTypeErrored}
	case harness.StateTimeout:
		c.Error = &junitDetail{Message: task.FailureReason, Type: junitTypeTimeout}
	case harness.StateSkipped:
		c.Skipped = &junitSkipped{Message: task.FailureReason}
	}
	return c
}

// failureType distinguishes threshold breaches from assertion failures.
// A task that exited clean with passing assertions only fails because of
// its objectives.
func failureType(task harness.Task) string {
	if task.ExitCode == 0 && len(task.SLOFailures) > 0 &&
		task.Result != nil && task.Result.Totals.Failed == 0 && task.Result.Totals.Errored == 0 {
		return junitTypeSLO
	}
	return junitTypeAssertion
}

func failureContent(task harness.Task) string {
	var lines []string
	for _, f := range task.SLOFailures {
		lines = append(lines, formatSLOFailure(f))
	}
	if task.Result != nil && task.Result.Totals.Failed > 0 {
		lines = append(lines, fmt.Sprintf("%d of %d cases failed", task.Result.Totals.Failed, task.Result.Totals.Cases))
	}
	return strings.Join(lines, "\n")
}

// formatSLOFailure renders one violation for human-facing reports. All
// thresholds are strict upper bounds, hence the >= in the output.
func formatSLOFailure(f harness.SLOFailure) string {
	switch f.Metric {
	case slo.MetricErrorRate:
		return fmt.Sprintf("%s %s errorRate %.2f%% >= %.2f%%", f.Scope, f.Label, f.Actual*100, f.Threshold*100)
	case slo.MetricMinCases:
		return fmt.Sprintf("%s %s cases %d < %d", f.Scope, f.Label, int(f.Actual), int(f.Threshold))
	default:
		return fmt.Sprintf("%s %s %s %.1fms >= %.1fms", f.Scope, f.Label, f.Metric, f.Actual, f.Threshold)
	}
}

func seconds(millis int64) float64 {
	return float64(millis) / 1000.0
}
