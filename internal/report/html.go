package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/Masterminds/sprig/v3"

	"gauntlet/internal/artifact"
	"gauntlet/internal/harness"
)

// HTMLEmitter writes report.html: one self-contained page with inline
// styles, so it renders straight from the artifact tree without a server.
type HTMLEmitter struct {
	store  *artifact.Store
	trends []harness.TrendSnapshot
}

// NewHTML creates the HTML emitter. Trends may be empty; the page then
// omits the trend section.
func NewHTML(store *artifact.Store, trends []harness.TrendSnapshot) *HTMLEmitter {
	return &HTMLEmitter{store: store, trends: trends}
}

func (e *HTMLEmitter) Name() string { return "html" }

type htmlView struct {
	Summary *harness.RunSummary
	Trends  []harness.TrendSnapshot
}

func (e *HTMLEmitter) Emit(ctx context.Context, summary *harness.RunSummary) error {
	var buf bytes.Buffer
	view := htmlView{Summary: summary, Trends: e.trends}
	if err := htmlTemplate.Execute(&buf, view); err != nil {
		return fmt.Errorf("failed to render html report for run %s: %w", summary.RunID, err)
	}
	path := filepath.Join(e.store.RunDir(summary.RunID), artifact.HTMLFileName)
	return e.store.WriteFileAtomic(path, buf.Bytes())
}

var htmlTemplate = template.Must(template.New("report").
	Funcs(sprig.HtmlFuncMap()).
	Funcs(template.FuncMap{
		"millis":  formatMillis,
		"pct":     formatPct,
		"latency": formatLatency,
		"floatOrNA": func(v *float64) string {
			if v == nil {
				return "n/a"
			}
			return fmt.Sprintf("%.4g", *v)
		},
		"sloLine": formatSLOFailure,
	}).
	Parse(htmlReportTemplate))

func formatMillis(millis int64) string {
	return (time.Duration(millis) * time.Millisecond).String()
}

func formatPct(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

func formatLatency(stats *harness.LatencyStats) string {
	if stats == nil || stats.Samples == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fms", stats.P95)
}

const htmlReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Summary.RunID }} ({{ .Summary.Environment }})</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1f2430; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 2rem; }
table { border-collapse: collapse; margin-top: 0.5rem; }
th, td { border: 1px solid #d5d9e0; padding: 0.35rem 0.7rem; text-align: left; font-size: 0.9rem; }
th { background: #f0f2f6; }
.banner { padding: 0.8rem 1.2rem; border-radius: 6px; font-weight: 600; display: inline-block; }
.banner.pass { background: #dcf5e3; color: #1a7f37; }
.banner.sloFail { background: #fff3cd; color: #8a6d00; }
.banner.fatal { background: #fde2e1; color: #b02a22; }
.state-passed { color: #1a7f37; }
.state-failed, .state-errored { color: #b02a22; }
.state-timeout { color: #b35c00; }
.state-skipped { color: #6a737d; }
.improving { color: #1a7f37; }
.degrading { color: #b02a22; }
.stable { color: #6a737d; }
.meta { color: #57606a; font-size: 0.9rem; }
ul.flat { padding-left: 1.2rem; }
</style>
</head>
<body>
<h1>Run {{ .Summary.RunID }}</h1>
<p class="banner {{ .Summary.Verdict }}">{{ printf "%s" .Summary.Verdict | upper }} (exit {{ .Summary.ExitCode }})</p>
<p class="meta">
Environment {{ .Summary.Environment }} &middot;
started {{ .Summary.StartedAt.Format "2006-01-02 15:04:05 MST" }} &middot;
took {{ millis .Summary.DurationMillis }} &middot;
task pass rate {{ pct .Summary.Totals.TaskPassRate }} &middot;
case pass rate {{ pct .Summary.Totals.CasePassRate }}
</p>

<h2>Suites</h2>
<table>
<tr><th>Suite</th><th>Tasks</th><th>Passed</th><th>Failed</th><th>Errored</th><th>Timeout</th><th>Skipped</th><th>Duration</th></tr>
{{ range $suite, $stats := .Summary.BySuite }}
<tr>
<td>{{ $suite }}</td>
<td>{{ $stats.Tasks }}</td>
<td>{{ $stats.Passed }}</td>
<td>{{ $stats.Failed }}</td>
<td>{{ $stats.Errored }}</td>
<td>{{ $stats.Timeout }}</td>
<td>{{ $stats.Skipped }}</td>
<td>{{ millis $stats.DurationMillis }}</td>
</tr>
{{ end }}
</table>

<h2>Tasks</h2>
<table>
<tr><th>Task</th><th>State</th><th>Attempts</th><th>Cases</th><th>p95</th><th>Duration</th><th>Reason</th><th>Logs</th></tr>
{{ range .Summary.Tasks }}
<tr>
<td>{{ .Key }}</td>
<td class="state-{{ .State }}">{{ .State }}</td>
<td>{{ .Attempts }}</td>
<td>{{ if .Result }}{{ .Result.Totals.Passed }}/{{ .Result.Totals.Cases }}{{ else }}-{{ end }}</td>
<td>{{ if .Result }}{{ latency .Result.AggregateLatency }}{{ else }}-{{ end }}</td>
<td>{{ millis .DurationMillis }}</td>
<td>{{ .FailureReason | trunc 120 }}</td>
<td>{{ if .StdoutPath }}<a href="{{ .StdoutPath }}">stdout</a>{{ end }}
{{ if .StderrPath }}<a href="{{ .StderrPath }}">stderr</a>{{ end }}</td>
</tr>
{{ end }}
</table>

{{ if .Summary.SLOFailures }}
<h2>SLO violations</h2>
<ul class="flat">
{{ range .Summary.SLOFailures }}<li>{{ sloLine . }}</li>
{{ end }}</ul>
{{ end }}

{{ if .Trends }}
<h2>Trends</h2>
<table>
<tr><th>Metric</th><th>Current</th><th>Previous</th><th>Change</th><th>Direction</th></tr>
{{ range .Trends }}
<tr>
<td>{{ .Metric }}</td>
<td>{{ printf "%.4g" .Current }}</td>
<td>{{ floatOrNA .Previous }}</td>
<td>{{ if .Previous }}{{ printf "%+.4g" .AbsoluteChange }}{{ else }}n/a{{ end }}</td>
<td class="{{ .Direction }}">{{ .Direction }}</td>
</tr>
{{ end }}
</table>
{{ end }}

{{ if .Summary.Warnings }}
<h2>Warnings</h2>
<ul class="flat">
{{ range .Summary.Warnings }}<li>{{ . }}</li>
{{ end }}</ul>
{{ end }}
</body>
</html>
`
