package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"gauntlet/internal/harness"
	"gauntlet/internal/scheduler"
	pkgstrings "gauntlet/pkg/strings"
)

// Terminal prints live progress lines and a final result table. It is
// the only emitter that stays off disk.
type Terminal struct {
	out io.Writer
}

// NewTerminal creates the terminal reporter.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) Name() string { return "terminal" }

// Progress prints one line per scheduler event. Feed it from an event
// subscription while the run executes.
func (t *Terminal) Progress(event scheduler.Event) {
	switch event.Type {
	case scheduler.EventTaskStarted:
		fmt.Fprintf(t.out, "🎯 %s started\n", event.Key)
	case scheduler.EventTaskRetried:
		fmt.Fprintf(t.out, "🔄 %s retrying (attempt %d)\n", event.Key, event.Attempt)
	case scheduler.EventTaskFinished:
		line := fmt.Sprintf("%s %s %s", stateSymbol(event.State), event.Key, event.State)
		if event.Message != "" {
			line += fmt.Sprintf(" (%s)", pkgstrings.OneLine(event.Message, pkgstrings.DefaultReasonMaxLen))
		}
		fmt.Fprintln(t.out, line)
	}
}

func (t *Terminal) Emit(ctx context.Context, summary *harness.RunSummary) error {
	fmt.Fprintf(t.out, "\n🏁 Run %s complete (%s)\n", summary.RunID, summary.Environment)
	fmt.Fprintf(t.out, "⏱️  Duration: %v\n", time.Duration(summary.DurationMillis)*time.Millisecond)

	tw := table.NewWriter()
	tw.SetOutputMirror(t.out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "TASK", "STATE", "ATTEMPTS", "CASES", "P95", "DURATION", "REASON"})
	for _, task := range summary.Tasks {
		tw.AppendRow(table.Row{
			stateSymbol(task.State),
			task.Key.String(),
			string(task.State),
			task.Attempts,
			casesCell(task),
			p95Cell(task),
			(time.Duration(task.DurationMillis) * time.Millisecond).String(),
			pkgstrings.OneLine(task.FailureReason, pkgstrings.DefaultReasonMaxLen),
		})
	}
	tw.Render()

	totals := summary.Totals
	fmt.Fprintf(t.out, "\n📊 Results:\n")
	fmt.Fprintf(t.out, "   ✅ Passed: %d\n", totals.Passed)
	if totals.Failed > 0 {
		fmt.Fprintf(t.out, "   ❌ Failed: %d\n", totals.Failed)
	}
	if totals.Errored > 0 {
		fmt.Fprintf(t.out, "   💥 Errored: %d\n", totals.Errored)
	}
	if totals.Timeout > 0 {
		fmt.Fprintf(t.out, "   ⏰ Timed out: %d\n", totals.Timeout)
	}
	if totals.Skipped > 0 {
		fmt.Fprintf(t.out, "   ⏭️  Skipped: %d\n", totals.Skipped)
	}
	fmt.Fprintf(t.out, "   📈 Total: %d\n", totals.Tasks)
	fmt.Fprintf(t.out, "   📏 Task Pass Rate: %.1f%%\n", totals.TaskPassRate*100)
	if totals.Cases > 0 {
		fmt.Fprintf(t.out, "   🧪 Cases: %d (%.1f%% passed)\n", totals.Cases, totals.CasePassRate*100)
	}

	if len(summary.SLOFailures) > 0 {
		fmt.Fprintf(t.out, "\n⚠️  SLO violations:\n")
		for _, f := range summary.SLOFailures {
			fmt.Fprintf(t.out, "   • %s\n", formatSLOFailure(f))
		}
	}

	switch summary.Verdict {
	case harness.VerdictPass:
		fmt.Fprintf(t.out, "\n%s\n", text.FgGreen.Sprint("🎉 All suites passed"))
	case harness.VerdictSLOFail:
		fmt.Fprintf(t.out, "\n%s\n", text.FgYellow.Sprintf("⚠️  SLO thresholds breached (exit %d)", summary.ExitCode))
	default:
		fmt.Fprintf(t.out, "\n%s\n", text.FgRed.Sprintf("💔 Run failed (exit %d)", summary.ExitCode))
	}
	return nil
}

func stateSymbol(state harness.TaskState) string {
	switch state {
	case harness.StatePassed:
		return "✅"
	case harness.StateFailed:
		return "❌"
	case harness.StateErrored:
		return "💥"
	case harness.StateTimeout:
		return "⏰"
	case harness.StateSkipped:
		return "⏭️"
	default:
		return "❓"
	}
}

func casesCell(task harness.Task) string {
	if task.Result == nil {
		return "-"
	}
	return fmt.Sprintf("%d/%d", task.Result.Totals.Passed, task.Result.Totals.Cases)
}

func p95Cell(task harness.Task) string {
	if task.Result == nil {
		return "-"
	}
	return formatLatency(task.Result.AggregateLatency)
}
