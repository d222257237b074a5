package exitcode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gauntlet/internal/harness"
)

func codedTask(suite string, exit int) harness.Task {
	return harness.Task{
		Key:      harness.TaskKey{SuiteID: suite, Environment: "staging"},
		ExitCode: exit,
	}
}

func TestFor(t *testing.T) {
	tests := []struct {
		name    string
		verdict harness.Verdict
		tasks   []harness.Task
		want    int
	}{
		{
			name:    "pass maps to zero",
			verdict: harness.VerdictPass,
			tasks:   []harness.Task{codedTask("api", 0)},
			want:    Success,
		},
		{
			name:    "slo failure uses the reserved code",
			verdict: harness.VerdictSLOFail,
			tasks:   []harness.Task{codedTask("api", 0)},
			want:    SLOFail,
		},
		{
			name:    "fatal borrows the first failing task code in key order",
			verdict: harness.VerdictFatal,
			tasks: []harness.Task{
				codedTask("ui", 5),
				codedTask("api", 0),
				codedTask("load", 2),
			},
			want: 2,
		},
		{
			name:    "fatal never borrows the reserved slo code",
			verdict: harness.VerdictFatal,
			tasks: []harness.Task{
				codedTask("api", 99),
				codedTask("ui", 124),
			},
			want: 124,
		},
		{
			name:    "fatal without a usable task code falls back to one",
			verdict: harness.VerdictFatal,
			tasks:   []harness.Task{codedTask("api", 0)},
			want:    Failure,
		},
		{
			name:    "fatal with no tasks falls back to one",
			verdict: harness.VerdictFatal,
			tasks:   nil,
			want:    Failure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, For(tt.verdict, tt.tasks))
		})
	}
}

func TestFor_DoesNotReorderCallerTasks(t *testing.T) {
	tasks := []harness.Task{codedTask("ui", 3), codedTask("api", 0)}

	assert.Equal(t, 3, For(harness.VerdictFatal, tasks))
	assert.Equal(t, "ui", tasks[0].Key.SuiteID, "input order preserved")
}

func TestRunError(t *testing.T) {
	err := &RunError{Verdict: harness.VerdictSLOFail, Code: SLOFail}
	assert.EqualError(t, err, "run finished with verdict sloFail (exit code 99)")
}
