package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gauntlet/internal/artifact"
	"gauntlet/internal/harness"
	"gauntlet/pkg/logging"
)

// Emitter renders a run summary into one output format.
type Emitter interface {
	// Name identifies the emitter in logs.
	Name() string
	// Emit renders the summary.
	Emit(ctx context.Context, summary *harness.RunSummary) error
}

// Encode produces the canonical summary bytes: two-space indentation,
// struct field order, sorted map keys, trailing newline. summary.json and
// the history entries are written from these bytes.
func Encode(summary *harness.RunSummary) ([]byte, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary for run %s: %w", summary.RunID, err)
	}
	return append(data, '\n'), nil
}

// JSON writes the canonical summary.json into the run directory.
type JSON struct {
	store *artifact.Store
}

// NewJSON creates the canonical JSON emitter.
func NewJSON(store *artifact.Store) *JSON {
	return &JSON{store: store}
}

func (e *JSON) Name() string { return "json" }

func (e *JSON) Emit(ctx context.Context, summary *harness.RunSummary) error {
	data, err := Encode(summary)
	if err != nil {
		return err
	}
	return e.store.WriteSummary(summary.RunID, data)
}

// EmitAll runs every emitter and keeps going past failures, so a broken
// renderer cannot take the remaining reports down with it. The returned
// error joins whatever went wrong.
func EmitAll(ctx context.Context, summary *harness.RunSummary, emitters ...Emitter) error {
	var errs []error
	for _, emitter := range emitters {
		if err := emitter.Emit(ctx, summary); err != nil {
			logging.Error("report", err, "Failed to emit %s report for run %s", emitter.Name(), summary.RunID)
			errs = append(errs, fmt.Errorf("%s: %w", emitter.Name(), err))
		}
	}
	return errors.Join(errs...)
}
