package parser

import "fmt"

// ParseFailureError indicates a tool artifact that cannot be trusted:
// missing, structurally broken, or with too many malformed rows. Tasks
// failing this way are errored and excluded from retry.
type ParseFailureError struct {
	// Tool names the parser that rejected the artifact.
	Tool string
	// Path is the offending artifact, when one was found at all.
	Path string
	// Reason is a short human-readable cause.
	Reason string
	// MalformedRows and TotalRows carry row accounting for tolerance
	// breaches; both are zero for structural failures.
	MalformedRows int
	TotalRows     int
}

func (e *ParseFailureError) Error() string {
	if e.TotalRows > 0 {
		return fmt.Sprintf("%s: parse failure in %s: %s (%d of %d rows malformed)",
			e.Tool, e.Path, e.Reason, e.MalformedRows, e.TotalRows)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: parse failure in %s: %s", e.Tool, e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: parse failure: %s", e.Tool, e.Reason)
}

// Is supports errors.Is checks against the type.
func (e *ParseFailureError) Is(target error) bool {
	_, ok := target.(*ParseFailureError)
	return ok
}

// NewParseFailure creates a structural parse failure.
func NewParseFailure(tool, path, reason string) *ParseFailureError {
	return &ParseFailureError{Tool: tool, Path: path, Reason: reason}
}

// malformedTolerance is the fraction of malformed rows a row-oriented
// artifact may contain before it is rejected outright.
const malformedTolerance = 0.10

// exceedsTolerance reports whether malformed rows are over the tolerance.
// The comparison is strict: exactly ten percent still passes.
func exceedsTolerance(malformed, total int) bool {
	if total == 0 {
		return false
	}
	return float64(malformed)/float64(total) > malformedTolerance
}
