package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateConfig checks the harness configuration for values that would
// produce a broken run. Health-check surfaces every finding at once instead
// of stopping at the first.
func ValidateConfig(config Config) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(config.Environment) == "" {
		errs.Add("environment", "must not be empty")
	}
	if strings.TrimSpace(config.ArtifactRoot) == "" {
		errs.Add("artifactRoot", "must not be empty")
	}
	if config.Concurrency < 0 {
		errs.Add("concurrency", "must not be negative", config.Concurrency)
	}
	if config.HistoryKeep < 1 {
		errs.Add("historyKeep", "must keep at least one summary", config.HistoryKeep)
	}
	if config.Trend.Window < 1 {
		errs.Add("trend.window", "must be at least 1", config.Trend.Window)
	}

	floors := config.Trend.NoiseFloors
	if floors.PassRatePoints < 0 {
		errs.Add("trend.noiseFloors.passRatePoints", "must not be negative", floors.PassRatePoints)
	}
	if floors.DurationRatio < 0 {
		errs.Add("trend.noiseFloors.durationRatio", "must not be negative", floors.DurationRatio)
	}
	if floors.P95Ratio < 0 {
		errs.Add("trend.noiseFloors.p95Ratio", "must not be negative", floors.P95Ratio)
	}
	if floors.ErrorRatePoints < 0 {
		errs.Add("trend.noiseFloors.errorRatePoints", "must not be negative", floors.ErrorRatePoints)
	}

	if slo := config.SLO; slo != nil {
		if slo.P95LtMillis != nil && *slo.P95LtMillis <= 0 {
			errs.Add("slo.p95LtMillis", "must be positive", *slo.P95LtMillis)
		}
		if slo.P99LtMillis != nil && *slo.P99LtMillis <= 0 {
			errs.Add("slo.p99LtMillis", "must be positive", *slo.P99LtMillis)
		}
		if slo.ErrorRateLtRatio != nil && (*slo.ErrorRateLtRatio <= 0 || *slo.ErrorRateLtRatio > 1) {
			errs.Add("slo.errorRateLtRatio", "must be within (0, 1]", *slo.ErrorRateLtRatio)
		}
		if slo.MinCases < 0 {
			errs.Add("slo.minCases", "must not be negative", slo.MinCases)
		}
	}

	return errs
}
