// Package validation checks plugin manifests before registry admission.
// Structural checks block admission; the security and performance reports are advisory.
package validation

import (
	"fmt"
	"strings"
)

// Issue is a single validation message
type Issue struct {
	Field   string
	Value   any
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Result aggregates structural errors and warnings
type Result struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue
}

func newResult() *Result {
	return &Result{Valid: true}
}

// AddError records a validation error and marks the result invalid.
func (r *Result) AddError(field string, value any, message string) {
	r.Errors = append(r.Errors, Issue{Field: field, Value: value, Message: message})
	r.Valid = false
}

// AddWarning records a validation warning but does not change validity.
func (r *Result) AddWarning(field string, value any, message string) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Value: value, Message: message})
}

// Err joins the errors into one message, or returns nil when valid.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.String()
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

// Severity of a security risk
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Risk is one advisory security finding
type Risk struct {
	Code     string
	Message  string
	Severity Severity
}

// SecurityReport lists advisory findings. It never blocks admission.
type SecurityReport struct {
	Risks []Risk
}

// Level returns the highest severity found, or "none"
func (s SecurityReport) Level() string {
	level := "none"
	for _, r := range s.Risks {
		switch {
		case r.Severity == SeverityHigh:
			return string(SeverityHigh)
		case r.Severity == SeverityMedium:
			level = string(SeverityMedium)
		case level == "none":
			level = string(SeverityLow)
		}
	}
	return level
}

// PerformanceReport scores a manifest from 0 to 100 with suggestions.
type PerformanceReport struct {
	Score       int
	Suggestions []string
}

// Report is the full outcome of validating one manifest
type Report struct {
	PluginID    string
	Structure   *Result
	Security    SecurityReport
	Performance PerformanceReport
}

// Valid reports whether the manifest may be admitted
func (r *Report) Valid() bool {
	return r.Structure.Valid
}
