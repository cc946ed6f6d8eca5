package pipeline

import (
	"fmt"

	"github.com/sightline-labs/sightflow/core"
)

// Diagnostic represents a validation error or warning produced by
// definition validation.
type Diagnostic struct {
	Code     string `json:"code"`           // e.g. "PL-001"
	Severity string `json:"severity"`       // "error" or "warning"
	Message  string `json:"message"`        // human-readable description
	Path     string `json:"path,omitempty"` // path to offending field
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// HasErrors returns true if any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func Errors(diags []Diagnostic) []Diagnostic {
	var errs []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errs
}

// Warnings returns only the warning-severity diagnostics.
func Warnings(diags []Diagnostic) []Diagnostic {
	var warns []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			warns = append(warns, d)
		}
	}
	return warns
}

// Validate checks structural integrity of a definition:
//   - PL-001: empty node name
//   - PL-002: node is disabled but focused (warning: focus never fires)
//   - PL-003: empty definition (warning)
func Validate(def core.Definition) []Diagnostic {
	var diags []Diagnostic

	if len(def) == 0 {
		diags = append(diags, Diagnostic{
			Code:     "PL-003",
			Severity: SeverityWarning,
			Message:  "Pipeline defines no nodes",
		})
		return diags
	}

	for name, cfg := range def {
		if name == "" {
			diags = append(diags, Diagnostic{
				Code:     "PL-001",
				Severity: SeverityError,
				Message:  "Node with empty name",
			})
			continue
		}
		if !cfg.Enabled && cfg.Focus {
			diags = append(diags, Diagnostic{
				Code:     "PL-002",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("Node %q is disabled but focused; focus notifications never fire for it", name),
				Path:     name,
			})
		}
	}
	return diags
}

// ValidateEntry checks that the given entry node exists in the definition.
//   - PL-004: entry references an unknown node
func ValidateEntry(def core.Definition, entry string) []Diagnostic {
	if entry == "" {
		return nil
	}
	if _, ok := def[entry]; !ok {
		return []Diagnostic{{
			Code:     "PL-004",
			Severity: SeverityError,
			Message:  fmt.Sprintf("Entry node %q does not exist in the pipeline", entry),
			Path:     entry,
		}}
	}
	return nil
}

// DiagnosticError wraps validation diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []Diagnostic
}

func (e *DiagnosticError) Error() string {
	errs := Errors(e.Diagnostics)
	if len(errs) == 0 {
		// Callers can treat warnings as fatal (strict mode).
		errs = e.Diagnostics
	}
	switch len(errs) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation error: %s", errs[0].Message)
	default:
		return fmt.Sprintf("%d validation errors (first: %s)", len(errs), errs[0].Message)
	}
}
