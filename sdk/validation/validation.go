// Package validation holds small helpers for optional timestamps, dates and
// field level validation errors shared by the core and bridge layers.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FormatTimePtrToString renders an optional timestamp as RFC3339.
func FormatTimePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// =============================================================================
// Field errors

// FieldError describes one invalid input field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"message"`
}

// FieldErrors collects every invalid field of a request so callers can report
// them together.
type FieldErrors []FieldError

// Add appends a failure for field.
func (fe *FieldErrors) Add(field string, format string, args ...any) {
	*fe = append(*fe, FieldError{Field: field, Err: fmt.Sprintf(format, args...)})
}

// ToError returns nil when nothing was collected.
func (fe FieldErrors) ToError() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Err)
	}
	return strings.Join(parts, "; ")
}

// Fields returns the per field messages keyed by field name.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, f := range fe {
		m[f.Field] = f.Err
	}
	return m
}

// IsFieldErrors reports whether err wraps FieldErrors.
func IsFieldErrors(err error) bool {
	var fe FieldErrors
	return errors.As(err, &fe)
}

// GetFieldErrors unwraps FieldErrors from err.
func GetFieldErrors(err error) FieldErrors {
	var fe FieldErrors
	if !errors.As(err, &fe) {
		return nil
	}
	return fe
}
