// Package schema compiles attribute declarations into validators: support
// for primitives, semantic types routed to codec.*, required/optional
// fields, defaults, length/range/enum/regex constraints, and one level of
// nested json addressing.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("schema: validation failed")

// FieldError names one failing field path and the reason it failed.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError collects every FieldError found during one Validate call.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, reason string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Reason: reason})
}
