package model

import (
	"errors"
	"strings"
)

// Sentinel errors returned by the location and relation engine. Callers match
// them with errors.Is; the wrapped message carries the specifics.
var (
	// ErrNotFound means a referenced id does not resolve under the caller's owner.
	ErrNotFound = errors.New("not found")

	// ErrRuleViolation means the hierarchy rules do not allow the parent/child type pair.
	ErrRuleViolation = errors.New("hierarchy rule violation")

	// ErrCycleDetected means a move or a rule set would introduce a cycle.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrSelfReference means a location was proposed as its own parent.
	ErrSelfReference = errors.New("location cannot be its own parent")

	// ErrConflict means a uniqueness rule or a dependent record blocks the write.
	ErrConflict = errors.New("conflict")

	// ErrValidation means input or category data failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidRelation means an edge would not run from a less specific role
	// to a more specific one.
	ErrInvalidRelation = errors.New("invalid relation")
)

// FieldError is a single failing field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every failing field, not just the first.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError returns nil when there are no field errors.
func NewValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
