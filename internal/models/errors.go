package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks rejected input: duplicates, ordering or reading violations.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an update or delete targets an absent id.
	ErrNotFound = errors.New("not found")

	// ErrPersistence marks a durable I/O failure.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError describes why an input was rejected. No state is changed
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is reports ErrValidation as a match so callers can use errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps a durable store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError wraps err for op. Returns nil when err is nil.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports ErrPersistence as a match so callers can use errors.Is.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NotFound wraps ErrNotFound with the kind and id that were missing.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
