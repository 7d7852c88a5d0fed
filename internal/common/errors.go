// Package common defines sentinel errors and constants shared by the
// docsync client and server. Callers should match errors with errors.Is.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Local rejections. These never reach the network layer.
	ErrValidation      = errors.New("validation error")
	ErrDuplicate       = errors.New("document with this name already exists in category")
	ErrDefaultCategory = errors.New("default category cannot be changed")

	// Remote failures as seen by the client.
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("server unavailable")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError describes a rejected local mutation. It matches
// ErrValidation and the wrapped cause through errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %v", e.Err)
	}
	return fmt.Sprintf("validation error: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
