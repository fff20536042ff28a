package service

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a referenced entity is absent or not
// owned by the caller.
var ErrNotFound = errors.New("not found")

// ValidationError reports a caller-input or business-rule violation.
// Fields, when set, names the missing or offending request fields.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

func newValidationError(msg string, fields ...string) *ValidationError {
	return &ValidationError{Message: msg, Fields: fields}
}

// ConflictError reports an operation against an entity already in a
// terminal or conflicting state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
