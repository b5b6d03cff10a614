package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an expectation or record id is unknown.
var ErrNotFound = errors.New("not found")

// ValidationError reports a malformed expectation or predicate definition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TemplateError reports a response template token that could not be resolved.
type TemplateError struct {
	Token  string
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template token {{%s}}: %s", e.Token, e.Reason)
}

// BatchError wraps the error of the entry that failed a batch registration.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("expectation %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTemplateError reports whether err wraps a TemplateError
func IsTemplateError(err error) bool {
	var te *TemplateError
	return errors.As(err, &te)
}
