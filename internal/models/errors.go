package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the database layer and handlers.
var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError is returned when a request is rejected before any state change.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError is returned when a write collides with existing state:
// duplicate barcode scans, double driver assignment, edits past the editable
// window, or an illegal status transition. Existing carries the record the
// caller conflicted with when that is meaningful (e.g. the original parcel
// for a duplicate scan).
type ConflictError struct {
	Message  string
	Existing interface{}
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string, existing interface{}) *ConflictError {
	return &ConflictError{Message: message, Existing: existing}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// AsConflict returns the ConflictError wrapped in err, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
