// Package shared contains common domain types, errors and events
// that are used across the transcript domain and the application layer.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")
	ErrInvalidFormat = errors.New("invalid format")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "transcript", "semester", "storage"
	Op      string // Operation that failed, e.g., "AddSemester", "Load"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Transcript domain errors
var (
	ErrSemesterNotFound    = NewDomainError("transcript", "FindSemester", ErrNotFound, "semester not found")
	ErrSemesterExists      = NewDomainError("transcript", "AddSemester", ErrAlreadyExists, "semester already exists")
	ErrEmptySemesterID     = NewDomainError("transcript", "AddSemester", ErrEmptyValue, "semester ID cannot be empty")
	ErrCourseNotFound      = NewDomainError("semester", "DeleteCourse", ErrNotFound, "course not found")
	ErrEmptyCourseCode     = NewDomainError("semester", "AddCourse", ErrEmptyValue, "course code is required")
	ErrEmptyGrade          = NewDomainError("semester", "AddCourse", ErrEmptyValue, "grade is required")
	ErrInvalidCredits      = NewDomainError("semester", "ParseCredits", ErrInvalidFormat, "credits must be a non-negative integer")
	ErrUnknownSortMode     = NewDomainError("semester", "Sort", ErrInvalidInput, "unknown sort mode")
	ErrTranscriptNotFound  = NewDomainError("storage", "Load", ErrNotFound, "transcript not found")
	ErrTranscriptNotLoaded = NewDomainError("storage", "Load", ErrStorageUnavailable, "transcript could not be loaded")
	ErrTranscriptNotSaved  = NewDomainError("storage", "Save", ErrStorageUnavailable, "transcript could not be saved")
	ErrEmptyStorageKey     = NewDomainError("storage", "Validate", ErrEmptyValue, "storage key cannot be empty")
	ErrUnsafeStorageKey    = NewDomainError("storage", "Validate", ErrInvalidInput, "storage key escapes the data directory")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsStorage checks if the error comes from a persistence backend.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrTimeout)
}
