// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
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
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrAlreadyApplied  = errors.New("already applied")
	ErrExpired         = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "badge", "challenge"
	Op      string // Operation that failed, e.g., "Grant", "Advance"
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

// User domain errors
var (
	ErrUserNotFound   = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrInvalidUserID  = NewDomainError("user", "Validate", ErrInvalidID, "invalid user ID")
	ErrNegativePoints = NewDomainError("user", "AddPoints", ErrNegativeValue, "points delta cannot be negative")
)

// Content domain errors
var (
	ErrContentNotFound  = NewDomainError("content", "Find", ErrNotFound, "content not found")
	ErrInvalidContentID = NewDomainError("content", "Validate", ErrInvalidID, "invalid content ID")
)

// Progress domain errors
var (
	ErrProgressNotFound  = NewDomainError("progress", "Find", ErrNotFound, "progress record not found")
	ErrInvalidStatus     = NewDomainError("progress", "Validate", ErrInvalidInput, "invalid progress status")
	ErrInvalidPercentage = NewDomainError("progress", "Validate", ErrValueOutOfRange, "progress percentage must be between 0 and 100")
)

// Badge domain errors
var (
	ErrBadgeNotFound       = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrBadgeAlreadyGranted = NewDomainError("badge", "Grant", ErrAlreadyExists, "badge already granted")
	ErrUnknownRequirement  = NewDomainError("badge", "Parse", ErrInvalidInput, "unknown badge requirement kind")
)

// Challenge domain errors
var (
	ErrChallengeNotFound    = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrChallengeExpired     = NewDomainError("challenge", "Advance", ErrExpired, "challenge has expired")
	ErrChallengeCompleted   = NewDomainError("challenge", "Advance", ErrInvalidState, "challenge already completed")
	ErrChallengeAccepted    = NewDomainError("challenge", "Accept", ErrAlreadyExists, "challenge already accepted")
	ErrChallengeNotAccepted = NewDomainError("challenge", "Advance", ErrNotFound, "challenge not accepted by user")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrNotificationFailed   = NewDomainError("notification", "Emit", ErrStoreUnavailable, "failed to record notification")
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
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsInvariantViolation checks if the error reports a duplicate application of a
// side effect guarded at the storage layer. Such errors are treated as
// "already applied" and are not surfaced to callers.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrAlreadyApplied)
}

// IsRetryable checks if the operation can be retried. Every dispatch step is
// idempotent, so transient store failures are safe to retry whole.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
