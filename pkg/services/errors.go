package services

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to the HTTP and socket layers. The API layer alone
// maps these to status codes; services never speak HTTP.
var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotAuthorized is returned when the caller lacks the role required
	// for the operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotAMember is returned when the caller is not a member of the
	// journey's group.
	ErrNotAMember = errors.New("not a group member")

	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when an at-most-one invariant would be
	// violated (active journey exists, active solo journey exists).
	ErrConflict = errors.New("conflicting active resource")

	// ErrInvalidTransition is returned for a lifecycle transition the
	// current status does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotYourInstance is returned when an instance belongs to another
	// user.
	ErrNotYourInstance = errors.New("instance belongs to another user")

	// ErrNotActive is returned when an operation requires an ACTIVE
	// instance.
	ErrNotActive = errors.New("instance is not active")

	// ErrAlreadyStarted is returned when the caller already has an active
	// instance on the journey.
	ErrAlreadyStarted = errors.New("instance already started")

	// ErrUnavailable is returned when the store is transiently down.
	ErrUnavailable = errors.New("service unavailable")
)

// ValidationError wraps field-specific validation errors. It unwraps to
// ErrInvalidInput so callers can match the kind without losing the field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
