package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownField indicates a field key that is not part of the form schema
	ErrUnknownField = errors.New("unknown field")

	// ErrReadOnlyField indicates an attempt to write a computed field
	ErrReadOnlyField = errors.New("field is read-only")

	// ErrFieldTypeMismatch indicates an operation that does not apply to the field's type
	ErrFieldTypeMismatch = errors.New("operation not supported for field type")

	// ErrIndexOutOfRange indicates a list item index outside the current list
	ErrIndexOutOfRange = errors.New("list index out of range")

	// ErrSessionNotFound indicates no open collection session exists for the subject
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionLocked indicates another editor holds the collection lease
	ErrSessionLocked = errors.New("collection is being edited elsewhere")

	// ErrSessionNotReady indicates the session has not finished loading
	ErrSessionNotReady = errors.New("session not ready")

	// ErrSessionClosed indicates the session was closed
	ErrSessionClosed = errors.New("session closed")

	// ErrCollectionCompleted indicates the collection was finalized and accepts no changes
	ErrCollectionCompleted = errors.New("collection already completed")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
