package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	// Adapters map it to 404 / NOT_FOUND consistently.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidState signals an operation attempted against a transaction
	// whose override workflow is not in the required state.
	ErrInvalidState = errors.New("invalid override state")
	// ErrVersionConflict is returned when an optimistic concurrency check
	// fails; the caller must re-read and retry against the latest state.
	ErrVersionConflict = errors.New("row version conflict")
	// ErrValidation covers precondition failures such as an empty override
	// justification. Never used for rule outcomes, which are violations.
	ErrValidation = errors.New("validation error")
)
