package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when the caller lacks the role or project access for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when there is no authenticated caller
	ErrUnauthorized = errors.New("unauthorized")
)

// Not found errors
var (
	ErrProjectNotFound           = errors.New("project not found")
	ErrContractNotFound          = errors.New("contract not found")
	ErrPeriodNotFound            = errors.New("period not found")
	ErrMeasurementItemNotFound   = errors.New("measurement item not found")
	ErrMeasurementDetailNotFound = errors.New("measurement detail not found")
)

// Conflict errors
var (
	ErrDuplicateProjectCode = errors.New("project with this code already exists")

	// ErrHasDependents is returned when deleting a record that is still referenced
	ErrHasDependents = errors.New("cannot delete a record that is still referenced")

	// ErrPeriodArchived is returned when creating a detail in an archived period
	ErrPeriodArchived = errors.New("period is archived")

	// ErrMeasurementDetailApproved is returned for any mutation of an approved detail
	ErrMeasurementDetailApproved = errors.New("approved measurement details cannot be changed")

	// ErrMeasurementDetailAlreadyReviewed is returned when reviewing a detail that is no longer pending
	ErrMeasurementDetailAlreadyReviewed = errors.New("measurement detail has already been reviewed")

	// ErrConcurrentModification is returned when the detail changed status while the request was processed
	ErrConcurrentModification = errors.New("measurement detail was modified concurrently, reload and retry")
)

// Relationship errors, reported as bad requests
var (
	ErrInconsistentSelection = errors.New("project, contract, period and item do not belong together")
	ErrInvalidDateRange      = errors.New("end date must not be before start date")
)
