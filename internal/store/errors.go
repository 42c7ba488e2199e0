package store

import "errors"

var (
	// ErrConflict means the requested interval overlaps a blocking
	// appointment, or the veterinarian's booking lock could not be taken in
	// time.
	ErrConflict = errors.New("appointment slot conflict")
	ErrNotFound = errors.New("not found")
	// ErrIdempotencyConflict means an idempotency key was reused for a
	// different request.
	ErrIdempotencyConflict = errors.New("idempotency key reused with different input")
	// ErrBusy means a state change could not lock its appointment in time
	// because another request holds it.
	ErrBusy = errors.New("appointment is locked by another request")
)
