/*
errors.go - Centralized error types for the tracker core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify failures with errors.Is against the sentinels and
  pull details out with errors.As.

ERROR CATEGORIES:
  1. NotFound   - Entity/record absent, or not owned by the caller
  2. Validation - Bad input (empty title, missing CSV column, bad period)
  3. Conflict   - Sub-entity limit, uniqueness violation surfaced to users
  4. RowSkip    - A single CSV row was ignored; never aborts an import

OWNERSHIP:
  Ownership is part of every lookup. A record owned by someone else
  produces exactly the same NotFoundError as a missing one.

SEE ALSO:
  - store.go: Store contract that returns these errors
  - api/handlers.go: Maps categories to HTTP status codes
*/
package tracker

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a record is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for invalid client input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a write conflicts with current state.
	ErrConflict = errors.New("conflict")

	// ErrRowSkipped marks a CSV row that was ignored during import.
	ErrRowSkipped = errors.New("row skipped")

	// ErrDuplicateCompletion is returned by a Store when a completion for the
	// same (entity, date) already exists. This is the uniqueness invariant.
	ErrDuplicateCompletion = errors.New("duplicate completion on same day")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "entity", "sub-entity", "completion"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError explains why a write was refused.
type ConflictError struct {
	Reason string
	Err    error // underlying store error, if any
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

func (e *ConflictError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConflict, e.Err}
	}
	return []error{ErrConflict}
}

// RowSkipError records one ignored CSV row. Line is 1-based and counts
// the header.
type RowSkipError struct {
	Line   int
	Reason string
}

func (e *RowSkipError) Error() string {
	return fmt.Sprintf("line %d skipped: %s", e.Line, e.Reason)
}

func (e *RowSkipError) Unwrap() error { return ErrRowSkipped }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// or state, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound)
}

func entityNotFound(id EntityID) error {
	return &NotFoundError{Kind: "entity", ID: int64(id)}
}

func subEntityNotFound(id EntityID) error {
	return &NotFoundError{Kind: "sub-entity", ID: int64(id)}
}
