/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors - Malformed periods, intervals, scores (caller's fault)
  2. Not-found errors - Lookups of unknown clients, members, demands
  3. Integrity errors - Snapshot references an entity that does not exist
  4. Invariant errors - A branch that valid data can never reach

USAGE:
  if errors.Is(err, generic.ErrDanglingReference) {
      // data corruption, not a user mistake
  }

SEE ALSO:
  - api/handlers.go: Maps categories to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidInterval is returned when an allocation ends before it starts.
	ErrInvalidInterval = errors.New("invalid interval: end before start")

	// ErrInvalidBudget is returned for a non-positive SLA hour budget.
	ErrInvalidBudget = errors.New("sla budget must be positive")

	// ErrEmptyPeriod signals proration over a zero-day period.
	ErrEmptyPeriod = errors.New("period has no days")

	// ErrHealthScoreOutOfRange is returned for scores outside [0, 10].
	ErrHealthScoreOutOfRange = errors.New("health score out of range [0, 10]")

	// ErrNegativeAmount is returned for monetary inputs below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrInvalidStatus is returned for an unknown enum value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrPaymentRegistered is returned when approving a design demand that
	// already has a payment.
	ErrPaymentRegistered = errors.New("payment already registered for demand")

	// ErrMalformedDocument is returned for JSON that fails the schema.
	ErrMalformedDocument = errors.New("malformed document")

	ErrClientNotFound = errors.New("client not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrSquadNotFound  = errors.New("squad not found")
	ErrDemandNotFound = errors.New("demand not found")

	// ErrDanglingReference is returned when an entity points at another
	// entity that is absent from the snapshot.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrInvariant marks internal bugs surfaced instead of hidden.
	ErrInvariant = errors.New("internal invariant violated")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ReferenceError reports a snapshot entity pointing at a missing entity.
type ReferenceError struct {
	From     string // e.g. "allocation"
	FromID   string
	Kind     string // e.g. "client"
	TargetID string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %s references unknown %s %s", e.From, e.FromID, e.Kind, e.TargetID)
}

func (e *ReferenceError) Unwrap() error {
	return ErrDanglingReference
}

// InvariantError reports a branch that validated data never reaches.
type InvariantError struct {
	Op  string
	Msg string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrInvariant, e.Msg)
}

func (e *InvariantError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvariant}
	}
	return []error{ErrInvariant, e.Err}
}

// FieldError ties an input error to the offending field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidBudget) ||
		errors.Is(err, ErrHealthScoreOutOfRange) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrPaymentRegistered) ||
		errors.Is(err, ErrMalformedDocument)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrSquadNotFound) ||
		errors.Is(err, ErrDemandNotFound)
}

// IsIntegrityError returns true for corrupted data or internal bugs.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrDanglingReference) || errors.Is(err, ErrInvariant)
}
