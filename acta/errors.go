/*
errors.go - Centralized error taxonomy for the acta engine

PURPOSE:
  Every way a lifecycle operation can be refused, in one place. These
  are business-meaningful outcomes, not transient faults: callers are
  expected to surface them, not retry them. The one retryable case is
  ErrStaleVersion, where the loser of a concurrent write should re-read
  and decide again.

USAGE:
  Match with errors.Is for the kind, errors.As for the structured
  variants that carry context:

    if errors.Is(err, acta.ErrValidationFailed) {
        var vf *acta.ValidationFailedError
        errors.As(err, &vf)
        // vf.Metrics.Errors holds the human-readable explanations
    }
*/
package acta

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an operation references an Acta that
	// does not exist.
	ErrNotFound = errors.New("acta not found")

	// ErrConflict is returned by Create when the composite key already
	// has an Acta.
	ErrConflict = errors.New("acta already exists for key")

	// ErrStaleVersion is returned when the optimistic-concurrency token
	// presented by a writer no longer matches the stored version.
	ErrStaleVersion = errors.New("stale version")

	// ErrNotEditable is returned by Save when the Acta is not in DRAFT.
	ErrNotEditable = errors.New("acta not editable")

	// ErrInvalidTransition is returned when a lifecycle transition is
	// attempted from a state that does not permit it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrValidationFailed is returned by Lock/Publish when freshly
	// computed metrics contain errors or weights are not exactly 100.
	ErrValidationFailed = errors.New("validation failed")

	// ErrRulesUnavailable is returned when no grading rules are
	// configured for the Acta's education level. Blocks Validate, Lock
	// and Publish; the engine never assumes default rules.
	ErrRulesUnavailable = errors.New("grading rules unavailable for level")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StaleVersionError reports the version mismatch that lost the race.
type StaleVersionError struct {
	Ref      Ref
	Expected int64 // version the writer presented
	Actual   int64 // version currently stored
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("stale version for %s: presented %d, stored %d",
		e.Ref, e.Expected, e.Actual)
}

func (e *StaleVersionError) Unwrap() error { return ErrStaleVersion }

// InvalidTransitionError reports the refused edge.
type InvalidTransitionError struct {
	Ref  Ref
	From Status
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s acta %s from status %s", e.Op, e.Ref, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationFailedError carries the freshly computed metrics so callers
// can display the exact violations verbatim.
type ValidationFailedError struct {
	Ref     Ref
	Metrics ValidationMetrics
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("acta %s failed validation with %d error(s)", e.Ref, len(e.Metrics.Errors))
}

func (e *ValidationFailedError) Unwrap() error { return ErrValidationFailed }

// IsRetryable returns true if the error might succeed after a re-read.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleVersion)
}
