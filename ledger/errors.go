/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place. The statement engine distinguishes three
  fatal categories with different blast radii:

  1. Computation errors - malformed ledger data (missing price, broken
     reference). Abort the whole run; nothing is written. Consistency of
     the run outranks partial progress.
  2. Template errors - unknown placeholder or malformed template. Caught
     at validation time, before any per-member work begins.
  3. Precondition errors - run already finalized, or no template
     configured. Rejected before the pass starts.

USAGE:
  Callers classify with the helper predicates:

    if ledger.IsPrecondition(err) { ... 409 ... }
    if ledger.IsTemplate(err)     { ... 400 ... }

SEE ALSO:
  - balance.go, merge.go: produce computation errors
  - statement package: produces template and precondition errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrComputation marks malformed ledger data. Fatal for the whole run.
	ErrComputation = errors.New("ledger computation failed")

	// ErrTemplate marks an invalid statement template.
	ErrTemplate = errors.New("invalid statement template")

	// ErrPrecondition marks a run that cannot be regenerated at all.
	ErrPrecondition = errors.New("run precondition failed")

	// ErrRunFinalized is returned when regenerating or finalizing a run
	// whose artifacts have already been sent. Hard error, not a no-op.
	ErrRunFinalized = errors.New("run already finalized")

	// ErrNoTemplate is returned when a run has no statement template.
	ErrNoTemplate = errors.New("no template configured for run")

	// ErrRunNotFound is returned when a referenced run doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrArtifactNotFound is returned when updating or deleting an
	// artifact that no longer exists.
	ErrArtifactNotFound = errors.New("statement artifact not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ComputationError describes malformed ledger data encountered during a
// pass. Member and Category are empty when the error is not tied to one.
type ComputationError struct {
	Member   MemberID
	Category string
	Reason   string
}

func (e *ComputationError) Error() string {
	switch {
	case e.Member != "" && e.Category != "":
		return fmt.Sprintf("computation failed for member %s, category %q: %s",
			e.Member, e.Category, e.Reason)
	case e.Member != "":
		return fmt.Sprintf("computation failed for member %s: %s", e.Member, e.Reason)
	default:
		return "computation failed: " + e.Reason
	}
}

func (e *ComputationError) Unwrap() error { return ErrComputation }

// TemplateError describes an invalid template. Field is "subject" or
// "body"; Token is the offending placeholder, if any.
type TemplateError struct {
	Field string
	Token string
}

func (e *TemplateError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("template %s contains unknown token #%s#", e.Field, e.Token)
	}
	return "malformed template " + e.Field
}

func (e *TemplateError) Unwrap() error { return ErrTemplate }

// PreconditionError wraps the reason a run was rejected before any work.
type PreconditionError struct {
	Run RunID
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("run %s: %v", e.Run, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsComputation reports whether err is a fatal ledger-data error.
func IsComputation(err error) bool { return errors.Is(err, ErrComputation) }

// IsTemplate reports whether err is a template-validation error.
func IsTemplate(err error) bool { return errors.Is(err, ErrTemplate) }

// IsPrecondition reports whether err rejected the run up front.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrRunFinalized) ||
		errors.Is(err, ErrNoTemplate)
}
