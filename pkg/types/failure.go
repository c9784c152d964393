package types

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a session could not complete.
type FailureKind string

const (
	FailureTemplateNotFound        FailureKind = "template_not_found"        // FailureTemplateNotFound means a step never rendered within the retry budget.
	FailureConstraintUnsatisfiable FailureKind = "constraint_unsatisfiable" // FailureConstraintUnsatisfiable means the profile maps to no valid selection.
	FailureNoSlotFound             FailureKind = "no_slot_found"            // FailureNoSlotFound means the calendar search was exhausted.
	FailureAborted                 FailureKind = "aborted"                  // FailureAborted means an operator stopped the run.
	FailureActionFailed            FailureKind = "action_failed"            // FailureActionFailed means an input primitive returned an error.
	FailurePerceptionFailed        FailureKind = "perception_failed"        // FailurePerceptionFailed means the locator itself errored.
	FailureUnconfirmedBooking      FailureKind = "unconfirmed_booking"      // FailureUnconfirmedBooking means the success screen did not hold.
	FailureCredentialUnavailable   FailureKind = "credential_unavailable"   // FailureCredentialUnavailable means the credential handle could not be resolved.
)

// ErrTemplateNotFound is matched by errors.Is for any StepFailure of kind
// FailureTemplateNotFound.
var ErrTemplateNotFound = errors.New("template not found")

// StepFailure is the typed error produced by the wizard and the session driver.
type StepFailure struct {
	Kind       FailureKind
	Step       WizardStep
	Message    string
	References []string
	Attempts   int
	Err        error
}

func (e *StepFailure) Error() string {
	msg := fmt.Sprintf("%s at step %s: %s", e.Kind, e.Step, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StepFailure) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTemplateNotFound) match template failures.
func (e *StepFailure) Is(target error) bool {
	return target == ErrTemplateNotFound && e.Kind == FailureTemplateNotFound
}

// FailureKindOf extracts the failure kind of err, or "" when err is not a StepFailure.
func FailureKindOf(err error) FailureKind {
	var sf *StepFailure
	if errors.As(err, &sf) {
		return sf.Kind
	}
	return ""
}
