package types

import "fmt"

// ResultKind is the terminal outcome of one user run.
type ResultKind string

const (
	ResultBooked                  ResultKind = "booked"
	ResultNoSlotFound             ResultKind = "no_slot_found"
	ResultConstraintUnsatisfiable ResultKind = "constraint_unsatisfiable"
	ResultAborted                 ResultKind = "aborted"
	ResultFailed                  ResultKind = "failed"
)

// SessionResult is produced exactly once per user run.
type SessionResult struct {
	Kind ResultKind `json:"kind"`

	// Date and Consulate are set for ResultBooked.
	Date      Date   `json:"date,omitempty"`
	Consulate string `json:"consulate,omitempty"`

	// Reason is set for ResultAborted and ResultConstraintUnsatisfiable.
	Reason string `json:"reason,omitempty"`

	// Err is set for ResultFailed.
	Err error `json:"-"`
}

// Booked builds a successful result.
func Booked(date Date, consulate string) SessionResult {
	return SessionResult{Kind: ResultBooked, Date: date, Consulate: consulate}
}

// NoSlotFound builds the exhausted-search result.
func NoSlotFound() SessionResult {
	return SessionResult{Kind: ResultNoSlotFound}
}

// ConstraintUnsatisfiable builds the pre-flight rejection result.
func ConstraintUnsatisfiable(reason string) SessionResult {
	return SessionResult{Kind: ResultConstraintUnsatisfiable, Reason: reason}
}

// Aborted builds the operator-stop result.
func Aborted(reason string) SessionResult {
	return SessionResult{Kind: ResultAborted, Reason: reason}
}

// Failed builds the error result.
func Failed(err error) SessionResult {
	return SessionResult{Kind: ResultFailed, Err: err}
}

// Requeue reports whether the user should be retried in a later pass.
// NoSlotFound and Failed are transient; everything else is final.
func (r SessionResult) Requeue() bool {
	return r.Kind == ResultNoSlotFound || r.Kind == ResultFailed
}

// ErrorMessage returns the error text for failed results.
func (r SessionResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r SessionResult) String() string {
	switch r.Kind {
	case ResultBooked:
		return fmt.Sprintf("booked(%s @ %s)", r.Date, r.Consulate)
	case ResultAborted, ResultConstraintUnsatisfiable:
		return fmt.Sprintf("%s(%s)", r.Kind, r.Reason)
	case ResultFailed:
		return fmt.Sprintf("failed(%s)", r.ErrorMessage())
	default:
		return string(r.Kind)
	}
}
