// Package session drives one user through the booking wizard.
//
// A Driver run is strictly sequential: pre-flight constraint checks, login,
// the form steps, then the calendar search for each of the user's consulates
// in listed order, and finally submission and a confirmation observation.
// Before every step transition, and between calendar pages, the driver
// consults the control state. Pause blocks the run in place; stop unwinds it
// and yields Aborted("stopped"). Once the booking is submitted stop is
// deferred until the confirmation observation completes, so a run never
// leaves a half-submitted form behind.
//
// Every run produces exactly one SessionResult, which is also emitted to
// the event sink together with one event per step transition.
package session
