package types

import "time"

// SessionEventType defines the type of event emitted while driving a user run.
type SessionEventType string

const (
	EventTypeUserStarted    SessionEventType = "user_started"    // EventTypeUserStarted indicates the orchestrator handed a user to the driver.
	EventTypeStepTransition SessionEventType = "step_transition" // EventTypeStepTransition indicates a wizard step finished with an outcome.
	EventTypeStepRetry      SessionEventType = "step_retry"      // EventTypeStepRetry indicates a step was not rendered yet and will be polled again.
	EventTypeStepReload     SessionEventType = "step_reload"     // EventTypeStepReload indicates a page reload was issued to recover a stalled render.
	EventTypeCheckpoint     SessionEventType = "checkpoint"      // EventTypeCheckpoint indicates the driver paused or resumed at a checkpoint.
	EventTypeSlotFound      SessionEventType = "slot_found"      // EventTypeSlotFound indicates a calendar cell passed the user's constraints.
	EventTypePageAdvance    SessionEventType = "page_advance"    // EventTypePageAdvance indicates the calendar moved to the next page.
	EventTypeSessionResult  SessionEventType = "session_result"  // EventTypeSessionResult carries the single terminal result of a run.
	EventTypeError          SessionEventType = "error"           // EventTypeError indicates a non-terminal error worth reporting (e.g. a screenshot failed).
)

// StepOutcome is the short outcome label attached to transition events.
type StepOutcome string

const (
	OutcomeNext    StepOutcome = "next"
	OutcomeSkipped StepOutcome = "skipped"
	OutcomeRetry   StepOutcome = "retry"
	OutcomeReload  StepOutcome = "reload"
	OutcomeError   StepOutcome = "error"
	OutcomePaused  StepOutcome = "paused"
	OutcomeResumed StepOutcome = "resumed"
	OutcomeStopped StepOutcome = "stopped"
)

// SessionEvent is a structured record handed to the external log sink.
// The driver never formats log lines itself.
type SessionEvent struct {
	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Result is set only on EventTypeSessionResult events.
	Result *SessionResult `json:"result,omitempty"`

	// Error contains error information for error and failed-result events.
	Error string `json:"error,omitempty"`

	// Type indicates the kind of event.
	Type SessionEventType `json:"type"`

	// RunID identifies one user run.
	RunID string `json:"run_id"`

	// User is the profile alias.
	User string `json:"user"`

	// Step is the wizard step the event refers to.
	Step WizardStep `json:"step,omitempty"`

	// Outcome is the step outcome for transition events.
	Outcome StepOutcome `json:"outcome,omitempty"`

	// Attempt is the 1-based poll attempt within the step.
	Attempt int `json:"attempt,omitempty"`

	// Duration is the time spent in the step (or the whole run for results).
	Duration time.Duration `json:"duration_ns,omitempty"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewUserStartedEvent creates a user started event.
func NewUserStartedEvent(runID, user string) *SessionEvent {
	return &SessionEvent{
		Type:      EventTypeUserStarted,
		RunID:     runID,
		User:      user,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// NewStepTransitionEvent creates a step transition event.
func NewStepTransitionEvent(runID, user string, step WizardStep, outcome StepOutcome, attempt int, d time.Duration) *SessionEvent {
	return &SessionEvent{
		Type:      EventTypeStepTransition,
		RunID:     runID,
		User:      user,
		Step:      step,
		Outcome:   outcome,
		Attempt:   attempt,
		Duration:  d,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// NewStepRetryEvent creates a retry event listing the references still missing.
func NewStepRetryEvent(runID, user string, step WizardStep, attempt int, missing []string, reload bool) *SessionEvent {
	eventType, outcome := EventTypeStepRetry, OutcomeRetry
	if reload {
		eventType, outcome = EventTypeStepReload, OutcomeReload
	}
	return &SessionEvent{
		Type:      eventType,
		RunID:     runID,
		User:      user,
		Step:      step,
		Outcome:   outcome,
		Attempt:   attempt,
		Timestamp: time.Now(),
		Metadata:  map[string]interface{}{"missing": missing},
	}
}

// NewCheckpointEvent creates a checkpoint event (paused, resumed or stopped).
func NewCheckpointEvent(runID, user string, step WizardStep, outcome StepOutcome) *SessionEvent {
	return &SessionEvent{
		Type:      EventTypeCheckpoint,
		RunID:     runID,
		User:      user,
		Step:      step,
		Outcome:   outcome,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// NewSlotFoundEvent creates a slot found event.
func NewSlotFoundEvent(runID, user, consulate string, date Date) *SessionEvent {
	return &SessionEvent{
		Type:      EventTypeSlotFound,
		RunID:     runID,
		User:      user,
		Step:      StepCalendarSearch,
		Timestamp: time.Now(),
		Metadata: map[string]interface{}{
			"consulate": consulate,
			"date":      date.String(),
		},
	}
}

// NewPageAdvanceEvent creates a calendar page advance event.
func NewPageAdvanceEvent(runID, user, consulate string, page int) *SessionEvent {
	return &SessionEvent{
		Type:      EventTypePageAdvance,
		RunID:     runID,
		User:      user,
		Step:      StepCalendarSearch,
		Timestamp: time.Now(),
		Metadata: map[string]interface{}{
			"consulate": consulate,
			"page":      page,
		},
	}
}

// NewSessionResultEvent creates the terminal result event of a run.
func NewSessionResultEvent(runID, user string, result SessionResult, d time.Duration) *SessionEvent {
	r := result
	return &SessionEvent{
		Type:      EventTypeSessionResult,
		RunID:     runID,
		User:      user,
		Result:    &r,
		Error:     result.ErrorMessage(),
		Duration:  d,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(runID, user string, step WizardStep, err error) *SessionEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &SessionEvent{
		Type:      EventTypeError,
		RunID:     runID,
		User:      user,
		Step:      step,
		Error:     msg,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}
