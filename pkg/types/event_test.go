package types

import (
	"errors"
	"testing"
	"time"
)

func TestSessionEventType(t *testing.T) {
	tests := []struct {
		eventType SessionEventType
		expected  string
	}{
		{EventTypeUserStarted, "user_started"},
		{EventTypeStepTransition, "step_transition"},
		{EventTypeStepRetry, "step_retry"},
		{EventTypeStepReload, "step_reload"},
		{EventTypeCheckpoint, "checkpoint"},
		{EventTypeSlotFound, "slot_found"},
		{EventTypePageAdvance, "page_advance"},
		{EventTypeSessionResult, "session_result"},
		{EventTypeError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.eventType) != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.eventType)
			}
		})
	}
}

func TestNewStepTransitionEvent(t *testing.T) {
	event := NewStepTransitionEvent("run-1", "alice", StepLogin, OutcomeNext, 2, 3*time.Second)

	if event.Type != EventTypeStepTransition {
		t.Errorf("expected type %q, got %q", EventTypeStepTransition, event.Type)
	}
	if event.Step != StepLogin || event.Outcome != OutcomeNext {
		t.Errorf("unexpected step/outcome: %s/%s", event.Step, event.Outcome)
	}
	if event.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", event.Attempt)
	}
	if event.Duration != 3*time.Second {
		t.Errorf("expected duration 3s, got %s", event.Duration)
	}
	if event.Metadata == nil {
		t.Error("expected metadata to be initialized")
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestNewStepRetryEvent(t *testing.T) {
	retry := NewStepRetryEvent("run-1", "alice", StepPersonalInfo, 1, []string{"field_birthdate"}, false)
	if retry.Type != EventTypeStepRetry || retry.Outcome != OutcomeRetry {
		t.Errorf("unexpected retry event: %s/%s", retry.Type, retry.Outcome)
	}

	reload := NewStepRetryEvent("run-1", "alice", StepPersonalInfo, 4, nil, true)
	if reload.Type != EventTypeStepReload || reload.Outcome != OutcomeReload {
		t.Errorf("unexpected reload event: %s/%s", reload.Type, reload.Outcome)
	}
}

func TestNewSessionResultEvent(t *testing.T) {
	t.Run("booked", func(t *testing.T) {
		res := Booked(NewDate(2025, time.July, 2), "Warsaw")
		event := NewSessionResultEvent("run-1", "alice", res, time.Minute)

		if event.Result == nil {
			t.Fatal("expected result to be attached")
		}
		if event.Result.Kind != ResultBooked {
			t.Errorf("expected booked, got %s", event.Result.Kind)
		}
		if event.Error != "" {
			t.Errorf("expected no error text, got %q", event.Error)
		}
	})

	t.Run("failed carries error text", func(t *testing.T) {
		res := Failed(errors.New("boom"))
		event := NewSessionResultEvent("run-1", "alice", res, time.Minute)

		if event.Error != "boom" {
			t.Errorf("expected error text 'boom', got %q", event.Error)
		}
	})
}

func TestNewErrorEvent_NilError(t *testing.T) {
	event := NewErrorEvent("run-1", "alice", StepLogin, nil)
	if event.Error != "" {
		t.Errorf("expected empty error text, got %q", event.Error)
	}
}
