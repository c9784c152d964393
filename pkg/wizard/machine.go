// Package wizard models the booking form as a state machine. The machine is
// pure: given a step, its poll counters and one observation it decides
// whether the step is rendered, needs another poll, or has failed.
package wizard

import (
	"context"
	"fmt"

	"github.com/entrhq/booker/pkg/actions"
	"github.com/entrhq/booker/pkg/profile"
	"github.com/entrhq/booker/pkg/types"
)

// CredentialSource resolves a credential handle into the plaintext key
// password. Callers own the returned slice and must wipe it.
type CredentialSource interface {
	Password(ctx context.Context, ref profile.CredentialRef) ([]byte, error)
}

// StepInput carries the per-run values step plans are built from.
type StepInput struct {
	Profile profile.UserProfile

	// Consulate is the consulate currently being searched.
	Consulate string

	// Cell is the calendar cell picked by the slot search.
	Cell types.CalendarCell

	// Credentials is consulted only by the login plan.
	Credentials CredentialSource
}

// PlanFunc builds the action sequence that completes a rendered step.
type PlanFunc func(ctx context.Context, in StepInput) (actions.Sequence, error)

// StepSpec declares one wizard step.
type StepSpec struct {
	Step types.WizardStep

	// Requires lists references that must all be seen for the step to
	// count as rendered.
	Requires []string

	// Targets adds input-dependent references the plan clicks.
	Targets func(in StepInput) []string

	// SkipIf lists markers meaning the step is already complete, such as
	// the welcome banner of a live login session.
	SkipIf []string

	// Entry lists references that open the step from a neighbouring page.
	// When the step is not rendered, the first one seen is clicked.
	Entry []string

	Plan PlanFunc
	Next types.WizardStep
}

// OutcomeKind classifies the result of Advance.
type OutcomeKind int

const (
	OutcomeNextStep OutcomeKind = iota // OutcomeNextStep means the step is rendered (or skippable).
	OutcomeRetry                       // OutcomeRetry means the step should be polled again.
	OutcomeError                       // OutcomeError means the step failed for good.
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNextStep:
		return "next_step"
	case OutcomeRetry:
		return "retry"
	default:
		return "error"
	}
}

// Outcome is the decision for one poll.
type Outcome struct {
	Kind OutcomeKind
	Step types.WizardStep

	// Next is the step that follows once the plan has run.
	Next types.WizardStep

	// Skip means a SkipIf marker was seen and the plan must not run.
	Skip bool

	// Reload asks the runner to reload the page before the next poll.
	Reload bool

	// Enter is an entry reference to click before the next poll.
	Enter string

	// Missing lists required references that were not seen.
	Missing []string

	// Attempts is the number of polls it took; set by Runner.
	Attempts int

	Failure *types.StepFailure
}

// Cursor is the position of the runner: the step being awaited and its poll
// counters.
type Cursor struct {
	Step types.WizardStep

	// Attempt is the 1-based number of the current poll.
	Attempt int

	// SinceReload counts polls since the last reload, including this one.
	SinceReload int

	Input StepInput
}

// Machine evaluates observations against a step catalog.
type Machine struct {
	steps     map[types.WizardStep]StepSpec
	policy    RetryPolicy
	threshold float64
}

// NewMachine validates the catalog and creates a machine. Every non-terminal
// step must be declared exactly once and point to a known next step.
func NewMachine(steps []StepSpec, policy RetryPolicy, threshold float64) (*Machine, error) {
	m := &Machine{
		steps:     make(map[types.WizardStep]StepSpec, len(steps)),
		policy:    policy.withDefaults(),
		threshold: threshold,
	}
	for _, spec := range steps {
		if spec.Step.IsTerminal() || !spec.Step.Valid() {
			return nil, fmt.Errorf("step %q cannot be declared", spec.Step)
		}
		if _, dup := m.steps[spec.Step]; dup {
			return nil, fmt.Errorf("step %q declared twice", spec.Step)
		}
		if !spec.Next.Valid() {
			return nil, fmt.Errorf("step %q has unknown next step %q", spec.Step, spec.Next)
		}
		if len(spec.Requires) == 0 {
			return nil, fmt.Errorf("step %q requires no references", spec.Step)
		}
		m.steps[spec.Step] = spec
	}
	for _, step := range types.WizardSteps {
		if _, ok := m.steps[step]; !ok {
			return nil, fmt.Errorf("step %q is not declared", step)
		}
	}
	return m, nil
}

// Policy returns the effective retry policy.
func (m *Machine) Policy() RetryPolicy {
	return m.policy
}

// Threshold returns the confidence threshold.
func (m *Machine) Threshold() float64 {
	return m.threshold
}

// Spec returns the declaration of step.
func (m *Machine) Spec(step types.WizardStep) (StepSpec, bool) {
	spec, ok := m.steps[step]
	return spec, ok
}

// Initial returns the first step of every run.
func (m *Machine) Initial() types.WizardStep {
	return types.StepLogin
}

func (m *Machine) required(spec StepSpec, in StepInput) []string {
	refs := append([]string(nil), spec.Requires...)
	if spec.Targets != nil {
		refs = append(refs, spec.Targets(in)...)
	}
	return refs
}

// References lists everything one poll of step must sample.
func (m *Machine) References(step types.WizardStep, in StepInput) []string {
	spec, ok := m.steps[step]
	if !ok {
		return nil
	}
	refs := m.required(spec, in)
	refs = append(refs, spec.SkipIf...)
	refs = append(refs, spec.Entry...)
	return refs
}

// Advance decides what to do with one observation. It is deterministic:
// equal cursors and observations yield equal outcomes.
func (m *Machine) Advance(c Cursor, observed types.ObservedState) Outcome {
	spec, ok := m.steps[c.Step]
	if !ok {
		return Outcome{Kind: OutcomeError, Step: c.Step, Failure: &types.StepFailure{
			Kind:    types.FailureTemplateNotFound,
			Step:    c.Step,
			Message: "step is not part of the wizard",
		}}
	}

	for _, ref := range spec.SkipIf {
		if observed.Seen(ref, m.threshold) {
			return Outcome{Kind: OutcomeNextStep, Step: c.Step, Next: spec.Next, Skip: true}
		}
	}

	missing := observed.Missing(m.required(spec, c.Input), m.threshold)
	if len(missing) == 0 {
		return Outcome{Kind: OutcomeNextStep, Step: c.Step, Next: spec.Next}
	}

	if c.Attempt >= m.policy.MaxAttempts {
		return Outcome{Kind: OutcomeError, Step: c.Step, Missing: missing, Failure: &types.StepFailure{
			Kind:       types.FailureTemplateNotFound,
			Step:       c.Step,
			Message:    fmt.Sprintf("step not rendered after %d attempts", c.Attempt),
			References: missing,
			Attempts:   c.Attempt,
		}}
	}

	out := Outcome{Kind: OutcomeRetry, Step: c.Step, Missing: missing}
	for _, ref := range spec.Entry {
		if observed.Seen(ref, m.threshold) {
			out.Enter = ref
			return out
		}
	}
	if m.policy.ReloadAfter > 0 && c.SinceReload >= m.policy.ReloadAfter {
		out.Reload = true
	}
	return out
}

// Transition validates an edge of the wizard graph. Besides each step's
// declared next step, the calendar may loop onto itself (next page) or go
// back to consulate selection (next consulate), and any step may fail.
func (m *Machine) Transition(from, to types.WizardStep) error {
	if to == types.StepError && !from.IsTerminal() {
		return nil
	}
	if from == types.StepCalendarSearch && (to == types.StepCalendarSearch || to == types.StepConsulateSelect) {
		return nil
	}
	if spec, ok := m.steps[from]; ok && spec.Next == to {
		return nil
	}
	return fmt.Errorf("illegal wizard transition %s -> %s", from, to)
}
