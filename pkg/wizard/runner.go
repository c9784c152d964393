package wizard

import (
	"context"

	"github.com/entrhq/booker/pkg/actions"
	"github.com/entrhq/booker/pkg/clock"
	"github.com/entrhq/booker/pkg/types"
)

// Observer samples a set of references.
type Observer interface {
	Observe(ctx context.Context, refs []string) (types.ObservedState, error)
}

// Actor plays an action sequence against an observation.
type Actor interface {
	Act(ctx context.Context, seq actions.Sequence, observed types.ObservedState) error
}

// RetryFunc is told about every poll that did not find the step rendered.
type RetryFunc func(c Cursor, out Outcome)

// Runner polls the screen until a step renders, reloading or entering the
// step as the machine asks. Every wait is bounded by the retry policy.
type Runner struct {
	machine  *Machine
	observer Observer
	actor    Actor
	onRetry  RetryFunc
	sleep    clock.SleepFunc
}

// NewRunner creates a runner. onRetry may be nil.
func NewRunner(machine *Machine, observer Observer, actor Actor, onRetry RetryFunc) *Runner {
	return &Runner{
		machine:  machine,
		observer: observer,
		actor:    actor,
		onRetry:  onRetry,
		sleep:    clock.Sleep,
	}
}

// SetSleep replaces the backoff sleep; tests use it to run without delays.
func (r *Runner) SetSleep(sleep clock.SleepFunc) {
	r.sleep = sleep
}

// Machine returns the underlying state machine.
func (r *Runner) Machine() *Machine {
	return r.machine
}

// Await polls until step renders. It returns the NextStep outcome and the
// observation that satisfied it, or a *types.StepFailure.
func (r *Runner) Await(ctx context.Context, step types.WizardStep, in StepInput) (Outcome, types.ObservedState, error) {
	c := Cursor{Step: step, Input: in}
	refs := r.machine.References(step, in)
	policy := r.machine.Policy()

	for attempt := 1; ; attempt++ {
		c.Attempt = attempt
		c.SinceReload++

		observed, err := r.observer.Observe(ctx, refs)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, observed, ctx.Err()
			}
			return Outcome{}, observed, &types.StepFailure{
				Kind:     types.FailurePerceptionFailed,
				Step:     step,
				Message:  "observation failed",
				Attempts: attempt,
				Err:      err,
			}
		}

		out := r.machine.Advance(c, observed)
		out.Attempts = attempt
		switch out.Kind {
		case OutcomeNextStep:
			return out, observed, nil
		case OutcomeError:
			return out, observed, out.Failure
		}

		if r.onRetry != nil {
			r.onRetry(c, out)
		}

		switch {
		case out.Enter != "":
			if err := r.actor.Act(ctx, actions.Sequence{actions.Click(out.Enter)}, observed); err != nil {
				return out, observed, r.actionFailure(step, "entering step failed", attempt, err)
			}
		case out.Reload:
			if err := r.actor.Act(ctx, actions.Sequence{actions.Reload()}, observed); err != nil {
				return out, observed, r.actionFailure(step, "reload failed", attempt, err)
			}
			c.SinceReload = 0
		}

		if err := r.sleep(ctx, policy.Delay(attempt)); err != nil {
			return out, observed, err
		}
	}
}

func (r *Runner) actionFailure(step types.WizardStep, msg string, attempt int, err error) error {
	return &types.StepFailure{
		Kind:     types.FailureActionFailed,
		Step:     step,
		Message:  msg,
		Attempts: attempt,
		Err:      err,
	}
}

