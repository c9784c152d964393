package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/booker/pkg/profile"
	"github.com/entrhq/booker/pkg/slots"
	"github.com/entrhq/booker/pkg/types"
	"github.com/entrhq/booker/pkg/wizard"
)

// run is the state of a single Driver.Run call.
type run struct {
	driver  *Driver
	id      string
	profile profile.UserProfile
	surface Surface
	runner  *wizard.Runner
	in      wizard.StepInput

	// current is the step the wizard is on.
	current types.WizardStep

	// observed is the observation that last satisfied a step.
	observed types.ObservedState
}

func (r *run) execute(ctx context.Context) types.SessionResult {
	c, consulates, engine, err := r.driver.Preflight(r.profile)
	if err != nil {
		log.Infof("run %s: %s rejected before login: %v", r.id, r.profile.Alias, err)
		return types.ConstraintUnsatisfiable(err.Error())
	}

	for _, step := range []types.WizardStep{types.StepLogin, types.StepPersonalInfo, types.StepServiceSelect} {
		if err := r.step(ctx, step); err != nil {
			return r.fail(ctx, err)
		}
	}

	for _, consulate := range consulates {
		r.in.Consulate = consulate
		r.in.Cell = types.CalendarCell{}

		if err := r.step(ctx, types.StepConsulateSelect); err != nil {
			return r.fail(ctx, err)
		}

		cell, found, err := r.search(ctx, engine, c, consulate)
		if err != nil {
			return r.fail(ctx, err)
		}
		if !found {
			continue
		}
		result, err := r.book(ctx, consulate, cell)
		if err != nil {
			return r.fail(ctx, err)
		}
		return result
	}
	return types.NoSlotFound()
}

// step runs one full wizard step: checkpoint, await, plan and act.
func (r *run) step(ctx context.Context, step types.WizardStep) error {
	started := time.Now()
	out, err := r.await(ctx, step, true)
	if err != nil {
		return err
	}
	return r.complete(ctx, out, started)
}

// await moves onto step and polls until it renders. Skipped steps are
// completed here.
func (r *run) await(ctx context.Context, step types.WizardStep, checkpoint bool) (wizard.Outcome, error) {
	if checkpoint {
		if err := r.checkpoint(ctx); err != nil {
			return wizard.Outcome{}, err
		}
	}
	if err := r.enter(step); err != nil {
		return wizard.Outcome{}, err
	}

	out, observed, err := r.runner.Await(ctx, step, r.in)
	if err != nil {
		return out, err
	}
	r.observed = observed
	return out, nil
}

// complete runs the plan of a rendered step and moves to its successor.
func (r *run) complete(ctx context.Context, out wizard.Outcome, started time.Time) error {
	if out.Skip {
		r.driver.emit(types.NewStepTransitionEvent(r.id, r.profile.Alias, out.Step, types.OutcomeSkipped, out.Attempts, time.Since(started)))
		return r.enter(out.Next)
	}

	spec, _ := r.driver.machine.Spec(out.Step)
	seq, err := spec.Plan(ctx, r.in)
	if err != nil {
		var sf *types.StepFailure
		if !errors.As(err, &sf) {
			err = &types.StepFailure{Kind: types.FailureActionFailed, Step: out.Step, Message: "cannot plan step", Err: err}
		}
		return err
	}
	if err := r.surface.Actor.Act(ctx, seq, r.observed); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &types.StepFailure{
			Kind:     types.FailureActionFailed,
			Step:     out.Step,
			Message:  "step actions failed",
			Attempts: out.Attempts,
			Err:      err,
		}
	}

	r.driver.emit(types.NewStepTransitionEvent(r.id, r.profile.Alias, out.Step, types.OutcomeNext, out.Attempts, time.Since(started)))
	return r.enter(out.Next)
}

func (r *run) enter(to types.WizardStep) error {
	if to == r.current {
		return nil
	}
	if err := r.driver.machine.Transition(r.current, to); err != nil {
		return err
	}
	r.current = to
	return nil
}

// checkpoint honours the operator command. Pause blocks until the command
// changes; stop returns errStopped.
func (r *run) checkpoint(ctx context.Context) error {
	cmd := r.driver.control.Get()
	if cmd == types.CommandPause {
		r.driver.emit(types.NewCheckpointEvent(r.id, r.profile.Alias, r.current, types.OutcomePaused))
		log.Infof("run %s: paused before %s", r.id, r.current)

		var err error
		cmd, err = r.driver.control.Wait(ctx)
		if err != nil {
			return err
		}
		if cmd == types.CommandResume {
			r.driver.emit(types.NewCheckpointEvent(r.id, r.profile.Alias, r.current, types.OutcomeResumed))
			log.Infof("run %s: resumed", r.id)
		}
	}
	if cmd == types.CommandStop {
		r.driver.emit(types.NewCheckpointEvent(r.id, r.profile.Alias, r.current, types.OutcomeStopped))
		return errStopped
	}
	return ctx.Err()
}

func (r *run) onRetry(c wizard.Cursor, out wizard.Outcome) {
	r.driver.emit(types.NewStepRetryEvent(r.id, r.profile.Alias, c.Step, c.Attempt, out.Missing, out.Reload))
	if out.Reload {
		log.Debugf("run %s: reloading %s after %d polls", r.id, c.Step, c.Attempt)
	}
}

// search scans the calendar of one consulate.
func (r *run) search(ctx context.Context, engine *slots.Engine, c slots.Constraints, consulate string) (types.CalendarCell, bool, error) {
	if _, err := r.await(ctx, types.StepCalendarSearch, true); err != nil {
		return types.CalendarCell{}, false, err
	}

	key := r.profile.SlotKey(consulate)
	pager := &calendarPager{run: r, consulate: consulate}
	visit := func(ctx context.Context, view types.CalendarView, page int, decision slots.Decision) error {
		if r.driver.registry != nil {
			var free []types.Date
			for _, cell := range view.Cells {
				if cell.Selectable() {
					free = append(free, cell.Date)
				}
			}
			r.driver.registry.Record(key, free...)
		}
		log.Debugf("run %s: %s page %d: %d cells, %s", r.id, consulate, page, len(view.Cells), decision.Kind)
		return nil
	}

	res, err := engine.Search(ctx, pager, c, visit)
	if err != nil {
		if errors.Is(err, errStopped) || ctx.Err() != nil {
			return types.CalendarCell{}, false, err
		}
		var sf *types.StepFailure
		if errors.As(err, &sf) {
			return types.CalendarCell{}, false, sf
		}
		return types.CalendarCell{}, false, &types.StepFailure{
			Kind:     types.FailurePerceptionFailed,
			Step:     types.StepCalendarSearch,
			Message:  fmt.Sprintf("calendar search at %s failed", consulate),
			Attempts: res.Pages,
			Err:      err,
		}
	}

	if res.Decision.Kind != slots.DecisionPick {
		log.Infof("run %s: %s exhausted after %d pages: %s", r.id, consulate, res.Pages, res.Decision.Reason)
		return types.CalendarCell{}, false, nil
	}
	return res.Decision.Cell, true, nil
}

// book picks cell, submits the form and verifies the confirmation.
func (r *run) book(ctx context.Context, consulate string, cell types.CalendarCell) (types.SessionResult, error) {
	r.driver.emit(types.NewSlotFoundEvent(r.id, r.profile.Alias, consulate, cell.Date))
	log.Infof("run %s: picking %s at %s", r.id, cell.Date, consulate)

	if err := r.checkpoint(ctx); err != nil {
		return types.SessionResult{}, err
	}

	started := time.Now()
	r.in.Cell = cell
	pick := wizard.Outcome{Kind: wizard.OutcomeNextStep, Step: types.StepCalendarSearch, Next: types.StepConfirmation, Attempts: 1}
	if err := r.complete(ctx, pick, started); err != nil {
		return types.SessionResult{}, err
	}

	started = time.Now()
	out, err := r.await(ctx, types.StepConfirmation, true)
	if err != nil {
		return types.SessionResult{}, err
	}
	// From the submit click on, stop waits for the confirmation.
	if err := r.complete(ctx, out, started); err != nil {
		return types.SessionResult{}, err
	}

	if err := r.confirm(ctx); err != nil {
		return types.SessionResult{}, err
	}

	if r.driver.registry != nil {
		r.driver.registry.Remove(r.profile.SlotKey(consulate), cell.Date)
	}
	return types.Booked(cell.Date, consulate), nil
}

// confirm requires the success reference on consecutive samples.
func (r *run) confirm(ctx context.Context) error {
	opts := r.driver.opts
	refs := []string{wizard.RefSuccess}
	threshold := r.driver.machine.Threshold()

	streak := 0
	for sample := 1; sample <= opts.ConfirmAttempts; sample++ {
		observed, err := r.surface.Observer.Observe(ctx, refs)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			log.Warnf("run %s: confirmation sample %d failed: %v", r.id, sample, err)
			streak = 0
		case observed.Seen(wizard.RefSuccess, threshold):
			streak++
		default:
			streak = 0
		}
		if streak >= opts.ConfirmSamples {
			return nil
		}
		if err := r.driver.sleep(ctx, opts.SettleDelay); err != nil {
			return err
		}
	}
	return &types.StepFailure{
		Kind:       types.FailureUnconfirmedBooking,
		Step:       types.StepConfirmation,
		Message:    fmt.Sprintf("success screen not held for %d samples", opts.ConfirmSamples),
		References: refs,
		Attempts:   opts.ConfirmAttempts,
	}
}

// fail maps a run error onto its result.
func (r *run) fail(ctx context.Context, err error) types.SessionResult {
	if errors.Is(err, errStopped) {
		return types.Aborted("stopped")
	}
	if ctx.Err() != nil {
		return types.Aborted(ctx.Err().Error())
	}

	step := r.current
	var sf *types.StepFailure
	if errors.As(err, &sf) && sf.Step != "" {
		step = sf.Step
	}
	if r.driver.machine.Transition(r.current, types.StepError) == nil {
		r.current = types.StepError
	}

	event := types.NewErrorEvent(r.id, r.profile.Alias, step, err)
	if r.surface.Screenshot != nil {
		name := fmt.Sprintf("%s-%s-%s", r.profile.Alias, step, r.id)
		if path, shotErr := r.surface.Screenshot(ctx, name); shotErr != nil {
			log.Warnf("run %s: screenshot failed: %v", r.id, shotErr)
		} else {
			event.Metadata["screenshot"] = path
		}
	}
	r.driver.emit(event)
	log.Errorf("run %s: %s failed at %s: %v", r.id, r.profile.Alias, step, err)
	return types.Failed(err)
}

// calendarPager walks the calendar of one consulate.
type calendarPager struct {
	run       *run
	consulate string
	page      int
}

func (p *calendarPager) Current(ctx context.Context) (types.CalendarView, error) {
	return p.run.surface.Calendar.ReadCalendar(ctx)
}

func (p *calendarPager) Next(ctx context.Context) error {
	r := p.run
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	if err := r.driver.machine.Transition(types.StepCalendarSearch, types.StepCalendarSearch); err != nil {
		return err
	}

	observed, err := r.surface.Observer.Observe(ctx, []string{wizard.RefNextPage})
	if err != nil {
		return &types.StepFailure{Kind: types.FailurePerceptionFailed, Step: types.StepCalendarSearch, Message: "observation failed", Err: err}
	}
	if !observed.Seen(wizard.RefNextPage, r.driver.machine.Threshold()) {
		return &types.StepFailure{
			Kind:       types.FailureTemplateNotFound,
			Step:       types.StepCalendarSearch,
			Message:    "next page control not visible",
			References: []string{wizard.RefNextPage},
			Attempts:   1,
		}
	}
	if err := r.surface.Actor.Act(ctx, wizard.NextPagePlan(), observed); err != nil {
		return &types.StepFailure{Kind: types.FailureActionFailed, Step: types.StepCalendarSearch, Message: "paging failed", Err: err}
	}

	if _, err := r.await(ctx, types.StepCalendarSearch, false); err != nil {
		return err
	}
	p.page++
	r.driver.emit(types.NewPageAdvanceEvent(r.id, r.profile.Alias, p.consulate, p.page+1))
	return nil
}
