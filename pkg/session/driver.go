package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/booker/pkg/clock"
	"github.com/entrhq/booker/pkg/logging"
	"github.com/entrhq/booker/pkg/perception"
	"github.com/entrhq/booker/pkg/profile"
	"github.com/entrhq/booker/pkg/slots"
	"github.com/entrhq/booker/pkg/types"
	"github.com/entrhq/booker/pkg/wizard"
)

var log = logging.NewLogger("session")

// errStopped unwinds a run after a stop command.
var errStopped = errors.New("stopped")

// EventSink receives structured session events.
type EventSink interface {
	Emit(event *types.SessionEvent)
}

// Control is the read side of the operator command.
type Control interface {
	Get() types.ControlCommand
	Wait(ctx context.Context) (types.ControlCommand, error)
}

// Surface is the per-user GUI a run works on.
type Surface struct {
	Observer wizard.Observer
	Actor    wizard.Actor
	Calendar perception.CalendarReader

	// Screenshot captures the screen for failure reports. Optional.
	Screenshot func(ctx context.Context, name string) (string, error)
}

// Options tune a driver.
type Options struct {
	// Consulates is the known consulate catalog per country. When it is
	// non-empty, profile consulates outside it are dropped before a run.
	Consulates map[string][]string

	// PageBudget bounds the calendar pages read per consulate.
	PageBudget int

	// HorizonDays sets the last bookable date relative to the run date.
	// Zero means unbounded.
	HorizonDays int

	// ConfirmSamples is the number of consecutive samples that must show
	// the success reference before a booking counts.
	ConfirmSamples int

	// SettleDelay separates confirmation samples.
	SettleDelay time.Duration

	// ConfirmAttempts bounds the confirmation samples taken.
	ConfirmAttempts int

	// Today returns the evaluation date. Defaults to the local date.
	Today func() types.Date
}

// DefaultOptions returns the default driver options.
func DefaultOptions() Options {
	return Options{
		PageBudget:      slots.DefaultPageBudget,
		ConfirmSamples:  2,
		SettleDelay:     time.Second,
		ConfirmAttempts: 10,
	}
}

// Driver runs sessions. One driver serves every user; runs must not overlap.
type Driver struct {
	machine     *wizard.Machine
	control     Control
	sink        EventSink
	credentials wizard.CredentialSource
	registry    *slots.Registry
	opts        Options

	sleep    clock.SleepFunc
	newRunID func() string
}

// NewDriver creates a driver. registry may be nil.
func NewDriver(machine *wizard.Machine, control Control, sink EventSink, credentials wizard.CredentialSource, registry *slots.Registry, opts Options) *Driver {
	def := DefaultOptions()
	if opts.PageBudget <= 0 {
		opts.PageBudget = def.PageBudget
	}
	if opts.ConfirmSamples <= 0 {
		opts.ConfirmSamples = def.ConfirmSamples
	}
	if opts.ConfirmAttempts < opts.ConfirmSamples {
		opts.ConfirmAttempts = max(def.ConfirmAttempts, opts.ConfirmSamples)
	}
	if opts.Today == nil {
		opts.Today = func() types.Date { return types.DateOf(time.Now()) }
	}
	return &Driver{
		machine:     machine,
		control:     control,
		sink:        sink,
		credentials: credentials,
		registry:    registry,
		opts:        opts,
		sleep:       clock.Sleep,
		newRunID:    func() string { return uuid.New().String() },
	}
}

// SetSleep replaces every delay of the driver and its wizard runners.
func (d *Driver) SetSleep(sleep clock.SleepFunc) {
	d.sleep = sleep
}

// Run drives p through the wizard on surface and returns the single result
// of the run. The result is also emitted to the sink.
func (d *Driver) Run(ctx context.Context, p profile.UserProfile, surface Surface) types.SessionResult {
	r := &run{
		driver:  d,
		id:      d.newRunID(),
		profile: p,
		surface: surface,
		current: d.machine.Initial(),
	}
	r.runner = wizard.NewRunner(d.machine, surface.Observer, surface.Actor, r.onRetry)
	r.runner.SetSleep(d.sleep)
	r.in = wizard.StepInput{Profile: p, Credentials: d.credentials}

	started := time.Now()
	d.emit(types.NewUserStartedEvent(r.id, p.Alias))
	log.Infof("run %s: start %s (%d consulates)", r.id, p.Alias, len(p.Consulates))

	result := r.execute(ctx)

	d.saveRegistry()
	d.emit(types.NewSessionResultEvent(r.id, p.Alias, result, time.Since(started)))
	log.Infof("run %s: %s -> %s", r.id, p.Alias, result)
	return result
}

// Preflight derives the run's constraints and consulate list without
// touching the GUI. It fails when the profile maps to no valid selection.
func (d *Driver) Preflight(p profile.UserProfile) (slots.Constraints, []string, *slots.Engine, error) {
	today := d.opts.Today()
	c := p.Constraints(today)

	var horizon types.Date
	if d.opts.HorizonDays > 0 {
		horizon = today.AddDays(d.opts.HorizonDays)
	}
	engine := slots.NewEngine(d.opts.PageBudget, horizon)

	consulates := d.filterConsulates(p)
	if len(consulates) == 0 {
		return c, nil, engine, fmt.Errorf("none of the consulates %v is offered for %s", p.Consulates, p.Country)
	}
	if ok, reason := engine.Satisfiable(c); !ok {
		return c, consulates, engine, errors.New(reason)
	}
	return c, consulates, engine, nil
}

func (d *Driver) filterConsulates(p profile.UserProfile) []string {
	if len(d.opts.Consulates) == 0 {
		return append([]string(nil), p.Consulates...)
	}

	var known []string
	for country, list := range d.opts.Consulates {
		if strings.EqualFold(country, p.Country) {
			known = list
			break
		}
	}

	var out []string
	for _, c := range p.Consulates {
		for _, k := range known {
			if strings.EqualFold(c, k) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (d *Driver) emit(event *types.SessionEvent) {
	if d.sink != nil {
		d.sink.Emit(event)
	}
}

func (d *Driver) saveRegistry() {
	if d.registry == nil || !d.registry.IsModified() {
		return
	}
	if err := d.registry.Save(); err != nil {
		log.Warnf("failed to save slot registry: %v", err)
	}
}

