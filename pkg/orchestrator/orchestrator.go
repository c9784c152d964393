// Package orchestrator owns the user queue. It hands one user at a time to
// the session driver, folds configuration changes into the queue between
// users and reacts to operator commands.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/booker/pkg/logging"
	"github.com/entrhq/booker/pkg/profile"
	"github.com/entrhq/booker/pkg/session"
	"github.com/entrhq/booker/pkg/slots"
	"github.com/entrhq/booker/pkg/types"
)

var log = logging.NewLogger("orchestrator")

// DefaultIdleInterval is how long an empty queue waits before rechecking.
const DefaultIdleInterval = 2 * time.Second

// Driver runs one user session.
type Driver interface {
	Run(ctx context.Context, p profile.UserProfile, surface session.Surface) types.SessionResult
}

// Workspace opens the exclusive per-user GUI session.
type Workspace interface {
	Open(ctx context.Context, p profile.UserProfile) (Lease, error)
}

// Lease is an open per-user session. Close releases the browser and, for
// temporary profiles, removes its data.
type Lease interface {
	Surface() session.Surface
	Close() error
}

// Control is the operator command as seen by the pipeline.
type Control interface {
	Get() types.ControlCommand
	Wait(ctx context.Context) (types.ControlCommand, error)
	Changed() <-chan struct{}
}

// Options tune the orchestrator.
type Options struct {
	// IdleInterval bounds the wait on an empty queue.
	IdleInterval time.Duration

	// ExitWhenIdle runs every queued user once and returns instead of
	// waiting for configuration changes.
	ExitWhenIdle bool

	// Today returns the date registry priority is evaluated on.
	Today func() types.Date

	// Events receives the result of runs that end before the driver
	// starts, such as a browser session that cannot be opened.
	Events session.EventSink
}

// Record is the result of one user run.
type Record struct {
	Alias    string              `json:"alias"`
	Result   types.SessionResult `json:"result"`
	Started  time.Time           `json:"started"`
	Duration time.Duration       `json:"duration_ns"`
}

// Summary collects the records of an orchestrator run.
type Summary struct {
	Records []Record `json:"records"`

	// Stopped is set when the loop ended on an operator stop.
	Stopped bool `json:"stopped"`
}

// Count returns how many records carry kind.
func (s Summary) Count(kind types.ResultKind) int {
	n := 0
	for _, r := range s.Records {
		if r.Result.Kind == kind {
			n++
		}
	}
	return n
}

// Orchestrator sequences user sessions. It is driven from a single goroutine.
type Orchestrator struct {
	store     *profile.Store
	driver    Driver
	workspace Workspace
	control   Control
	registry  *slots.Registry
	opts      Options

	queue   []profile.UserProfile
	applied *profile.Snapshot
	summary Summary
}

// New creates an orchestrator. registry may be nil.
func New(store *profile.Store, driver Driver, workspace Workspace, control Control, registry *slots.Registry, opts Options) *Orchestrator {
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	if opts.Today == nil {
		opts.Today = func() types.Date { return types.DateOf(time.Now()) }
	}
	return &Orchestrator{
		store:     store,
		driver:    driver,
		workspace: workspace,
		control:   control,
		registry:  registry,
		opts:      opts,
	}
}

// Queue returns the aliases waiting to run, in order.
func (o *Orchestrator) Queue() []string {
	out := make([]string, len(o.queue))
	for i, p := range o.queue {
		out[i] = p.Alias
	}
	return out
}

// Run processes the queue until a stop, a cancelled context or, with
// ExitWhenIdle, an empty queue.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if o.registry != nil {
		o.registry.Prune(o.opts.Today())
	}
	o.refresh()

	for {
		proceed, err := o.gate(ctx)
		if err != nil {
			return o.summary, err
		}
		if !proceed {
			o.summary.Stopped = true
			log.Infof("stop requested, leaving %d users queued", len(o.queue))
			return o.summary, nil
		}

		o.refresh()

		if len(o.queue) == 0 {
			if o.opts.ExitWhenIdle {
				log.Infof("queue drained")
				return o.summary, nil
			}
			if err := o.idle(ctx); err != nil {
				return o.summary, err
			}
			continue
		}

		p := o.pop()
		record := o.runOne(ctx, p)
		o.summary.Records = append(o.summary.Records, record)

		switch record.Result.Kind {
		case types.ResultAborted:
			if err := ctx.Err(); err != nil {
				return o.summary, err
			}
			o.summary.Stopped = true
			return o.summary, nil
		case types.ResultNoSlotFound, types.ResultFailed:
			if !o.opts.ExitWhenIdle {
				o.queue = append(o.queue, p)
			}
		}
	}
}

// gate blocks while paused. It reports false on stop.
func (o *Orchestrator) gate(ctx context.Context) (bool, error) {
	cmd := o.control.Get()
	if cmd == types.CommandPause {
		log.Infof("paused between users")
		var err error
		if cmd, err = o.control.Wait(ctx); err != nil {
			return false, err
		}
	}
	if cmd == types.CommandStop {
		return false, nil
	}
	return true, ctx.Err()
}

// idle waits for a configuration change, a command or the idle interval.
func (o *Orchestrator) idle(ctx context.Context) error {
	changed, commanded := o.store.Changed(), o.control.Changed()
	if o.store.Snapshot().Version() != o.applied.Version() || o.control.Get() != types.CommandResume {
		return nil
	}

	timer := time.NewTimer(o.opts.IdleInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-changed:
	case <-commanded:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// refresh folds a newer snapshot into the queue: removed aliases leave,
// changed ones are replaced in place, added ones join at the tail. A changed
// profile that is no longer queued joins again as a fresh request.
func (o *Orchestrator) refresh() {
	snap := o.store.Snapshot()
	if o.applied != nil && snap.Version() == o.applied.Version() {
		return
	}
	diff := snap.Compare(o.applied)
	o.applied = snap
	if diff.Empty() {
		return
	}
	log.Infof("profiles changed: %d added, %d removed, %d changed", len(diff.Added), len(diff.Removed), len(diff.Changed))

	queued := make(map[string]bool, len(o.queue))
	kept := o.queue[:0]
	for _, p := range o.queue {
		next, ok := snap.Get(p.Alias)
		if !ok {
			continue
		}
		kept = append(kept, next)
		queued[p.Alias] = true
	}
	o.queue = kept

	for _, alias := range append(diff.Changed, diff.Added...) {
		if queued[alias] {
			continue
		}
		p, _ := snap.Get(alias)
		o.queue = append(o.queue, p)
		queued[alias] = true
	}
}

// pop removes the next user. Users with a recorded free slot matching their
// constraints go first; otherwise the head of the queue.
func (o *Orchestrator) pop() profile.UserProfile {
	i := o.priority()
	p := o.queue[i]
	o.queue = append(o.queue[:i:i], o.queue[i+1:]...)
	return p
}

func (o *Orchestrator) priority() int {
	if o.registry == nil {
		return 0
	}
	today := o.opts.Today()
	for i, p := range o.queue {
		c := p.Constraints(today)
		for _, consulate := range p.Consulates {
			if o.registry.Matches(p.SlotKey(consulate), c) {
				if i > 0 {
					log.Infof("%s has a known free slot at %s, moving to front", p.Alias, consulate)
				}
				return i
			}
		}
	}
	return 0
}

func (o *Orchestrator) runOne(ctx context.Context, p profile.UserProfile) Record {
	record := Record{Alias: p.Alias, Started: time.Now()}
	log.Infof("next user %s (%d waiting)", p.Alias, len(o.queue))

	lease, err := o.workspace.Open(ctx, p)
	if err != nil {
		if ctx.Err() != nil {
			record.Result = types.Aborted(ctx.Err().Error())
		} else {
			record.Result = types.Failed(fmt.Errorf("failed to open session for %s: %w", p.Alias, err))
			log.Errorf("%v", record.Result.Err)
		}
		record.Duration = time.Since(record.Started)
		if o.opts.Events != nil {
			o.opts.Events.Emit(types.NewSessionResultEvent(uuid.New().String(), p.Alias, record.Result, record.Duration))
		}
		return record
	}

	record.Result = o.driver.Run(ctx, p, lease.Surface())
	if err := lease.Close(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("failed to close session for %s: %v", p.Alias, err)
	}
	record.Duration = time.Since(record.Started)
	log.Infof("user %s finished: %s in %s", p.Alias, record.Result, record.Duration.Round(time.Millisecond))
	return record
}
