package actions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/entrhq/booker/pkg/clock"
	"github.com/entrhq/booker/pkg/types"
)

// ErrTargetNotObserved is returned when a click targets a reference that is
// not present in the observation the sequence was planned against.
var ErrTargetNotObserved = errors.New("target reference not observed")

// Options tune the human-like timing.
type Options struct {
	// TypingMin and TypingMax bound the pause after each typed character.
	TypingMin time.Duration `yaml:"typing_min"`
	TypingMax time.Duration `yaml:"typing_max"`

	// MoveSteps is the number of points on each bezier mouse path.
	MoveSteps int `yaml:"move_steps"`

	// StepDelay is the pause between mouse path points.
	StepDelay time.Duration `yaml:"step_delay"`

	// AnchorRadius is the maximum distance of the random bezier anchors
	// from the path endpoints.
	AnchorRadius float64 `yaml:"anchor_radius"`

	// ActionPause is the pause after every action.
	ActionPause time.Duration `yaml:"action_pause"`

	// PasteSecrets pastes secrets through a Paster device instead of typing
	// them character by character.
	PasteSecrets bool `yaml:"paste_secrets"`
}

// DefaultOptions returns the default timing.
func DefaultOptions() Options {
	return Options{
		TypingMin:    50 * time.Millisecond,
		TypingMax:    120 * time.Millisecond,
		MoveSteps:    30,
		StepDelay:    3 * time.Millisecond,
		AnchorRadius: 100,
		ActionPause:  150 * time.Millisecond,
	}
}

// Humanizer plays sequences on a Device with bezier mouse paths and jittered
// typing. It never consults the control state: a sequence runs to completion
// or fails.
type Humanizer struct {
	device Device
	opts   Options

	mu  sync.Mutex
	rng *rand.Rand

	sleep clock.SleepFunc
}

// NewHumanizer creates a humanizer. A zero seed uses the current time.
func NewHumanizer(device Device, opts Options, seed int64) *Humanizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MoveSteps < 2 {
		opts.MoveSteps = 2
	}
	if opts.TypingMax < opts.TypingMin {
		opts.TypingMax = opts.TypingMin
	}
	return &Humanizer{
		device: device,
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)),
		sleep:  clock.Sleep,
	}
}

// SetSleep replaces the sleep function; tests use it to run without delays.
func (h *Humanizer) SetSleep(sleep clock.SleepFunc) {
	h.sleep = sleep
}

// Act runs seq against the locations in observed. Secrets in seq are wiped
// before Act returns.
func (h *Humanizer) Act(ctx context.Context, seq Sequence, observed types.ObservedState) error {
	defer seq.Wipe()

	for i, a := range seq {
		if err := h.do(ctx, a, observed); err != nil {
			return &ActionError{Index: i, Action: a.String(), Err: err}
		}
		if h.opts.ActionPause > 0 && a.Kind != KindWait {
			if err := h.sleep(ctx, h.opts.ActionPause); err != nil {
				return &ActionError{Index: i, Action: a.String(), Err: err}
			}
		}
	}
	return nil
}

func (h *Humanizer) do(ctx context.Context, a Action, observed types.ObservedState) error {
	switch a.Kind {
	case KindClick:
		m, ok := observed.Get(a.Reference)
		if !ok || !m.Found {
			return fmt.Errorf("%w: %s", ErrTargetNotObserved, a.Reference)
		}
		if err := h.move(ctx, m.Location); err != nil {
			return err
		}
		return h.device.Click(ctx)

	case KindClickAt:
		if err := h.move(ctx, a.At); err != nil {
			return err
		}
		return h.device.Click(ctx)

	case KindType:
		if a.Secret != nil {
			return h.typeSecret(ctx, a.Secret)
		}
		for _, r := range a.Text {
			if err := h.typeRune(ctx, r); err != nil {
				return err
			}
		}
		return nil

	case KindPress:
		return h.device.Press(ctx, a.Key)

	case KindScroll:
		return h.device.Scroll(ctx, a.Scroll)

	case KindUpload:
		return h.device.Upload(ctx, a.Reference, a.Text)

	case KindReload:
		return h.device.Reload(ctx)

	case KindWait:
		return h.sleep(ctx, a.Wait)
	}
	return fmt.Errorf("unknown action kind %q", a.Kind)
}

func (h *Humanizer) typeSecret(ctx context.Context, secret []byte) error {
	if p, ok := h.device.(Paster); ok && h.opts.PasteSecrets {
		return p.Paste(ctx, secret)
	}
	for rest := secret; len(rest) > 0; {
		r, size := utf8.DecodeRune(rest)
		if err := h.typeRune(ctx, r); err != nil {
			return err
		}
		rest = rest[size:]
	}
	return nil
}

func (h *Humanizer) typeRune(ctx context.Context, r rune) error {
	if err := h.device.TypeRune(ctx, r); err != nil {
		return err
	}
	return h.sleep(ctx, h.jitter(h.opts.TypingMin, h.opts.TypingMax))
}

// move follows a cubic bezier curve from the current pointer position to
// target through two random anchors near the endpoints.
func (h *Humanizer) move(ctx context.Context, target types.Location) error {
	for _, p := range h.Path(h.device.Position(), target) {
		if err := h.device.MoveTo(ctx, p); err != nil {
			return err
		}
		if h.opts.StepDelay > 0 {
			if err := h.sleep(ctx, h.opts.StepDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// Path returns the mouse path from start to end. The last point is end.
func (h *Humanizer) Path(start, end types.Location) []types.Location {
	anchors := [4]types.Location{
		start,
		h.near(start, h.opts.AnchorRadius),
		h.near(end, h.opts.AnchorRadius),
		end,
	}

	steps := h.opts.MoveSteps
	path := make([]types.Location, 0, steps)
	for i := 1; i <= steps; i++ {
		path = append(path, bezier(anchors, float64(i)/float64(steps)))
	}
	path[len(path)-1] = end
	return path
}

// near returns a point at a random angle and a distance in
// [0.3*radius, radius] from p.
func (h *Humanizer) near(p types.Location, radius float64) types.Location {
	if radius <= 0 {
		return p
	}
	h.mu.Lock()
	angle := h.rng.Float64() * 2 * math.Pi
	r := radius * (0.3 + 0.7*h.rng.Float64())
	h.mu.Unlock()
	return types.Location{X: p.X + r*math.Cos(angle), Y: p.Y + r*math.Sin(angle)}
}

func (h *Humanizer) jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo + time.Duration(h.rng.Int63n(int64(hi-lo)+1))
}

// bezier evaluates the cubic curve at t with De Casteljau's algorithm.
func bezier(pts [4]types.Location, t float64) types.Location {
	n := len(pts)
	for n > 1 {
		for i := 0; i < n-1; i++ {
			pts[i] = types.Location{
				X: (1-t)*pts[i].X + t*pts[i+1].X,
				Y: (1-t)*pts[i].Y + t*pts[i+1].Y,
			}
		}
		n--
	}
	return pts[0]
}

