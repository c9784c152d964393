// Package perception turns raw screen matches into ObservedState samples.
package perception

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/booker/pkg/types"
)

// DefaultThreshold is the minimum confidence for a reference to count as seen.
const DefaultThreshold = 0.8

// Locator finds a visual reference on screen. It returns a Match with
// Found=false when the reference is not visible; an error means the
// locator itself failed.
type Locator interface {
	Locate(ctx context.Context, reference string, threshold float64) (types.Match, error)
}

// CalendarReader reads the calendar currently rendered on screen.
type CalendarReader interface {
	ReadCalendar(ctx context.Context) (types.CalendarView, error)
}

// Adapter samples a set of references in one cycle.
type Adapter struct {
	locator   Locator
	threshold float64
	now       func() time.Time
}

// NewAdapter creates an adapter. A threshold outside (0, 1] selects
// DefaultThreshold.
func NewAdapter(locator Locator, threshold float64) *Adapter {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Adapter{locator: locator, threshold: threshold, now: time.Now}
}

// Threshold returns the confidence threshold used for every reference.
func (a *Adapter) Threshold() float64 {
	return a.threshold
}

// Observe locates every reference once and returns the sample. Duplicate
// references are located once. Matches below the threshold are recorded as
// not found.
func (a *Adapter) Observe(ctx context.Context, refs []string) (types.ObservedState, error) {
	obs := types.NewObservedState(a.now())
	for _, ref := range refs {
		if _, done := obs.Get(ref); done {
			continue
		}
		if err := ctx.Err(); err != nil {
			return obs, err
		}

		m, err := a.locator.Locate(ctx, ref, a.threshold)
		if err != nil {
			return obs, fmt.Errorf("failed to locate %q: %w", ref, err)
		}
		m.Reference = ref
		if m.Confidence < a.threshold {
			m.Found = false
		}
		obs.Add(m)
	}
	return obs, nil
}
