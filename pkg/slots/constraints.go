package slots

import (
	"time"

	"github.com/entrhq/booker/pkg/types"
)

// maxScanDays bounds the satisfiability scan when no horizon is configured.
const maxScanDays = 366

// Constraints are the per-user date filters, derived from a profile at the
// time a session starts.
type Constraints struct {
	// Earliest is the earliest acceptable date. It is never before the
	// evaluation date.
	Earliest types.Date

	// Weekdays restricts acceptable dates to these days. Empty means any day.
	Weekdays []time.Weekday

	// Months restricts acceptable dates to these months. Empty means any month.
	Months []time.Month
}

// Allows reports whether d is acceptable: not before Earliest and passing
// every day/month filter.
func (c Constraints) Allows(d types.Date) bool {
	if d.Before(c.Earliest) {
		return false
	}
	return c.passesFilters(d)
}

func (c Constraints) passesFilters(d types.Date) bool {
	if len(c.Weekdays) > 0 {
		ok := false
		for _, wd := range c.Weekdays {
			if d.Weekday() == wd {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(c.Months) > 0 {
		ok := false
		for _, m := range c.Months {
			if d.Month == m {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// FirstAllowed returns the first date in [Earliest, until] that Allows.
// A zero until scans one year past Earliest.
func (c Constraints) FirstAllowed(until types.Date) (types.Date, bool) {
	if until.IsZero() {
		until = c.Earliest.AddDays(maxScanDays)
	}
	for d, i := c.Earliest, 0; !d.After(until) && i <= maxScanDays; d, i = d.AddDays(1), i+1 {
		if c.passesFilters(d) {
			return d, true
		}
	}
	return types.Date{}, false
}
