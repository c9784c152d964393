// Package clock holds the context-aware sleep shared by every polling and
// pacing loop. Components take a SleepFunc so tests can run without delays.
package clock

import (
	"context"
	"time"
)

// SleepFunc pauses for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d. It returns ctx.Err() if ctx ends first, and returns
// immediately with ctx.Err() when d is not positive.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoSleep returns ctx.Err() without waiting.
func NoSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
