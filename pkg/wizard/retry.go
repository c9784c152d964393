package wizard

import (
	"math"
	"time"
)

// RetryPolicy bounds how long a step may take to render.
type RetryPolicy struct {
	// Base is the delay after the first failed poll.
	Base time.Duration `yaml:"base"`

	// Factor multiplies the delay after every further failed poll.
	Factor float64 `yaml:"factor"`

	// Max caps the delay.
	Max time.Duration `yaml:"max"`

	// MaxAttempts is the number of polls before the step fails with
	// template_not_found.
	MaxAttempts int `yaml:"max_attempts"`

	// ReloadAfter requests a page reload after this many consecutive
	// failed polls. Zero disables reloads.
	ReloadAfter int `yaml:"reload_after"`
}

// DefaultRetryPolicy returns the default policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:        500 * time.Millisecond,
		Factor:      1.5,
		Max:         8 * time.Second,
		MaxAttempts: 10,
		ReloadAfter: 4,
	}
}

// Delay returns the wait after failed poll number attempt (1-based):
// Base * Factor^(attempt-1), capped at Max.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.Base) * math.Pow(factor, float64(attempt-1))
	if p.Max > 0 && d > float64(p.Max) {
		return p.Max
	}
	return time.Duration(d)
}

// withDefaults fills unset fields from DefaultRetryPolicy.
func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.Base <= 0 {
		p.Base = def.Base
	}
	if p.Factor <= 0 {
		p.Factor = def.Factor
	}
	if p.Max <= 0 {
		p.Max = def.Max
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.ReloadAfter < 0 {
		p.ReloadAfter = 0
	}
	return p
}
