// Package backoff computes delays between retry attempts.
package backoff

import (
	"math/rand"
	"time"
)

// Exponential grows the delay geometrically per attempt, capped at Max.
// With Jitter zero the schedule is deterministic: Initial * Multiplier^attempt.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter in [0,1] adds up to that fraction of the delay at random.
	Jitter float64
}

// Delay returns the pause before retry number attempt+1. attempt is
// zero-based: Delay(0) is the pause after the first failed attempt.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the exponent to avoid overflow.
	if attempt > 30 {
		attempt = 30
	}

	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	d := time.Duration(float64(e.Initial) * Pow(multiplier, attempt))
	if e.Max > 0 && (d < 0 || d > e.Max) {
		d = e.Max
	}

	jitter := e.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		extra := time.Duration(float64(d) * jitter * rand.Float64())
		if e.Max > 0 && d+extra > e.Max {
			d = e.Max
		} else {
			d += extra
		}
	}
	return d
}

// Pow computes base^exponent for non-negative integer exponents.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
