package connection

import (
	"math/rand"
	"time"
)

// Backoff defines the reconnect delay policy.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Max caps the delay growth.
	Max time.Duration
	// Factor multiplies the delay for each further attempt.
	Factor float64
	// Jitter randomizes the delay as a fraction of it (0-1).
	Jitter float64
}

// DefaultBackoff matches the feed operator's recommended retry pacing.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   5 * time.Second,
		Max:    60 * time.Second,
		Factor: 2.0,
	}
}

// Next returns the delay before the given attempt (1-based):
// min(Base * Factor^(attempt-1), Max), optionally jittered.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 5 * time.Second
	}
	max := b.Max
	if max <= 0 {
		max = 60 * time.Second
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := base
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}
	if wait > max {
		wait = max
	}

	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait + time.Duration(rand.Float64()*delta)
}
