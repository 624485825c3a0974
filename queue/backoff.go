// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays for failed work items.  The schedule
// is exponential with jitter:
//
//	delay = Base * 2^(attempt-1) * (1 + u),  u in [0, 1)
//
// capped at Max.  Its zero value is usable and equivalent to
// DefaultBackoff.
type Backoff struct {
	// Base is the delay factor for the first retry.  Zero means 2
	// seconds.
	Base time.Duration

	// Max caps the computed delay.  Zero means 300 seconds.
	Max time.Duration

	// Jitter supplies the random factor u.  Only test code should
	// set this; nil uses the math/rand global source.
	Jitter func() float64
}

// DefaultBackoff is the policy used when callers do not supply one.
var DefaultBackoff = Backoff{
	Base: 2 * time.Second,
	Max:  300 * time.Second,
}

// Delay computes the retry delay for a given attempt count.  attempt
// is the number of claims so far and is at least 1 for any item that
// has failed; smaller values are treated as 1.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base == 0 {
		base = DefaultBackoff.Base
	}
	max := b.Max
	if max == 0 {
		max = DefaultBackoff.Max
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			// Already saturated; jitter cannot bring it back
			// under the cap.
			return max
		}
	}

	u := rand.Float64
	if b.Jitter != nil {
		u = b.Jitter
	}
	delay = time.Duration(float64(delay) * (1 + u()))
	if delay > max {
		delay = max
	}
	return delay
}
