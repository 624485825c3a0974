// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package runner

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// limiter is a token bucket shared by all of a runner's workers,
// bounding the aggregate claim rate against upstream services.  A
// rate of zero disables limiting.
type limiter struct {
	mu     sync.Mutex
	clk    clock.Clock
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

func newLimiter(clk clock.Clock, perSecond float64) *limiter {
	// Allow one second of burst, but always at least one token so
	// fractional rates still make progress.
	burst := perSecond
	if burst < 1 {
		burst = 1
	}
	return &limiter{
		clk:    clk,
		rate:   perSecond,
		burst:  burst,
		tokens: burst,
		last:   clk.Now(),
	}
}

// reserve takes a token, returning how long the caller must wait
// before acting on it.  Zero means go now.
func (l *limiter) reserve() time.Duration {
	if l == nil || l.rate <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	l.tokens--
	if l.tokens >= 0 {
		return 0
	}
	return time.Duration(-l.tokens / l.rate * float64(time.Second))
}

// wait blocks until a token is available.
func (l *limiter) wait() {
	if d := l.reserve(); d > 0 {
		l.clk.Sleep(d)
	}
}
