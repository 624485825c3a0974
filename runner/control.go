// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package runner

import "sync"

// Control is the operator switchboard for a running worker pool.  It
// is shared between the runner and whatever surface exposes the
// controls (REST, signals); all methods are safe for concurrent use.
type Control struct {
	mu       sync.Mutex
	paused   bool
	draining bool
}

// NewControl returns a control in the running state.
func NewControl() *Control {
	return &Control{}
}

// Pause stops workers from claiming new items.  Items already in
// flight finish normally.
func (c *Control) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume lifts a pause.
func (c *Control) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Drain tells workers to finish the items they hold and exit without
// claiming more.  A drain is not reversible.
func (c *Control) Drain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = true
}

// Paused reports whether claiming is paused.
func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Draining reports whether the pool is draining.
func (c *Control) Draining() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draining
}

// State renders the control state for status reporting.
func (c *Control) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.draining:
		return "draining"
	case c.paused:
		return "paused"
	}
	return "running"
}
