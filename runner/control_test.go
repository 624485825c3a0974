// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControlStates(t *testing.T) {
	c := NewControl()
	assert.Equal(t, "running", c.State())
	assert.False(t, c.Paused())
	assert.False(t, c.Draining())

	c.Pause()
	assert.Equal(t, "paused", c.State())
	assert.True(t, c.Paused())

	c.Resume()
	assert.Equal(t, "running", c.State())

	c.Drain()
	assert.Equal(t, "draining", c.State())
	assert.True(t, c.Draining())

	// A drain outranks a pause in status reporting.
	c.Pause()
	assert.Equal(t, "draining", c.State())
}
