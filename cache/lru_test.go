// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUBasics(t *testing.T) {
	l := newLRU(2)
	assert.False(t, l.Contains("a"))

	l.Put("a")
	l.Put("b")
	assert.True(t, l.Contains("a"))
	assert.True(t, l.Contains("b"))

	// Adding a third key evicts the oldest.
	l.Put("c")
	assert.False(t, l.Contains("a"))
	assert.True(t, l.Contains("b"))
	assert.True(t, l.Contains("c"))
}

func TestLRURefresh(t *testing.T) {
	l := newLRU(2)
	l.Put("a")
	l.Put("b")
	// Refreshing "a" makes "b" the eviction candidate.
	l.Put("a")
	l.Put("c")
	assert.True(t, l.Contains("a"))
	assert.False(t, l.Contains("b"))
	assert.True(t, l.Contains("c"))
}

func TestLRURemoveAndClear(t *testing.T) {
	l := newLRU(4)
	l.Put("a")
	l.Put("b")
	l.Remove("a")
	assert.False(t, l.Contains("a"))
	l.Remove("a")

	l.Clear()
	assert.False(t, l.Contains("b"))
	l.Put("d")
	assert.True(t, l.Contains("d"))
}
