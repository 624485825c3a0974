// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package cache_test

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/datalode/conveyor/cache"
	"github.com/datalode/conveyor/memqueue"
	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/queue/queuetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// The caching front must be indistinguishable from the backend it
// wraps, so the whole conformance suite runs against it.
type Suite struct {
	queuetest.Suite
}

func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.NewBackend = func(clk clock.Clock) (queue.Backend, error) {
		backend := memqueue.NewWithOptions(memqueue.Options{
			Clock:   clk,
			Backoff: queuetest.TestBackoff,
		})
		return cache.New(backend), nil
	}
}

func TestCachedBackend(t *testing.T) {
	suite.Run(t, &Suite{})
}

// countingBackend counts Enqueue and Exists calls that reach the real
// backend.
type countingBackend struct {
	queue.Backend
	enqueues int
	exists   int
}

func (c *countingBackend) Enqueue(item *queue.WorkItem) (bool, error) {
	c.enqueues++
	return c.Backend.Enqueue(item)
}

func (c *countingBackend) Exists(dedupeKey string) (bool, error) {
	c.exists++
	return c.Backend.Exists(dedupeKey)
}

func item(resourceID string) *queue.WorkItem {
	return &queue.WorkItem{
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   resourceID,
		RequestURI:   "https://example.com/" + resourceID,
	}
}

func TestEnqueueShortCircuit(t *testing.T) {
	counting := &countingBackend{Backend: memqueue.New()}
	front := cache.New(counting)

	created, err := front.Enqueue(item("42"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, counting.enqueues)

	// Duplicates stop at the cache.
	for i := 0; i < 3; i++ {
		created, err = front.Enqueue(item("42"))
		require.NoError(t, err)
		assert.False(t, created)
	}
	assert.Equal(t, 1, counting.enqueues)
}

func TestExistsShortCircuit(t *testing.T) {
	counting := &countingBackend{Backend: memqueue.New()}
	front := cache.New(counting)

	key, err := item("42").DedupeKey()
	require.NoError(t, err)

	// Absence is never cached.
	for i := 0; i < 2; i++ {
		present, err := front.Exists(key)
		require.NoError(t, err)
		assert.False(t, present)
	}
	assert.Equal(t, 2, counting.exists)

	// Presence discovered via the backend is cached.
	_, err = counting.Backend.Enqueue(item("42"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		present, err := front.Exists(key)
		require.NoError(t, err)
		assert.True(t, present)
	}
	assert.Equal(t, 3, counting.exists)
}

func TestDestroyClearsCache(t *testing.T) {
	counting := &countingBackend{Backend: memqueue.New()}
	front := cache.New(counting)

	_, err := front.Enqueue(item("42"))
	require.NoError(t, err)
	require.NoError(t, front.Destroy())

	created, err := front.Enqueue(item("42"))
	require.NoError(t, err)
	assert.True(t, created)
}
