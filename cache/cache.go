// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache provides a dedupe-key cache in front of a queue
// backend.  The cache wraps some other backend; most methods pass
// straight through, but Enqueue and Exists consult a fixed-size LRU
// set of dedupe keys first, so crawl frontiers that rediscover the
// same resources over and over skip the round trip to storage.
//
// Only positive knowledge is cached: a key enters the set when the
// backend reports the item exists (or was just created), and absence
// is always checked against the backend, since another process may
// have enqueued the item meanwhile.  Items are never deleted from the
// queue, so a cached key can only go stale by Destroy, which clears
// the set.
package cache

import (
	"github.com/datalode/conveyor/queue"
)

// DefaultSize is the dedupe-key capacity used by New.
const DefaultSize = 100000

type cache struct {
	queue.Backend
	keys *lru
}

// New creates a caching front with the default capacity, wrapping
// some other backend.
func New(backend queue.Backend) queue.Backend {
	return NewWithSize(backend, DefaultSize)
}

// NewWithSize creates a caching front holding up to size dedupe keys.
func NewWithSize(backend queue.Backend, size int) queue.Backend {
	return &cache{
		Backend: backend,
		keys:    newLRU(size),
	}
}

func (c *cache) Enqueue(item *queue.WorkItem) (bool, error) {
	key, err := item.DedupeKey()
	if err != nil {
		return false, err
	}
	if c.keys.Contains(key) {
		return false, nil
	}
	created, err := c.Backend.Enqueue(item)
	if err != nil {
		return false, err
	}
	// Created or already durable, either way the key now exists.
	c.keys.Put(key)
	return created, nil
}

func (c *cache) Exists(dedupeKey string) (bool, error) {
	if c.keys.Contains(dedupeKey) {
		return true, nil
	}
	present, err := c.Backend.Exists(dedupeKey)
	if err != nil {
		return false, err
	}
	if present {
		c.keys.Put(dedupeKey)
	}
	return present, nil
}

func (c *cache) Destroy() error {
	c.keys.Clear()
	return c.Backend.Destroy()
}
