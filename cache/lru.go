// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package cache

// This file provides a simple LRU set.  There are other
// implementations of the concept, but none of the ones available keys
// a fixed-capacity recency list on plain strings without carrying a
// value alongside, which is all the dedupe-key front needs.

import (
	"container/list"
	"sync"
)

// lru is a least-recently-used set of strings with a fixed capacity.
// It can be safely accessed from multiple goroutines.
type lru struct {
	size      int
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

func newLRU(size int) *lru {
	return &lru{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Contains reports whether a key is in the set.  This runs under a
// reader lock, and so can run concurrently with itself but not with
// Put or Remove.  It does not affect the recency of the key.
func (lru *lru) Contains(key string) bool {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	_, present := lru.index[key]
	return present
}

// Put adds a key to the set, possibly evicting the least recently
// added one.  Re-adding an existing key refreshes its recency.
func (lru *lru) Put(key string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		lru.evictList.MoveToBack(element)
		return
	}

	element := lru.evictList.PushBack(key)
	lru.index[key] = element

	// If this caused the set to go over size, evict from the front.
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		delete(lru.index, head.Value.(string))
		lru.evictList.Remove(head)
	}
}

// Remove takes a key out of the set.  It does nothing if the key is
// not present.
func (lru *lru) Remove(key string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		delete(lru.index, key)
		lru.evictList.Remove(element)
	}
}

// Clear empties the set.
func (lru *lru) Clear() {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	lru.evictList.Init()
	lru.index = make(map[string]*list.Element)
}
