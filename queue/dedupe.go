// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package queue

import "strings"

// MaxDedupeKeyLength bounds the dedupe key so it fits in the backing
// store's unique index.
const MaxDedupeKeyLength = 800

// DedupeKey derives the deterministic deduplication key for a
// classification tuple.  The key is case-sensitive and formed by
// joining the tuple with colons; a non-empty variant contributes a
// fifth segment.
func DedupeKey(system, name, resourceType, resourceID string, variant Variant) (string, error) {
	parts := []string{system, name, resourceType, resourceID}
	if variant != "" {
		parts = append(parts, string(variant))
	}
	key := strings.Join(parts, ":")
	if len(key) > MaxDedupeKeyLength {
		return "", ErrDedupeKeyTooLong
	}
	return key, nil
}

// DedupeKey returns the item's deduplication key.
func (item *WorkItem) DedupeKey() (string, error) {
	return DedupeKey(item.SourceSystem, item.SourceName, item.ResourceType, item.ResourceID, item.Variant)
}
