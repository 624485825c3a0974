// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeKey(t *testing.T) {
	key, err := DedupeKey("wiki", "enwiki", "page", "42", "")
	assert.NoError(t, err)
	assert.Equal(t, "wiki:enwiki:page:42", key)

	key, err = DedupeKey("wiki", "enwiki", "page", "42", "raw")
	assert.NoError(t, err)
	assert.Equal(t, "wiki:enwiki:page:42:raw", key)
}

func TestDedupeKeyVariantsDistinct(t *testing.T) {
	raw, err := DedupeKey("wiki", "enwiki", "page", "42", "raw")
	assert.NoError(t, err)
	html, err := DedupeKey("wiki", "enwiki", "page", "42", "html")
	assert.NoError(t, err)
	assert.NotEqual(t, raw, html)
}

func TestDedupeKeyCaseSensitive(t *testing.T) {
	a, err := DedupeKey("Wiki", "enwiki", "page", "42", "")
	assert.NoError(t, err)
	b, err := DedupeKey("wiki", "enwiki", "page", "42", "")
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDedupeKeyTooLong(t *testing.T) {
	long := strings.Repeat("x", MaxDedupeKeyLength)
	_, err := DedupeKey(long, "n", "t", "i", "")
	assert.Equal(t, ErrDedupeKeyTooLong, err)

	// Exactly at the limit is fine.
	exact := strings.Repeat("x", MaxDedupeKeyLength-len(":n:t:i"))
	key, err := DedupeKey(exact, "n", "t", "i", "")
	assert.NoError(t, err)
	assert.Len(t, key, MaxDedupeKeyLength)
}

func TestItemDedupeKey(t *testing.T) {
	item := WorkItem{
		SourceSystem: "openalex",
		SourceName:   "works",
		ResourceType: "work",
		ResourceID:   "W123",
		Variant:      "json",
	}
	key, err := item.DedupeKey()
	assert.NoError(t, err)
	assert.Equal(t, "openalex:works:work:W123:json", key)
}
