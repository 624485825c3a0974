// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package backend

import (
	"testing"

	"github.com/datalode/conveyor/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	var b Backend

	require.NoError(t, b.Set("memory"))
	assert.Equal(t, "memory", b.Implementation)
	assert.Equal(t, "", b.Address)
	assert.Equal(t, "memory", b.String())

	require.NoError(t, b.Set("postgres://user@host/db"))
	assert.Equal(t, "postgres", b.Implementation)
	assert.Equal(t, "//user@host/db", b.Address)
	assert.Equal(t, "postgres://user@host/db", b.String())

	assert.Error(t, b.Set("cassandra:whatever"))
}

func TestOpenMemory(t *testing.T) {
	b := Backend{Implementation: "memory"}
	q, err := b.Open()
	require.NoError(t, err)
	require.NotNil(t, q)
	defer q.Destroy()

	// Each Open is an independent queue.
	q2, err := b.Open()
	require.NoError(t, err)
	defer q2.Destroy()

	created, err := q.Enqueue(&queue.WorkItem{
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   "42",
		RequestURI:   "https://example.com/42",
	})
	require.NoError(t, err)
	require.True(t, created)

	stats, err := q2.Summarize(queue.ItemFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total())
}

func TestOpenUnknown(t *testing.T) {
	b := Backend{Implementation: "cassandra"}
	_, err := b.Open()
	assert.Error(t, err)
}
