// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelect(t *testing.T) {
	query := buildSelect([]string{"id", "status"}, []string{"work_items"}, nil)
	assert.Equal(t, "SELECT id, status FROM work_items", query)

	query = buildSelect([]string{"id"}, []string{"work_items"},
		[]string{"status = 'pending'", "priority < $1"})
	assert.Equal(t, "SELECT id FROM work_items WHERE status = 'pending' AND priority < $1", query)
}

func TestBuildUpdate(t *testing.T) {
	query := buildUpdate("work_items",
		[]string{"status = 'completed'"},
		[]string{"id = $1"})
	assert.Equal(t, "UPDATE work_items SET status = 'completed' WHERE id = $1", query)
}

func TestQueryParams(t *testing.T) {
	params := queryParams{}
	assert.Equal(t, "$1", params.Param("a"))
	assert.Equal(t, "$2", params.Param(42))
	assert.Equal(t, queryParams{"a", 42}, params)
}

func TestFieldList(t *testing.T) {
	params := queryParams{}
	fields := fieldList{}
	fields.Add(&params, "id", "some-id")
	fields.AddDirect("status", "'pending'")
	assert.Equal(t,
		"INSERT INTO work_items(id, status) VALUES($1, 'pending')",
		fields.InsertStatement("work_items"))
	assert.Equal(t, []string{"id=$1", "status='pending'"},
		fields.UpdateChanges())
	assert.Equal(t, queryParams{"some-id"}, params)
}
