// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/datalode/conveyor/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeContentTypes(t *testing.T) {
	body := `{"source_system": "wiki", "resource_id": "42"}`
	for _, contentType := range []string{
		"application/json",
		"text/json",
		JSONMediaType,
		V1JSONMediaType,
		V1JSONMediaType + "; charset=utf-8",
	} {
		var item Item
		err := Decode(contentType, strings.NewReader(body), &item)
		if assert.NoError(t, err, contentType) {
			assert.Equal(t, "wiki", item.SourceSystem, contentType)
			assert.Equal(t, "42", item.ResourceID, contentType)
		}
	}
}

func TestDecodeUnsupported(t *testing.T) {
	var item Item
	err := Decode("application/xml", strings.NewReader("<item/>"), &item)
	require.Error(t, err)
	errS, ok := err.(ErrorStatus)
	require.True(t, ok)
	assert.Equal(t, 415, errS.HTTPStatus())

	// A missing content type defaults to application/octet-stream,
	// which we also cannot decode.
	err = Decode("", strings.NewReader("{}"), &item)
	assert.Error(t, err)
}

func TestEncodeDecodeItem(t *testing.T) {
	now := time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC)
	in := Item{
		ID:           "item-1",
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   "42",
		RequestURI:   "https://example.com/42",
		Status:       "pending",
		CreatedAt:    &now,
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))

	var out Item
	require.NoError(t, Decode(V1JSONMediaType, &buf, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.SourceSystem, out.SourceSystem)
	assert.Equal(t, in.RequestURI, out.RequestURI)
	assert.Equal(t, in.Status, out.Status)
	require.NotNil(t, out.CreatedAt)
	assert.True(t, now.Equal(*out.CreatedAt))
}

func TestErrorRoundTrip(t *testing.T) {
	for _, err := range []error{
		queue.ErrLostLease,
		queue.ErrMissingClassification,
		queue.ErrMissingPayload,
		queue.ErrDedupeKeyTooLong,
		queue.ErrNoSuchItem{ID: "item-1"},
		queue.ErrNoSuchRun{ID: "run-1"},
	} {
		resp := ErrorResponse{}
		resp.FromError(err)
		assert.Equal(t, err, resp.ToError())
	}
}

func TestErrorWrappers(t *testing.T) {
	inner := queue.ErrNoSuchItem{ID: "item-1"}
	resp := ErrorResponse{}
	resp.FromError(ErrNotFound{Err: inner})
	assert.Equal(t, "ErrNoSuchItem", resp.Error)
	assert.Equal(t, "item-1", resp.Value)
}

func TestErrorPlain(t *testing.T) {
	resp := ErrorResponse{}
	resp.FromError(errors.New("something happened"))
	assert.Equal(t, "error", resp.Error)
	assert.EqualError(t, resp.ToError(), "something happened")
}

func TestItemConversion(t *testing.T) {
	stored := &queue.WorkItem{
		ID:           "item-1",
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   "42",
		RequestURI:   "https://example.com/42",
		Status:       queue.Pending,
		Attempt:      2,
		CreatedAt:    time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC),
	}
	var repr Item
	repr.FromItem(stored)
	assert.Equal(t, "pending", repr.Status)
	assert.Equal(t, 2, repr.Attempt)
	require.NotNil(t, repr.CreatedAt)
	assert.Nil(t, repr.NextRetryAt)

	// Converting back for an enqueue drops lifecycle state.
	fresh, err := repr.ToItem()
	require.NoError(t, err)
	assert.Equal(t, "", fresh.ID)
	assert.Equal(t, 0, fresh.Attempt)
	assert.Equal(t, "wiki", fresh.SourceSystem)
	assert.Equal(t, "GET", fresh.RequestMethod)
}

func TestItemConversionInvalid(t *testing.T) {
	// The classification tuple is incomplete.
	_, err := Item{SourceSystem: "wiki"}.ToItem()
	assert.Equal(t, queue.ErrMissingClassification, err)

	// Classified but with nothing to do.
	_, err = Item{
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   "42",
	}.ToItem()
	assert.Equal(t, queue.ErrMissingPayload, err)

	// The dedupe key length cap applies here too.
	_, err = Item{
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   strings.Repeat("x", 900),
		RequestURI:   "https://example.com/42",
	}.ToItem()
	assert.Equal(t, queue.ErrDedupeKeyTooLong, err)
}
