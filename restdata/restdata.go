// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines common data structures shared between the
// restserver package and HTTP clients.  JSON encodings of these are
// passed across the wire as the application/vnd.datalode.conveyor.v1+json
// MIME type.
//
// API Usage
//
// HTTP GET the root document at its specified URL.  This returns a
// JSON serialization of the RootData object, whose fields link to the
// other resources.  The URL structure is predictable and formulaic,
// but it is not part of the API contract; the only specific guarantee
// is that retrieving the root resource returns a serialization of
// RootData.
//
// Timestamps are represented in JSON as RFC 3339 strings,
// "2012-03-04T05:06:07.890Z".  Durations are represented as a number
// of nanoseconds.  Byte-string fields (request bodies, interrogation
// inputs, inline artifact content) are base64 strings.
//
// Errors are returned as encodings of the ErrorResponse type with a
// failing HTTP status.  The well-known queue package errors round-trip
// through the Error code field; anything else comes back as a plain
// error with the Message text.  If server code panics, that is
// captured and returned as an ErrorResponse with error code "panic".
package restdata

import (
	"io"
	"mime"
	"time"

	"github.com/datalode/conveyor/queue"
	"github.com/ugorji/go/codec"
)

// V1JSONMediaType is the preferred, most specific MIME type for the
// JSON representation of this content.
const V1JSONMediaType = "application/vnd.datalode.conveyor.v1+json"

// JSONMediaType requests the most recent version of the JSON
// representation of this content.
const JSONMediaType = "application/vnd.datalode.conveyor+json"

// RootData is returned from the root path of the REST service.
type RootData struct {
	ItemsURL   string `json:"items_url"`
	StatsURL   string `json:"stats_url"`
	WorkersURL string `json:"workers_url"`
	ControlURL string `json:"control_url"`
}

// Item is the wire representation of one work item.  When posting a
// new item only the classification tuple, payload, and scheduling
// fields matter; the lifecycle fields are server-assigned and ignored
// on input.
type Item struct {
	// URL points at this item.  Provided on output only.
	URL string `json:"url,omitempty"`

	ID string `json:"id,omitempty"`

	SourceSystem string `json:"source_system"`
	SourceName   string `json:"source_name"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Variant      string `json:"variant,omitempty"`

	RequestURI     string            `json:"request_uri,omitempty"`
	RequestMethod  string            `json:"request_method,omitempty"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	RequestBody    []byte            `json:"request_body,omitempty"`

	InterrogationKey string `json:"interrogation_key,omitempty"`
	InputJSON        []byte `json:"input,omitempty"`

	Priority       int     `json:"priority,omitempty"`
	RunID          string  `json:"run_id,omitempty"`
	DiscoveredFrom string  `json:"discovered_from,omitempty"`
	Rank           float64 `json:"rank,omitempty"`

	Status      string     `json:"status,omitempty"`
	Attempt     int        `json:"attempt,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	ClaimedBy      string     `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ItemShort is an abbreviated work item reference, returned from list
// and create calls.
type ItemShort struct {
	URL string `json:"url,omitempty"`
	ID  string `json:"id"`

	SourceSystem string `json:"source_system"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Status       string `json:"status"`
}

// ItemList is a list of work item references.
type ItemList struct {
	Items []ItemShort `json:"items"`
}

// ItemCreated reports the result of posting a new item.  Created is
// false when the dedupe key already existed, in which case the
// reference points at the previously enqueued item's list entry.
type ItemCreated struct {
	ItemShort
	Created bool `json:"created"`
}

// Stats reports item counts by status, optionally filtered.
type Stats struct {
	queue.Stats
	Total int `json:"total"`
}

// Worker is the wire representation of one worker heartbeat.
type Worker struct {
	WorkerID       string     `json:"worker_id"`
	Hostname       string     `json:"hostname,omitempty"`
	PID            int        `json:"pid,omitempty"`
	State          string     `json:"state"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	LastHeartbeat  *time.Time `json:"last_heartbeat,omitempty"`
	ItemsProcessed int        `json:"items_processed"`
	ItemsSucceeded int        `json:"items_succeeded"`
	ItemsFailed    int        `json:"items_failed"`
	CurrentItemID  string     `json:"current_item_id,omitempty"`
}

// WorkerList is a list of active workers.
type WorkerList struct {
	Workers []Worker `json:"workers"`
}

// Run is the wire representation of one execution attempt.
type Run struct {
	ID            string                 `json:"id"`
	ItemID        string                 `json:"item_id"`
	WorkerID      string                 `json:"worker_id"`
	Status        string                 `json:"status"`
	ModelIdentity string                 `json:"model_identity,omitempty"`
	Options       map[string]interface{} `json:"options,omitempty"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Error         string                 `json:"error,omitempty"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	EndedAt       *time.Time             `json:"ended_at,omitempty"`
}

// RunList is a list of runs.
type RunList struct {
	Runs []Run `json:"runs"`
}

// Artifact is the wire representation of one run output.
type Artifact struct {
	ID             string `json:"id"`
	RunID          string `json:"run_id"`
	Type           string `json:"type"`
	MIMEType       string `json:"mime_type,omitempty"`
	LakeURI        string `json:"lake_uri,omitempty"`
	SHA256         string `json:"content_sha256,omitempty"`
	ByteCount      int64  `json:"byte_count"`
	StoredInSQL    bool   `json:"stored_in_sql"`
	MirroredToLake bool   `json:"mirrored_to_lake"`
	Content        []byte `json:"content,omitempty"`
}

// ArtifactList is a list of artifacts.
type ArtifactList struct {
	Artifacts []Artifact `json:"artifacts"`
}

// ControlState reports the worker pool control state, one of
// "running", "paused", or "draining".
type ControlState struct {
	State string `json:"state"`
}

// RecrawlRequest selects completed items to return to the queue.  An
// empty filter resets every completed item.
type RecrawlRequest struct {
	SourceSystem string `json:"source_system,omitempty"`
	SourceName   string `json:"source_name,omitempty"`
	RunID        string `json:"run_id,omitempty"`
}

// RecrawlResponse reports how many items a recrawl reset.
type RecrawlResponse struct {
	Reset int `json:"reset"`
}

// RecoverResponse reports how many expired leases a recover call
// returned to the queue.
type RecoverResponse struct {
	Recovered int `json:"recovered"`
}

// ErrorResponse is returned as the body of any failing request.
type ErrorResponse struct {
	// Error is a well-known error code, or "error" for anything
	// else.
	Error string `json:"error"`

	// Message is the human-readable error text.
	Message string `json:"message"`

	// Value carries error-specific detail, such as the missing
	// item's ID.
	Value string `json:"value,omitempty"`

	// Stack is a stack trace, only present for "panic" errors.
	Stack string `json:"stack,omitempty"`
}

// Decode decodes a restdata object from a reader, such as an HTTP
// request or response body.  out must be a pointer type.
func Decode(contentType string, r io.Reader, out interface{}) error {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5
		contentType = "application/octet-stream"
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return err
	}

	switch mediaType {
	case "text/json", "application/json", JSONMediaType, V1JSONMediaType:
		json := &codec.JsonHandle{}
		decoder := codec.NewDecoder(r, json)
		return decoder.Decode(out)
	}
	return ErrUnsupportedMediaType{Type: mediaType}
}

// Encode writes a restdata object to a writer as V1 JSON.
func Encode(w io.Writer, in interface{}) error {
	json := &codec.JsonHandle{}
	encoder := codec.NewEncoder(w, json)
	return encoder.Encode(in)
}
