// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"errors"
	"fmt"
)

// ErrLostLease is returned by RunContext helpers when this worker is
// no longer the owner of its work item.  The Store methods themselves
// report ownership loss as a false return, not an error.
var ErrLostLease = errors.New("no longer the owner of this work item")

// ErrMissingClassification is returned when an enqueue envelope lacks
// one of source_system, source_name, resource_type, or resource_id.
var ErrMissingClassification = errors.New("work item missing classification tuple")

// ErrMissingPayload is returned when an enqueue envelope carries
// neither a request descriptor nor an interrogation key.
var ErrMissingPayload = errors.New("work item needs a request descriptor or an interrogation key")

// ErrDedupeKeyTooLong is returned when the dedupe key derived from a
// classification tuple exceeds MaxDedupeKeyLength.
var ErrDedupeKeyTooLong = errors.New("dedupe key exceeds maximum length")

// ErrNoSuchItem is returned by operations that require an existing
// work item but cannot find it.
type ErrNoSuchItem struct {
	ID string
}

func (err ErrNoSuchItem) Error() string {
	return fmt.Sprintf("no such work item %v", err.ID)
}

// ErrNoSuchRun is returned by ledger operations against an unknown
// run.
type ErrNoSuchRun struct {
	ID string
}

func (err ErrNoSuchRun) Error() string {
	return fmt.Sprintf("no such run %v", err.ID)
}

// ErrBadIdentifier is returned when a schema identifier fails
// whitelist validation before being interpolated into SQL text.
type ErrBadIdentifier struct {
	Identifier string
	Reason     string
}

func (err ErrBadIdentifier) Error() string {
	return fmt.Sprintf("invalid identifier %q: %v", err.Identifier, err.Reason)
}
