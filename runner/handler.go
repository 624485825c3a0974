// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package runner

import (
	"context"
	"time"

	"github.com/datalode/conveyor/queue"
)

// Outcome classifies how a handler finished with its work item.
type Outcome int

const (
	// Success means the item's work is done.
	Success Outcome = iota

	// Skipped means the handler declined the item: the content was
	// unchanged, a robots rule excluded it, and so on.  Skips
	// complete the item and record a succeeded run; the skip reason
	// goes into the run metrics.
	Skipped

	// Retryable means the item failed in a way worth retrying:
	// timeouts, throttling, 5xx responses.
	Retryable

	// Permanent means the item failed in a way retrying cannot
	// cure: 404s, validation failures, malformed payloads.
	Permanent
)

// ArtifactData is one output a handler wants persisted.
type ArtifactData struct {
	// Type names the artifact within its run, e.g. "response" or
	// "extraction"; it becomes part of the lake key.
	Type     string
	MIMEType string
	Content  []byte

	// Inline additionally stores the content in the ledger's SQL
	// row, for small outputs that must survive without the lake.
	Inline bool
}

// Result is everything a handler reports back about one execution.
type Result struct {
	Outcome Outcome

	// HTTPStatus is the upstream status code for fetch handlers,
	// informational only.
	HTTPStatus int

	// RetryAfter is an explicit server-provided delay (for example
	// from a 429 response).  When non-zero it overrides the
	// computed backoff for a Retryable outcome.
	RetryAfter time.Duration

	// Error describes a Retryable or Permanent failure.
	Error string

	// SkipReason says why a Skipped handler declined the item.
	SkipReason string

	// Artifacts are persisted to the lake and attached to the run.
	Artifacts []ArtifactData

	// Metrics are free-form measurements recorded on the run:
	// bytes fetched, tokens consumed, durations.
	Metrics map[string]interface{}

	// Discovered holds follow-on work items found while executing,
	// for instance links extracted from a fetched page.  They are
	// enqueued (deduplicated) after the item completes, with
	// DiscoveredFrom back-referencing this item.
	Discovered []*queue.WorkItem
}

// RunContext is the handler's view of its execution.
type RunContext struct {
	// Item is the claimed work item.
	Item *queue.WorkItem

	// RunID identifies this execution in the ledger.
	RunID string

	// WorkerID is the claiming worker.
	WorkerID string

	store queue.Store
	lease time.Duration
}

// RenewLease extends this worker's lease on the item; long-running
// handlers should call it periodically.  It returns
// queue.ErrLostLease if another worker has taken the item over, in
// which case the handler should stop as soon as practical: its
// results will not be recorded.
func (rc *RunContext) RenewLease() error {
	ok, err := rc.store.RenewLease(rc.Item.ID, rc.WorkerID, rc.lease)
	if err != nil {
		return err
	}
	if !ok {
		return queue.ErrLostLease
	}
	return nil
}

// HandlerFunc executes one work item.
type HandlerFunc func(ctx context.Context, rc *RunContext) Result

// Handler binds an execution function to the identity recorded on its
// runs.
type Handler struct {
	Run HandlerFunc

	// ModelIdentity names the model (name/tag/digest) for
	// LLM-backed handlers; it is stamped on every run.  Leave
	// empty for plain fetches.
	ModelIdentity string

	// Options are recorded on every run: temperature, prompt
	// version, request defaults.
	Options map[string]interface{}
}

// HandlerMap resolves work items to handlers.  Items with an
// interrogation key look up that key; fetch items look up their
// source system.
type HandlerMap map[string]Handler

// resolve picks the handler for an item, or returns false if none is
// registered.
func (hm HandlerMap) resolve(item *queue.WorkItem) (Handler, string, bool) {
	key := item.InterrogationKey
	if key == "" {
		key = item.SourceSystem
	}
	handler, present := hm[key]
	return handler, key, present
}
