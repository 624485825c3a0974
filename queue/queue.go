// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package queue defines the abstract API to the Conveyor work queue.
//
// The queue is the system of record for unit-of-work state in a
// multi-stage content pipeline.  Work items are durably stored, claimed
// under time-bounded leases, executed by workers, and either completed
// or rescheduled with backoff.  Implementations of the Backend
// interface provide a specific storage engine; see the memqueue and
// postgres packages.
//
// Objects here carry a small amount of immutable identity data (a
// WorkItem's classification tuple never changes) plus mutable lifecycle
// state that only the owning Store may modify.
package queue

import "time"

// Status is the lifecycle state of a work item.
type Status int

const (
	// AnyStatus is not a real status, but in queries specifies
	// that any status is acceptable.
	AnyStatus Status = iota

	// Pending items are eligible to be claimed, possibly after
	// their NextRetryAt time passes.
	Pending

	// InProgress items are claimed by exactly one worker under a
	// lease.  If the lease expires the item becomes claimable
	// again without leaving this status.
	InProgress

	// Completed items finished successfully.  This is a terminal
	// status, except for ResetForRecrawl.
	Completed

	// Failed items exhausted their retries or failed permanently.
	// Terminal.
	Failed

	// Skipped items were declined by their handler.  Terminal.
	// Note that handlers reporting "skipped" normally result in
	// Completed items with a succeeded run; this status exists for
	// items skipped administratively.
	Skipped
)

// Variant distinguishes multiple forms of the same logical resource,
// for instance the raw wikitext and rendered HTML of one page.  An
// empty variant is valid and means "the only form".
type Variant string

// A WorkItem is the atomic unit of work.  One row per item; the
// classification tuple plus variant determines the dedupe key, so a
// logical resource is enqueued at most once per variant.
type WorkItem struct {
	// ID is an opaque globally-unique identifier assigned at
	// creation.
	ID string

	// SourceSystem, SourceName, ResourceType, and ResourceID
	// classify what this work is about.  They are free text and
	// are immutable once enqueued.
	SourceSystem string
	SourceName   string
	ResourceType string
	ResourceID   string

	// Variant optionally distinguishes forms of the same resource.
	Variant Variant

	// RequestURI, RequestMethod, RequestHeaders, and RequestBody
	// describe fetch-type work.  They are empty for compute jobs.
	RequestURI     string
	RequestMethod  string
	RequestHeaders map[string]string
	RequestBody    []byte

	// InterrogationKey names a prompt/schema bundle for compute
	// jobs; InputJSON is its opaque payload.  They are empty for
	// fetch-type work.
	InterrogationKey string
	InputJSON        []byte

	// Priority orders claims; lower is more urgent.
	Priority int

	CreatedAt time.Time
	UpdatedAt time.Time

	// RunID is a logical batch tag shared by items seeded or
	// discovered together.
	RunID string

	// DiscoveredFrom back-references the item whose results
	// produced this one, forming a DAG.  Empty for seeds.
	DiscoveredFrom string

	// Rank is an optional tiebreaker from upstream ranking.
	Rank float64

	Status Status

	// Attempt counts claims of this item.  It increments at the
	// instant of claim, including re-claims after lease expiry,
	// and never decreases.
	Attempt int

	LastError   string
	NextRetryAt time.Time

	// ClaimedBy, ClaimedAt, and LeaseExpiresAt are set while the
	// item is InProgress and cleared on any transition out of it.
	ClaimedBy      string
	ClaimedAt      time.Time
	LeaseExpiresAt time.Time
}

// ClaimFilter restricts which items a ClaimOne call may return.  Its
// zero value matches everything.
type ClaimFilter struct {
	// SourceSystem, if non-empty, limits claims to items from that
	// source system.
	SourceSystem string
}

// ItemFilter selects a subset of work items for queries and bulk
// operations.  Its zero value selects all items.
type ItemFilter struct {
	SourceSystem string
	SourceName   string
	RunID        string

	// Statuses limits results to these statuses.  Nil means any.
	Statuses []Status

	// AfterID, if non-empty, selects only items whose ID sorts
	// strictly after it; combined with Limit this pages through
	// large result sets.
	AfterID string

	// Limit caps the number of items returned.  Zero means no cap.
	Limit int
}

// Stats reports item counts by status.  Delayed counts the subset of
// Pending whose NextRetryAt is in the future.
type Stats struct {
	Pending    int `json:"pending"`
	Delayed    int `json:"delayed"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Total returns the number of items counted, without double-counting
// Delayed (which is a subset of Pending).
func (s Stats) Total() int {
	return s.Pending + s.InProgress + s.Completed + s.Failed + s.Skipped
}

// Store is the durable work-queue state store.  All operations are
// individually atomic; implementations rely on their storage engine's
// row locking rather than in-process locks, and no open transactions
// are exposed to callers.
type Store interface {
	// Enqueue inserts an item as Pending with Attempt 0.  It
	// returns false, with no error, if an item with the same
	// dedupe key already exists, including when a concurrent
	// enqueue wins the race.  The item's ID, CreatedAt, and
	// UpdatedAt are assigned if unset.
	Enqueue(item *WorkItem) (bool, error)

	// ClaimOne atomically claims the single most urgent eligible
	// item for workerID and returns the post-claim row.  An item
	// is eligible if it is Pending with no future NextRetryAt, or
	// InProgress with an expired lease.  Ordering is priority
	// ascending, then creation time, then ID.  Returns nil with no
	// error if nothing is eligible.
	ClaimOne(workerID string, lease time.Duration, filter *ClaimFilter) (*WorkItem, error)

	// RenewLease extends the lease on an InProgress item.  It
	// returns false if workerID no longer owns the item.
	RenewLease(itemID, workerID string, lease time.Duration) (bool, error)

	// Complete transitions an owned item to Completed, clearing
	// claim fields and LastError.  It returns false if ownership
	// was lost.
	Complete(itemID, workerID string) (bool, error)

	// Fail records a failure on an owned item.  If retryable and
	// the attempt count is below maxRetries, the item returns to
	// Pending with NextRetryAt set from backoffHint (or, when the
	// hint is zero, the store's backoff policy); otherwise it
	// becomes Failed terminally.  Returns false if ownership was
	// lost.
	Fail(itemID, workerID, errText string, retryable bool, backoffHint time.Duration, maxRetries int) (bool, error)

	// RecoverExpiredLeases returns every InProgress item whose
	// lease has expired to Pending, clearing claim fields, and
	// reports how many rows it touched.  Attempt counts are not
	// modified; they were advanced at claim time.
	RecoverExpiredLeases() (int, error)

	// Exists reports whether an item with this dedupe key exists.
	Exists(dedupeKey string) (bool, error)

	// Get retrieves an item by ID, or nil if it does not exist.
	Get(itemID string) (*WorkItem, error)

	// Summarize reports item counts by status within a filter.
	Summarize(filter ItemFilter) (Stats, error)

	// List retrieves items matching a filter, ordered by ID.
	List(filter ItemFilter) ([]*WorkItem, error)

	// ResetForRecrawl returns Completed items within a filter to
	// Pending with a zeroed attempt count, for operator-initiated
	// re-fetches.  Reports how many rows it touched.
	ResetForRecrawl(filter ItemFilter) (int, error)
}

// HeartbeatState is a worker's self-reported condition.
type HeartbeatState int

const (
	// WorkerActive workers are executing an item.
	WorkerActive HeartbeatState = iota

	// WorkerIdle workers found no claimable work.
	WorkerIdle

	// WorkerPaused workers observed the pause flag and are
	// holding off on new claims.
	WorkerPaused

	// WorkerStopping workers are finishing their current item
	// before exit.
	WorkerStopping

	// WorkerStopped workers have exited.
	WorkerStopped
)

// Heartbeat is a worker's periodic self-report.
type Heartbeat struct {
	WorkerID       string
	Hostname       string
	PID            int
	StartedAt      time.Time
	LastHeartbeat  time.Time
	ItemsProcessed int
	ItemsSucceeded int
	ItemsFailed    int
	State          HeartbeatState

	// CurrentItemID is the item being executed, if any.
	CurrentItemID string
}

// DefaultHeartbeatTimeout is the liveness horizon for ListActive when
// the caller passes zero.
const DefaultHeartbeatTimeout = 120 * time.Second

// Registry tracks worker heartbeats.
type Registry interface {
	// UpsertHeartbeat records a heartbeat, inserting or updating
	// the worker's single row in one statement and stamping the
	// heartbeat time.  It is idempotent.
	UpsertHeartbeat(hb Heartbeat) error

	// ListActive returns workers whose last heartbeat is within
	// the timeout.  A zero timeout means DefaultHeartbeatTimeout.
	ListActive(timeout time.Duration) ([]Heartbeat, error)

	// RemoveWorker deletes a worker's heartbeat row; called on
	// clean shutdown.  Removing an unknown worker is not an error.
	RemoveWorker(workerID string) error
}

// RunStatus is the outcome of a single execution attempt.
type RunStatus int

const (
	// RunRunning runs have started but not finished.
	RunRunning RunStatus = iota

	// RunSucceeded runs completed their item, including handler
	// skips.
	RunSucceeded

	// RunFailed runs did not.
	RunFailed
)

// Run records one execution attempt of a work item.
type Run struct {
	ID       string
	ItemID   string
	WorkerID string

	// ModelIdentity names the model (name/tag/digest) for
	// LLM-derived runs; empty for plain fetches.
	ModelIdentity string

	Options   map[string]interface{}
	StartedAt time.Time
	EndedAt   time.Time
	Status    RunStatus
	Metrics   map[string]interface{}
	Error     string
}

// ArtifactRef identifies a stored artifact by its lake location and
// content address.
type ArtifactRef struct {
	LakeURI   string `json:"lake_uri"`
	SHA256    string `json:"content_sha256"`
	ByteCount int64  `json:"byte_count"`
}

// Artifact is a write-once output of a run.
type Artifact struct {
	ID             string
	RunID          string
	Type           string
	LakeURI        string
	SHA256         string
	ByteCount      int64
	MIMEType       string
	StoredInSQL    bool
	MirroredToLake bool

	// Content is the inline copy, present only when the ledger is
	// configured as system of record.
	Content []byte
}

// Ledger records execution attempts and their artifacts.
type Ledger interface {
	// StartRun inserts a RunRunning row and returns its ID.
	StartRun(itemID, workerID, modelIdentity string, options map[string]interface{}) (string, error)

	// FinishRun finalizes a run exactly once; later calls against
	// an already-finished run are no-ops.
	FinishRun(runID string, status RunStatus, metrics map[string]interface{}, errText string) error

	// AttachArtifact records an artifact row for a run.  content
	// may be nil; when non-nil it is stored inline and the
	// artifact is flagged StoredInSQL.
	AttachArtifact(runID string, ref ArtifactRef, artifactType, mimeType string, content []byte) error

	// Runs returns all runs for an item, oldest first.
	Runs(itemID string) ([]*Run, error)

	// RunArtifacts returns the artifacts attached to a run.
	RunArtifacts(runID string) ([]*Artifact, error)
}

// Backend bundles the three persistent surfaces every storage engine
// provides.
type Backend interface {
	Store
	Registry
	Ledger

	// Destroy irrecoverably deletes all queue state.  Test code
	// only.
	Destroy() error
}
