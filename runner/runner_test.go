// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/datalode/conveyor/lake"
	"github.com/datalode/conveyor/memqueue"
	"github.com/datalode/conveyor/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRunner builds a runner over a fresh in-memory backend with a
// mock clock shared between the two.
func newTestRunner(handlers HandlerMap) (*Runner, *clock.Mock) {
	clk := clock.NewMock()
	backend := memqueue.NewWithClock(clk)
	r := &Runner{
		Backend:    backend,
		Handlers:   handlers,
		WorkerID:   "test-worker",
		MaxWorkers: 1,
		Clock:      clk,
	}
	r.setDefaults()
	return r, clk
}

func enqueue(t *testing.T, r *Runner, resourceID string) *queue.WorkItem {
	item := &queue.WorkItem{
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   resourceID,
		RequestURI:   "https://example.com/" + resourceID,
	}
	created, err := r.Backend.Enqueue(item)
	require.NoError(t, err)
	require.True(t, created)
	return item
}

// claimAndProcess pushes one enqueued item through the runner.
func claimAndProcess(t *testing.T, r *Runner) *queue.WorkItem {
	item, err := r.Backend.ClaimOne(r.WorkerID, r.Lease, nil)
	require.NoError(t, err)
	require.NotNil(t, item)
	r.processItem(context.Background(), item)
	return item
}

func itemStatus(t *testing.T, r *Runner, itemID string) *queue.WorkItem {
	item, err := r.Backend.Get(itemID)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func soleRun(t *testing.T, r *Runner, itemID string) *queue.Run {
	runs, err := r.Backend.Runs(itemID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return runs[0]
}

func TestProcessSuccess(t *testing.T) {
	handled := false
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				handled = true
				assert.Equal(t, "42", rc.Item.ResourceID)
				assert.NotEmpty(t, rc.RunID)
				return Result{
					Outcome: Success,
					Metrics: map[string]interface{}{"bytes": 123},
				}
			},
		},
	})
	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	assert.True(t, handled)
	assert.Equal(t, queue.Completed, itemStatus(t, r, item.ID).Status)

	run := soleRun(t, r, item.ID)
	assert.Equal(t, queue.RunSucceeded, run.Status)
	assert.Equal(t, "test-worker", run.WorkerID)
	assert.Equal(t, 123, run.Metrics["bytes"])

	processed, succeeded, failed := r.Counts()
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, failed)
}

func TestProcessSkipped(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				return Result{Outcome: Skipped, SkipReason: "content unchanged"}
			},
		},
	})
	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	// A skip still completes the item with a succeeded run.
	assert.Equal(t, queue.Completed, itemStatus(t, r, item.ID).Status)
	run := soleRun(t, r, item.ID)
	assert.Equal(t, queue.RunSucceeded, run.Status)
	assert.Equal(t, "content unchanged", run.Metrics["skip_reason"])

	_, succeeded, failed := r.Counts()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, failed)
}

func TestProcessRetryable(t *testing.T) {
	r, clk := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				return Result{
					Outcome:    Retryable,
					HTTPStatus: 429,
					RetryAfter: 42 * time.Second,
					Error:      "429 too many requests",
				}
			},
		},
	})
	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	stored := itemStatus(t, r, item.ID)
	assert.Equal(t, queue.Pending, stored.Status)
	assert.Equal(t, clk.Now().Add(42*time.Second), stored.NextRetryAt)
	assert.Equal(t, "429 too many requests", stored.LastError)

	run := soleRun(t, r, item.ID)
	assert.Equal(t, queue.RunFailed, run.Status)
	assert.Equal(t, 429, run.Metrics["http_status"])
}

func TestProcessPermanent(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				return Result{Outcome: Permanent, Error: "404 not found"}
			},
		},
	})
	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	stored := itemStatus(t, r, item.ID)
	assert.Equal(t, queue.Failed, stored.Status)
	assert.Equal(t, "404 not found", stored.LastError)

	_, _, failed := r.Counts()
	assert.Equal(t, 1, failed)
}

func TestProcessNoHandler(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{})
	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	stored := itemStatus(t, r, item.ID)
	assert.Equal(t, queue.Failed, stored.Status)
	assert.Contains(t, stored.LastError, "no handler registered")

	// The failed resolution is still a ledger entry.
	run := soleRun(t, r, item.ID)
	assert.Equal(t, queue.RunFailed, run.Status)
}

func TestProcessPanic(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				panic("boom")
			},
		},
	})
	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	stored := itemStatus(t, r, item.ID)
	assert.Equal(t, queue.Failed, stored.Status)
	assert.Contains(t, stored.LastError, "handler panic")
}

func TestInterrogationKeyResolution(t *testing.T) {
	var ran string
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				ran = "wiki"
				return Result{Outcome: Success}
			},
		},
		"entity-extract-v2": {
			ModelIdentity: "llama3:8b",
			Run: func(ctx context.Context, rc *RunContext) Result {
				ran = "entity-extract-v2"
				return Result{Outcome: Success}
			},
		},
	})

	item := &queue.WorkItem{
		SourceSystem:     "wiki",
		SourceName:       "extraction",
		ResourceType:     "page",
		ResourceID:       "42",
		InterrogationKey: "entity-extract-v2",
		InputJSON:        []byte(`{"page_id": 42}`),
	}
	created, err := r.Backend.Enqueue(item)
	require.NoError(t, err)
	require.True(t, created)

	claimAndProcess(t, r)
	assert.Equal(t, "entity-extract-v2", ran)

	// The registered model identity is stamped on the run.
	run := soleRun(t, r, item.ID)
	assert.Equal(t, "llama3:8b", run.ModelIdentity)
}

func TestDiscovery(t *testing.T) {
	discovered := &queue.WorkItem{
		SourceSystem: "wiki",
		SourceName:   "enwiki",
		ResourceType: "page",
		ResourceID:   "linked-page",
		RequestURI:   "https://example.com/linked-page",
	}
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				return Result{
					Outcome:    Success,
					Discovered: []*queue.WorkItem{discovered},
				}
			},
		},
	})
	r.EnableDiscovery = true

	enqueue(t, r, "42")
	claimAndProcess(t, r)

	items, err := r.Backend.List(queue.ItemFilter{Statuses: []queue.Status{queue.Pending}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "linked-page", items[0].ResourceID)
	assert.NotEmpty(t, items[0].DiscoveredFrom)
}

func TestDiscoveryDisabled(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				return Result{
					Outcome: Success,
					Discovered: []*queue.WorkItem{{
						SourceSystem: "wiki",
						SourceName:   "enwiki",
						ResourceType: "page",
						ResourceID:   "linked-page",
						RequestURI:   "https://example.com/linked-page",
					}},
				}
			},
		},
	})

	enqueue(t, r, "42")
	claimAndProcess(t, r)

	stats, err := r.Backend.Summarize(queue.ItemFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Completed)
}

func TestDryRun(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				t.Fatal("handler must not run in dry-run mode")
				return Result{}
			},
		},
	})
	r.DryRun = true

	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	assert.Equal(t, queue.Completed, itemStatus(t, r, item.ID).Status)
	run := soleRun(t, r, item.ID)
	assert.Equal(t, queue.RunSucceeded, run.Status)
	assert.Equal(t, true, run.Metrics["dry_run"])
}

func TestArtifactsInline(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				return Result{
					Outcome: Success,
					Artifacts: []ArtifactData{{
						Type:     "response",
						MIMEType: "application/json",
						Content:  []byte(`{"title": "Go"}`),
					}},
				}
			},
		},
	})
	// No lake configured: the ledger is the system of record.
	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	run := soleRun(t, r, item.ID)
	artifacts, err := r.Backend.RunArtifacts(run.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.True(t, artifacts[0].StoredInSQL)
	assert.False(t, artifacts[0].MirroredToLake)
	assert.Equal(t, []byte(`{"title": "Go"}`), artifacts[0].Content)
	assert.Equal(t, int64(15), artifacts[0].ByteCount)
	assert.NotEmpty(t, artifacts[0].SHA256)
}

func TestLostLease(t *testing.T) {
	r, clk := newTestRunner(HandlerMap{})
	enqueue(t, r, "42")

	item, err := r.Backend.ClaimOne(r.WorkerID, r.Lease, nil)
	require.NoError(t, err)
	require.NotNil(t, item)

	// Let the lease run out and another worker steal the item.
	clk.Add(r.Lease + time.Second)
	stolen, err := r.Backend.ClaimOne("other-worker", r.Lease, nil)
	require.NoError(t, err)
	require.Equal(t, item.ID, stolen.ID)

	r.record(context.Background(), item, "", Result{Outcome: Success}, r.Logger)

	// The steal wins; this runner's outcome is discarded.
	stored := itemStatus(t, r, item.ID)
	assert.Equal(t, queue.InProgress, stored.Status)
	assert.Equal(t, "other-worker", stored.ClaimedBy)

	processed, _, _ := r.Counts()
	assert.Equal(t, 0, processed)
}

func TestRunContextRenewLease(t *testing.T) {
	r, clk := newTestRunner(HandlerMap{})
	enqueue(t, r, "42")
	item, err := r.Backend.ClaimOne(r.WorkerID, r.Lease, nil)
	require.NoError(t, err)

	rc := &RunContext{Item: item, WorkerID: r.WorkerID, store: r.Backend, lease: r.Lease}
	assert.NoError(t, rc.RenewLease())

	clk.Add(r.Lease + time.Second)
	_, err = r.Backend.ClaimOne("other-worker", r.Lease, nil)
	require.NoError(t, err)
	assert.Equal(t, queue.ErrLostLease, rc.RenewLease())
}

func TestRunNoWorkers(t *testing.T) {
	r := &Runner{
		Backend:  memqueue.New(),
		Handlers: HandlerMap{},
	}
	err := r.Run(context.Background())
	assert.NoError(t, err)
}

func TestRunNoBackend(t *testing.T) {
	r := &Runner{Handlers: HandlerMap{}, MaxWorkers: 1}
	assert.Error(t, r.Run(context.Background()))
}

func seedQueue(t *testing.T, backend queue.Backend, ids ...string) {
	for _, id := range ids {
		created, err := backend.Enqueue(&queue.WorkItem{
			SourceSystem: "wiki",
			SourceName:   "enwiki",
			ResourceType: "page",
			ResourceID:   id,
			RequestURI:   "https://example.com/" + id,
		})
		require.NoError(t, err)
		require.True(t, created)
	}
}

func TestDrainStopsClaims(t *testing.T) {
	backend := memqueue.New()
	seedQueue(t, backend, "a", "b", "c")

	control := NewControl()
	control.Drain()
	r := &Runner{
		Backend: backend,
		Handlers: HandlerMap{
			"wiki": {
				Run: func(ctx context.Context, rc *RunContext) Result {
					t.Error("a draining pool must not claim items")
					return Result{}
				},
			},
		},
		MaxWorkers:   2,
		PollInterval: 10 * time.Millisecond,
		Control:      control,
	}

	// Draining before the pool starts: nothing is claimed, the
	// queue is left untouched, and Run returns promptly.
	err := r.Run(context.Background())
	require.NoError(t, err)

	processed, _, _ := r.Counts()
	assert.Equal(t, 0, processed)

	stats, err := backend.Summarize(queue.ItemFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 0, stats.Completed)

	// Clean shutdown removed the heartbeat row.
	active, err := backend.ListActive(0)
	require.NoError(t, err)
	assert.Len(t, active, 0)
}

func TestDrainFinishesCurrentItem(t *testing.T) {
	backend := memqueue.New()
	seedQueue(t, backend, "a", "b", "c")

	started := make(chan struct{})
	release := make(chan struct{})
	control := NewControl()
	r := &Runner{
		Backend: backend,
		Handlers: HandlerMap{
			"wiki": {
				Run: func(ctx context.Context, rc *RunContext) Result {
					started <- struct{}{}
					<-release
					return Result{Outcome: Success}
				},
			},
		},
		MaxWorkers:   1,
		PollInterval: 10 * time.Millisecond,
		Control:      control,
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	// Drain while an item is executing: that item finishes, the
	// rest stay queued.
	<-started
	control.Drain()
	close(release)
	require.NoError(t, <-done)

	processed, succeeded, _ := r.Counts()
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, succeeded)

	stats, err := backend.Summarize(queue.ItemFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.Pending)
}

func TestRunMaxItems(t *testing.T) {
	backend := memqueue.New()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := backend.Enqueue(&queue.WorkItem{
			SourceSystem: "wiki",
			SourceName:   "enwiki",
			ResourceType: "page",
			ResourceID:   id,
			RequestURI:   "https://example.com/" + id,
		})
		require.NoError(t, err)
	}

	r := &Runner{
		Backend: backend,
		Handlers: HandlerMap{
			"wiki": {
				Run: func(ctx context.Context, rc *RunContext) Result {
					return Result{Outcome: Success}
				},
			},
		},
		MaxWorkers:   1,
		MaxItems:     2,
		PollInterval: 10 * time.Millisecond,
	}
	err := r.Run(context.Background())
	require.NoError(t, err)

	processed, _, _ := r.Counts()
	assert.Equal(t, 2, processed)
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{
		Backend:    memqueue.New(),
		Handlers:   HandlerMap{},
		MaxWorkers: 2,
	}
	err := r.Run(ctx)
	assert.NoError(t, err)
}

func TestErrorHandler(t *testing.T) {
	var seen error
	r, _ := newTestRunner(HandlerMap{})
	r.ErrorHandler = func(err error) { seen = err }
	r.handleError(errors.New("boom"))
	assert.EqualError(t, seen, "boom")
}

func TestArtifactWriteFailureRetries(t *testing.T) {
	sink, err := lake.NewFileSink(t.TempDir())
	require.NoError(t, err)

	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				// Two artifacts of the same type land on the
				// same lake key; the second write collides.
				return Result{
					Outcome: Success,
					Artifacts: []ArtifactData{
						{Type: "response", MIMEType: "application/json", Content: []byte(`{"rev": 1}`)},
						{Type: "response", MIMEType: "application/json", Content: []byte(`{"rev": 2}`)},
					},
				}
			},
		},
	})
	r.Lake = sink
	r.ErrorHandler = func(error) {}

	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	// An item whose artifacts could not all be stored is not done;
	// it goes back for another attempt.
	stored := itemStatus(t, r, item.ID)
	assert.Equal(t, queue.Pending, stored.Status)
	assert.Contains(t, stored.LastError, "could not store artifacts")

	run := soleRun(t, r, item.ID)
	assert.Equal(t, queue.RunFailed, run.Status)

	_, succeeded, failed := r.Counts()
	assert.Equal(t, 0, succeeded)
	assert.Equal(t, 1, failed)
}

// orderedBackend records the order of enqueues and completions.
type orderedBackend struct {
	queue.Backend
	ops []string
}

func (b *orderedBackend) Enqueue(item *queue.WorkItem) (bool, error) {
	b.ops = append(b.ops, "enqueue")
	return b.Backend.Enqueue(item)
}

func (b *orderedBackend) Complete(itemID, workerID string) (bool, error) {
	b.ops = append(b.ops, "complete")
	return b.Backend.Complete(itemID, workerID)
}

func TestDiscoveryBeforeCompletion(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				return Result{
					Outcome: Success,
					Discovered: []*queue.WorkItem{{
						SourceSystem: "wiki",
						SourceName:   "enwiki",
						ResourceType: "page",
						ResourceID:   "linked-page",
						RequestURI:   "https://example.com/linked-page",
					}},
				}
			},
		},
	})
	r.EnableDiscovery = true
	ordered := &orderedBackend{Backend: r.Backend}
	r.Backend = ordered

	enqueue(t, r, "42")
	claimAndProcess(t, r)

	// Descendants are durable before their parent completes, so a
	// crash in between cannot lose them.
	assert.Equal(t, []string{"enqueue", "enqueue", "complete"}, ordered.ops)
}

func TestHeartbeatCurrentItem(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{})
	var current string
	r.Handlers["wiki"] = Handler{
		Run: func(ctx context.Context, rc *RunContext) Result {
			r.heartbeat()
			active, err := r.Backend.ListActive(0)
			require.NoError(t, err)
			require.Len(t, active, 1)
			current = active[0].CurrentItemID
			return Result{Outcome: Success}
		},
	}

	enqueue(t, r, "42")
	item := claimAndProcess(t, r)
	assert.Equal(t, item.ID, current)

	// Idle again: the registry entry no longer points at an item.
	r.heartbeat()
	active, err := r.Backend.ListActive(0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "", active[0].CurrentItemID)
}

func TestIdlePollingSkipsRateLimit(t *testing.T) {
	r := &Runner{
		Backend:           memqueue.New(),
		Handlers:          HandlerMap{},
		MaxWorkers:        1,
		PollInterval:      time.Millisecond,
		RequestsPerSecond: 1,
		StopAfter:         50 * time.Millisecond,
	}
	require.NoError(t, r.Run(context.Background()))

	// Dozens of empty polls later the single burst token is still
	// available: the limit meters claimed items, not polling.
	assert.Equal(t, time.Duration(0), r.limiter.reserve())
}

// ledgerDownBackend refuses to open run rows.
type ledgerDownBackend struct {
	queue.Backend
}

func (b *ledgerDownBackend) StartRun(itemID, workerID, modelIdentity string, options map[string]interface{}) (string, error) {
	return "", errors.New("ledger unavailable")
}

func TestStartRunFailureRetries(t *testing.T) {
	r, _ := newTestRunner(HandlerMap{
		"wiki": {
			Run: func(ctx context.Context, rc *RunContext) Result {
				t.Error("handler must not run without a ledger row")
				return Result{}
			},
		},
	})
	r.Backend = &ledgerDownBackend{Backend: r.Backend}
	r.ErrorHandler = func(error) {}

	enqueue(t, r, "42")
	item := claimAndProcess(t, r)

	stored := itemStatus(t, r, item.ID)
	assert.Equal(t, queue.Pending, stored.Status)
	assert.Contains(t, stored.LastError, "could not record run")

	runs, err := r.Backend.Runs(item.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 0)

	_, _, failed := r.Counts()
	assert.Equal(t, 1, failed)
}
