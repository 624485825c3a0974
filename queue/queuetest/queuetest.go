// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package queuetest provides generic functional tests for the queue
// Backend interface.  A typical backend test module wraps Suite and
// supplies a constructor:
//
//	package mybackend
//
//	import (
//	        "testing"
//	        "github.com/benbjohnson/clock"
//	        "github.com/datalode/conveyor/queue"
//	        "github.com/datalode/conveyor/queue/queuetest"
//	        "github.com/stretchr/testify/suite"
//	)
//
//	type Suite struct{ queuetest.Suite }
//
//	func (s *Suite) SetupSuite() {
//	        s.Suite.SetupSuite()
//	        s.NewBackend = func(clk clock.Clock) (queue.Backend, error) {
//	                return NewWithOptions(Options{Clock: clk, Backoff: queuetest.TestBackoff}), nil
//	        }
//	}
//
//	func TestBackend(t *testing.T) {
//	        suite.Run(t, &Suite{})
//	}
//
// Backends under test must honor queuetest.TestBackoff so the retry
// schedule assertions are deterministic.
package queuetest

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/datalode/conveyor/queue"
	"github.com/stretchr/testify/suite"
)

// TestBackoff is the retry policy backends must be configured with
// when running this suite.  The fixed jitter makes every delay exactly
// 1.5 * base * 2^(attempt-1).
var TestBackoff = queue.Backoff{
	Base:   2 * time.Second,
	Max:    300 * time.Second,
	Jitter: func() float64 { return 0.5 },
}

// Suite is the generic backend test suite.
type Suite struct {
	suite.Suite

	// Clock is the mock time source shared with the backend under
	// test.
	Clock *clock.Mock

	// NewBackend constructs a fresh, empty backend bound to the
	// given clock.  It is set by the importing package.
	NewBackend func(clk clock.Clock) (queue.Backend, error)

	// Backend is the instance under test, recreated per test.
	Backend queue.Backend
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.Clock = clock.NewMock()
}

// SetupTest creates a fresh backend.
func (s *Suite) SetupTest() {
	backend, err := s.NewBackend(s.Clock)
	s.Require().NoError(err)
	s.Backend = backend
}

// TearDownTest destroys the backend's state.
func (s *Suite) TearDownTest() {
	if s.Backend != nil {
		s.Require().NoError(s.Backend.Destroy())
		s.Backend = nil
	}
}

// item builds a fetch-type work item with a distinct resource ID.
func (s *Suite) item(resourceID string, priority int) *queue.WorkItem {
	return &queue.WorkItem{
		SourceSystem:  "wiki",
		SourceName:    "enwiki",
		ResourceType:  "page",
		ResourceID:    resourceID,
		RequestURI:    "https://example.com/" + resourceID,
		RequestMethod: "GET",
		Priority:      priority,
	}
}

// enqueue inserts an item and asserts it was new.
func (s *Suite) enqueue(item *queue.WorkItem) *queue.WorkItem {
	created, err := s.Backend.Enqueue(item)
	s.Require().NoError(err)
	s.Require().True(created)
	return item
}

// claim claims one item for a worker and requires success.
func (s *Suite) claim(workerID string, lease time.Duration) *queue.WorkItem {
	item, err := s.Backend.ClaimOne(workerID, lease, nil)
	s.Require().NoError(err)
	s.Require().NotNil(item)
	return item
}

// noClaim requires that no item is claimable.
func (s *Suite) noClaim(workerID string) {
	item, err := s.Backend.ClaimOne(workerID, time.Minute, nil)
	s.Require().NoError(err)
	s.Require().Nil(item)
}

// TestEnqueueDedupe covers the enqueue idempotence law: the second
// enqueue of the same tuple is a no-op returning false.
func (s *Suite) TestEnqueueDedupe() {
	item := s.enqueue(s.item("42", 0))
	s.NotEmpty(item.ID)

	key, err := item.DedupeKey()
	s.Require().NoError(err)
	present, err := s.Backend.Exists(key)
	s.NoError(err)
	s.True(present)

	again := s.item("42", 0)
	created, err := s.Backend.Enqueue(again)
	s.NoError(err)
	s.False(created)

	stats, err := s.Backend.Summarize(queue.ItemFilter{})
	s.NoError(err)
	s.Equal(1, stats.Total())
}

// TestEnqueueVariants verifies variants get distinct dedupe keys.
func (s *Suite) TestEnqueueVariants() {
	raw := s.item("42", 0)
	raw.Variant = "raw"
	s.enqueue(raw)

	html := s.item("42", 0)
	html.Variant = "html"
	s.enqueue(html)

	for _, variant := range []queue.Variant{"raw", "html"} {
		dup := s.item("42", 0)
		dup.Variant = variant
		created, err := s.Backend.Enqueue(dup)
		s.NoError(err)
		s.False(created)
	}
}

// TestClaimBasics verifies the post-claim row contents.
func (s *Suite) TestClaimBasics() {
	s.enqueue(s.item("42", 0))

	now := s.Clock.Now()
	item := s.claim("w1", time.Minute)
	s.Equal(queue.InProgress, item.Status)
	s.Equal("w1", item.ClaimedBy)
	s.Equal(1, item.Attempt)
	s.True(item.LeaseExpiresAt.After(now))

	stored, err := s.Backend.Get(item.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal(queue.InProgress, stored.Status)
	s.Equal("w1", stored.ClaimedBy)

	s.noClaim("w2")
}

// TestFIFOWithinPriority: same priority claims in insertion order.
func (s *Suite) TestFIFOWithinPriority() {
	for _, id := range []string{"first", "second", "third"} {
		s.enqueue(s.item(id, 5))
		s.Clock.Add(time.Second)
	}
	s.Equal("first", s.claim("w1", time.Minute).ResourceID)
	s.Equal("second", s.claim("w1", time.Minute).ResourceID)
	s.Equal("third", s.claim("w1", time.Minute).ResourceID)
}

// TestPriorityPreemption: lower priority number claims first even if
// enqueued later.
func (s *Suite) TestPriorityPreemption() {
	s.enqueue(s.item("slow", 10))
	s.Clock.Add(time.Second)
	s.enqueue(s.item("urgent", 1))

	s.Equal("urgent", s.claim("w1", time.Minute).ResourceID)
	s.Equal("slow", s.claim("w1", time.Minute).ResourceID)
}

// TestLeaseRecovery: a stalled worker's item returns to the pool and
// the next claim costs a second attempt.
func (s *Suite) TestLeaseRecovery() {
	s.enqueue(s.item("42", 0))

	first := s.claim("w1", time.Minute)
	s.Equal(1, first.Attempt)

	// w1 dies without completing; the lease runs out.
	s.Clock.Add(time.Minute + time.Second)

	n, err := s.Backend.RecoverExpiredLeases()
	s.NoError(err)
	s.Equal(1, n)

	recovered, err := s.Backend.Get(first.ID)
	s.Require().NoError(err)
	s.Equal(queue.Pending, recovered.Status)
	s.Empty(recovered.ClaimedBy)

	second := s.claim("w2", time.Minute)
	s.Equal(first.ID, second.ID)
	s.Equal("w2", second.ClaimedBy)
	s.Equal(2, second.Attempt)
}

// TestExpiredLeaseDirectClaim: claims may take over an expired lease
// without an explicit recovery pass, including at the exact expiry
// instant.
func (s *Suite) TestExpiredLeaseDirectClaim() {
	s.enqueue(s.item("42", 0))
	first := s.claim("w1", time.Minute)

	// One second short of expiry the item is still owned.
	s.Clock.Add(59 * time.Second)
	s.noClaim("w2")

	// At expiry exactly, the row is eligible as expired-lease.
	s.Clock.Add(time.Second)
	second := s.claim("w2", time.Minute)
	s.Equal(first.ID, second.ID)
	s.Equal(2, second.Attempt)
}

// TestRetryBoundary: an item whose retry time is now exactly is
// eligible.
func (s *Suite) TestRetryBoundary() {
	s.enqueue(s.item("42", 0))
	item := s.claim("w1", time.Minute)

	ok, err := s.Backend.Fail(item.ID, "w1", "throttled", true, 42*time.Second, 3)
	s.NoError(err)
	s.True(ok)

	s.Clock.Add(41 * time.Second)
	s.noClaim("w1")

	s.Clock.Add(time.Second)
	again := s.claim("w1", time.Minute)
	s.Equal(item.ID, again.ID)
}

// TestRetryAfterHint: an explicit backoff hint is used verbatim.
func (s *Suite) TestRetryAfterHint() {
	s.enqueue(s.item("42", 0))
	item := s.claim("w1", time.Minute)

	now := s.Clock.Now()
	ok, err := s.Backend.Fail(item.ID, "w1", "429 too many requests", true, 42*time.Second, 5)
	s.NoError(err)
	s.True(ok)

	stored, err := s.Backend.Get(item.ID)
	s.Require().NoError(err)
	s.Equal(queue.Pending, stored.Status)
	s.Equal(now.Add(42*time.Second), stored.NextRetryAt)
	s.Equal("429 too many requests", stored.LastError)
}

// TestFailBackoffSchedule: without a hint the store computes the
// exponential schedule; with TestBackoff each delay is exactly
// 1.5 * 2^(k-1) * 2s.
func (s *Suite) TestFailBackoffSchedule() {
	s.enqueue(s.item("42", 0))

	for k := 1; k <= 5; k++ {
		item := s.claim("w1", time.Minute)
		s.Equal(k, item.Attempt)

		now := s.Clock.Now()
		ok, err := s.Backend.Fail(item.ID, "w1", "boom", true, 0, 6)
		s.NoError(err)
		s.True(ok)

		expected := time.Duration(float64(2*time.Second) * 1.5 * float64(int(1)<<uint(k-1)))
		stored, err := s.Backend.Get(item.ID)
		s.Require().NoError(err)
		s.Equal(now.Add(expected), stored.NextRetryAt, "attempt %v", k)

		s.Clock.Add(expected + time.Second)
	}
}

// TestMaxRetriesExhausted: the retry budget makes the failure
// terminal.
func (s *Suite) TestMaxRetriesExhausted() {
	s.enqueue(s.item("42", 0))

	item := s.claim("w1", time.Minute)
	ok, err := s.Backend.Fail(item.ID, "w1", "transient", true, time.Second, 2)
	s.NoError(err)
	s.True(ok)

	s.Clock.Add(2 * time.Second)
	item = s.claim("w1", time.Minute)
	s.Equal(2, item.Attempt)

	// attempt == maxRetries, so this failure is final.
	ok, err = s.Backend.Fail(item.ID, "w1", "transient again", true, time.Second, 2)
	s.NoError(err)
	s.True(ok)

	stored, err := s.Backend.Get(item.ID)
	s.Require().NoError(err)
	s.Equal(queue.Failed, stored.Status)
	s.Empty(stored.ClaimedBy)
	s.Equal("transient again", stored.LastError)
	s.noClaim("w1")
}

// TestMaxRetriesZero: the first failure is terminal.
func (s *Suite) TestMaxRetriesZero() {
	s.enqueue(s.item("42", 0))
	item := s.claim("w1", time.Minute)

	ok, err := s.Backend.Fail(item.ID, "w1", "boom", true, 0, 0)
	s.NoError(err)
	s.True(ok)

	stored, err := s.Backend.Get(item.ID)
	s.Require().NoError(err)
	s.Equal(queue.Failed, stored.Status)
}

// TestNonRetryableFailure: retryable=false is terminal regardless of
// budget.
func (s *Suite) TestNonRetryableFailure() {
	s.enqueue(s.item("42", 0))
	item := s.claim("w1", time.Minute)

	ok, err := s.Backend.Fail(item.ID, "w1", "bad output shape", false, 0, 10)
	s.NoError(err)
	s.True(ok)

	stored, err := s.Backend.Get(item.ID)
	s.Require().NoError(err)
	s.Equal(queue.Failed, stored.Status)
	s.Equal("bad output shape", stored.LastError)
}

// TestCompleteClearsClaim: completion clears claim fields and any
// stale error.
func (s *Suite) TestCompleteClearsClaim() {
	s.enqueue(s.item("42", 0))

	item := s.claim("w1", time.Minute)
	ok, err := s.Backend.Fail(item.ID, "w1", "first try failed", true, time.Second, 3)
	s.NoError(err)
	s.True(ok)

	s.Clock.Add(2 * time.Second)
	item = s.claim("w1", time.Minute)
	ok, err = s.Backend.Complete(item.ID, "w1")
	s.NoError(err)
	s.True(ok)

	stored, err := s.Backend.Get(item.ID)
	s.Require().NoError(err)
	s.Equal(queue.Completed, stored.Status)
	s.Empty(stored.ClaimedBy)
	s.True(stored.ClaimedAt.IsZero())
	s.True(stored.LeaseExpiresAt.IsZero())
	s.Empty(stored.LastError)
	s.Equal(2, stored.Attempt)
}

// TestOwnershipLost: after a lease expires and another worker claims,
// the original worker's transitions all report false.
func (s *Suite) TestOwnershipLost() {
	s.enqueue(s.item("42", 0))
	item := s.claim("w1", time.Minute)

	s.Clock.Add(2 * time.Minute)
	stolen := s.claim("w2", time.Minute)
	s.Equal(item.ID, stolen.ID)

	ok, err := s.Backend.RenewLease(item.ID, "w1", time.Minute)
	s.NoError(err)
	s.False(ok)

	ok, err = s.Backend.Complete(item.ID, "w1")
	s.NoError(err)
	s.False(ok)

	ok, err = s.Backend.Fail(item.ID, "w1", "boom", true, 0, 3)
	s.NoError(err)
	s.False(ok)

	stored, err := s.Backend.Get(item.ID)
	s.Require().NoError(err)
	s.Equal(queue.InProgress, stored.Status)
	s.Equal("w2", stored.ClaimedBy)
}

// TestRenewLease extends ownership past the original expiry.
func (s *Suite) TestRenewLease() {
	s.enqueue(s.item("42", 0))
	s.claim("w1", time.Minute)

	s.Clock.Add(30 * time.Second)
	item, err := s.Backend.Get(s.onlyItemID())
	s.Require().NoError(err)
	ok, err := s.Backend.RenewLease(item.ID, "w1", time.Minute)
	s.NoError(err)
	s.True(ok)

	// 45s later the original lease would have expired, but the
	// renewal keeps the item owned.
	s.Clock.Add(45 * time.Second)
	s.noClaim("w2")
}

// TestRecoverNoop: recovery over an empty or healthy queue touches
// nothing.
func (s *Suite) TestRecoverNoop() {
	n, err := s.Backend.RecoverExpiredLeases()
	s.NoError(err)
	s.Equal(0, n)

	s.enqueue(s.item("42", 0))
	s.claim("w1", time.Minute)
	n, err = s.Backend.RecoverExpiredLeases()
	s.NoError(err)
	s.Equal(0, n)
}

// TestSummarize covers the no-items-lost property: counts by status
// always sum to the number enqueued.
func (s *Suite) TestSummarize() {
	for i := 0; i < 5; i++ {
		s.enqueue(s.item(fmt.Sprintf("item-%d", i), 0))
	}

	done := s.claim("w1", time.Minute)
	ok, err := s.Backend.Complete(done.ID, "w1")
	s.NoError(err)
	s.True(ok)

	failed := s.claim("w1", time.Minute)
	ok, err = s.Backend.Fail(failed.ID, "w1", "no", false, 0, 0)
	s.NoError(err)
	s.True(ok)

	delayed := s.claim("w1", time.Minute)
	ok, err = s.Backend.Fail(delayed.ID, "w1", "later", true, time.Hour, 5)
	s.NoError(err)
	s.True(ok)

	s.claim("w1", time.Minute)

	stats, err := s.Backend.Summarize(queue.ItemFilter{})
	s.NoError(err)
	s.Equal(2, stats.Pending)
	s.Equal(1, stats.Delayed)
	s.Equal(1, stats.InProgress)
	s.Equal(1, stats.Completed)
	s.Equal(1, stats.Failed)
	s.Equal(5, stats.Total())
}

// TestSummarizeFilter restricts stats to a source system.
func (s *Suite) TestSummarizeFilter() {
	s.enqueue(s.item("a", 0))
	other := s.item("b", 0)
	other.SourceSystem = "openalex"
	s.enqueue(other)

	stats, err := s.Backend.Summarize(queue.ItemFilter{SourceSystem: "openalex"})
	s.NoError(err)
	s.Equal(1, stats.Total())
}

// TestList pages through items in ID order.
func (s *Suite) TestList() {
	for i := 0; i < 5; i++ {
		s.enqueue(s.item(fmt.Sprintf("item-%d", i), 0))
	}

	page1, err := s.Backend.List(queue.ItemFilter{Limit: 3})
	s.Require().NoError(err)
	s.Require().Len(page1, 3)
	s.True(page1[0].ID < page1[1].ID)
	s.True(page1[1].ID < page1[2].ID)

	page2, err := s.Backend.List(queue.ItemFilter{Limit: 3, AfterID: page1[2].ID})
	s.Require().NoError(err)
	s.Require().Len(page2, 2)
	s.True(page1[2].ID < page2[0].ID)

	pending, err := s.Backend.List(queue.ItemFilter{Statuses: []queue.Status{queue.Pending}})
	s.NoError(err)
	s.Len(pending, 5)

	none, err := s.Backend.List(queue.ItemFilter{Statuses: []queue.Status{queue.Failed}})
	s.NoError(err)
	s.Len(none, 0)
}

// TestResetForRecrawl re-enables completed items with a zeroed
// attempt counter.
func (s *Suite) TestResetForRecrawl() {
	s.enqueue(s.item("done", 0))
	s.enqueue(s.item("untouched", 5))

	item := s.claim("w1", time.Minute)
	s.Equal("done", item.ResourceID)
	ok, err := s.Backend.Complete(item.ID, "w1")
	s.NoError(err)
	s.True(ok)

	n, err := s.Backend.ResetForRecrawl(queue.ItemFilter{SourceSystem: "wiki"})
	s.NoError(err)
	s.Equal(1, n)

	stored, err := s.Backend.Get(item.ID)
	s.Require().NoError(err)
	s.Equal(queue.Pending, stored.Status)
	s.Equal(0, stored.Attempt)
	s.True(stored.NextRetryAt.IsZero())
}

// TestClaimSourceFilter: a claim filter restricts by source system.
func (s *Suite) TestClaimSourceFilter() {
	s.enqueue(s.item("a", 0))
	other := s.item("b", 0)
	other.SourceSystem = "openalex"
	s.enqueue(other)

	claimed, err := s.Backend.ClaimOne("w1", time.Minute, &queue.ClaimFilter{SourceSystem: "openalex"})
	s.Require().NoError(err)
	s.Require().NotNil(claimed)
	s.Equal("openalex", claimed.SourceSystem)

	again, err := s.Backend.ClaimOne("w1", time.Minute, &queue.ClaimFilter{SourceSystem: "openalex"})
	s.NoError(err)
	s.Nil(again)
}

// TestConcurrentClaim: concurrent workers never observe the same item
// claimed twice.
func (s *Suite) TestConcurrentClaim() {
	const items = 20
	const workers = 4

	for i := 0; i < items; i++ {
		s.enqueue(s.item(fmt.Sprintf("item-%02d", i), 0))
	}

	var (
		mu      sync.Mutex
		claimed = map[string]string{}
		wg      sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			for {
				item, err := s.Backend.ClaimOne(workerID, time.Minute, nil)
				if err != nil || item == nil {
					return
				}
				mu.Lock()
				owner, dup := claimed[item.ID]
				claimed[item.ID] = workerID
				mu.Unlock()
				if dup {
					s.Failf("duplicate claim", "item %v claimed by %v and %v", item.ID, owner, workerID)
					return
				}
			}
		}(fmt.Sprintf("w%d", w))
	}
	wg.Wait()

	s.Len(claimed, items)
}

// TestHeartbeatUpsert covers heartbeat idempotence.
func (s *Suite) TestHeartbeatUpsert() {
	hb := queue.Heartbeat{
		WorkerID:  "w1",
		Hostname:  "host-1",
		PID:       4242,
		StartedAt: s.Clock.Now(),
		State:     queue.WorkerActive,
	}
	s.Require().NoError(s.Backend.UpsertHeartbeat(hb))
	s.Require().NoError(s.Backend.UpsertHeartbeat(hb))

	active, err := s.Backend.ListActive(0)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("w1", active[0].WorkerID)
	s.Equal("host-1", active[0].Hostname)
	s.Equal(4242, active[0].PID)
	s.Equal(s.Clock.Now(), active[0].LastHeartbeat)

	hb.ItemsProcessed = 3
	hb.ItemsSucceeded = 2
	hb.ItemsFailed = 1
	hb.State = queue.WorkerIdle
	s.Require().NoError(s.Backend.UpsertHeartbeat(hb))

	active, err = s.Backend.ListActive(0)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(3, active[0].ItemsProcessed)
	s.Equal(queue.WorkerIdle, active[0].State)

	s.Require().NoError(s.Backend.RemoveWorker("w1"))
	active, err = s.Backend.ListActive(0)
	s.NoError(err)
	s.Len(active, 0)

	// Removing an unknown worker is not an error.
	s.NoError(s.Backend.RemoveWorker("w1"))
}

// TestHeartbeatLiveness: stale workers drop out of the active list.
func (s *Suite) TestHeartbeatLiveness() {
	s.Require().NoError(s.Backend.UpsertHeartbeat(queue.Heartbeat{WorkerID: "stale"}))
	s.Clock.Add(3 * time.Minute)
	s.Require().NoError(s.Backend.UpsertHeartbeat(queue.Heartbeat{WorkerID: "fresh"}))

	active, err := s.Backend.ListActive(0)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("fresh", active[0].WorkerID)

	// A generous timeout finds both again.
	active, err = s.Backend.ListActive(time.Hour)
	s.NoError(err)
	s.Len(active, 2)
}

// TestLedgerRun: a run finalizes exactly once.
func (s *Suite) TestLedgerRun() {
	item := s.enqueue(s.item("42", 0))

	runID, err := s.Backend.StartRun(item.ID, "w1", "llama3:8b", map[string]interface{}{"temperature": 0.2})
	s.Require().NoError(err)
	s.NotEmpty(runID)

	runs, err := s.Backend.Runs(item.ID)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal(queue.RunRunning, runs[0].Status)
	s.Equal("llama3:8b", runs[0].ModelIdentity)

	s.Clock.Add(5 * time.Second)
	err = s.Backend.FinishRun(runID, queue.RunSucceeded, map[string]interface{}{"bytes": 123}, "")
	s.Require().NoError(err)

	runs, err = s.Backend.Runs(item.ID)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal(queue.RunSucceeded, runs[0].Status)
	ended := runs[0].EndedAt
	s.False(ended.IsZero())

	// Finalizing again must not corrupt the first outcome.
	s.Clock.Add(time.Second)
	err = s.Backend.FinishRun(runID, queue.RunFailed, nil, "late error")
	s.NoError(err)

	runs, err = s.Backend.Runs(item.ID)
	s.Require().NoError(err)
	s.Equal(queue.RunSucceeded, runs[0].Status)
	s.Equal(ended, runs[0].EndedAt)
}

// TestLedgerArtifacts attaches artifacts with and without inline
// content.
func (s *Suite) TestLedgerArtifacts() {
	item := s.enqueue(s.item("42", 0))
	runID, err := s.Backend.StartRun(item.ID, "w1", "", nil)
	s.Require().NoError(err)

	ref := queue.ArtifactRef{
		LakeURI:   "2026/08/25/" + runID + "/response.json",
		SHA256:    "deadbeef",
		ByteCount: 123,
	}
	s.Require().NoError(s.Backend.AttachArtifact(runID, ref, "response", "application/json", nil))
	s.Require().NoError(s.Backend.AttachArtifact(runID, queue.ArtifactRef{SHA256: "cafe", ByteCount: 4}, "evidence", "text/plain", []byte("data")))

	artifacts, err := s.Backend.RunArtifacts(runID)
	s.Require().NoError(err)
	s.Require().Len(artifacts, 2)

	byType := map[string]*queue.Artifact{}
	for _, a := range artifacts {
		byType[a.Type] = a
	}
	s.Require().Contains(byType, "response")
	s.Require().Contains(byType, "evidence")

	s.Equal(ref.LakeURI, byType["response"].LakeURI)
	s.True(byType["response"].MirroredToLake)
	s.False(byType["response"].StoredInSQL)

	s.True(byType["evidence"].StoredInSQL)
	s.False(byType["evidence"].MirroredToLake)
	s.Equal([]byte("data"), byType["evidence"].Content)
}

// TestGetMissing: fetching an unknown item returns nil, not an error.
func (s *Suite) TestGetMissing() {
	item, err := s.Backend.Get("no-such-item")
	s.NoError(err)
	s.Nil(item)
}

// onlyItemID returns the single item's ID in a one-item queue.
func (s *Suite) onlyItemID() string {
	items, err := s.Backend.List(queue.ItemFilter{})
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	return items[0].ID
}
