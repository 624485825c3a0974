// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package runner provides a library framework for processes that
// execute Conveyor work items.  A Runner claims items from a queue
// backend under time-bounded leases, dispatches them to registered
// handlers, records every execution in the run ledger, persists
// handler artifacts, and enqueues discovered follow-on work.
package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/datalode/conveyor/lake"
	"github.com/datalode/conveyor/queue"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// Runner executes work items with a bounded pool of workers.  Fill in
// the exported fields and call Run; the zero value of every optional
// field gets a sensible default.
type Runner struct {
	// Backend is the queue this runner works from.  Required.
	Backend queue.Backend

	// Handlers maps interrogation keys and source systems to the
	// code that executes them.  Required.
	Handlers HandlerMap

	// Lake receives handler artifacts.  When nil, artifacts are
	// stored inline in the ledger instead.
	Lake *lake.Sink

	// WorkerID names this worker process in claims and heartbeats.
	// If unset, an ID is generated.
	WorkerID string

	// MaxWorkers is the number of items executed in parallel.  A
	// runner with no workers has nothing to do and Run returns
	// immediately.
	MaxWorkers int

	// Lease is how long a claim lasts before other workers may
	// take the item over.  Defaults to 5 minutes.
	Lease time.Duration

	// HeartbeatInterval is how often this process reports itself
	// to the worker registry.  Defaults to 15 seconds.
	HeartbeatInterval time.Duration

	// PollInterval is how long an idle worker waits before looking
	// for work again.  Defaults to 1 second.
	PollInterval time.Duration

	// MaxRetries bounds the attempts per item before a retryable
	// failure becomes terminal.  Defaults to 3.
	MaxRetries int

	// MaxItems stops the runner after this many items have been
	// processed.  Zero means no limit.
	MaxItems int

	// StopAfter stops the runner after a wall-clock duration.
	// Zero means no limit.
	StopAfter time.Duration

	// RequestsPerSecond bounds the aggregate claim rate across all
	// workers.  Zero means unlimited.
	RequestsPerSecond float64

	// SourceFilter, if non-empty, claims only items from that
	// source system.
	SourceFilter string

	// EnableDiscovery enqueues the items handlers discover.  When
	// false, discoveries are counted and dropped.
	EnableDiscovery bool

	// DryRun claims and completes items without executing their
	// handlers, recording a skipped run for each.
	DryRun bool

	// Control is the pause/drain switchboard, shared with whatever
	// exposes operator controls.  If unset, a private one is
	// created.
	Control *Control

	// Logger receives structured progress logs.  If unset, the
	// logrus standard logger is used.
	Logger *logrus.Entry

	// ErrorHandler is called for errors in the worker loops that
	// do not stop the runner.
	ErrorHandler func(error)

	// Clock defines a time source.  If the backend was created
	// with an alternate time source, this should match it.  Only
	// test code should need to set this.
	Clock clock.Clock

	limiter     *limiter
	claimFilter *queue.ClaimFilter
	startedAt   time.Time
	cancel      context.CancelFunc

	countMu   sync.Mutex
	processed int
	succeeded int
	failed    int
	busy      int
	current   string
}

// Counts reports how many items this runner has processed so far,
// split into successes (including skips) and failures.
func (r *Runner) Counts() (processed, succeeded, failed int) {
	r.countMu.Lock()
	defer r.countMu.Unlock()
	return r.processed, r.succeeded, r.failed
}

// setDefaults fills in default values for any uninitialized fields.
func (r *Runner) setDefaults() {
	if r.WorkerID == "" {
		r.WorkerID = uuid.NewV4().String()
	}
	if r.Lease == 0 {
		r.Lease = 5 * time.Minute
	}
	if r.HeartbeatInterval == 0 {
		r.HeartbeatInterval = 15 * time.Second
	}
	if r.PollInterval == 0 {
		r.PollInterval = time.Second
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.Control == nil {
		r.Control = NewControl()
	}
	if r.Logger == nil {
		r.Logger = logrus.WithField("worker", r.WorkerID)
	}
	if r.Clock == nil {
		r.Clock = clock.New()
	}
	r.limiter = newLimiter(r.Clock, r.RequestsPerSecond)
	if r.SourceFilter != "" {
		r.claimFilter = &queue.ClaimFilter{SourceSystem: r.SourceFilter}
	}
}

// Run processes work items until the context is cancelled, the
// MaxItems or StopAfter bound is hit, or a drain is requested.  A
// draining pool finishes the items it already holds and claims no new
// ones.  Startup errors are returned; errors on individual items go
// to ErrorHandler and do not stop the pool.
func (r *Runner) Run(ctx context.Context) error {
	r.setDefaults()
	if r.Backend == nil {
		return errors.New("runner needs a queue backend")
	}
	if r.Handlers == nil && !r.DryRun {
		return errors.New("runner needs a handler map")
	}
	if r.MaxWorkers <= 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.cancel = cancel

	// Leases orphaned by a previous crash of this or any other
	// worker process go back in the pool before we start claiming.
	recovered, err := r.Backend.RecoverExpiredLeases()
	if err != nil {
		return err
	}
	if recovered > 0 {
		r.Logger.WithField("items", recovered).Info("recovered expired leases")
	}

	r.startedAt = r.Clock.Now()
	r.heartbeat()

	if r.StopAfter > 0 {
		go func() {
			select {
			case <-ctx.Done():
			case <-r.Clock.After(r.StopAfter):
				cancel()
			}
		}()
	}

	heartbeater := r.Clock.Ticker(r.HeartbeatInterval)
	defer heartbeater.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeater.C:
				r.heartbeat()
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < r.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx)
		}()
	}
	wg.Wait()

	return r.Backend.RemoveWorker(r.WorkerID)
}

// workerLoop is one worker's claim-execute cycle.
func (r *Runner) workerLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if r.maxItemsReached() {
			r.cancel()
			return
		}
		if r.Control.Draining() {
			return
		}
		if r.Control.Paused() {
			r.Clock.Sleep(r.PollInterval)
			continue
		}

		item, err := r.Backend.ClaimOne(r.WorkerID, r.Lease, r.claimFilter)
		if err != nil {
			r.handleError(err)
			r.Clock.Sleep(r.PollInterval)
			continue
		}
		if item == nil {
			r.Clock.Sleep(r.PollInterval)
			continue
		}

		// The rate limit meters executions, not idle polls.
		r.limiter.wait()
		r.processItem(ctx, item)
	}
}

func (r *Runner) maxItemsReached() bool {
	if r.MaxItems <= 0 {
		return false
	}
	r.countMu.Lock()
	defer r.countMu.Unlock()
	return r.processed >= r.MaxItems
}

func (r *Runner) handleError(err error) {
	if r.ErrorHandler != nil {
		r.ErrorHandler(err)
	} else {
		r.Logger.WithError(err).Error("worker error")
	}
}

// processItem runs one claimed item through its handler and records
// the outcome.
func (r *Runner) processItem(ctx context.Context, item *queue.WorkItem) {
	r.adjustBusy(1, item.ID)
	busyWorkers.Inc()
	defer func() {
		r.adjustBusy(-1, "")
		busyWorkers.Dec()
	}()

	logger := r.Logger.WithFields(logrus.Fields{
		"item":     item.ID,
		"resource": item.ResourceID,
		"attempt":  item.Attempt,
	})

	handler, key, present := r.Handlers.resolve(item)
	modelIdentity := ""
	var options map[string]interface{}
	if present {
		modelIdentity = handler.ModelIdentity
		options = handler.Options
	}

	runID, err := r.Backend.StartRun(item.ID, r.WorkerID, modelIdentity, options)
	if err != nil {
		// Without a ledger row the execution would be invisible;
		// put the item back instead of running the handler.
		r.handleError(err)
		r.record(ctx, item, "", Result{
			Outcome: Retryable,
			Error:   fmt.Sprintf("could not record run: %v", err),
		}, logger)
		return
	}

	var result Result
	switch {
	case r.DryRun:
		result = Result{
			Outcome:    Skipped,
			SkipReason: "dry run",
			Metrics:    map[string]interface{}{"dry_run": true},
		}
	case !present:
		result = Result{
			Outcome: Permanent,
			Error:   fmt.Sprintf("no handler registered for %q", key),
		}
	default:
		result = r.execute(ctx, handler, &RunContext{
			Item:     item,
			RunID:    runID,
			WorkerID: r.WorkerID,
			store:    r.Backend,
			lease:    r.Lease,
		})
	}

	r.record(ctx, item, runID, result, logger)
}

// execute calls the handler, converting a panic into a permanent
// failure so one bad item cannot take down the pool.
func (r *Runner) execute(ctx context.Context, handler Handler, rc *RunContext) (result Result) {
	defer func() {
		if p := recover(); p != nil {
			result = Result{
				Outcome: Permanent,
				Error:   fmt.Sprintf("handler panic: %v", p),
			}
		}
	}()
	return handler.Run(ctx, rc)
}

// record persists everything about one execution: artifacts, the run
// row, the item transition, and discovered follow-on items.
func (r *Runner) record(ctx context.Context, item *queue.WorkItem, runID string, result Result, logger *logrus.Entry) {
	if runID != "" {
		if err := r.attachArtifacts(ctx, runID, result); err != nil {
			// An execution whose artifacts were not all stored
			// did not succeed; the attempt fails and the item
			// comes back.
			r.handleError(err)
			result.Outcome = Retryable
			result.Error = fmt.Sprintf("could not store artifacts: %v", err)
			result.RetryAfter = 0
		}

		metrics := make(map[string]interface{}, len(result.Metrics)+2)
		for k, v := range result.Metrics {
			metrics[k] = v
		}
		if result.SkipReason != "" {
			metrics["skip_reason"] = result.SkipReason
		}
		if result.HTTPStatus != 0 {
			metrics["http_status"] = result.HTTPStatus
		}
		runStatus := queue.RunFailed
		if result.Outcome == Success || result.Outcome == Skipped {
			runStatus = queue.RunSucceeded
		}
		if err := r.Backend.FinishRun(runID, runStatus, metrics, result.Error); err != nil {
			r.handleError(err)
		}
	}

	// Descendants go in before the item transitions, so a crash in
	// between re-runs this item instead of losing the discoveries.
	if result.Outcome == Success || result.Outcome == Skipped {
		r.enqueueDiscovered(item, result, logger)
	}

	var (
		owned bool
		err   error
	)
	switch result.Outcome {
	case Success, Skipped:
		owned, err = r.Backend.Complete(item.ID, r.WorkerID)
	case Retryable:
		owned, err = r.Backend.Fail(item.ID, r.WorkerID, result.Error,
			true, result.RetryAfter, r.MaxRetries)
	default:
		owned, err = r.Backend.Fail(item.ID, r.WorkerID, result.Error,
			false, 0, r.MaxRetries)
	}
	if err != nil {
		r.handleError(err)
		return
	}
	if !owned {
		// Another worker took the item over; its outcome wins
		// and ours is discarded.
		leasesLost.Inc()
		logger.Warn("lost lease; discarding outcome")
		return
	}

	itemsProcessed.WithLabelValues(outcomeLabel(result.Outcome)).Inc()
	r.countMu.Lock()
	r.processed++
	if result.Outcome == Success || result.Outcome == Skipped {
		r.succeeded++
	} else {
		r.failed++
	}
	r.countMu.Unlock()

	logger.WithFields(logrus.Fields{
		"outcome": outcomeLabel(result.Outcome),
		"run":     runID,
	}).Debug("item processed")
}

// attachArtifacts stores handler outputs in the lake (when one is
// configured) and attaches them to the run.  The first write error
// aborts the batch.
func (r *Runner) attachArtifacts(ctx context.Context, runID string, result Result) error {
	for _, a := range result.Artifacts {
		var (
			ref queue.ArtifactRef
			err error
		)
		if r.Lake != nil {
			ref, err = r.Lake.Store(ctx, runID, a.Type, a.MIMEType, a.Content)
			if err != nil {
				return fmt.Errorf("artifact %q: %v", a.Type, err)
			}
		} else {
			digest := sha256.Sum256(a.Content)
			ref = queue.ArtifactRef{
				SHA256:    hex.EncodeToString(digest[:]),
				ByteCount: int64(len(a.Content)),
			}
		}
		var inline []byte
		if a.Inline || r.Lake == nil {
			inline = a.Content
		}
		if err = r.Backend.AttachArtifact(runID, ref, a.Type, a.MIMEType, inline); err != nil {
			return fmt.Errorf("artifact %q: %v", a.Type, err)
		}
	}
	return nil
}

// enqueueDiscovered adds the items a handler found to the queue,
// back-referencing the item that produced them.
func (r *Runner) enqueueDiscovered(item *queue.WorkItem, result Result, logger *logrus.Entry) {
	if !r.EnableDiscovery || len(result.Discovered) == 0 {
		return
	}
	created := 0
	for _, d := range result.Discovered {
		d.DiscoveredFrom = item.ID
		if d.RunID == "" {
			d.RunID = item.RunID
		}
		isNew, err := r.Backend.Enqueue(d)
		if err != nil {
			r.handleError(err)
			continue
		}
		if isNew {
			created++
			itemsDiscovered.Inc()
		}
	}
	if created > 0 {
		logger.WithField("discovered", created).Debug("enqueued discovered items")
	}
}

// adjustBusy tracks how many workers are executing and which item was
// claimed most recently, for heartbeat reporting.
func (r *Runner) adjustBusy(delta int, itemID string) {
	r.countMu.Lock()
	r.busy += delta
	if itemID != "" {
		r.current = itemID
	} else if r.busy == 0 {
		r.current = ""
	}
	r.countMu.Unlock()
}

// heartbeat reports this process to the worker registry.
func (r *Runner) heartbeat() {
	r.countMu.Lock()
	processed, succeeded, failed := r.processed, r.succeeded, r.failed
	busy, current := r.busy, r.current
	r.countMu.Unlock()

	state := queue.WorkerIdle
	switch {
	case r.Control.Draining():
		state = queue.WorkerStopping
	case r.Control.Paused():
		state = queue.WorkerPaused
	case busy > 0:
		state = queue.WorkerActive
	}

	hostname, _ := os.Hostname()
	err := r.Backend.UpsertHeartbeat(queue.Heartbeat{
		WorkerID:       r.WorkerID,
		Hostname:       hostname,
		PID:            os.Getpid(),
		StartedAt:      r.startedAt,
		ItemsProcessed: processed,
		ItemsSucceeded: succeeded,
		ItemsFailed:    failed,
		State:          state,
		CurrentItemID:  current,
	})
	if err != nil {
		r.handleError(err)
	}
}
