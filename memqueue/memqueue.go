// Package memqueue provides an in-process, in-memory implementation of
// the queue Backend.  There is no persistence; the entire state is
// behind a single global mutex to protect against concurrent updates,
// which in some cases can limit performance in the name of
// correctness.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of
// higher-level components, and for single-process dry runs where
// losing the queue on exit is acceptable.
package memqueue

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/datalode/conveyor/queue"
	uuid "github.com/satori/go.uuid"
)

// Options adjusts the behavior of a memory backend.
type Options struct {
	// Clock supplies the time source.  Nil uses the wall clock.
	Clock clock.Clock

	// Backoff is the retry policy applied when Fail is called with
	// no explicit hint.  Its zero value is queue.DefaultBackoff.
	Backoff queue.Backoff
}

// New creates a new queue backend that operates purely in memory.
func New() queue.Backend {
	return NewWithOptions(Options{})
}

// NewWithClock creates a memory backend against an explicit time
// source, usually a mock clock in tests.
func NewWithClock(clk clock.Clock) queue.Backend {
	return NewWithOptions(Options{Clock: clk})
}

// NewWithOptions creates a memory backend with full control over its
// dependencies.
func NewWithOptions(opts Options) queue.Backend {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	m := &memBackend{
		clk:     opts.Clock,
		backoff: opts.Backoff,
	}
	m.reset()
	return m
}

type memBackend struct {
	sem     sync.Mutex
	clk     clock.Clock
	backoff queue.Backoff

	items     map[string]*queue.WorkItem
	byDedupe  map[string]string
	workers   map[string]*queue.Heartbeat
	runs      map[string]*queue.Run
	itemRuns  map[string][]string
	artifacts map[string][]*queue.Artifact
}

func (m *memBackend) reset() {
	m.items = make(map[string]*queue.WorkItem)
	m.byDedupe = make(map[string]string)
	m.workers = make(map[string]*queue.Heartbeat)
	m.runs = make(map[string]*queue.Run)
	m.itemRuns = make(map[string][]string)
	m.artifacts = make(map[string][]*queue.Artifact)
}

// Destroy discards all state.
func (m *memBackend) Destroy() error {
	m.sem.Lock()
	defer m.sem.Unlock()
	m.reset()
	return nil
}

func newID() string {
	return uuid.NewV4().String()
}

// copyItem clones an item so callers never hold pointers into the
// store's state.
func copyItem(item *queue.WorkItem) *queue.WorkItem {
	dup := *item
	if item.RequestHeaders != nil {
		dup.RequestHeaders = make(map[string]string, len(item.RequestHeaders))
		for k, v := range item.RequestHeaders {
			dup.RequestHeaders[k] = v
		}
	}
	if item.RequestBody != nil {
		dup.RequestBody = append([]byte(nil), item.RequestBody...)
	}
	if item.InputJSON != nil {
		dup.InputJSON = append([]byte(nil), item.InputJSON...)
	}
	return &dup
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	dup := make(map[string]interface{}, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}
