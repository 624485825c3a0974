// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes a queue backend as a REST service.
// Typical use:
//
//	import (
//	    "net/http"
//
//	    "github.com/datalode/conveyor/memqueue"
//	    "github.com/datalode/conveyor/restserver"
//	    "github.com/datalode/conveyor/runner"
//	)
//
//	func main() {
//	    q := memqueue.New()
//	    control := runner.NewControl()
//	    http.ListenAndServe(":5980", restserver.NewRouter(q, control))
//	}
//
// The wire format is defined in the restdata package.  GET the root
// path for a document linking to the other resources:
//
//	/items            GET list, POST enqueue
//	/items/{item}     GET one item
//	/items/{item}/runs          GET execution history
//	/runs/{run}/artifacts       GET run outputs
//	/stats            GET item counts by status
//	/workers          GET active workers
//	/control          GET pool state
//	/control/{action} POST pause, resume, or drain
//	/recrawl          POST completed items back into the queue
//	/recover          POST expired leases back into the queue
//
// List-type GETs accept query parameters source_system, source_name,
// run_id, status (repeatable), previous, and limit.
package restserver
