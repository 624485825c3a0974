// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package demofetcher provides a complete demonstration Conveyor
// application.  It seeds a handful of fetch items under the "demo"
// source system, then runs a worker pool whose handler fabricates a
// small JSON document for each item and discovers two child pages per
// item down to a fixed depth.  The pool's REST surface (including
// pause/drain control) is served alongside.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/datalode/conveyor/backend"
	"github.com/datalode/conveyor/lake"
	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/restserver"
	"github.com/datalode/conveyor/runner"
	"github.com/sirupsen/logrus"
)

func main() {
	storage := backend.Backend{Implementation: "memory"}
	flag.Var(&storage, "backend", "impl[:address] of the storage backend")
	httpBind := flag.String("http", ":5981", "[ip]:port for REST and control")
	workers := flag.Int("workers", 4, "number of concurrent workers")
	lakeDir := flag.String("lake", "", "artifact directory (empty stores inline)")
	seeds := flag.Int("seeds", 3, "number of root pages to enqueue")
	depth := flag.Int("depth", 2, "how many levels of children to discover")
	rps := flag.Float64("rps", 0, "claim rate limit, requests per second")
	flag.Parse()

	q, err := storage.Open()
	if err != nil {
		logrus.WithError(err).Fatal("could not open queue backend")
	}

	for i := 0; i < *seeds; i++ {
		resourceID := fmt.Sprintf("page-%d", i)
		_, err = q.Enqueue(&queue.WorkItem{
			SourceSystem: "demo",
			SourceName:   "demofetcher",
			ResourceType: "page",
			ResourceID:   resourceID,
			RequestURI:   "demo://" + resourceID,
			RunID:        "demo-seed",
		})
		if err != nil {
			logrus.WithError(err).Fatal("could not seed queue")
		}
	}

	var sink *lake.Sink
	if *lakeDir != "" {
		sink, err = lake.NewFileSink(*lakeDir)
		if err != nil {
			logrus.WithError(err).Fatal("could not open artifact lake")
		}
	}

	control := runner.NewControl()
	go func() {
		err := http.ListenAndServe(*httpBind, restserver.NewRouter(q, control))
		logrus.WithError(err).Fatal("HTTP server failed")
	}()

	r := &runner.Runner{
		Backend:           q,
		Handlers:          runner.HandlerMap{"demo": {Run: fetchPage(*depth)}},
		Lake:              sink,
		MaxWorkers:        *workers,
		RequestsPerSecond: *rps,
		EnableDiscovery:   true,
		Control:           control,
	}

	ctx, cancel := context.WithCancel(context.Background())
	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupted
		// First interrupt drains; a second one kills the pool.
		control.Drain()
		<-interrupted
		cancel()
	}()

	if err := r.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("runner failed")
	}
	processed, succeeded, failed := r.Counts()
	fmt.Printf("processed %d items: %d succeeded, %d failed\n",
		processed, succeeded, failed)
}

// fetchPage builds the demo handler.  The depth of a page is encoded
// in its resource ID: children of "page-0" are "page-0.0" and
// "page-0.1", and discovery stops once maxDepth dots deep.
func fetchPage(maxDepth int) runner.HandlerFunc {
	return func(ctx context.Context, rc *runner.RunContext) runner.Result {
		item := rc.Item
		content := []byte(fmt.Sprintf(
			`{"resource": %q, "uri": %q, "attempt": %d}`,
			item.ResourceID, item.RequestURI, item.Attempt))

		result := runner.Result{
			Outcome: runner.Success,
			Artifacts: []runner.ArtifactData{{
				Type:     "response",
				MIMEType: "application/json",
				Content:  content,
			}},
			Metrics: map[string]interface{}{"bytes": len(content)},
		}

		if strings.Count(item.ResourceID, ".") < maxDepth {
			for n := 0; n < 2; n++ {
				resourceID := fmt.Sprintf("%s.%d", item.ResourceID, n)
				result.Discovered = append(result.Discovered, &queue.WorkItem{
					SourceSystem: item.SourceSystem,
					SourceName:   item.SourceName,
					ResourceType: item.ResourceType,
					ResourceID:   resourceID,
					RequestURI:   "demo://" + resourceID,
				})
			}
		}
		return result
	}
}
