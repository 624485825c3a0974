// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"time"

	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/restserver"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// HTTP serves the daemon's REST and metrics endpoints.
type HTTP struct {
	queue  queue.Backend
	laddr  string
	logger *logrus.Logger
}

// Serve runs an HTTP server on the specified local address.  This
// serves connections forever and panics on any error in the initial
// setup or in accepting connections.
func (h *HTTP) Serve() {
	r := mux.NewRouter()
	// The daemon runs no workers of its own, so there is no pool
	// control to expose here; workers publish their own.
	restserver.PopulateRouter(r, h.queue, nil)
	r.Handle("/metrics", promhttp.Handler())

	n := negroni.New(negroni.NewRecovery())
	if h.logger != nil {
		n.Use(requestLogger{h.logger})
	}
	n.UseHandler(r)
	panic(http.ListenAndServe(h.laddr, n))
}

// requestLogger is a negroni middleware logging one line per request
// through logrus.
type requestLogger struct {
	logger *logrus.Logger
}

func (l requestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	res := w.(negroni.ResponseWriter)
	l.logger.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   res.Status(),
		"duration": time.Since(start),
	}).Debug("request")
}
