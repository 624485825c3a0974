// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"time"

	"github.com/datalode/conveyor/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var queueItems = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "conveyor",
		Subsystem: "queue",
		Name:      "items",
		Help:      "Work items by status",
	},
	[]string{"status"},
)

var activeWorkers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "conveyor",
		Subsystem: "queue",
		Name:      "active_workers",
		Help:      "Workers with a recent heartbeat",
	},
)

func init() {
	prometheus.MustRegister(queueItems, activeWorkers)
}

// observe periodically exports queue depth and worker liveness as
// Prometheus gauges.  Runs forever; start it in a goroutine.
func observe(q queue.Backend) {
	for range time.Tick(15 * time.Second) {
		stats, err := q.Summarize(queue.ItemFilter{})
		if err != nil {
			logrus.WithError(err).Warn("could not summarize queue")
			continue
		}
		queueItems.WithLabelValues("pending").Set(float64(stats.Pending))
		queueItems.WithLabelValues("delayed").Set(float64(stats.Delayed))
		queueItems.WithLabelValues("in_progress").Set(float64(stats.InProgress))
		queueItems.WithLabelValues("completed").Set(float64(stats.Completed))
		queueItems.WithLabelValues("failed").Set(float64(stats.Failed))
		queueItems.WithLabelValues("skipped").Set(float64(stats.Skipped))

		workers, err := q.ListActive(0)
		if err != nil {
			logrus.WithError(err).Warn("could not list workers")
			continue
		}
		activeWorkers.Set(float64(len(workers)))
	}
}
