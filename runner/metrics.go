// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package runner

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	itemsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conveyor",
			Subsystem: "runner",
			Name:      "items_processed_total",
			Help:      "Work items processed, by outcome",
		},
		[]string{"outcome"},
	)

	itemsDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "conveyor",
			Subsystem: "runner",
			Name:      "items_discovered_total",
			Help:      "New work items enqueued by discovery",
		},
	)

	leasesLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "conveyor",
			Subsystem: "runner",
			Name:      "leases_lost_total",
			Help:      "Items whose lease was taken over mid-execution",
		},
	)

	busyWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "conveyor",
			Subsystem: "runner",
			Name:      "busy_workers",
			Help:      "Workers currently executing an item",
		},
	)
)

func init() {
	prometheus.MustRegister(itemsProcessed, itemsDiscovered, leasesLost, busyWorkers)
}

func outcomeLabel(outcome Outcome) string {
	switch outcome {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	case Retryable:
		return "retryable"
	case Permanent:
		return "permanent"
	}
	return "unknown"
}
