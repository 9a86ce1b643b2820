// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slicer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// slicerTracerName is the shared OTel tracer name for orchestrator runs.
const slicerTracerName = "slice.slicer"

var (
	// runDuration measures whole-run latency.
	//
	// Labels:
	//   - status: "success" or "error"
	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slice",
			Subsystem: "slicer",
			Name:      "run_duration_seconds",
			Help:      "Duration of slice orchestrator runs in seconds.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// runsTotal counts orchestrator runs.
	//
	// Labels:
	//   - status: "success" or "error"
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slice",
			Subsystem: "slicer",
			Name:      "runs_total",
			Help:      "Total number of slice orchestrator runs.",
		},
		[]string{"status"},
	)

	// criteriaProcessed counts seed criteria handed to the oracle.
	criteriaProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slice",
			Subsystem: "slicer",
			Name:      "criteria_processed_total",
			Help:      "Total seed criteria processed across all runs.",
		},
	)

	// criteriaPerRun tracks how many criteria one run visits.
	criteriaPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slice",
			Subsystem: "slicer",
			Name:      "criteria_per_run",
			Help:      "Number of criteria visited per orchestrator run.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)

// recordRunMetrics records one completed run.
func recordRunMetrics(duration time.Duration, criteria int, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	runDuration.WithLabelValues(status).Observe(duration.Seconds())
	runsTotal.WithLabelValues(status).Inc()
	criteriaPerRun.Observe(float64(criteria))
}
