// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// oracleTracerName is the shared OTel tracer name for oracle operations.
const oracleTracerName = "slice.oracle"

// Package-level Prometheus metrics for oracle invocations.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// oracleCallDuration measures the duration of oracle queries.
	//
	// Labels:
	//   - provider: "openai", "ollama", ...
	//   - status: "success" or "error"
	oracleCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slice",
			Subsystem: "oracle",
			Name:      "call_duration_seconds",
			Help:      "Duration of oracle queries in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	// oracleCallsTotal counts oracle queries.
	//
	// Labels:
	//   - provider
	//   - status: "success" or "error"
	oracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slice",
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Total number of oracle queries.",
		},
		[]string{"provider", "status"},
	)

	// oracleErrorsTotal counts oracle errors by type.
	//
	// Labels:
	//   - provider
	//   - error_type: "timeout", "budget", "malformed", "transport", "unknown"
	oracleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slice",
			Subsystem: "oracle",
			Name:      "errors_total",
			Help:      "Total oracle errors by type.",
		},
		[]string{"provider", "error_type"},
	)

	// oracleActiveQueries tracks in-flight oracle queries.
	//
	// Labels:
	//   - provider
	oracleActiveQueries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "slice",
			Subsystem: "oracle",
			Name:      "active_queries",
			Help:      "Number of currently active oracle queries.",
		},
		[]string{"provider"},
	)
)

// classifyError maps an error to a label-safe error type string, avoiding
// high-cardinality labels from raw error messages.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	var budget *BudgetExhaustedError
	if errors.As(err, &budget) {
		return "budget"
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return "malformed"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection") || strings.Contains(msg, "http"):
		return "transport"
	default:
		return "unknown"
	}
}

// recordOracleMetrics records one completed query.
func recordOracleMetrics(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		oracleErrorsTotal.WithLabelValues(provider, classifyError(err)).Inc()
	}
	oracleCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	oracleCallsTotal.WithLabelValues(provider, status).Inc()
}
