// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pycheck.checks")

// Package-level Prometheus metrics for check execution.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// checkDuration measures how long each check takes.
	//
	// Labels:
	//   - check: check ID ("division", "unused", ...)
	checkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pycheck",
			Subsystem: "checks",
			Name:      "duration_seconds",
			Help:      "Duration of individual heuristic checks in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"check"},
	)

	// findingsTotal counts findings by check and level.
	//
	// Labels:
	//   - check: check ID
	//   - level: "info", "ok", "warn", "error"
	findingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pycheck",
			Subsystem: "checks",
			Name:      "findings_total",
			Help:      "Total findings by check and level.",
		},
		[]string{"check", "level"},
	)

	// checkOutcomesTotal counts check executions by outcome.
	//
	// Labels:
	//   - check: check ID
	//   - outcome: "ran", "skipped", "failed"
	checkOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pycheck",
			Subsystem: "checks",
			Name:      "outcomes_total",
			Help:      "Total check executions by outcome.",
		},
		[]string{"check", "outcome"},
	)
)

func recordCheckMetrics(id, outcome string, duration time.Duration, findings []Finding) {
	checkDuration.WithLabelValues(id).Observe(duration.Seconds())
	checkOutcomesTotal.WithLabelValues(id, outcome).Inc()
	for _, f := range findings {
		findingsTotal.WithLabelValues(id, f.Level.String()).Inc()
	}
}
