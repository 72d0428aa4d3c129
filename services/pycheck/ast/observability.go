// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pycheck.ast")

var (
	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pycheck",
			Subsystem: "ast",
			Name:      "parse_duration_seconds",
			Help:      "Duration of tree-sitter parses in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"language", "status"},
	)

	parseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pycheck",
			Subsystem: "ast",
			Name:      "parses_total",
			Help:      "Total number of parse attempts.",
		},
		[]string{"language", "status"},
	)

	syntaxErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pycheck",
			Subsystem: "ast",
			Name:      "syntax_errors_total",
			Help:      "Total number of parsed files containing syntax errors.",
		},
		[]string{"language"},
	)
)

func startParseSpan(ctx context.Context, language, filePath string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ast.Parse",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file", filePath),
			attribute.Int("size_bytes", size),
		),
	)
}

func setParseSpanResult(span trace.Span, functions, imports int, hasSyntaxError bool) {
	span.SetAttributes(
		attribute.Int("functions", functions),
		attribute.Int("imports", imports),
		attribute.Bool("syntax_error", hasSyntaxError),
	)
}

func failParseSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// recordParseMetrics records one parse attempt.
func recordParseMetrics(language string, duration time.Duration, success, hasSyntaxError bool) {
	status := "success"
	if !success {
		status = "error"
	}
	parseDuration.WithLabelValues(language, status).Observe(duration.Seconds())
	parseTotal.WithLabelValues(language, status).Inc()
	if hasSyntaxError {
		syntaxErrorsTotal.WithLabelValues(language).Inc()
	}
}
