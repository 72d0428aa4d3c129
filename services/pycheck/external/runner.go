// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package external runs third-party Python linters against the analyzed file.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/pycheck/services/pycheck/config"
)

const (
	// DefaultTimeout bounds all tools together.
	DefaultTimeout = 60 * time.Second

	// DefaultPreviewLines is the number of stdout lines kept per tool.
	DefaultPreviewLines = 10

	// MaxStderrDisplay is the rune limit for echoed stderr.
	MaxStderrDisplay = 200

	// maxConcurrentTools caps simultaneous linter processes.
	maxConcurrentTools = 4

	// waitDelay bounds how long a killed tool's children may hold its pipes.
	waitDelay = time.Second
)

var tracer = otel.Tracer("pycheck.external")

var (
	// runsTotal counts linter executions.
	//
	// Labels:
	//   - tool: configured tool name
	//   - status: "ok", "findings" (non-zero exit), "error"
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pycheck",
			Subsystem: "external",
			Name:      "runs_total",
			Help:      "Total external linter runs by tool and status.",
		},
		[]string{"tool", "status"},
	)

	// runDuration measures linter wall time.
	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pycheck",
			Subsystem: "external",
			Name:      "run_duration_seconds",
			Help:      "Duration of external linter runs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"tool"},
	)
)

// Result is the outcome of one linter run.
type Result struct {
	Tool    string
	Command string

	// OutputFile holds the full stdout. Empty when none was configured or
	// writing it failed.
	OutputFile string

	ExitCode int
	Duration time.Duration

	// Preview holds the first non-empty stdout lines.
	Preview []string

	// Truncated is set when stdout had more non-empty lines than Preview.
	Truncated bool

	// Stderr is the trimmed stderr, cut to MaxStderrDisplay runes.
	Stderr string

	// Err is set when the tool could not be started or timed out. A non-zero
	// exit status is not an error: linters exit non-zero on findings.
	Err error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout bounds all tools together.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithPreviewLines sets how many stdout lines are kept per tool.
func WithPreviewLines(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.previewLines = n
		}
	}
}

// WithOutputDir resolves relative output file names against dir.
func WithOutputDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.outputDir = dir
	}
}

// Runner executes configured linters.
//
// Thread Safety: Safe for concurrent use; Run keeps no state between calls.
type Runner struct {
	tools        []config.Tool
	timeout      time.Duration
	previewLines int
	outputDir    string
}

// NewRunner creates a runner for tools, which run in the given order.
func NewRunner(tools []config.Tool, opts ...RunnerOption) *Runner {
	r := &Runner{
		tools:        tools,
		timeout:      DefaultTimeout,
		previewLines: DefaultPreviewLines,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every tool against path concurrently.
//
// Description:
//
//	Each tool is invoked as "<command> <args...> <path>". All tools share
//	one timeout. A tool that fails does not stop the others.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	path - The Python file to lint.
//
// Outputs:
//
//	[]Result - One result per tool, in configured order.
func (r *Runner) Run(ctx context.Context, path string) []Result {
	ctx, span := tracer.Start(ctx, "external.Run",
		trace.WithAttributes(
			attribute.String("file", path),
			attribute.Int("tools", len(r.tools)),
		),
	)
	defer span.End()

	if len(r.tools) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([]Result, len(r.tools))
	var g errgroup.Group
	g.SetLimit(maxConcurrentTools)
	for i, tool := range r.tools {
		i, tool := i, tool
		g.Go(func() error {
			results[i] = r.runTool(ctx, tool, path)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) runTool(ctx context.Context, tool config.Tool, path string) Result {
	ctx, span := tracer.Start(ctx, "external.runTool",
		trace.WithAttributes(attribute.String("tool", tool.Name)),
	)
	defer span.End()

	args := append(append([]string(nil), tool.Args...), path)
	res := Result{Tool: tool.Name, Command: tool.Command + " " + strings.Join(args, " ")}

	// #nosec G204 - command comes from the tool configuration
	cmd := exec.CommandContext(ctx, tool.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	runDuration.WithLabelValues(tool.Name).Observe(res.Duration.Seconds())

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("stopped after %s: %w", res.Duration.Round(time.Millisecond), ctxErr)
	} else {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			err = nil
		}
	}
	if err != nil {
		res.Err = err
		runsTotal.WithLabelValues(tool.Name, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("external tool failed",
			slog.String("tool", tool.Name),
			slog.String("error", err.Error()))
		return res
	}

	status := "ok"
	if res.ExitCode != 0 {
		status = "findings"
	}
	runsTotal.WithLabelValues(tool.Name, status).Inc()

	res.Preview, res.Truncated = preview(stdout.String(), r.previewLines)
	res.Stderr = truncate(strings.TrimSpace(stderr.String()), MaxStderrDisplay)

	if tool.Output != "" {
		out := tool.Output
		if r.outputDir != "" && !filepath.IsAbs(out) {
			out = filepath.Join(r.outputDir, out)
		}
		if werr := os.WriteFile(out, stdout.Bytes(), 0o644); werr != nil {
			slog.Warn("writing tool output",
				slog.String("tool", tool.Name),
				slog.String("file", out),
				slog.String("error", werr.Error()))
		} else {
			res.OutputFile = out
		}
	}

	span.SetAttributes(
		attribute.Int("exit_code", res.ExitCode),
		attribute.Int("stdout_bytes", stdout.Len()),
	)
	slog.Debug("external tool finished",
		slog.String("tool", tool.Name),
		slog.Int("exit_code", res.ExitCode),
		slog.Duration("duration", res.Duration))

	return res
}

// preview returns up to n non-empty lines of out and whether more remained.
func preview(out string, n int) ([]string, bool) {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(lines) == n {
			return lines, true
		}
		lines = append(lines, line)
	}
	return lines, false
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
