// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pycheck ties parsing, the heuristic checks, the report writer and
// the external linters into one analysis run over a single Python file.
package pycheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/pycheck/services/pycheck/ast"
	"github.com/AleutianAI/pycheck/services/pycheck/checks"
	"github.com/AleutianAI/pycheck/services/pycheck/config"
	"github.com/AleutianAI/pycheck/services/pycheck/external"
	"github.com/AleutianAI/pycheck/services/pycheck/report"
)

var tracer = otel.Tracer("pycheck.service")

// ErrNotAFile indicates the analysis target is a directory or device.
var ErrNotAFile = errors.New("not a regular file")

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock replaces time.Now, for deterministic log names in tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service runs analyses with one configuration.
//
// Thread Safety: Safe for concurrent use. Each call parses its own tree.
type Service struct {
	cfg    *config.Config
	parser *ast.PythonParser
	checks []checks.Check
	runner *external.Runner
	now    func() time.Time
}

// NewService builds a service from cfg.
//
// Outputs:
//
//	*Service - Ready to analyze.
//	error - Non-nil if cfg is nil or the rule tables fail to load.
func NewService(cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("NewService: cfg must not be nil")
	}
	rules, err := checks.DefaultRules()
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}

	s := &Service{
		cfg:    cfg,
		parser: ast.NewPythonParser(ast.WithPythonMaxFileSize(cfg.MaxFileSize)),
		checks: checks.Default(rules),
		runner: external.NewRunner(
			cfg.External.EnabledTools(),
			external.WithTimeout(cfg.External.Timeout),
			external.WithPreviewLines(cfg.External.PreviewLines),
			external.WithOutputDir(cfg.LogDir),
		),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Analyze reads, parses and checks the file at path.
//
// Description:
//
//	The file is parsed once; every check shares the tree. A syntax error is
//	a finding, not an error: the line-based checks still run and the tree
//	checks report that they were skipped.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	path - The Python file to analyze.
//
// Outputs:
//
//	*checks.Report - Sections 1 to 11.
//	error - Non-nil if the file cannot be read or parsed, or ctx is done.
//	        Wraps ErrNotAFile, ast.ErrFileTooLarge or ast.ErrInvalidContent
//	        where they apply.
func (s *Service) Analyze(ctx context.Context, path string) (*checks.Report, error) {
	ctx, span := tracer.Start(ctx, "pycheck.Analyze",
		trace.WithAttributes(attribute.String("file", path)),
	)
	defer span.End()

	started := s.now()
	content, err := s.readSource(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tree, err := s.parser.Parse(ctx, content, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	src := checks.NewSource(path, content, tree)
	sections, err := checks.RunAll(ctx, src, s.checks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r := &checks.Report{
		RunID:     uuid.NewString(),
		Path:      path,
		StartedAt: started,
		Duration:  s.now().Sub(started),
		Sections:  sections,
	}

	span.SetAttributes(
		attribute.String("run_id", r.RunID),
		attribute.Int("errors", r.Count(checks.LevelError)),
		attribute.Int("warnings", r.Count(checks.LevelWarn)),
	)
	slog.Debug("analysis complete",
		slog.String("run_id", r.RunID),
		slog.String("file", path),
		slog.Int("errors", r.Count(checks.LevelError)),
		slog.Int("warnings", r.Count(checks.LevelWarn)),
		slog.Duration("duration", r.Duration))

	return r, nil
}

func (s *Service) readSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	if info.Size() > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ast.ErrFileTooLarge, path, info.Size(), s.cfg.MaxFileSize)
	}
	if ext := filepath.Ext(path); !slices.Contains(s.parser.Extensions(), ext) {
		slog.Warn("file does not have a Python extension, analyzing anyway",
			slog.String("file", path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return content, nil
}

// Run analyzes path and writes the report to console and a new log file.
//
// Description:
//
//	Runs Analyze, renders sections 1 to 11, then runs the external linters
//	when enabled and renders them as the next section. Nothing is written
//	when Analyze fails.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	path - The Python file to analyze.
//	console - Console sink. May be nil.
//	styled - Whether to colour the console copy.
//
// Outputs:
//
//	string - Path of the log file written.
//	error - Non-nil if analysis fails or the log cannot be written.
func (s *Service) Run(ctx context.Context, path string, console io.Writer, styled bool) (string, error) {
	ctx, span := tracer.Start(ctx, "pycheck.Run",
		trace.WithAttributes(attribute.String("file", path)),
	)
	defer span.End()

	r, err := s.Analyze(ctx, path)
	if err != nil {
		return "", err
	}

	w, err := report.Open(s.cfg.LogDir, s.cfg.LogPrefix, r.StartedAt, console, styled)
	if err != nil {
		return "", err
	}

	report.RenderAnalysis(w, r)

	if s.cfg.External.Enabled {
		results := s.runner.Run(ctx, path)
		report.RenderExternal(w, len(r.Sections)+1, results)
	}

	w.Line("")
	w.Styled(report.RoleMuted, "report saved to "+w.Path())

	if err := w.Close(); err != nil {
		span.RecordError(err)
		return w.Path(), fmt.Errorf("writing report: %w", err)
	}
	span.SetAttributes(attribute.String("log_file", w.Path()))
	return w.Path(), nil
}
