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
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Check is one independent heuristic pass.
type Check struct {
	// ID is a short stable identifier used in metrics and logs.
	ID string

	// Title is the section heading.
	Title string

	// NeedsTree marks checks that only run on syntactically valid source.
	NeedsTree bool

	// SkipMessage is reported instead of running when NeedsTree is set and
	// the source has a syntax error. It may reference the error via %s.
	SkipMessage string

	Run func(ctx context.Context, src *Source) (Result, error)
}

// Default returns the built-in checks in report order.
func Default(rules *Rules) []Check {
	return []Check{
		LineCount(),
		SyntaxErrors(),
		DivisionByZero(rules),
		Shadowing(rules),
		UnusedVariables(),
		ExceptionHandling(),
		InputValidation(rules),
		BugPatterns(rules),
		FunctionDefinitions(),
		ImportStatements(),
		Structure(),
	}
}

// RunAll runs checks in order against src and numbers the resulting sections.
//
// Description:
//
//	Checks run sequentially because the parsed tree is not safe for
//	concurrent traversal. A check that returns an error or panics yields a
//	single warning finding; the remaining checks still run.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	src - The prepared source. Must not be nil.
//	checks - Checks to run, in report order.
//
// Outputs:
//
//	[]Section - One section per check, numbered from 1.
//	error - Non-nil only if ctx is done before all checks ran.
func RunAll(ctx context.Context, src *Source, checks []Check) ([]Section, error) {
	sections := make([]Section, 0, len(checks))
	for i, c := range checks {
		if err := ctx.Err(); err != nil {
			return sections, fmt.Errorf("checks canceled before %s: %w", c.ID, err)
		}
		section := runOne(ctx, src, c)
		section.Number = i + 1
		sections = append(sections, section)
	}
	return sections, nil
}

func runOne(ctx context.Context, src *Source, c Check) (section Section) {
	ctx, span := tracer.Start(ctx, "checks."+c.ID,
		trace.WithAttributes(
			attribute.String("check", c.ID),
			attribute.String("file", src.Path),
		),
	)
	defer span.End()

	start := time.Now()
	section = Section{ID: c.ID, Title: c.Title}
	outcome := "ran"

	defer func() {
		if r := recover(); r != nil {
			outcome = "failed"
			err := fmt.Errorf("panic: %v", r)
			section.Findings = []Finding{warn(fmt.Sprintf("%s check failed, skipping", c.Title))}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("check panicked",
				slog.String("check", c.ID),
				slog.String("file", src.Path),
				slog.Any("panic", r))
		}
		section.Duration = time.Since(start)
		span.SetAttributes(
			attribute.String("outcome", outcome),
			attribute.Int("findings", len(section.Findings)),
		)
		recordCheckMetrics(c.ID, outcome, section.Duration, section.Findings)
	}()

	if c.NeedsTree && !src.TreeOK() {
		outcome = "skipped"
		section.Findings = []Finding{warn(skipMessage(c, src))}
		return section
	}

	result, err := c.Run(ctx, src)
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("check failed",
			slog.String("check", c.ID),
			slog.String("file", src.Path),
			slog.String("error", err.Error()))
		section.Findings = []Finding{warn(fmt.Sprintf("%s check failed, skipping", c.Title))}
		return section
	}

	section.Summary = result.Summary
	section.Findings = result.Findings
	return section
}

func skipMessage(c Check, src *Source) string {
	reason := "source could not be parsed"
	if src.Tree != nil && src.Tree.SyntaxError() != nil {
		reason = src.Tree.SyntaxError().Error()
	}
	if c.SkipMessage == "" {
		return "AST analysis failed, skipping: " + reason
	}
	return fmt.Sprintf(c.SkipMessage, reason)
}
