// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checks holds the heuristic checks run against one Python file.
//
// Each check is an independent pass over either the raw lines or the
// parsed tree. Checks never share state and never fail the run: an error
// inside a check is reported as a warning in that check's section.
package checks

import (
	"strings"
	"time"

	"github.com/AleutianAI/pycheck/services/pycheck/ast"
)

// Level is the severity of a finding.
type Level int

const (
	// LevelInfo is a neutral inventory line.
	LevelInfo Level = iota

	// LevelOK means the check found nothing.
	LevelOK

	// LevelWarn is a suspected issue.
	LevelWarn

	// LevelError is a likely bug.
	LevelError
)

// String returns the label used in metrics and logs.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelOK:
		return "ok"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Symbol returns the marker printed before a finding.
func (l Level) Symbol() string {
	switch l {
	case LevelOK:
		return "✓"
	case LevelWarn:
		return "⚠"
	case LevelError:
		return "✗"
	default:
		return ""
	}
}

// Finding is one line of a check's output.
type Finding struct {
	Level   Level
	Message string

	// Line is the 1-based source line, or 0 when the finding is file-wide.
	Line int

	// Source is the trimmed offending source line, if any.
	Source string
}

// Result is what a check returns.
type Result struct {
	// Summary is printed inline after the section title when set.
	Summary  string
	Findings []Finding
}

// Section is a numbered, rendered check result.
type Section struct {
	Number   int
	ID       string
	Title    string
	Summary  string
	Findings []Finding
	Duration time.Duration
}

// Count returns the number of findings at the given level.
func (s Section) Count(level Level) int {
	n := 0
	for _, f := range s.Findings {
		if f.Level == level {
			n++
		}
	}
	return n
}

// Report is the outcome of running every check over one file.
type Report struct {
	RunID     string
	Path      string
	StartedAt time.Time
	Duration  time.Duration
	Sections  []Section
}

// Count returns the number of findings at the given level across all sections.
func (r *Report) Count(level Level) int {
	n := 0
	for _, s := range r.Sections {
		n += s.Count(level)
	}
	return n
}

// Section returns the section produced by the check with the given ID.
func (r *Report) Section(id string) (Section, bool) {
	for _, s := range r.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Source is one file prepared for analysis.
type Source struct {
	Path    string
	Content []byte

	// Lines is Content split on "\n", so line i+1 is Lines[i].
	Lines []string

	// Tree is the parsed file. It is nil only when parsing failed outright.
	Tree *ast.Tree
}

// NewSource normalizes line endings, splits content into lines and
// attaches the parsed tree.
func NewSource(path string, content []byte, tree *ast.Tree) *Source {
	content = ast.NormalizeNewlines(content)
	return &Source{
		Path:    path,
		Content: content,
		Lines:   strings.Split(string(content), "\n"),
		Tree:    tree,
	}
}

// TreeOK reports whether the tree exists and is free of syntax errors.
func (s *Source) TreeOK() bool {
	return s.Tree != nil && s.Tree.SyntaxError() == nil
}

func ok(message string) Finding {
	return Finding{Level: LevelOK, Message: message}
}

func info(message string) Finding {
	return Finding{Level: LevelInfo, Message: message}
}

func warn(message string) Finding {
	return Finding{Level: LevelWarn, Message: message}
}

// atLine builds a finding tied to a source line.
func atLine(level Level, lineNo int, message, source string) Finding {
	return Finding{Level: level, Line: lineNo, Message: message, Source: strings.TrimSpace(source)}
}
