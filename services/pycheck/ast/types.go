// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast parses Python source with tree-sitter and exposes the small
// syntax-tree surface the heuristic checks need.
package ast

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultMaxFileSize is the largest source file Parse accepts (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize is the size above which Parse logs a warning (1MB).
	WarnFileSize = 1024 * 1024

	// MaxWalkDepth bounds the nesting depth Walk descends into.
	MaxWalkDepth = 512
)

var (
	// ErrFileTooLarge is returned when content exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent is returned when content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// Location is a 1-based line/column position in a source file.
type Location struct {
	Line   int
	Column int
}

// String renders the location as "line L, column C".
func (l Location) String() string {
	return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
}

// SyntaxError describes the first syntax error tree-sitter recovered from.
type SyntaxError struct {
	Location

	// Token is the offending source text, or the expected token when Missing.
	Token string

	// Missing is true when tree-sitter inserted a token the source lacked.
	Missing bool

	// Reason is set for constructs the grammar accepts but Python 3 rejects.
	Reason string
}

// Message describes the error without its location.
func (e *SyntaxError) Message() string {
	switch {
	case e.Reason != "":
		return e.Reason
	case e.Missing:
		return fmt.Sprintf("invalid syntax: missing %q", e.Token)
	case e.Token == "":
		return "invalid syntax"
	default:
		return fmt.Sprintf("invalid syntax near %q", e.Token)
	}
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return e.Message() + " (" + e.Location.String() + ")"
}

// Function is a single def statement, nested functions and methods included.
type Function struct {
	Name    string
	Params  []string
	Line    int
	IsAsync bool

	// Class is the enclosing class name for methods, empty otherwise.
	Class string
}

// Signature renders the function as name(a, b), or Class.name(a, b) for
// methods.
func (f Function) Signature() string {
	name := f.Name
	if f.Class != "" {
		name = f.Class + "." + name
	}
	return name + "(" + strings.Join(f.Params, ", ") + ")"
}

// ImportKind distinguishes "import x" from "from x import y".
type ImportKind int

const (
	// ImportModule is a plain "import x" statement.
	ImportModule ImportKind = iota

	// ImportFrom is a "from x import y" statement.
	ImportFrom
)

// String returns a human-readable name for the kind.
func (k ImportKind) String() string {
	switch k {
	case ImportModule:
		return "import module"
	case ImportFrom:
		return "from-import"
	default:
		return "unknown"
	}
}

// Import is one module referenced by an import statement.
//
// A statement such as "import os, sys" yields one Import per module, all
// sharing the same Statement and Line.
type Import struct {
	Kind ImportKind
	Path string
	Line int

	// Statement is the full source text of the import statement.
	Statement string
}

// NormalizeNewlines rewrites "\r\n" and lone "\r" line endings to "\n".
// It returns content unchanged when there is no carriage return.
func NormalizeNewlines(content []byte) []byte {
	if bytes.IndexByte(content, '\r') < 0 {
		return content
	}
	out := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
}
