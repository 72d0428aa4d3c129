// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report writes analysis output to the console and a log file at
// the same time.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// TimestampLayout is the timestamp format used in log file names.
const TimestampLayout = "20060102-150405"

// maxNameAttempts bounds the numeric suffix search in Open.
const maxNameAttempts = 1000

// ErrLogExists indicates every candidate log file name was taken.
var ErrLogExists = errors.New("report log name unavailable")

// Role selects the console style for a line. The log file copy is unstyled.
type Role int

const (
	RolePlain Role = iota
	RoleHeading
	RoleRule
	RoleOK
	RoleWarn
	RoleError
	RoleInfo
	RoleMuted
)

// Writer tees report lines to a console and a log file.
//
// Description:
//
//	Every line is written to both sinks. The first write error on either
//	sink is kept and returned by Err and Close; later writes are dropped.
//
// Thread Safety: Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	buf     *bufio.Writer
	console io.Writer
	styles  map[Role]lipgloss.Style
	err     error
}

// Open creates dir if needed and a new log file named
// <prefix>-YYYYMMDD-HHMMSS.txt inside it.
//
// Description:
//
//	An existing file is never overwritten. When the name is taken, a
//	numeric suffix is appended (<prefix>-YYYYMMDD-HHMMSS-1.txt, ...).
//	When styled is true the console copy is coloured.
//
// Inputs:
//
//	dir - Directory for the log file.
//	prefix - File name prefix.
//	now - Timestamp embedded in the name.
//	console - Console sink. May be nil to write the file only.
//	styled - Whether to colour the console copy.
//
// Outputs:
//
//	*Writer - The open writer. Close must be called.
//	error - Non-nil if the directory or file could not be created.
func Open(dir, prefix string, now time.Time, console io.Writer, styled bool) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir %s: %w", dir, err)
	}

	base := prefix + "-" + now.Format(TimestampLayout)
	for i := 0; i < maxNameAttempts; i++ {
		name := base + ".txt"
		if i > 0 {
			name = base + "-" + strconv.Itoa(i) + ".txt"
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating log file %s: %w", path, err)
		}

		w := &Writer{
			path:    path,
			file:    f,
			buf:     bufio.NewWriter(f),
			console: console,
		}
		if styled && console != nil {
			w.styles = newStyles(console)
		}
		return w, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrLogExists, base, dir)
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Line writes text followed by a newline with the plain role.
func (w *Writer) Line(text string) {
	w.Styled(RolePlain, text)
}

// Styled writes text followed by a newline, styling the console copy.
func (w *Writer) Styled(role Role, text string) {
	w.Parts(Part{Role: role, Text: text})
}

// Part is a run of text within one line.
type Part struct {
	Role Role
	Text string
}

// Parts writes one line assembled from parts.
func (w *Writer) Parts(parts ...Part) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return
	}

	var plain, styled []byte
	for _, p := range parts {
		plain = append(plain, p.Text...)
		styled = append(styled, w.render(p)...)
	}
	plain = append(plain, '\n')
	styled = append(styled, '\n')

	if _, err := w.buf.Write(plain); err != nil {
		w.err = fmt.Errorf("writing %s: %w", w.path, err)
		return
	}
	if w.console != nil {
		if _, err := w.console.Write(styled); err != nil {
			w.err = fmt.Errorf("writing console: %w", err)
		}
	}
}

func (w *Writer) render(p Part) string {
	if w.styles == nil {
		return p.Text
	}
	style, ok := w.styles[p.Role]
	if !ok {
		return p.Text
	}
	return style.Render(p.Text)
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close flushes and closes the log file. It returns the first write error
// seen during the writer's life.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return w.err
	}
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	w.file = nil

	if w.err != nil {
		return w.err
	}
	if flushErr != nil {
		return fmt.Errorf("flushing %s: %w", w.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", w.path, closeErr)
	}
	return nil
}

// IsTerminal reports whether out is a terminal.
func IsTerminal(out io.Writer) bool {
	f, ok := out.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newStyles builds console styles bound to a renderer for console. The
// renderer always emits ANSI colours; Open only calls it when styled.
func newStyles(console io.Writer) map[Role]lipgloss.Style {
	r := lipgloss.NewRenderer(console)
	r.SetColorProfile(termenv.ANSI)

	return map[Role]lipgloss.Style{
		RoleHeading: r.NewStyle().Bold(true),
		RoleRule:    r.NewStyle().Foreground(lipgloss.Color("8")),
		RoleOK:      r.NewStyle().Foreground(lipgloss.Color("2")),
		RoleWarn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		RoleError:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		RoleInfo:    r.NewStyle().Foreground(lipgloss.Color("6")),
		RoleMuted:   r.NewStyle().Faint(true),
	}
}
