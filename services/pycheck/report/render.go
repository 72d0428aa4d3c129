// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/pycheck/services/pycheck/checks"
	"github.com/AleutianAI/pycheck/services/pycheck/external"
)

// RuleWidth is the width of the "=" separator lines.
const RuleWidth = 80

var rule = strings.Repeat("=", RuleWidth)

const durationPrecision = time.Millisecond

// RenderAnalysis writes the banner, every section and the closing line.
func RenderAnalysis(w *Writer, r *checks.Report) {
	w.Styled(RoleHeading, "Analyzing file: "+r.Path)
	w.Styled(RoleRule, rule)

	for _, s := range r.Sections {
		renderSection(w, s)
	}

	w.Line("")
	w.Styled(RoleRule, rule)
	w.Styled(RoleHeading, "static analysis complete")
}

func renderSection(w *Writer, s checks.Section) {
	if s.Summary != "" {
		w.Parts(
			Part{Role: RoleHeading, Text: fmt.Sprintf("%d. %s:", s.Number, s.Title)},
			Part{Role: RolePlain, Text: " " + s.Summary},
		)
		if len(s.Findings) == 0 {
			return
		}
	} else {
		w.Line("")
		w.Styled(RoleHeading, fmt.Sprintf("%d. %s:", s.Number, s.Title))
	}

	for _, f := range s.Findings {
		renderFinding(w, f)
	}
}

func renderFinding(w *Writer, f checks.Finding) {
	role := levelRole(f.Level)

	text := f.Message
	if f.Line > 0 {
		text = fmt.Sprintf("line %d: %s", f.Line, f.Message)
	}
	if f.Source != "" {
		text += " - " + f.Source
	}

	parts := []Part{{Role: RolePlain, Text: "   "}}
	if sym := f.Level.Symbol(); sym != "" {
		parts = append(parts, Part{Role: role, Text: sym}, Part{Role: RolePlain, Text: " "})
	}
	parts = append(parts, Part{Role: messageRole(f.Level), Text: text})
	w.Parts(parts...)
}

// RenderExternal writes the external linter section with the given number.
func RenderExternal(w *Writer, number int, results []external.Result) {
	w.Line("")
	w.Styled(RoleHeading, fmt.Sprintf("%d. External linters:", number))

	if len(results) == 0 {
		w.Styled(RoleMuted, "   no external linters enabled")
		return
	}

	for _, res := range results {
		if res.Err != nil {
			w.Parts(
				Part{Role: RolePlain, Text: "   "},
				Part{Role: RoleError, Text: checks.LevelError.Symbol()},
				Part{Role: RolePlain, Text: fmt.Sprintf(" unable to run %s: %v", res.Tool, res.Err)},
			)
			continue
		}

		header := fmt.Sprintf("%s finished with exit code %d in %s", res.Tool, res.ExitCode, res.Duration.Round(durationPrecision))
		if res.OutputFile != "" {
			header += ", full output in " + res.OutputFile
		}
		w.Parts(
			Part{Role: RolePlain, Text: "   "},
			Part{Role: RoleInfo, Text: "→"},
			Part{Role: RolePlain, Text: " " + header},
		)
		for _, line := range res.Preview {
			w.Styled(RoleMuted, "     "+line)
		}
		if res.Truncated {
			w.Styled(RoleMuted, "     ...")
		}
		if res.Stderr != "" {
			w.Parts(
				Part{Role: RolePlain, Text: "   "},
				Part{Role: RoleWarn, Text: checks.LevelWarn.Symbol()},
				Part{Role: RolePlain, Text: " stderr: " + res.Stderr},
			)
		}
	}
}

func levelRole(l checks.Level) Role {
	switch l {
	case checks.LevelOK:
		return RoleOK
	case checks.LevelWarn:
		return RoleWarn
	case checks.LevelError:
		return RoleError
	default:
		return RoleInfo
	}
}

// messageRole keeps message text plain except for errors.
func messageRole(l checks.Level) Role {
	if l == checks.LevelError {
		return RoleError
	}
	return RolePlain
}
