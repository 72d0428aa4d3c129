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
	"regexp"
	"strconv"
	"strings"
)

// assignmentPattern matches a line that starts with "name =".
var assignmentPattern = regexp.MustCompile(`^\s*(\w+)\s*=`)

// LineCount counts lines with non-whitespace content.
func LineCount() Check {
	return Check{
		ID:    "lines",
		Title: "Line count",
		Run: func(_ context.Context, src *Source) (Result, error) {
			return Result{Summary: strconv.Itoa(CountCodeLines(src.Lines))}, nil
		},
	}
}

// CountCodeLines returns the number of lines that are not blank.
func CountCodeLines(lines []string) int {
	n := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// SyntaxErrors reports the first syntax error and its position.
func SyntaxErrors() Check {
	return Check{
		ID:    "syntax",
		Title: "Syntax check",
		Run: func(_ context.Context, src *Source) (Result, error) {
			if src.Tree == nil {
				return Result{}, fmt.Errorf("no syntax tree for %s", src.Path)
			}
			serr := src.Tree.SyntaxError()
			if serr == nil {
				return Result{Findings: []Finding{ok("no syntax errors")}}, nil
			}
			return Result{Findings: []Finding{
				{Level: LevelError, Message: "syntax error: " + serr.Message()},
				info("  position: " + serr.Location.String()),
			}}, nil
		},
	}
}

// DivisionByZero flags divisions whose divisor looks like a literal zero.
//
// Lines with a floor division operator are skipped entirely.
func DivisionByZero(rules *Rules) Check {
	return Check{
		ID:    "division",
		Title: "Division by zero risk",
		Run: func(_ context.Context, src *Source) (Result, error) {
			var findings []Finding
			for i, line := range src.Lines {
				if !strings.Contains(line, "/") || strings.Contains(line, "//") {
					continue
				}
				switch {
				case rules.Division.direct.MatchString(line):
					findings = append(findings, atLine(LevelError, i+1, "possible division by zero", line))
				case rules.Division.indirect.MatchString(line):
					findings = append(findings, atLine(LevelWarn, i+1, "possible indirect division by zero", line))
				}
			}
			if len(findings) == 0 {
				findings = append(findings, ok("no obvious division-by-zero risk"))
			}
			return Result{Findings: findings}, nil
		},
	}
}

// Shadowing flags assignments to names that shadow Python builtins.
func Shadowing(rules *Rules) Check {
	return Check{
		ID:    "shadowing",
		Title: "Variable name conflicts",
		Run: func(_ context.Context, src *Source) (Result, error) {
			var findings []Finding
			for i, line := range src.Lines {
				m := assignmentPattern.FindStringSubmatch(line)
				if m == nil || !rules.IsShadowedBuiltin(m[1]) {
					continue
				}
				msg := fmt.Sprintf("variable name '%s' shadows a builtin function/type", m[1])
				findings = append(findings, atLine(LevelWarn, i+1, msg, line))
			}
			if len(findings) == 0 {
				findings = append(findings, ok("no variable name conflicts"))
			}
			return Result{Findings: findings}, nil
		},
	}
}

// InputValidation reports input() calls and whether anything validates them.
func InputValidation(rules *Rules) Check {
	return Check{
		ID:    "input",
		Title: "Input validation",
		Run: func(_ context.Context, src *Source) (Result, error) {
			var findings []Finding
			hasInput, hasValidation := false, false

			for i, line := range src.Lines {
				if strings.Contains(line, rules.Input.Marker) {
					hasInput = true
					findings = append(findings, atLine(LevelWarn, i+1, "user input found", line))
				}
				if !hasValidation {
					for _, re := range rules.Input.validation {
						if re.MatchString(line) {
							hasValidation = true
							break
						}
					}
				}
			}

			switch {
			case hasInput && !hasValidation:
				findings = append(findings, Finding{
					Level:   LevelError,
					Message: "user input without validation may cause type errors or crashes",
				})
			case hasValidation:
				findings = append(findings, ok("code contains input validation"))
			default:
				findings = append(findings, ok("no user input found"))
			}
			return Result{Findings: findings}, nil
		},
	}
}

// BugPatterns runs the anti-pattern regex table over every line.
func BugPatterns(rules *Rules) Check {
	return Check{
		ID:    "patterns",
		Title: "Potential bug patterns",
		Run: func(_ context.Context, src *Source) (Result, error) {
			var findings []Finding
			for i, line := range src.Lines {
				for _, bp := range rules.BugPatterns {
					if bp.re.MatchString(line) {
						findings = append(findings, atLine(LevelWarn, i+1, bp.Description, line))
					}
				}
			}
			if len(findings) == 0 {
				findings = append(findings, ok("no obvious bug patterns"))
			}
			return Result{Findings: findings}, nil
		},
	}
}
