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
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/pycheck/services/pycheck/ast"
)

// ExceptionHandling reports risky operations in a file with no try blocks.
//
// Risky operations are true divisions ("/" and "/=") and calls to input().
// Operations already inside a try statement are not collected.
func ExceptionHandling() Check {
	return Check{
		ID:          "exceptions",
		Title:       "Exception handling",
		NeedsTree:   true,
		SkipMessage: "AST analysis failed, skipping exception handling check: %s",
		Run: func(ctx context.Context, src *Source) (Result, error) {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			scan := scanRisky(src.Tree)

			if scan.hasTry {
				return Result{Findings: []Finding{ok("code contains exception handling")}}, nil
			}

			var findings []Finding
			if len(scan.divisions) > 0 {
				findings = append(findings, warn(
					"division operations without exception handling at lines: "+joinLines(scan.divisions)))
			}
			if len(scan.inputs) > 0 {
				findings = append(findings, warn(
					"input() calls without exception handling at lines: "+joinLines(scan.inputs)))
			}
			findings = append(findings, warn("no try/except exception handling found"))
			return Result{Findings: findings}, nil
		},
	}
}

type riskyScan struct {
	hasTry    bool
	divisions []int
	inputs    []int
}

func scanRisky(tree *ast.Tree) riskyScan {
	var scan riskyScan
	ast.Walk(tree.Root(), func(node, _ *sitter.Node) bool {
		switch node.Type() {
		case "try_statement":
			scan.hasTry = true
			return false
		case "binary_operator":
			if op := node.ChildByFieldName("operator"); op != nil && op.Type() == "/" {
				scan.divisions = append(scan.divisions, ast.Line(node))
			}
		case "augmented_assignment":
			if op := node.ChildByFieldName("operator"); op != nil && op.Type() == "/=" {
				scan.divisions = append(scan.divisions, ast.Line(node))
			}
		case "call":
			if fn := node.ChildByFieldName("function"); fn != nil &&
				fn.Type() == "identifier" && tree.Text(fn) == "input" {
				scan.inputs = append(scan.inputs, ast.Line(node))
			}
		}
		return true
	})
	return scan
}

func joinLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
