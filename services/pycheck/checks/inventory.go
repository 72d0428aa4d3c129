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

	"github.com/AleutianAI/pycheck/services/pycheck/ast"
)

// FunctionDefinitions lists every def, nested functions and methods included.
func FunctionDefinitions() Check {
	return Check{
		ID:          "functions",
		Title:       "Function definitions",
		NeedsTree:   true,
		SkipMessage: "AST analysis failed, skipping function inventory: %s",
		Run: func(_ context.Context, src *Source) (Result, error) {
			functions := src.Tree.Functions()
			if len(functions) == 0 {
				return Result{Findings: []Finding{warn("no function definitions found (script-style code?)")}}, nil
			}
			findings := make([]Finding, 0, len(functions))
			for _, fn := range functions {
				prefix := "function"
				if fn.IsAsync {
					prefix = "async function"
				}
				findings = append(findings, info(fmt.Sprintf("%s: %s - line %d", prefix, fn.Signature(), fn.Line)))
			}
			return Result{Findings: findings}, nil
		},
	}
}

// ImportStatements lists every import statement.
//
// Imports come from the error-tolerant tree, so the inventory still runs
// when the file has a syntax error elsewhere.
func ImportStatements() Check {
	return Check{
		ID:    "imports",
		Title: "Import statements",
		Run: func(_ context.Context, src *Source) (Result, error) {
			if src.Tree == nil {
				return Result{}, fmt.Errorf("no syntax tree for %s", src.Path)
			}
			imports := src.Tree.Imports()
			if len(imports) == 0 {
				return Result{Findings: []Finding{warn("no import statements found")}}, nil
			}

			findings := make([]Finding, 0, len(imports))
			type stmtKey struct {
				line int
				text string
			}
			seen := make(map[stmtKey]bool, len(imports))
			for _, imp := range imports {
				// "import a, b" yields one entry per module but is one statement.
				key := stmtKey{line: imp.Line, text: imp.Statement}
				if imp.Kind == ast.ImportModule && seen[key] {
					continue
				}
				seen[key] = true
				findings = append(findings, info(fmt.Sprintf("%s: %s", imp.Kind, imp.Statement)))
			}
			return Result{Findings: findings}, nil
		},
	}
}
