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

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/pycheck/services/pycheck/ast"
)

// Stats are aggregate counts over one syntax tree.
type Stats struct {
	Loops        int
	Conditionals int
	Calls        int

	// Recursion lists self-calls in source order.
	Recursion []RecursiveCall
}

// RecursiveCall is a call to a function from inside its own body.
type RecursiveCall struct {
	Function string
	Line     int
}

// Structure reports loop, conditional and call counts plus naive recursion.
func Structure() Check {
	return Check{
		ID:          "structure",
		Title:       "Code structure",
		NeedsTree:   true,
		SkipMessage: "syntax error: %s",
		Run: func(ctx context.Context, src *Source) (Result, error) {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			stats := CollectStats(src.Tree)

			findings := []Finding{
				info(fmt.Sprintf("loops: %d", stats.Loops)),
				info(fmt.Sprintf("conditionals: %d", stats.Conditionals)),
				info(fmt.Sprintf("function calls: %d", stats.Calls)),
			}
			for _, rc := range stats.Recursion {
				msg := fmt.Sprintf("possible recursive call: %s()", rc.Function)
				findings = append(findings, atLine(LevelWarn, rc.Line, msg, sourceLine(src, rc.Line)))
			}
			return Result{Findings: findings}, nil
		},
	}
}

// CollectStats walks tree once for counts, then scans each def body for
// calls to its own name.
//
// Description:
//
//	Loops are for and while statements. Conditionals are if statements and
//	their elif clauses. A recursive call is a bare call to the enclosing
//	def's name, or self.name() / cls.name() inside a method. Calls inside a
//	nested def belong to the nested def. A call to some other module-level
//	function is not flagged, so a script that calls helper() from main()
//	reports no recursion. Tools that flag every call to any defined name
//	report more lines here.
//
// Thread Safety: Must not run concurrently with other walks over tree.
func CollectStats(tree *ast.Tree) Stats {
	var stats Stats
	ast.Walk(tree.Root(), func(node, _ *sitter.Node) bool {
		switch node.Type() {
		case "for_statement", "while_statement":
			stats.Loops++
		case "if_statement", "elif_clause":
			stats.Conditionals++
		case "call":
			stats.Calls++
		case "function_definition":
			stats.Recursion = append(stats.Recursion, recursiveCalls(tree, node)...)
		}
		return true
	})
	return stats
}

func recursiveCalls(tree *ast.Tree, fn *sitter.Node) []RecursiveCall {
	nameNode := fn.ChildByFieldName("name")
	body := fn.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}
	name := tree.Text(nameNode)
	method := isMethod(fn)

	var out []RecursiveCall
	ast.Walk(body, func(node, _ *sitter.Node) bool {
		switch node.Type() {
		case "function_definition", "class_definition":
			return false
		case "call":
			if callsSelf(tree, node.ChildByFieldName("function"), name, method) {
				out = append(out, RecursiveCall{Function: name, Line: ast.Line(node)})
			}
		}
		return true
	})
	return out
}

func callsSelf(tree *ast.Tree, callee *sitter.Node, name string, method bool) bool {
	if callee == nil {
		return false
	}
	switch callee.Type() {
	case "identifier":
		return !method && tree.Text(callee) == name
	case "attribute":
		if !method {
			return false
		}
		obj := callee.ChildByFieldName("object")
		attr := callee.ChildByFieldName("attribute")
		if obj == nil || attr == nil || obj.Type() != "identifier" {
			return false
		}
		recv := tree.Text(obj)
		return (recv == "self" || recv == "cls") && tree.Text(attr) == name
	}
	return false
}
