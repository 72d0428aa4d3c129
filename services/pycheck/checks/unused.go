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

// ignoredNames are never reported as unused.
var ignoredNames = map[string]bool{
	"_":    true,
	"self": true,
	"cls":  true,
}

// UnusedVariables reports names that are bound but never read.
//
// Description:
//
//	Bindings are top-level and nested function names, def parameters and
//	plain identifier assignment targets. A read is any identifier outside a
//	binding position. Scopes are not modelled: a read anywhere in the file
//	counts. Methods are not bindings.
func UnusedVariables() Check {
	return Check{
		ID:          "unused",
		Title:       "Unused variables",
		NeedsTree:   true,
		SkipMessage: "AST analysis failed, skipping unused variable check: %s",
		Run: func(ctx context.Context, src *Source) (Result, error) {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			u := newUsage(src.Tree)
			u.collect()

			var findings []Finding
			for _, b := range u.bindings {
				if u.reads[b.name] {
					continue
				}
				msg := fmt.Sprintf("variable '%s' is defined but never used", b.name)
				findings = append(findings, atLine(LevelWarn, b.line, msg, sourceLine(src, b.line)))
			}
			if len(findings) == 0 {
				findings = append(findings, ok("no unused variables"))
			}
			return Result{Findings: findings}, nil
		},
	}
}

type binding struct {
	name string
	line int
}

// usage collects bindings and reads over one tree.
type usage struct {
	tree     *ast.Tree
	stores   map[uint32]bool
	seen     map[string]bool
	bindings []binding
	reads    map[string]bool
}

func newUsage(tree *ast.Tree) *usage {
	return &usage{
		tree:   tree,
		stores: make(map[uint32]bool),
		seen:   make(map[string]bool),
		reads:  make(map[string]bool),
	}
}

func (u *usage) collect() {
	// First pass: mark every identifier in a binding position.
	ast.Walk(u.tree.Root(), func(node, _ *sitter.Node) bool {
		switch node.Type() {
		case "function_definition":
			name := node.ChildByFieldName("name")
			u.markIdent(name)
			if !isMethod(node) {
				u.bind(name)
			}
			for _, p := range ast.Parameters(node.ChildByFieldName("parameters")) {
				u.markIdent(p.Ident)
				u.bind(p.Ident)
			}
		case "lambda":
			for _, p := range ast.Parameters(node.ChildByFieldName("parameters")) {
				u.markIdent(p.Ident)
			}
		case "class_definition":
			u.markIdent(node.ChildByFieldName("name"))
		case "assignment":
			left := node.ChildByFieldName("left")
			u.markStores(left)
			if left != nil && left.Type() == "identifier" {
				u.bind(left)
			}
		case "augmented_assignment", "for_statement", "for_in_clause":
			u.markStores(node.ChildByFieldName("left"))
		case "as_pattern":
			u.markStores(node.ChildByFieldName("alias"))
		case "except_clause":
			u.markExceptAlias(node)
		case "named_expression":
			u.markIdent(node.ChildByFieldName("name"))
		case "keyword_argument":
			u.markIdent(node.ChildByFieldName("name"))
		case "attribute":
			u.markIdent(node.ChildByFieldName("attribute"))
		case "import_statement", "import_from_statement", "future_import_statement",
			"global_statement", "nonlocal_statement":
			return false
		}
		return true
	})

	// Second pass: every unmarked identifier is a read.
	ast.Walk(u.tree.Root(), func(node, _ *sitter.Node) bool {
		switch node.Type() {
		case "import_statement", "import_from_statement", "future_import_statement",
			"global_statement", "nonlocal_statement":
			return false
		case "identifier":
			if !u.stores[node.StartByte()] {
				u.reads[u.tree.Text(node)] = true
			}
		}
		return true
	})
}

func (u *usage) markIdent(node *sitter.Node) {
	if node != nil && node.Type() == "identifier" {
		u.stores[node.StartByte()] = true
	}
}

// markStores marks identifiers bound by a target expression. Attribute and
// subscript targets bind nothing; the names inside them are reads.
func (u *usage) markStores(node *sitter.Node) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "identifier":
		u.markIdent(node)
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list",
		"expression_list", "parenthesized_expression", "list_splat_pattern",
		"as_pattern_target":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			u.markStores(node.NamedChild(i))
		}
	}
}

// markExceptAlias handles grammars that attach "as name" directly to the
// except clause instead of wrapping it in an as_pattern.
func (u *usage) markExceptAlias(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount())-1; i++ {
		if node.Child(i).Type() == "as" {
			u.markStores(node.Child(i + 1))
			return
		}
	}
}

func (u *usage) bind(node *sitter.Node) {
	if node == nil || node.Type() != "identifier" {
		return
	}
	name := u.tree.Text(node)
	if ignoredNames[name] || u.seen[name] {
		return
	}
	u.seen[name] = true
	u.bindings = append(u.bindings, binding{name: name, line: ast.Line(node)})
}

// isMethod reports whether a function_definition sits directly in a class body.
func isMethod(fn *sitter.Node) bool {
	parent := fn.Parent()
	if parent != nil && parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	if parent == nil || parent.Type() != "block" {
		return false
	}
	owner := parent.Parent()
	return owner != nil && owner.Type() == "class_definition"
}

// sourceLine returns the 1-based line n of src, or "".
func sourceLine(src *Source, n int) string {
	if n < 1 || n > len(src.Lines) {
		return ""
	}
	return src.Lines[n-1]
}
