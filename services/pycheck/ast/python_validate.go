// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Messages match the wording CPython uses for the same constructs.
const (
	reasonInvalidSyntax     = "invalid syntax"
	reasonPrintStatement    = "Missing parentheses in call to 'print'. Did you mean print(...)?"
	reasonExecStatement     = "Missing parentheses in call to 'exec'. Did you mean exec(...)?"
	reasonPositionalAfterKw = "positional argument follows keyword argument"
	reasonPositionalAfterKk = "positional argument follows keyword argument unpacking"
	reasonSplatAfterKwSplat = "iterable argument unpacking follows keyword argument unpacking"
	reasonLeadingZeros      = "leading zeros in decimal integer literals are not permitted; use an 0o prefix for octal integers"
	reasonLongSuffix        = "invalid decimal literal"
	reasonDeleteCall        = "cannot delete function call"
)

// invalidConstruct reports node when it is valid to tree-sitter-python but
// rejected by the Python 3 compiler. The grammar keeps Python 2 statements
// and is looser than CPython about argument order, walrus placement and
// integer literals.
func (t *Tree) invalidConstruct(node *sitter.Node) *SyntaxError {
	switch node.Type() {
	case "print_statement":
		return t.constructError(node, reasonPrintStatement)
	case "exec_statement":
		return t.constructError(node, reasonExecStatement)
	case "raise_statement":
		// Python 2 "raise E, msg" parses as an expression list.
		if node.NamedChildCount() > 0 && node.NamedChild(0).Type() == "expression_list" {
			return t.constructError(node.NamedChild(0), reasonInvalidSyntax)
		}
	case "expression_statement":
		// An unparenthesized walrus cannot stand alone as a statement.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child.Type() == "named_expression" {
				return t.constructError(child, reasonInvalidSyntax)
			}
		}
	case "argument_list":
		return t.checkArgumentOrder(node)
	case "integer":
		return t.checkInteger(node)
	case "delete_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if bad := deletedCall(node.NamedChild(i)); bad != nil {
				return t.constructError(bad, reasonDeleteCall)
			}
		}
	case "comparison_operator":
		for i := 0; i < int(node.ChildCount()); i++ {
			if child := node.Child(i); child.Type() == "<>" {
				return t.constructError(child, reasonInvalidSyntax)
			}
		}
	}
	return nil
}

func (t *Tree) constructError(node *sitter.Node, reason string) *SyntaxError {
	return &SyntaxError{
		Location: Location{Line: Line(node), Column: int(node.StartPoint().Column) + 1},
		Token:    t.firstToken(node),
		Reason:   reason,
	}
}

// checkArgumentOrder applies the call argument ordering rules: positional
// arguments come before keywords, and "*it" never follows "**kw".
func (t *Tree) checkArgumentOrder(args *sitter.Node) *SyntaxError {
	var sawKeyword, sawKwSplat bool
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "comment":
		case "keyword_argument":
			sawKeyword = true
		case "dictionary_splat":
			sawKeyword = true
			sawKwSplat = true
		case "list_splat":
			if sawKwSplat {
				return t.constructError(arg, reasonSplatAfterKwSplat)
			}
		default:
			if sawKwSplat {
				return t.constructError(arg, reasonPositionalAfterKk)
			}
			if sawKeyword {
				return t.constructError(arg, reasonPositionalAfterKw)
			}
		}
	}
	return nil
}

// checkInteger rejects Python 2 octal literals such as 0777 and long
// literals such as 10L.
func (t *Tree) checkInteger(node *sitter.Node) *SyntaxError {
	text := t.Text(node)
	if strings.HasSuffix(text, "l") || strings.HasSuffix(text, "L") {
		return t.constructError(node, reasonLongSuffix)
	}
	if len(text) < 2 || text[0] != '0' || strings.ContainsAny(text, "jJ") {
		// Imaginary literals may keep leading zeros.
		return nil
	}
	if c := text[1]; c != '_' && (c < '0' || c > '9') {
		// 0x, 0o, 0b prefixes.
		return nil
	}
	if strings.Trim(text, "0_") != "" {
		return t.constructError(node, reasonLeadingZeros)
	}
	return nil
}

// deletedCall returns the first call among del targets, looking through
// tuples, lists and parentheses.
func deletedCall(target *sitter.Node) *sitter.Node {
	if target == nil {
		return nil
	}
	switch target.Type() {
	case "call":
		return target
	case "expression_list", "tuple", "list", "parenthesized_expression":
		for i := 0; i < int(target.NamedChildCount()); i++ {
			if bad := deletedCall(target.NamedChild(i)); bad != nil {
				return bad
			}
		}
	}
	return nil
}
