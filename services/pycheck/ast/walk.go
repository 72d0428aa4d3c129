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
	sitter "github.com/smacker/go-tree-sitter"
)

// VisitFunc is called for every node reached by Walk. parent is nil for the
// starting node. Returning false skips the node's children.
type VisitFunc func(node, parent *sitter.Node) bool

// Walk traverses the subtree rooted at node in pre-order, left to right.
//
// Description:
//
//	Walk uses an explicit stack rather than recursion so deeply nested
//	expressions cannot exhaust the goroutine stack. Subtrees deeper than
//	MaxWalkDepth are not visited.
//
// Thread Safety:
//
//	Not safe for concurrent use on the same tree. go-tree-sitter caches node
//	wrappers per tree, so all walks over one Tree must happen on one goroutine.
func Walk(node *sitter.Node, fn VisitFunc) {
	if node == nil {
		return
	}

	type stackEntry struct {
		node   *sitter.Node
		parent *sitter.Node
		depth  int
	}

	stack := make([]stackEntry, 0, 64)
	stack = append(stack, stackEntry{node: node})

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if entry.depth > MaxWalkDepth {
			continue
		}
		if !fn(entry.node, entry.parent) {
			continue
		}

		// Push in reverse so children pop left to right.
		for i := int(entry.node.ChildCount()) - 1; i >= 0; i-- {
			child := entry.node.Child(i)
			if child == nil {
				continue
			}
			stack = append(stack, stackEntry{node: child, parent: entry.node, depth: entry.depth + 1})
		}
	}
}

// SameNode reports whether a and b refer to the same source span and type.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// Line returns the 1-based start line of node.
func Line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}
