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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// maxTokenDisplay bounds the offending-token text carried by SyntaxError.
const maxTokenDisplay = 40

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
//
// Example:
//
//	parser := NewPythonParser(WithPythonMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithPythonMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonParser turns Python source into a Tree.
//
// Description:
//
//	PythonParser uses tree-sitter, which is error tolerant: source with
//	syntax errors still yields a tree, and the first error is reported
//	through Tree.SyntaxError rather than as a Parse error.
//
// Thread Safety:
//
//	PythonParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser internally. The returned Tree is not.
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a new PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse parses Python source code.
//
// Description:
//
//	Parse validates the input, normalizes line endings to "\n", runs
//	tree-sitter over it, and eagerly extracts the first syntax error, the
//	function inventory, and the import inventory so those can be read later
//	without touching the tree again.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//     Tree-sitter parsing itself cannot be interrupted mid-parse.
//   - content: Raw Python source code bytes. Must be valid UTF-8.
//   - filePath: Path to the file, used for logging and tracing only.
//
// Outputs:
//   - *Tree: Parsed tree. Never nil on success. The caller must Close it.
//   - error: Non-nil for complete failures:
//   - ErrFileTooLarge: Content exceeds maxFileSize
//   - ErrInvalidContent: Content is not valid UTF-8
//   - Context errors: Context was canceled or timed out
//
// Example:
//
//	tree, err := parser.Parse(ctx, []byte("def hello(): pass"), "main.py")
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
//	if serr := tree.SyntaxError(); serr != nil {
//	    fmt.Println(serr)
//	}
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*Tree, error) {
	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()

	start := time.Now()

	fail := func(err error) (*Tree, error) {
		failParseSpan(span, err)
		recordParseMetrics("python", time.Since(start), false, false)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("parse canceled before start: %w", err))
	}

	if int64(len(content)) > p.maxFileSize {
		return fail(fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize))
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		return fail(fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent))
	}

	content = NormalizeNewlines(content)

	// New parser per call for thread safety.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tsTree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fail(fmt.Errorf("tree-sitter parse failed: %w", err))
	}

	if err := ctx.Err(); err != nil {
		tsTree.Close()
		return fail(fmt.Errorf("parse canceled after tree-sitter: %w", err))
	}

	t := &Tree{
		FilePath: filePath,
		content:  content,
		tree:     tsTree,
		root:     tsTree.RootNode(),
	}
	if t.root == nil {
		tsTree.Close()
		return fail(fmt.Errorf("tree-sitter returned nil root node"))
	}

	t.syntaxErr = t.findSyntaxError()
	t.functions = t.extractFunctions()
	t.imports = t.extractImports()

	slog.Debug("parsed python source",
		slog.String("file", filePath),
		slog.Int("functions", len(t.functions)),
		slog.Int("imports", len(t.imports)),
		slog.Bool("syntax_error", t.syntaxErr != nil))

	setParseSpanResult(span, len(t.functions), len(t.imports), t.syntaxErr != nil)
	recordParseMetrics("python", time.Since(start), true, t.syntaxErr != nil)

	return t, nil
}

// Extensions returns the file extensions this parser handles.
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// Tree is a parsed Python source file.
//
// Thread Safety:
//
//	SyntaxError, Functions and Imports are safe for concurrent reads.
//	Root, Text and any Walk over the tree must stay on one goroutine.
type Tree struct {
	FilePath string

	content   []byte
	tree      *sitter.Tree
	root      *sitter.Node
	syntaxErr *SyntaxError
	functions []Function
	imports   []Import
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t == nil || t.tree == nil {
		return
	}
	t.tree.Close()
	t.tree = nil
}

// Root returns the module node.
func (t *Tree) Root() *sitter.Node {
	return t.root
}

// Text returns the source text spanned by node.
func (t *Tree) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(t.content[node.StartByte():node.EndByte()])
}

// SyntaxError returns the first syntax error in source order, or nil.
func (t *Tree) SyntaxError() *SyntaxError {
	return t.syntaxErr
}

// Functions returns every def statement in source order.
func (t *Tree) Functions() []Function {
	return t.functions
}

// Imports returns every imported module in source order.
func (t *Tree) Imports() []Import {
	return t.imports
}

// findSyntaxError locates the first ERROR or MISSING node, or the first
// construct Python 3 rejects even though the grammar accepts it.
func (t *Tree) findSyntaxError() *SyntaxError {
	var found *SyntaxError
	Walk(t.root, func(node, _ *sitter.Node) bool {
		if found != nil {
			return false
		}
		switch {
		case node.IsMissing():
			found = &SyntaxError{
				Location: Location{Line: Line(node), Column: int(node.StartPoint().Column) + 1},
				Token:    node.Type(),
				Missing:  true,
			}
			return false
		case node.IsError():
			found = &SyntaxError{
				Location: Location{Line: Line(node), Column: int(node.StartPoint().Column) + 1},
				Token:    t.firstToken(node),
			}
			return false
		}
		found = t.invalidConstruct(node)
		return found == nil
	})

	if found == nil && t.root.HasError() {
		// HasError was set but no node owns it; report the module start.
		found = &SyntaxError{Location: Location{Line: 1, Column: 1}}
	}
	return found
}

// firstToken returns the first source line of node, truncated for display.
func (t *Tree) firstToken(node *sitter.Node) string {
	text := strings.TrimSpace(t.Text(node))
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	if utf8.RuneCountInString(text) > maxTokenDisplay {
		runes := []rune(text)
		text = string(runes[:maxTokenDisplay]) + "..."
	}
	return text
}

// extractFunctions collects every function_definition, nested ones included.
func (t *Tree) extractFunctions() []Function {
	functions := make([]Function, 0)
	Walk(t.root, func(node, _ *sitter.Node) bool {
		if node.Type() != "function_definition" {
			return true
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}

		fn := Function{
			Name:  t.Text(nameNode),
			Line:  Line(node),
			Class: t.enclosingClass(node),
		}
		if node.ChildCount() > 0 && node.Child(0).Type() == "async" {
			fn.IsAsync = true
		}
		if params := node.ChildByFieldName("parameters"); params != nil {
			fn.Params = t.parameterDisplayNames(params)
		}
		functions = append(functions, fn)
		return true
	})
	return functions
}

// enclosingClass returns the class name when fnNode is a method.
func (t *Tree) enclosingClass(fnNode *sitter.Node) string {
	parent := fnNode.Parent()
	if parent != nil && parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	if parent == nil || parent.Type() != "block" {
		return ""
	}
	owner := parent.Parent()
	if owner == nil || owner.Type() != "class_definition" {
		return ""
	}
	return t.Text(owner.ChildByFieldName("name"))
}

// parameterDisplayNames renders parameter names with their splat prefixes.
func (t *Tree) parameterDisplayNames(params *sitter.Node) []string {
	names := make([]string, 0, params.NamedChildCount())
	for _, param := range Parameters(params) {
		names = append(names, param.Prefix+t.Text(param.Ident))
	}
	return names
}

// Parameter is one named parameter of a def or lambda.
type Parameter struct {
	// Ident is the identifier node naming the parameter.
	Ident *sitter.Node

	// Prefix is "*" or "**" for splat parameters, empty otherwise.
	Prefix string
}

// Parameters returns the named parameters of a parameters or
// lambda_parameters node, skipping bare "*" and "/" separators.
func Parameters(params *sitter.Node) []Parameter {
	if params == nil {
		return nil
	}
	out := make([]Parameter, 0, params.NamedChildCount())
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if p, ok := parameter(params.NamedChild(i)); ok {
			out = append(out, p)
		}
	}
	return out
}

func parameter(node *sitter.Node) (Parameter, bool) {
	if node == nil {
		return Parameter{}, false
	}
	switch node.Type() {
	case "identifier":
		return Parameter{Ident: node}, true
	case "default_parameter", "typed_default_parameter":
		if name := node.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
			return Parameter{Ident: name}, true
		}
	case "typed_parameter":
		// typed_parameter wraps identifier or a splat pattern plus a type.
		if node.NamedChildCount() > 0 {
			return parameter(node.NamedChild(0))
		}
	case "list_splat_pattern", "dictionary_splat_pattern":
		prefix := "*"
		if node.Type() == "dictionary_splat_pattern" {
			prefix = "**"
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child.Type() == "identifier" {
				return Parameter{Ident: child, Prefix: prefix}, true
			}
		}
	}
	return Parameter{}, false
}

// extractImports walks the whole tree so imports inside function bodies
// and conditional blocks are found too.
func (t *Tree) extractImports() []Import {
	imports := make([]Import, 0)
	Walk(t.root, func(node, _ *sitter.Node) bool {
		switch node.Type() {
		case "import_statement":
			imports = append(imports, t.processImportStatement(node)...)
			return false
		case "import_from_statement", "future_import_statement":
			if imp, ok := t.processImportFromStatement(node); ok {
				imports = append(imports, imp)
			}
			return false
		}
		return true
	})
	return imports
}

// processImportStatement handles 'import foo' or 'import foo as bar' style imports.
func (t *Tree) processImportStatement(node *sitter.Node) []Import {
	var out []Import
	base := Import{Kind: ImportModule, Line: Line(node), Statement: t.Text(node)}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			imp := base
			imp.Path = t.Text(child)
			out = append(out, imp)
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				imp := base
				imp.Path = t.Text(name)
				out = append(out, imp)
			}
		}
	}
	return out
}

// processImportFromStatement handles 'from x import y' style imports. Path
// is the source module, with its leading dots for relative imports.
func (t *Tree) processImportFromStatement(node *sitter.Node) (Import, bool) {
	imp := Import{Kind: ImportFrom, Line: Line(node), Statement: t.Text(node)}
	if node.Type() == "future_import_statement" {
		imp.Path = "__future__"
		return imp, true
	}
	if module := node.ChildByFieldName("module_name"); module != nil {
		imp.Path = t.Text(module)
	}
	return imp, imp.Path != ""
}
