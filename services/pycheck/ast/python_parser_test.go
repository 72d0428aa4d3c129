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
	"errors"
	"strings"
	"sync"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

const pythonTestSource = `"""Resistance calculator."""

import os
import sys as system, json
from math import sqrt, pi as PI
from . import local_module
from ..utils import *

class Circuit:
    def __init__(self, resistors):
        self.resistors = resistors

    @property
    def total(self):
        return sum(self.resistors)

async def fetch(url, *args, timeout=3, **kwargs):
    pass

def outer(a, b: int, c: str = "x"):
    import re
    def inner():
        return a
    return inner
`

func parseSource(t *testing.T, source string) *Tree {
	t.Helper()
	tree, err := NewPythonParser().Parse(context.Background(), []byte(source), "test.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(tree.Close)
	return tree
}

func TestPythonParser_Parse_EmptyFile(t *testing.T) {
	tree := parseSource(t, "")

	if tree.Root() == nil {
		t.Fatal("expected non-nil root")
	}
	if tree.SyntaxError() != nil {
		t.Errorf("expected no syntax error, got %v", tree.SyntaxError())
	}
	if len(tree.Functions()) != 0 {
		t.Errorf("expected no functions, got %d", len(tree.Functions()))
	}
	if tree.FilePath != "test.py" {
		t.Errorf("expected file path 'test.py', got %q", tree.FilePath)
	}
}

func TestPythonParser_Parse_Functions(t *testing.T) {
	tree := parseSource(t, pythonTestSource)

	fns := tree.Functions()
	want := []string{
		"Circuit.__init__(self, resistors)",
		"Circuit.total(self)",
		"fetch(url, *args, timeout, **kwargs)",
		"outer(a, b, c)",
		"inner()",
	}
	if len(fns) != len(want) {
		t.Fatalf("expected %d functions, got %d: %+v", len(want), len(fns), fns)
	}
	for i, w := range want {
		if got := fns[i].Signature(); got != w {
			t.Errorf("function %d: expected %q, got %q", i, w, got)
		}
	}

	if fns[0].Class != "Circuit" {
		t.Errorf("expected __init__ to belong to Circuit, got %q", fns[0].Class)
	}
	if fns[1].Class != "Circuit" {
		t.Errorf("expected decorated method to belong to Circuit, got %q", fns[1].Class)
	}
	if !fns[2].IsAsync {
		t.Error("expected fetch to be async")
	}
	if fns[3].Line != 20 {
		t.Errorf("expected outer on line 20, got %d", fns[3].Line)
	}
	if fns[4].Class != "" {
		t.Errorf("expected nested function to have no class, got %q", fns[4].Class)
	}
}

func TestPythonParser_Parse_Imports(t *testing.T) {
	tree := parseSource(t, pythonTestSource)

	imps := tree.Imports()
	if len(imps) != 7 {
		t.Fatalf("expected 7 imports, got %d: %+v", len(imps), imps)
	}

	if imps[0].Path != "os" || imps[0].Kind != ImportModule {
		t.Errorf("expected plain import of os, got %+v", imps[0])
	}
	if imps[1].Path != "sys" {
		t.Errorf("expected aliased import of sys, got %+v", imps[1])
	}
	if imps[2].Path != "json" || imps[2].Statement != "import sys as system, json" {
		t.Errorf("expected json sharing the statement, got %+v", imps[2])
	}
	if imps[3].Path != "math" || imps[3].Kind != ImportFrom {
		t.Errorf("expected from-import of math, got %+v", imps[3])
	}
	if imps[4].Path != "." {
		t.Errorf("expected relative import '.', got %+v", imps[4])
	}
	if imps[5].Path != "..utils" || imps[5].Statement != "from ..utils import *" {
		t.Errorf("expected wildcard import from ..utils, got %+v", imps[5])
	}
	if imps[6].Path != "re" || imps[6].Line != 21 {
		t.Errorf("expected inline import of re on line 21, got %+v", imps[6])
	}
}

func TestPythonParser_Parse_SyntaxError(t *testing.T) {
	source := "def broken(:\n    pass\n\nx = 1\n"
	tree := parseSource(t, source)

	serr := tree.SyntaxError()
	if serr == nil {
		t.Fatal("expected a syntax error")
	}
	if serr.Line != 1 {
		t.Errorf("expected error on line 1, got %d", serr.Line)
	}
	if !strings.Contains(serr.Error(), "line 1") {
		t.Errorf("expected message to carry the location, got %q", serr.Error())
	}
}

func TestPythonParser_Parse_UnclosedParen(t *testing.T) {
	source := "x = 1\nprint((x)\n"
	tree := parseSource(t, source)

	if tree.SyntaxError() == nil {
		t.Fatal("expected a syntax error for unclosed parenthesis")
	}
}

func TestPythonParser_Parse_RejectedConstructs(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
		column int
		reason string
	}{
		{"print statement", "x = 1\nprint \"hello\"\n", 2, 1, reasonPrintStatement},
		{"print chevron", "import sys\nprint >>sys.stderr, \"x\"\n", 2, 1, reasonPrintStatement},
		{"exec statement", "exec \"code\"\n", 1, 1, reasonExecStatement},
		{"raise with comma", "raise E, \"m\"\n", 1, 7, reasonInvalidSyntax},
		{"positional after keyword", "f(a=1, 2)\n", 1, 8, reasonPositionalAfterKw},
		{"positional after kwargs", "f(**kw, 2)\n", 1, 9, reasonPositionalAfterKk},
		{"splat after kwargs", "f(**kw, *args)\n", 1, 9, reasonSplatAfterKwSplat},
		{"keyword before class base", "class C(metaclass=M, Base):\n    pass\n", 1, 22, reasonPositionalAfterKw},
		{"bare walrus statement", "x := 1\n", 1, 1, reasonInvalidSyntax},
		{"octal without prefix", "x = 0777\n", 1, 5, reasonLeadingZeros},
		{"long suffix", "x = 10L\n", 1, 5, reasonLongSuffix},
		{"delete call", "del f()\n", 1, 5, reasonDeleteCall},
		{"delete call in tuple", "del a, f()\n", 1, 8, reasonDeleteCall},
		{"diamond operator", "if a <> b:\n    pass\n", 1, 6, reasonInvalidSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serr := parseSource(t, tt.source).SyntaxError()
			if serr == nil {
				t.Fatalf("expected a syntax error for %q", tt.source)
			}
			if serr.Line != tt.line || serr.Column != tt.column {
				t.Errorf("expected line %d column %d, got %s", tt.line, tt.column, serr.Location)
			}
			if serr.Message() != tt.reason {
				t.Errorf("expected %q, got %q", tt.reason, serr.Message())
			}
		})
	}
}

func TestPythonParser_Parse_AcceptedConstructs(t *testing.T) {
	sources := []string{
		"print(\"hello\")\n",
		"exec(\"code\")\n",
		"raise ValueError(\"m\") from None\n",
		"f(1, *args, a=2, *more, **kw)\n",
		"f(a=1, **kw, b=2)\n",
		"if (n := 10) > 5:\n    pass\n",
		"y = (x := 1)\n",
		"x = 0\ny = 00\nz = 0_0\nw = 0o777\nv = 0x1F\nu = 1_000\nc = 07j\n",
		"del a, b[0], c.d\n",
		"if a != b:\n    pass\n",
	}

	for _, source := range sources {
		if serr := parseSource(t, source).SyntaxError(); serr != nil {
			t.Errorf("expected %q to parse cleanly, got %v", source, serr)
		}
	}
}

func TestPythonParser_Parse_FirstErrorWins(t *testing.T) {
	tree := parseSource(t, "x = 0777\nprint \"late\"\n")

	serr := tree.SyntaxError()
	if serr == nil || serr.Line != 1 || serr.Message() != reasonLeadingZeros {
		t.Errorf("expected the octal literal on line 1 to be reported first, got %v", serr)
	}
}

func TestPythonParser_Parse_CRLF(t *testing.T) {
	tree := parseSource(t, "import os\r\n\r\ndef f(a):\r\n    return a\r\n")

	if tree.SyntaxError() != nil {
		t.Fatalf("expected CRLF source to parse cleanly, got %v", tree.SyntaxError())
	}
	fns := tree.Functions()
	if len(fns) != 1 || fns[0].Line != 3 {
		t.Fatalf("expected f on line 3, got %+v", fns)
	}
	if imps := tree.Imports(); len(imps) != 1 || imps[0].Statement != "import os" {
		t.Errorf("expected a clean import statement, got %+v", imps)
	}
}

func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\nb\n", "a\nb\n"},
		{"a\r\nb\r\n", "a\nb\n"},
		{"a\rb\r", "a\nb\n"},
		{"a\r\n\rb", "a\n\nb"},
	}
	for _, tt := range tests {
		if got := string(NormalizeNewlines([]byte(tt.in))); got != tt.want {
			t.Errorf("NormalizeNewlines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPythonParser_Parse_FileTooLarge(t *testing.T) {
	parser := NewPythonParser(WithPythonMaxFileSize(10))
	_, err := parser.Parse(context.Background(), []byte("x = 1234567890\n"), "big.py")

	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestPythonParser_Parse_InvalidUTF8(t *testing.T) {
	_, err := NewPythonParser().Parse(context.Background(), []byte{0xff, 0xfe, 0x00}, "bad.py")

	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestPythonParser_Parse_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPythonParser().Parse(ctx, []byte("x = 1"), "test.py")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPythonParser_Parse_Concurrent(t *testing.T) {
	parser := NewPythonParser()
	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := parser.Parse(context.Background(), []byte(pythonTestSource), "test.py")
			if err != nil {
				errs <- err
				return
			}
			defer tree.Close()
			if len(tree.Functions()) != 5 {
				errs <- errors.New("unexpected function count")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent parse failed: %v", err)
	}
}

func TestPythonParser_Extensions(t *testing.T) {
	parser := NewPythonParser()
	exts := parser.Extensions()
	if len(exts) != 2 || exts[0] != ".py" || exts[1] != ".pyi" {
		t.Errorf("unexpected extensions: %v", exts)
	}
}

func TestWalk_PreOrder(t *testing.T) {
	tree := parseSource(t, "a = b\nc = d\n")

	var identifiers []string
	Walk(tree.Root(), func(node, _ *sitter.Node) bool {
		if node.Type() == "identifier" {
			identifiers = append(identifiers, tree.Text(node))
		}
		return true
	})

	if strings.Join(identifiers, ",") != "a,b,c,d" {
		t.Errorf("expected source-order identifiers, got %v", identifiers)
	}
}

func TestWalk_SkipChildren(t *testing.T) {
	tree := parseSource(t, "def f():\n    x = 1\ny = 2\n")

	var identifiers []string
	Walk(tree.Root(), func(node, parent *sitter.Node) bool {
		if node.Type() == "function_definition" {
			return false
		}
		if node.Type() == "identifier" {
			identifiers = append(identifiers, tree.Text(node))
			if parent == nil {
				t.Error("expected identifier to have a parent")
			}
		}
		return true
	})

	if strings.Join(identifiers, ",") != "y" {
		t.Errorf("expected only y outside the skipped def, got %v", identifiers)
	}
}

func BenchmarkPythonParser_Parse(b *testing.B) {
	parser := NewPythonParser()
	content := []byte(pythonTestSource)
	for i := 0; i < b.N; i++ {
		tree, err := parser.Parse(context.Background(), content, "bench.py")
		if err != nil {
			b.Fatal(err)
		}
		tree.Close()
	}
}
