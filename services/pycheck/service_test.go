// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pycheck

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/pycheck/services/pycheck/ast"
	"github.com/AleutianAI/pycheck/services/pycheck/checks"
	"github.com/AleutianAI/pycheck/services/pycheck/config"
)

const sampleSource = `import os
from math import sqrt

list = [1, 2, 3]

def average(values, unused):
    return sum(values) / len(values)

def fact(n):
    if n <= 1:
        return 1
    return n * fact(n - 1)

n = input("number: ")
print(average([1, 2]) / 0)
print(fact(int(n)))
`

var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.LogDir = t.TempDir()
	cfg.External.Enabled = false
	return cfg
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.py")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	svc, err := NewService(cfg, WithClock(func() time.Time { return fixedTime }))
	require.NoError(t, err)
	return svc
}

func TestService_Analyze_Sections(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	r, err := svc.Analyze(context.Background(), writeSource(t, sampleSource))
	require.NoError(t, err)

	require.Len(t, r.Sections, 11)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, fixedTime, r.StartedAt)

	lines, _ := r.Section("lines")
	assert.Equal(t, "12", lines.Summary)

	division, _ := r.Section("division")
	assert.Equal(t, 1, division.Count(checks.LevelError))

	shadowing, _ := r.Section("shadowing")
	assert.Equal(t, 1, shadowing.Count(checks.LevelWarn))

	structure, _ := r.Section("structure")
	var recursion bool
	for _, f := range structure.Findings {
		if f.Message == "possible recursive call: fact()" {
			recursion = true
		}
	}
	assert.True(t, recursion)
}

func TestService_Analyze_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFileSize = 16
	svc := newTestService(t, cfg)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, t.TempDir())
	assert.ErrorIs(t, err, ErrNotAFile)

	_, err = svc.Analyze(ctx, filepath.Join(t.TempDir(), "missing.py"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = svc.Analyze(ctx, writeSource(t, strings.Repeat("x = 1\n", 10)))
	assert.ErrorIs(t, err, ast.ErrFileTooLarge)
}

func TestService_Analyze_InvalidUTF8(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	_, err := svc.Analyze(context.Background(), writeSource(t, "x = '\xff'\n"))
	assert.ErrorIs(t, err, ast.ErrInvalidContent)
}

func TestService_Run_WritesLog(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg)
	var console bytes.Buffer

	logPath, err := svc.Run(context.Background(), writeSource(t, sampleSource), &console, false)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.LogDir, "result-20250601-120000.txt"), logPath)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	log := string(data)
	assert.True(t, strings.HasPrefix(log, "Analyzing file: "))
	assert.Contains(t, log, "static analysis complete")
	assert.Contains(t, log, "11. Code structure:")
	assert.NotContains(t, log, "12. External linters:")
	assert.Contains(t, log, "report saved to "+logPath)
	assert.Equal(t, log, console.String())
}

func TestService_Run_ExternalSection(t *testing.T) {
	cfg := testConfig(t)
	cfg.External.Enabled = true
	cfg.External.Tools = []config.Tool{
		{Name: "ghost", Command: "pycheck-no-such-linter", Enabled: true},
	}
	svc := newTestService(t, cfg)

	logPath, err := svc.Run(context.Background(), writeSource(t, "x = 1\n"), nil, false)
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "12. External linters:")
	assert.Contains(t, string(data), "unable to run ghost")
}

func TestService_Run_LinterOutputBesideLog(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cfg := testConfig(t)
	cfg.External.Enabled = true
	cfg.External.Tools = []config.Tool{
		{Name: "lint", Command: "sh", Args: []string{"-c", `echo "checked $0"`}, Enabled: true, Output: "lint_out.txt"},
	}
	svc := newTestService(t, cfg)
	src := writeSource(t, "x = 1\n")

	logPath, err := svc.Run(context.Background(), src, nil, false)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(logPath), "lint_out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "checked "+src+"\n", string(data))
}

func TestService_Run_NoLogOnFailure(t *testing.T) {
	cfg := testConfig(t)
	svc := newTestService(t, cfg)

	_, err := svc.Run(context.Background(), filepath.Join(t.TempDir(), "missing.py"), nil, false)
	require.Error(t, err)

	entries, err := os.ReadDir(cfg.LogDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_Analyze_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	svc := newTestService(t, testConfig(t))
	_, err := svc.Analyze(context.Background(), writeSource(t, "x = 1\n"))
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
	}
	assert.True(t, names["pycheck.Analyze"])
	assert.True(t, names["checks.lines"])
}

func TestWatch_DebouncesChanges(t *testing.T) {
	path := writeSource(t, "x = 1\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 50*time.Millisecond, func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	// Let the watcher register before writing.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("x = 2\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.py"), []byte("y = 1\n"), 0o644))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
