// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pycheck/services/pycheck/config"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeCommand_WritesReport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "demo.py")
	require.NoError(t, os.WriteFile(src, []byte("def main():\n    print(1 / 0)\n\nmain()\n"), 0o644))
	logDir := filepath.Join(dir, "logs")
	metrics := filepath.Join(dir, "metrics.prom")

	stdout, _, err := execute(t, "analyze", src, "--no-external", "--log-dir", logDir, "--metrics-file", metrics)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Analyzing file: "+src)
	assert.Contains(t, stdout, "possible division by zero")
	assert.NotContains(t, stdout, "\x1b[")

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "result-"))

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pycheck_checks_outcomes_total")
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	_, _, err := execute(t, "analyze", filepath.Join(t.TempDir(), "nope.py"), "--no-external")
	require.Error(t, err)
}

func TestAnalyzeCommand_RequiresOneArg(t *testing.T) {
	_, _, err := execute(t, "analyze")
	require.Error(t, err)
}

func TestAnalyzeCommand_ExternalFlagsExclusive(t *testing.T) {
	_, _, err := execute(t, "analyze", "x.py", "--external", "--no-external")
	require.Error(t, err)
}

func TestRulesCommand_ListsEverything(t *testing.T) {
	stdout, _, err := execute(t, "rules")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Unused variables")
	assert.Contains(t, stdout, "syntax tree")
	assert.Contains(t, stdout, "enumerate")
	assert.Contains(t, stdout, "possible infinite loop")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pycheck dev\n", stdout)
}

func TestApplyAnalyzeFlags(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	cmd := newAnalyzeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--log-dir", "/tmp/x", "--no-external", "--no-color"}))
	applyAnalyzeFlags(cmd, cfg)

	assert.Equal(t, "/tmp/x", cfg.LogDir)
	assert.False(t, cfg.External.Enabled)
	assert.Equal(t, config.ColorNever, cfg.Color)
}

func TestUseColor(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, useColor(config.ColorAlways, &buf, false))
	assert.False(t, useColor(config.ColorAlways, &buf, true))
	assert.False(t, useColor(config.ColorNever, &buf, false))
	assert.False(t, useColor(config.ColorAuto, &buf, false))
}
