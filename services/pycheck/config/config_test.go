// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pycheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_Embedded(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.LogDir)
	assert.Equal(t, "result", cfg.LogPrefix)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, ColorAuto, cfg.Color)
	assert.True(t, cfg.External.Enabled)
	assert.Equal(t, 60*time.Second, cfg.External.Timeout)
	assert.Equal(t, 10, cfg.External.PreviewLines)
	require.NoError(t, cfg.Validate())

	tools := cfg.External.EnabledTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "pylint", tools[0].Name)
	assert.Equal(t, "Pylint_out.txt", tools[0].Output)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "result", cfg.LogPrefix)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_dir: /tmp/reports
external:
  preview_lines: 3
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/reports", cfg.LogDir)
	assert.Equal(t, 3, cfg.External.PreviewLines)
	// Untouched keys keep their defaults.
	assert.Equal(t, "result", cfg.LogPrefix)
	assert.Equal(t, 60*time.Second, cfg.External.Timeout)
	assert.Len(t, cfg.External.Tools, 3)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_dir: from-file\n")
	t.Setenv("PYCHECK_LOG_DIR", "from-env")
	t.Setenv("PYCHECK_EXTERNAL_ENABLED", "false")
	t.Setenv("PYCHECK_EXTERNAL_TIMEOUT", "5s")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LogDir)
	assert.False(t, cfg.External.Enabled)
	assert.Equal(t, 5*time.Second, cfg.External.Timeout)
	assert.Nil(t, cfg.External.EnabledTools())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed", "log_dir: [", "parsing"},
		{"bad color", "color: purple", "Color"},
		{"empty prefix", "log_prefix: ''", "LogPrefix"},
		{"prefix with slash", "log_prefix: a/b", "LogPrefix"},
		{"zero size", "max_file_size: 0", "MaxFileSize"},
		{"tool without command", "external:\n  tools:\n    - name: x\n", "Command"},
		{"duplicate tool", "external:\n  tools:\n    - {name: x, command: x}\n    - {name: x, command: y}\n", "duplicate tool name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigFile)
}

func TestLoad_OversizedFile(t *testing.T) {
	path := writeConfig(t, "# "+strings.Repeat("x", MaxYAMLFileSize))

	_, err := Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrConfigFile)
}

func TestExternal_EnabledTools_PreservesOrder(t *testing.T) {
	ext := External{
		Enabled: true,
		Tools: []Tool{
			{Name: "a", Enabled: true},
			{Name: "b"},
			{Name: "c", Enabled: true},
		},
	}

	tools := ext.EnabledTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "a", tools[0].Name)
	assert.Equal(t, "c", tools[1].Name)
}
