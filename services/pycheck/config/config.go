// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads pycheck tool settings.
//
// Settings are layered, lowest precedence first: the embedded defaults, an
// optional YAML file, PYCHECK_* environment variables, and finally command
// line flags applied by the caller. Heuristic rule tables are not part of
// the configuration.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed default_config.yaml
var defaultConfigYAML []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PYCHECK_"

// MaxYAMLFileSize bounds config files read from disk.
const MaxYAMLFileSize = 256 * 1024

// Colour modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

var tracer = otel.Tracer("pycheck.config")

// ErrConfigFile indicates the --config file could not be read.
var ErrConfigFile = errors.New("config file unreadable")

// =============================================================================
// Types
// =============================================================================

// Config holds the tool settings.
//
// Thread Safety: Not safe for concurrent mutation. Treat as read-only once
// Load returns.
type Config struct {
	// LogDir receives the report logs. Created on demand.
	LogDir string `yaml:"log_dir" env:"LOG_DIR" validate:"required"`

	// LogPrefix is the report file name prefix.
	LogPrefix string `yaml:"log_prefix" env:"LOG_PREFIX" validate:"required,excludesall=/\\"`

	// MaxFileSize is the largest accepted source file in bytes.
	MaxFileSize int64 `yaml:"max_file_size" env:"MAX_FILE_SIZE" validate:"gt=0"`

	// Color is one of auto, always, never.
	Color string `yaml:"color" env:"COLOR" validate:"oneof=auto always never"`

	External External `yaml:"external" envPrefix:"EXTERNAL_"`
}

// External configures the third-party linters run after the checks.
type External struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Timeout bounds all linters together.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`

	// PreviewLines is how many non-empty stdout lines are echoed per tool.
	PreviewLines int `yaml:"preview_lines" env:"PREVIEW_LINES" validate:"gte=0"`

	Tools []Tool `yaml:"tools" validate:"dive"`
}

// Tool is one external linter.
type Tool struct {
	Name    string   `yaml:"name" validate:"required"`
	Command string   `yaml:"command" validate:"required"`
	Args    []string `yaml:"args"`
	Enabled bool     `yaml:"enabled"`

	// Output is the file that receives the tool's stdout. Empty disables it.
	// A relative name is placed in LogDir beside the report.
	Output string `yaml:"output"`
}

// EnabledTools returns the enabled tools in configured order, or nil when
// external linting is off.
func (e External) EnabledTools() []Tool {
	if !e.Enabled {
		return nil
	}
	var tools []Tool
	for _, t := range e.Tools {
		if t.Enabled {
			tools = append(tools, t)
		}
	}
	return tools
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded defaults without file or env overrides.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("Default: parsing embedded YAML: %w", err)
	}
	return &cfg, nil
}

// Load builds the configuration from every layer except flags.
//
// Description:
//
//	Starts from the embedded defaults, overlays path when it is non-empty,
//	then applies PYCHECK_* environment variables. Keys missing from the file
//	keep their default. A tools list in the file replaces the default list.
//
// Inputs:
//
//	ctx - Context for tracing.
//	path - Optional YAML file. Empty skips the file layer.
//
// Outputs:
//
//	*Config - The merged, validated configuration.
//	error - Non-nil if any layer fails to parse or the result is invalid.
func Load(ctx context.Context, path string) (*Config, error) {
	_, span := tracer.Start(ctx, "config.Load")
	defer span.End()

	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load: parsing %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("Load: parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	span.SetAttributes(
		attribute.String("config_file", path),
		attribute.Bool("external_enabled", cfg.External.Enabled),
		attribute.Int("external_tools", len(cfg.External.EnabledTools())),
	)
	slog.Debug("config loaded",
		slog.String("file", path),
		slog.String("log_dir", cfg.LogDir),
		slog.Bool("external", cfg.External.Enabled),
	)

	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigFile, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrConfigFile, path)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("%w: %s exceeds maximum size (%d > %d)", ErrConfigFile, path, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigFile, err)
	}
	return data, nil
}

// Validate checks field constraints and tool name uniqueness.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("validation: %w", err)
	}

	seen := make(map[string]bool, len(c.External.Tools))
	for i, t := range c.External.Tools {
		if seen[t.Name] {
			return fmt.Errorf("validation: external.tools[%d]: duplicate tool name %q", i, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}
