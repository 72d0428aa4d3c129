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
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Rule Tables
// =============================================================================

//go:embed rules.yaml
var defaultRulesYAML []byte

// MaxRulesYAMLSize bounds the rule table document.
const MaxRulesYAMLSize = 64 * 1024

// Rules are the regex tables and name lists used by the line-based checks.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Rules struct {
	ShadowedBuiltins []string      `yaml:"shadowed_builtins"`
	Division         DivisionRules `yaml:"division"`
	Input            InputRules    `yaml:"input"`
	BugPatterns      []BugPattern  `yaml:"bug_patterns"`

	builtins map[string]bool
}

// DivisionRules flag divisions whose right side looks like zero.
type DivisionRules struct {
	Direct   string `yaml:"direct"`
	Indirect string `yaml:"indirect"`

	direct   *regexp.Regexp
	indirect *regexp.Regexp
}

// InputRules find user input and the validation that should accompany it.
type InputRules struct {
	Marker     string   `yaml:"marker"`
	Validation []string `yaml:"validation"`

	validation []*regexp.Regexp
}

// BugPattern is one anti-pattern regex and the message printed on a match.
type BugPattern struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`

	re *regexp.Regexp
}

// IsShadowedBuiltin reports whether name is in the builtin list.
func (r *Rules) IsShadowedBuiltin(name string) bool {
	return r.builtins[name]
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *Rules
	defaultRulesErr  error
)

// DefaultRules returns the embedded rule tables, compiled on first use.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func DefaultRules() (*Rules, error) {
	defaultRulesOnce.Do(func() {
		defaultRules, defaultRulesErr = LoadRules(defaultRulesYAML)
	})
	return defaultRules, defaultRulesErr
}

// LoadRules parses and compiles rule tables from YAML bytes.
//
// Description:
//
//	Every pattern is compiled up front so a bad table fails at startup
//	instead of mid-analysis. Input validation patterns are compiled
//	case-insensitively.
//
// Inputs:
//
//	data - Raw YAML bytes to parse.
//
// Outputs:
//
//	*Rules - The compiled tables.
//	error - Non-nil if parsing, compiling, or validation fails.
func LoadRules(data []byte) (*Rules, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadRules: empty YAML data")
	}
	if len(data) > MaxRulesYAMLSize {
		return nil, fmt.Errorf("LoadRules: YAML data exceeds maximum size (%d > %d)", len(data), MaxRulesYAMLSize)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("LoadRules: parsing YAML: %w", err)
	}

	if err := r.compile(); err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}

	slog.Debug("rule tables loaded",
		slog.Int("builtins", len(r.ShadowedBuiltins)),
		slog.Int("validation_patterns", len(r.Input.Validation)),
		slog.Int("bug_patterns", len(r.BugPatterns)),
	)

	return &r, nil
}

func (r *Rules) compile() error {
	if len(r.ShadowedBuiltins) == 0 {
		return fmt.Errorf("shadowed_builtins must not be empty")
	}
	r.builtins = make(map[string]bool, len(r.ShadowedBuiltins))
	for _, name := range r.ShadowedBuiltins {
		r.builtins[name] = true
	}

	var err error
	if r.Division.direct, err = compilePattern("division.direct", r.Division.Direct, false); err != nil {
		return err
	}
	if r.Division.indirect, err = compilePattern("division.indirect", r.Division.Indirect, false); err != nil {
		return err
	}

	if r.Input.Marker == "" {
		return fmt.Errorf("input.marker must not be empty")
	}
	r.Input.validation = make([]*regexp.Regexp, 0, len(r.Input.Validation))
	for i, pattern := range r.Input.Validation {
		re, err := compilePattern(fmt.Sprintf("input.validation[%d]", i), pattern, true)
		if err != nil {
			return err
		}
		r.Input.validation = append(r.Input.validation, re)
	}

	for i := range r.BugPatterns {
		bp := &r.BugPatterns[i]
		if bp.Description == "" {
			return fmt.Errorf("bug_patterns[%d]: description must not be empty", i)
		}
		if bp.re, err = compilePattern(fmt.Sprintf("bug_patterns[%d]", i), bp.Pattern, false); err != nil {
			return err
		}
	}

	return nil
}

func compilePattern(field, pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%s: pattern must not be empty", field)
	}
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return re, nil
}
