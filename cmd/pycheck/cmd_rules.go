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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/pycheck/services/pycheck/checks"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the built-in checks and their patterns",
		Args:  cobra.NoArgs,
		RunE:  runRulesCommand,
	}
}

func runRulesCommand(cmd *cobra.Command, _ []string) error {
	rules, err := checks.DefaultRules()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Checks:")
	for i, c := range checks.Default(rules) {
		kind := "text"
		if c.NeedsTree {
			kind = "syntax tree"
		}
		fmt.Fprintf(out, "  %2d. %-24s %-11s (%s)\n", i+1, c.Title, c.ID, kind)
	}

	fmt.Fprintln(out, "\nShadowed builtins:")
	fmt.Fprintln(out, "  "+strings.Join(rules.ShadowedBuiltins, ", "))

	fmt.Fprintln(out, "\nDivision by zero:")
	fmt.Fprintf(out, "  direct:   %s\n", rules.Division.Direct)
	fmt.Fprintf(out, "  indirect: %s\n", rules.Division.Indirect)

	fmt.Fprintln(out, "\nInput validation (case-insensitive):")
	for _, p := range rules.Input.Validation {
		fmt.Fprintf(out, "  %s\n", p)
	}

	fmt.Fprintln(out, "\nBug patterns:")
	for _, bp := range rules.BugPatterns {
		fmt.Fprintf(out, "  %-28s %s\n", bp.Pattern, bp.Description)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pycheck version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pycheck "+Version)
		},
	}
}
