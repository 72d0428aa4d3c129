// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pycheck runs lightweight static analysis over one Python file.
//
// Usage:
//
//	pycheck analyze script.py
//	pycheck analyze script.py --no-external --log-dir ./reports
//	pycheck analyze script.py --watch
//	pycheck rules
//
// Every run prints the report to the console and writes the same text to
// <log-dir>/result-YYYYMMDD-HHMMSS.txt.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pycheck",
		Short:         "Lightweight static analysis for a single Python file",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newAnalyzeCmd(), newRulesCmd(), newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
