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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/pycheck/services/pycheck"
	"github.com/AleutianAI/pycheck/services/pycheck/config"
	"github.com/AleutianAI/pycheck/services/pycheck/report"
)

// Flag values for the analyze command.
var (
	analyzeConfigPath  string
	analyzeLogDir      string
	analyzeExternal    bool
	analyzeNoExternal  bool
	analyzeWatch       bool
	analyzeMetricsFile string
	analyzeTrace       bool
	analyzeVerbose     bool
	analyzeNoColor     bool
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file.py>",
		Short: "Analyze a Python file and write a timestamped report",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyzeCommand,
	}

	f := cmd.Flags()
	f.StringVar(&analyzeConfigPath, "config", "", "YAML config file layered over the built-in defaults")
	f.StringVar(&analyzeLogDir, "log-dir", "", "directory for report logs (overrides config)")
	f.BoolVar(&analyzeExternal, "external", false, "run external linters (overrides config)")
	f.BoolVar(&analyzeNoExternal, "no-external", false, "skip external linters")
	f.BoolVar(&analyzeWatch, "watch", false, "re-run the analysis whenever the file changes")
	f.StringVar(&analyzeMetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	f.BoolVar(&analyzeTrace, "trace", false, "print OpenTelemetry spans to stderr")
	f.BoolVar(&analyzeVerbose, "verbose", false, "enable debug logging on stderr")
	f.BoolVar(&analyzeNoColor, "no-color", false, "disable console colours")
	cmd.MarkFlagsMutuallyExclusive("external", "no-external")

	return cmd
}

func runAnalyzeCommand(cmd *cobra.Command, args []string) (err error) {
	setupLogging(cmd.ErrOrStderr(), analyzeVerbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if analyzeTrace {
		shutdown, terr := setupTracing(cmd.ErrOrStderr())
		if terr != nil {
			return terr
		}
		defer func() {
			if serr := shutdown(context.Background()); serr != nil {
				slog.Warn("trace shutdown failed", slog.String("error", serr.Error()))
			}
		}()
	}
	if analyzeMetricsFile != "" {
		defer func() {
			if merr := writeMetrics(analyzeMetricsFile); merr != nil && err == nil {
				err = merr
			}
		}()
	}

	cfg, err := config.Load(ctx, analyzeConfigPath)
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cmd, cfg)

	svc, err := pycheck.NewService(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styled := useColor(cfg.Color, out, analyzeNoColor)
	path := args[0]

	run := func(ctx context.Context) error {
		logPath, err := svc.Run(ctx, path, out, styled)
		if err != nil {
			return err
		}
		slog.Debug("report written", slog.String("log_file", logPath))
		return nil
	}

	if err := run(ctx); err != nil {
		if !analyzeWatch {
			return err
		}
		slog.Error("analysis failed", slog.String("error", err.Error()))
	}
	if !analyzeWatch {
		return nil
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "watching "+path+" for changes, press Ctrl+C to stop")
	return pycheck.Watch(ctx, path, pycheck.DefaultDebounce, run)
}

// applyAnalyzeFlags layers explicitly set flags over cfg.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-dir") {
		cfg.LogDir = analyzeLogDir
	}
	if flags.Changed("external") {
		cfg.External.Enabled = analyzeExternal
	}
	if flags.Changed("no-external") {
		cfg.External.Enabled = !analyzeNoExternal
	}
	if flags.Changed("no-color") && analyzeNoColor {
		cfg.Color = config.ColorNever
	}
}

// useColor resolves the colour mode for out.
func useColor(mode string, out io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return report.IsTerminal(out)
}
