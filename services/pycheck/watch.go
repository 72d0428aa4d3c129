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
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change triggers a run.
const DefaultDebounce = 200 * time.Millisecond

// Watch calls fn each time the file at path changes, until ctx is done.
//
// Description:
//
//	The parent directory is watched so editors that replace the file on
//	save (write to temp, rename over) are still seen. Bursts of events
//	within debounce collapse into one call. An error from fn is logged and
//	watching continues.
//
// Inputs:
//
//	ctx - Cancel to stop watching.
//	path - The file to watch.
//	debounce - Quiet period. Zero or less uses DefaultDebounce.
//	fn - Called on the watching goroutine; calls never overlap.
//
// Outputs:
//
//	error - Non-nil if the watcher cannot be set up. Nil when ctx ends.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func(ctx context.Context) error) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch: adding %s: %w", filepath.Dir(target), err)
	}
	slog.Info("watching for changes",
		slog.String("file", target),
		slog.Duration("debounce", debounce))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			slog.Debug("change detected",
				slog.String("file", target),
				slog.String("op", event.Op.String()))
			timer.Reset(debounce)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", werr.Error()))
		case <-timer.C:
			if err := fn(ctx); err != nil {
				slog.Error("re-analysis failed",
					slog.String("file", target),
					slog.String("error", err.Error()))
			}
		}
	}
}
