// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// OverrideFile is the on-disk format of user correction overrides.
//
//	corrections:
//	  tset: test
//	  crate: ""   # disable a built-in correction
type OverrideFile struct {
	Corrections map[string]string `yaml:"corrections"`
}

// LoadOverrides reads an override file and applies it via Reload.
// A missing file resets the table to the static corrections.
func (n *Normalizer) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		n.Reload(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read corrections %s: %w", path, err)
	}
	var file OverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse corrections %s: %w", path, err)
	}
	n.Reload(file.Corrections)
	return nil
}

// OverrideWatcher reloads a Normalizer whenever its override file changes.
//
// # Description
//
// Watches the parent directory rather than the file itself so that editors
// which save by rename are picked up.
//
// # Thread Safety
//
// Start should only be called once. Stop is safe to call multiple times.
type OverrideWatcher struct {
	path       string
	normalizer *Normalizer
	watcher    *fsnotify.Watcher
	logger     *slog.Logger
}

// NewOverrideWatcher loads path once and prepares a watcher for it.
//
// # Inputs
//
//   - path: Override YAML file. Need not exist yet.
//   - n: Normalizer to reload.
//
// # Outputs
//
//   - *OverrideWatcher: Ready-to-start watcher.
//   - error: Non-nil if the initial load or watcher creation fails.
func NewOverrideWatcher(path string, n *Normalizer) (*OverrideWatcher, error) {
	if err := n.LoadOverrides(path); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &OverrideWatcher{
		path:       filepath.Clean(path),
		normalizer: n,
		watcher:    watcher,
		logger:     n.logger,
	}, nil
}

// Start blocks until ctx is cancelled. Run it in a goroutine.
func (w *OverrideWatcher) Start(ctx context.Context) {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("failed to watch corrections directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("corrections watcher error", slog.String("error", err.Error()))

		case <-ctx.Done():
			return
		}
	}
}

func (w *OverrideWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if err := w.normalizer.LoadOverrides(w.path); err != nil {
		// Keep serving the previous table.
		w.logger.Warn("corrections reload failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
	}
}

// Stop releases the underlying watcher.
func (w *OverrideWatcher) Stop() error {
	return w.watcher.Close()
}
