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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianRouter/cmd/aleutian-router/config"
	"github.com/AleutianAI/AleutianRouter/pkg/logging"
	"github.com/AleutianAI/AleutianRouter/pkg/telemetry"
	"github.com/AleutianAI/AleutianRouter/services/fixes"
	"github.com/AleutianAI/AleutianRouter/services/fixes/registry"
	"github.com/AleutianAI/AleutianRouter/services/fixes/storage"
	"github.com/AleutianAI/AleutianRouter/services/intent/fuzzy"
	"github.com/AleutianAI/AleutianRouter/services/intent/inference"
	"github.com/AleutianAI/AleutianRouter/services/intent/normalize"
	"github.com/AleutianAI/AleutianRouter/services/intent/patterns"
	"github.com/AleutianAI/AleutianRouter/services/intent/route"
	"github.com/AleutianAI/AleutianRouter/services/intent/router"
	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
	"github.com/google/uuid"
)

// App is every component built from one RouterConfig.
type App struct {
	Config     config.RouterConfig
	Logger     *slog.Logger
	Router     *router.Router
	Supervisor *safemode.Supervisor
	Engine     *fixes.Engine

	// Registry is nil when the crowd registry is disabled.
	Registry *registry.Client

	// ContributorID identifies this machine in reports and the registry.
	ContributorID string

	closers []func() error
}

// buildApp wires the router and the fix engine.
//
// Description:
//
//	Components are built bottom-up: logging and telemetry, the normalizer
//	with its override watcher, the classifier and resolver, the optional
//	inference collaborator, the router behind its supervisor, then Badger
//	storage, the engine and the optional registry client. Close releases
//	everything in reverse order.
//
// Inputs:
//
//	ctx - Bounds startup and the override watcher's lifetime.
//	cfg - Validated configuration.
//	stateDir - Directory for the contributor id file.
//
// Outputs:
//
//	*App - Ready to use. Caller must Close.
//	error - Non-nil if any component fails to start.
func buildApp(ctx context.Context, cfg config.RouterConfig, stateDir string) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "aleutian-router",
		JSON:    cfg.Logging.JSON,
	})
	app.closers = append(app.closers, logger.Close)
	app.Logger = logger.Slog()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	app.closers = append(app.closers, func() error { return shutdown(context.Background()) })

	app.ContributorID, err = loadContributorID(stateDir)
	if err != nil {
		return nil, err
	}

	normalizer := normalize.NewNormalizer(patterns.Vocabulary(), app.Logger)
	if path := cfg.Normalizer.CorrectionsFile; path != "" {
		if err := normalizer.LoadOverrides(path); err != nil {
			app.Logger.Warn("correction overrides not loaded", slog.String("path", path), slog.String("error", err.Error()))
		}
		if cfg.Normalizer.Watch {
			watcher, err := normalize.NewOverrideWatcher(path, normalizer)
			if err != nil {
				app.Logger.Warn("correction overrides not watched", slog.String("path", path), slog.String("error", err.Error()))
			} else {
				go watcher.Start(ctx)
				app.closers = append(app.closers, watcher.Stop)
			}
		}
	}

	resolver, err := fuzzy.NewResolver(cfg.Fuzzy)
	if err != nil {
		return nil, err
	}

	var collaborator router.Collaborator
	if cfg.Inference.Enabled {
		c, err := inference.NewOpenAICollaborator(cfg.Inference.Config, app.Logger)
		if err != nil {
			return nil, err
		}
		collaborator = c
	}

	state := safemode.NewState(cfg.SafeMode.Threshold)
	app.Router, err = router.New(cfg.Router, router.Dependencies{
		Normalizer:   normalizer,
		Classifier:   patterns.NewClassifier(nil, nil),
		Resolver:     resolver,
		Sources:      targetSources(cfg.Targets),
		Collaborator: collaborator,
		State:        state,
		Logger:       app.Logger,
	})
	if err != nil {
		return nil, err
	}
	app.Supervisor = safemode.NewSupervisor(app.Router, state, cfg.SafeMode.SafeCommands, app.Logger)

	storageCfg := cfg.Storage
	storageCfg.Logger = app.Logger
	db, err := storage.Open(storageCfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, db.Close)

	app.Engine, err = fixes.New(ctx, cfg.Fixes, storage.NewFixStore(db), app.Logger)
	if err != nil {
		return nil, err
	}

	if cfg.Registry.Enabled {
		regCfg := cfg.Registry
		if regCfg.NodeID == "" {
			regCfg.NodeID = app.ContributorID
		}
		app.Registry, err = registry.New(regCfg, app.Logger)
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Close releases components in reverse start order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func targetSources(cfg config.TargetsConfig) map[route.Type]fuzzy.Source {
	root := cfg.Root
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	files := fuzzy.NewDirectorySource(root)
	return map[route.Type]fuzzy.Source{
		route.TypeFileOp:         files,
		route.TypeScriptFix:      files,
		route.TypeScriptCreation: files,
		route.TypeModelMgmt:      fuzzy.NewStaticSource(cfg.Models...),
	}
}

// loadContributorID returns the id stored in dir, creating it on first use.
func loadContributorID(dir string) (string, error) {
	path := filepath.Join(dir, "contributor_id")
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read contributor id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("write contributor id: %w", err)
	}
	return id, nil
}
