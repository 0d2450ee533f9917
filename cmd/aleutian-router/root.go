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
	"path/filepath"

	"github.com/AleutianAI/AleutianRouter/cmd/aleutian-router/config"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	json       bool
	verbose    bool

	// interactive reports whether prompts may be shown.
	interactive func() bool
}

func newRootOptions() *rootOptions {
	return &rootOptions{interactive: isInteractive}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aleutian-router",
		Short: "Route natural-language requests and share verified fixes",
		Long:  `aleutian-router classifies free-form requests into commands through a
layered pipeline and keeps a trust-ranked store of fixes for runtime errors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.aleutian/router.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "write JSON instead of styled output")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newClassifyCmd(opts),
		newFixCmd(opts),
		newServeCmd(opts),
		newSyncCmd(opts),
		newSafeModeCmd(opts),
	)
	return cmd
}

// loadConfig resolves the config path and loads it.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.RouterConfig, string, error) {
	path := o.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.RouterConfig{}, "", err
		}
		path = p
	}
	cfg, created, err := config.Load(path)
	if err != nil {
		return config.RouterConfig{}, "", err
	}
	if created && !o.json {
		fmt.Fprintf(cmd.ErrOrStderr(), "First run detected, created the config at %s\n", path)
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, path, nil
}

// withApp builds the App for one command and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	cfg, path, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := buildApp(ctx, cfg, filepath.Dir(path))
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)
	if err := app.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// print writes v as JSON or as the styled text from render.
func (o *rootOptions) print(cmd *cobra.Command, v any, render func() string) error {
	if o.json {
		return outputJSON(cmd.OutOrStdout(), v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), render())
	return err
}
