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

	"github.com/AleutianAI/AleutianRouter/services/gateway"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the router and fix endpoints over HTTP",
		Long: `Serve exposes classification, safe-mode state and the fix store on a local
HTTP listener. Prometheus metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if !opts.verbose {
					gin.SetMode(gin.ReleaseMode)
				}
				cfg := app.Config.Gateway
				if addr != "" {
					cfg.Addr = addr
				}
				handlers := gateway.NewHandlers(app.Supervisor, app.Engine, app.Logger)
				return gateway.Serve(ctx, cfg, gateway.NewEngine(handlers, "aleutian-router"), app.Logger)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides gateway.addr)")
	return cmd
}
