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
	"strings"

	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
	"github.com/spf13/cobra"
)

// safeModePolicy is the JSON shape of safemode.
type safeModePolicy struct {
	Threshold    int             `json:"threshold"`
	SafeCommands []string        `json:"safe_commands"`
	Status       safemode.Status `json:"status"`
}

func newSafeModeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "safemode",
		Short: "Show the safe-mode policy",
		Long:  `Safemode prints how many consecutive unrouted requests switch the router
to the minimal command set, and which commands that set contains. Each CLI
invocation starts in normal mode; a running gateway reports its live state
at GET /v1/router/safemode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(_ context.Context, app *App) error {
				p := safeModePolicy{
					Threshold:    app.Supervisor.State().Threshold(),
					SafeCommands: app.Supervisor.SafeCommands(),
					Status:       app.Supervisor.State().Status(),
				}
				return opts.print(cmd, p, func() string {
					return styles.Box.Render(strings.Join([]string{
						styles.Title.Render("Safe mode"),
						row("mode", p.Status.Mode),
						row("threshold", fmt.Sprintf("%d consecutive fallbacks", p.Threshold)),
						row("commands", strings.Join(p.SafeCommands, ", ")),
					}, "\n"))
				})
			})
		},
	}
}
