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

	"github.com/AleutianAI/AleutianRouter/services/intent/route"
	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const noneOfThese = "\x00none"

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <utterance...>",
		Short: "Route a request to a command",
		Long: `Classify runs the request through the layered router and prints the
route. On a terminal it asks to confirm spelling corrections and to pick
a target when several match equally well. Otherwise it prints JSON.`,
		Example: `  aleutian-router classify "pls delte the file report.txt"
  aleutian-router classify --json download llama`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				out := app.Supervisor.Handle(ctx, strings.Join(args, " "))
				if opts.json || !opts.interactive() {
					return outputJSON(cmd.OutOrStdout(), out)
				}
				confirmed, err := confirmOutcome(out)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(confirmed))
				return err
			})
		},
	}
}

// confirmOutcome asks the user to settle what the router left open.
//
// A route that needs disambiguation gets a target picker. A route that was
// only reached through spelling corrections gets a "did you mean"
// confirmation; declining turns it into an unknown route.
func confirmOutcome(out safemode.Outcome) (safemode.Outcome, error) {
	r := out.Route
	switch {
	case r.Payload.NeedsDisambiguation && len(r.Payload.Candidates) > 0:
		options := make([]huh.Option[string], 0, len(r.Payload.Candidates)+1)
		for _, c := range r.Payload.Candidates {
			options = append(options, huh.NewOption(fmt.Sprintf("%s (%.2f)", c.Identifier, c.Similarity), c.Identifier))
		}
		options = append(options, huh.NewOption("None of these", noneOfThese))

		var choice string
		err := huh.NewSelect[string]().
			Title(fmt.Sprintf("Which target did you mean for %s?", r.Type)).
			Options(options...).
			Value(&choice).
			Run()
		if err != nil {
			return out, err
		}
		if choice != noneOfThese {
			out.Route = chooseTarget(r, choice)
		}

	case len(r.Corrections) > 0 && !r.IsFallback() && r.Type != route.TypeDirectCommand:
		proceed := true
		err := huh.NewConfirm().
			Title("Did you mean: " + renderCorrections(r) + "?").
			Affirmative("Yes").
			Negative("No").
			Value(&proceed).
			Run()
		if err != nil {
			return out, err
		}
		if !proceed {
			out.Route = route.Unknown("correction declined")
		}
	}
	return out, nil
}

// chooseTarget settles a disambiguation with the user's pick.
func chooseTarget(r route.Route, target string) route.Route {
	r.Payload.Target = target
	r.Payload.NeedsDisambiguation = false
	r.Payload.Candidates = nil
	return r
}
