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
	"os"
	"strings"

	"github.com/AleutianAI/AleutianRouter/pkg/validation"
	"github.com/AleutianAI/AleutianRouter/services/fixes"
	"github.com/spf13/cobra"
)

// signatureFlags are shared by lookup and submit.
type signatureFlags struct {
	kind    string
	message string
	context string
	code    string
}

func (f *signatureFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", "", "exception kind, e.g. ModuleNotFoundError")
	cmd.Flags().StringVar(&f.message, "message", "", "error message")
	cmd.Flags().StringVar(&f.context, "context", "", "runtime context, e.g. python3.12")
	cmd.Flags().StringVar(&f.code, "code", "", "code surrounding the failure")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("message")
}

func (f *signatureFlags) signature() fixes.ErrorSignature {
	return fixes.ErrorSignature{
		ExceptionKind:   f.kind,
		Message:         f.message,
		RuntimeContext:  f.context,
		SurroundingCode: f.code,
	}
}

func newFixCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Look up, submit and rate fixes for runtime errors",
	}
	cmd.AddCommand(
		newFixLookupCmd(opts),
		newFixSubmitCmd(opts),
		newFixReportCmd(opts),
		newFixFraudCmd(opts),
		newFixShowCmd(opts),
		newFixLineageCmd(opts),
		newFixStatsCmd(opts),
	)
	return cmd
}

func newFixLookupCmd(opts *rootOptions) *cobra.Command {
	var sig signatureFlags
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "List known fixes for an error, most trusted first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := sig.signature()
			if err := s.Validate(); err != nil {
				return usageError{msg: err.Error()}
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if err := app.Engine.CheckSignature(s); err != nil {
					return usageError{msg: err.Error()}
				}
				results := app.Engine.Lookup(ctx, s)
				return opts.print(cmd, results, func() string { return renderFixResults(results) })
			})
		},
	}
	sig.register(cmd)
	return cmd
}

func newFixSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		sig          signatureFlags
		solution     string
		solutionFile string
		derivedFrom  string
	)
	cmd := &cobra.Command{
		Use:     "submit",
		Short:   "Submit a fix for an error",
		Example: `  aleutian-router fix submit --kind ModuleNotFoundError \
    --message "No module named 'requests'" --solution "pip install requests"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if solutionFile != "" {
				data, err := os.ReadFile(solutionFile)
				if err != nil {
					return err
				}
				solution = string(data)
			}
			if strings.TrimSpace(solution) == "" {
				return usageError{msg: "one of --solution or --solution-file is required"}
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				res, err := app.Engine.Submit(ctx, fixes.Submission{
					Signature:   sig.signature(),
					Solution:    solution,
					DerivedFrom: derivedFrom,
				})
				if err != nil {
					return err
				}
				return opts.print(cmd, res, func() string {
					switch {
					case res.Quarantined:
						return styles.Warning.Render(fmt.Sprintf("Fix %s stored but quarantined: %s", res.FixID, res.Reason))
					case res.Created:
						return styles.Title.Render("Submitted fix " + res.FixID)
					default:
						return styles.Muted.Render("Fix already known as " + res.FixID)
					}
				})
			})
		},
	}
	sig.register(cmd)
	cmd.Flags().StringVar(&solution, "solution", "", "solution text")
	cmd.Flags().StringVar(&solutionFile, "solution-file", "", "read the solution from a file")
	cmd.Flags().StringVar(&derivedFrom, "derived-from", "", "fix id this solution adapts")
	return cmd
}

func newFixReportCmd(opts *rootOptions) *cobra.Command {
	var contributor string
	cmd := &cobra.Command{
		Use:   "report <fix-id> <success|failure>",
		Short: "Report whether a fix worked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFixID(args[0])
			if err != nil {
				return err
			}
			outcome, err := fixes.ParseOutcome(args[1])
			if err != nil {
				return usageError{msg: err.Error()}
			}
			if err := validation.ValidateContributorID(contributor); err != nil {
				return usageError{msg: err.Error()}
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				who := contributor
				if who == "" {
					who = app.ContributorID
				}
				receipt := app.Engine.Report(ctx, id, outcome, who)
				if !receipt.Applied {
					return fmt.Errorf("%w: %s", fixes.ErrRecordNotFound, id)
				}
				return opts.print(cmd, receipt, func() string {
					return fmt.Sprintf("%s %s: %d ok / %d failed, %d contributors, tier %s",
						styles.Title.Render("Recorded"), shortID(receipt.FixID),
						receipt.SuccessCount, receipt.FailureCount, receipt.Contributors,
						tierStyle(receipt.Tier).Render(receipt.Tier.String()))
				})
			})
		},
	}
	cmd.Flags().StringVar(&contributor, "contributor", "", "contributor id (default: this machine)")
	return cmd
}

func newFixFraudCmd(opts *rootOptions) *cobra.Command {
	var contributor string
	cmd := &cobra.Command{
		Use:   "fraud <fix-id>",
		Short: "Report a fix as fraudulent or harmful",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFixID(args[0])
			if err != nil {
				return err
			}
			if err := validation.ValidateContributorID(contributor); err != nil {
				return usageError{msg: err.Error()}
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				who := contributor
				if who == "" {
					who = app.ContributorID
				}
				receipt := app.Engine.ReportFraud(ctx, id, who)
				if !receipt.Applied {
					return fmt.Errorf("%w: %s", fixes.ErrRecordNotFound, id)
				}
				return opts.print(cmd, receipt, func() string {
					msg := fmt.Sprintf("%d fraud reports on %s", receipt.FraudReports, shortID(receipt.FixID))
					if receipt.Quarantined {
						return styles.Error.Render(msg + ", quarantined")
					}
					return styles.Warning.Render(msg)
				})
			})
		},
	}
	cmd.Flags().StringVar(&contributor, "contributor", "", "contributor id (default: this machine)")
	return cmd
}

// fixDetail is the JSON shape of fix show.
type fixDetail struct {
	Record   fixes.FixRecord `json:"record"`
	Tier     fixes.TrustTier `json:"trust_tier"`
	Lineage  []string        `json:"lineage"`
	Children []string        `json:"children"`
}

func newFixShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <fix-id>",
		Short: "Show one fix with its trust tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFixID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(_ context.Context, app *App) error {
				d, err := describeFix(app.Engine, id)
				if err != nil {
					return err
				}
				return opts.print(cmd, d, func() string {
					return renderFix(d.Record, d.Tier, d.Lineage, d.Children)
				})
			})
		},
	}
}

func newFixLineageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <fix-id>",
		Short: "Show the fixes a fix was derived from and derived into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFixID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(_ context.Context, app *App) error {
				d, err := describeFix(app.Engine, id)
				if err != nil {
					return err
				}
				view := struct {
					FixID     string   `json:"fix_id"`
					Ancestors []string `json:"ancestors"`
					Children  []string `json:"children"`
				}{d.Record.ID, d.Lineage, d.Children}
				return opts.print(cmd, view, func() string {
					chain := append([]string{d.Record.ID}, d.Lineage...)
					lines := []string{styles.Title.Render(strings.Join(chain, " ← "))}
					for _, c := range d.Children {
						lines = append(lines, "  └ "+c)
					}
					return strings.Join(lines, "\n")
				})
			})
		},
	}
}

func newFixStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored fixes by origin and tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(_ context.Context, app *App) error {
				stats := app.Engine.Stats()
				return opts.print(cmd, stats, func() string {
					lines := []string{
						styles.Title.Render(fmt.Sprintf("%d fixes", stats.Records)),
						row("quarantined", fmt.Sprintf("%d", stats.Quarantined)),
					}
					for _, tier := range []fixes.TrustTier{fixes.TierHighlyTrusted, fixes.TierTrusted, fixes.TierExperimental, fixes.TierUnknown, fixes.TierQuarantined} {
						lines = append(lines, row(tier.String(), fmt.Sprintf("%d", stats.ByTier[tier.String()])))
					}
					return styles.Box.Render(strings.Join(lines, "\n"))
				})
			})
		},
	}
}

func parseFixID(arg string) (string, error) {
	id, err := validation.SanitizeFixID(arg)
	if err != nil {
		return "", usageError{msg: err.Error()}
	}
	return id, nil
}

func describeFix(engine *fixes.Engine, id string) (fixDetail, error) {
	rec, err := engine.Get(id)
	if err != nil {
		return fixDetail{}, err
	}
	lineage, err := engine.Lineage(id)
	if err != nil {
		return fixDetail{}, err
	}
	children, err := engine.Children(id)
	if err != nil {
		return fixDetail{}, err
	}
	if lineage == nil {
		lineage = []string{}
	}
	if children == nil {
		children = []string{}
	}
	return fixDetail{Record: rec, Tier: engine.Tier(rec), Lineage: lineage, Children: children}, nil
}
