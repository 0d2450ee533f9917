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

	"github.com/AleutianAI/AleutianRouter/services/fixes"
	"github.com/AleutianAI/AleutianRouter/services/fixes/registry"
	"github.com/spf13/cobra"
)

// syncReport is the JSON shape of sync.
type syncReport struct {
	Kinds     []string         `json:"kinds"`
	Pulled    int              `json:"pulled"`
	Merge     fixes.MergeStats `json:"merge"`
	Published int              `json:"published"`
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var (
		extraKinds []string
		noPublish  bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Exchange fixes with the crowd registry",
		Long:  `Sync pulls remote fixes for every exception kind held locally (plus any
--kind), merges their counters, then publishes local contributions.
Remote counters replace the previous pull, so repeated syncs never
double count.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if app.Registry == nil {
					return fmt.Errorf("%w: set registry.enabled in the config", registry.ErrDisabled)
				}
				report, err := syncRegistry(ctx, app.Engine, app.Registry, extraKinds, !noPublish)
				if err != nil {
					return err
				}
				return opts.print(cmd, report, func() string {
					return styles.Box.Render(fmt.Sprintf("%s\n%s\n%s\n%s",
						styles.Title.Render("Registry sync"),
						row("pulled", fmt.Sprintf("%d records over %d kinds", report.Pulled, len(report.Kinds))),
						row("merged", fmt.Sprintf("%d added, %d updated, %d skipped, %d quarantined",
							report.Merge.Added, report.Merge.Updated, report.Merge.Skipped, report.Merge.Quarantined)),
						row("published", fmt.Sprintf("%d", report.Published))))
				})
			})
		},
	}
	cmd.Flags().StringSliceVar(&extraKinds, "kind", nil, "also pull this exception kind (repeatable)")
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "pull and merge only")
	return cmd
}

// registryClient is the part of the registry sync uses.
type registryClient interface {
	EnsureSchema(ctx context.Context) error
	Pull(ctx context.Context, kinds []string) ([]fixes.FixRecord, error)
	Publish(ctx context.Context, records []fixes.FixRecord) (int, error)
}

// syncRegistry pulls, merges and optionally publishes.
func syncRegistry(ctx context.Context, engine *fixes.Engine, reg registryClient, extraKinds []string, publish bool) (syncReport, error) {
	if err := reg.EnsureSchema(ctx); err != nil {
		return syncReport{}, fmt.Errorf("ensure registry schema: %w", err)
	}

	local := engine.Snapshot()
	for _, k := range extraKinds {
		local = append(local, fixes.FixRecord{Signature: fixes.ErrorSignature{ExceptionKind: k}})
	}
	report := syncReport{Kinds: registry.KindsOf(local)}

	pulled, err := reg.Pull(ctx, report.Kinds)
	if err != nil {
		return report, fmt.Errorf("pull: %w", err)
	}
	report.Pulled = len(pulled)
	report.Merge = engine.Merge(ctx, pulled)

	if publish {
		report.Published, err = reg.Publish(ctx, engine.LocalContributions())
		if err != nil {
			return report, fmt.Errorf("publish: %w", err)
		}
	}
	return report, nil
}
