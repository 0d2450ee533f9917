// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fixes

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Merge folds records pulled from a remote registry into the engine.
//
// # Description
//
// Records are matched by fix id. The incoming totals replace the record's
// remote counters and never touch local ones, so effective counters are
// local plus remote and repeated merges of the same pull are idempotent.
// Records whose id does not match their content, whose signature is
// malformed, or whose lineage would cycle are skipped. New records pass
// through the same dangerous-pattern screen as submissions.
//
// # Inputs
//
//   - ctx: Used for persistence and tracing.
//   - records: Remote records. Their Totals() are taken as the remote view.
//
// # Outputs
//
//   - MergeStats: Counts of added, updated, skipped and newly quarantined.
func (e *Engine) Merge(ctx context.Context, records []FixRecord) MergeStats {
	ctx, span := tracer.Start(ctx, "Engine.Merge")
	defer span.End()

	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	var stats MergeStats
	for _, in := range records {
		switch e.mergeOne(ctx, in, &stats) {
		case "added":
			stats.Added++
			merged.WithLabelValues("added").Inc()
		case "updated":
			stats.Updated++
			merged.WithLabelValues("updated").Inc()
		default:
			stats.Skipped++
			merged.WithLabelValues("skipped").Inc()
		}
	}

	span.SetAttributes(
		attribute.Int("added", stats.Added),
		attribute.Int("updated", stats.Updated),
		attribute.Int("skipped", stats.Skipped),
	)
	e.logger.Info("remote fixes merged",
		slog.Int("added", stats.Added),
		slog.Int("updated", stats.Updated),
		slog.Int("skipped", stats.Skipped),
		slog.Int("quarantined", stats.Quarantined))
	return stats
}

func (e *Engine) mergeOne(ctx context.Context, in FixRecord, stats *MergeStats) string {
	solution := strings.TrimSpace(in.Solution)
	if in.ID == "" || solution == "" || in.Signature.Validate() != nil {
		return "skipped"
	}
	if in.ID != ContentID(in.Signature, solution) {
		e.logger.Debug("remote fix id does not match content", slog.String("fix_id", in.ID))
		return "skipped"
	}

	remote := in.Totals().sanitize()
	remoteFraud := in.TotalFraudReports()
	if remoteFraud < 0 {
		remoteFraud = 0
	}

	if s := e.slotFor(in.ID); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		wasQuarantined := s.rec.Quarantined()
		s.rec.Remote = remote
		s.rec.RemoteFraud = remoteFraud
		e.screen(&s.rec)
		if !wasQuarantined && s.rec.Quarantined() {
			stats.Quarantined++
		}
		e.persist(ctx, s.rec)
		return "updated"
	}

	parent := strings.TrimSpace(in.DerivedFrom)
	if parent != "" {
		if err := e.checkLineage(in.ID, parent); err != nil && !errors.Is(err, ErrParentNotFound) {
			e.logger.Debug("remote fix lineage rejected",
				slog.String("fix_id", in.ID),
				slog.String("error", err.Error()))
			return "skipped"
		}
	}

	rec := FixRecord{
		ID:          in.ID,
		Signature:   in.Signature.Normalize(),
		Solution:    solution,
		Origin:      OriginRemote,
		CreatedAt:   in.CreatedAt.UTC(),
		DerivedFrom: parent,
		Remote:      remote,
		RemoteFraud: remoteFraud,
		Quarantine:  QuarantineNone,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = e.now().UTC()
	}
	e.screen(&rec)
	if rec.Quarantined() {
		stats.Quarantined++
	}
	e.persist(ctx, rec)

	e.mu.Lock()
	e.insertLocked(rec, nil, nil)
	e.mu.Unlock()
	return "added"
}

func (e *Engine) persist(ctx context.Context, rec FixRecord) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveRecord(ctx, rec); err != nil {
		persistErrors.Inc()
		e.logger.Warn("persist fix failed",
			slog.String("fix_id", rec.ID),
			slog.String("error", err.Error()))
	}
}

// LocalContributions returns records carrying local observations, with
// remote counters zeroed, for publishing to the registry.
func (e *Engine) LocalContributions() []FixRecord {
	var out []FixRecord
	for _, rec := range e.Snapshot() {
		if rec.Origin != OriginLocal && rec.Local == (Counters{}) && rec.FraudReports == 0 {
			continue
		}
		rec.Remote = Counters{}
		rec.RemoteFraud = 0
		out = append(out, rec)
	}
	return out
}
