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
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.fixes")

// =============================================================================
// Configuration
// =============================================================================

// Config configures the engine.
type Config struct {
	Trust TrustConfig `yaml:"trust"`
	Match MatchConfig `yaml:"match"`
}

// DefaultConfig returns the default trust thresholds and match weights.
func DefaultConfig() Config {
	return Config{
		Trust: DefaultTrustConfig(),
		Match: DefaultMatchConfig(),
	}
}

// Validate checks both sections.
func (c Config) Validate() error {
	if err := c.Trust.Validate(); err != nil {
		return err
	}
	m := c.Match
	if m.MessageWeight <= 0 {
		return errors.New("invalid match config: message_weight must be positive")
	}
	if m.ContextWeight < 0 || m.CodeWeight < 0 || m.MinSimilarity < 0 || m.MinSimilarity > 1 || m.MaxResults < 0 {
		return errors.New("invalid match config: weights, min_similarity and max_results must be in range")
	}
	return nil
}

// =============================================================================
// Persistence Boundary
// =============================================================================

// Store persists records for write-through. Implementations must be safe
// for concurrent use; calls for the same fix id are serialized by the
// engine.
type Store interface {
	// SaveRecord writes the flat record.
	SaveRecord(ctx context.Context, rec FixRecord) error

	// SaveReport writes the record and, when contributorID is non-empty,
	// the contributor's vote, in one transaction.
	SaveReport(ctx context.Context, rec FixRecord, contributorID string) error

	// SaveFraudReport writes the record and the reporter in one transaction.
	SaveFraudReport(ctx context.Context, rec FixRecord, contributorID string) error

	// Load returns every stored record with its voters and fraud reporters.
	Load(ctx context.Context) ([]StoredRecord, error)
}

// StoredRecord is a record as loaded from a Store.
type StoredRecord struct {
	Record         FixRecord
	Voters         []string
	FraudReporters []string
}

// =============================================================================
// Results
// =============================================================================

// Submission is a new fix offered to the engine.
type Submission struct {
	Signature   ErrorSignature `json:"error_signature"`
	Solution    string         `json:"solution_text" validate:"required,max=65536"`
	DerivedFrom string         `json:"derived_from,omitempty" validate:"omitempty,hexadecimal,len=32"`
}

// SubmitResult describes an accepted submission.
type SubmitResult struct {
	FixID       string `json:"fix_id"`
	Created     bool   `json:"created"`
	Quarantined bool   `json:"quarantined"`
	Reason      string `json:"quarantine_reason,omitempty"`
}

// FixResult is one ranked lookup entry.
type FixResult struct {
	FixID              string         `json:"fix_id"`
	Signature          ErrorSignature `json:"error_signature"`
	Solution           string         `json:"solution_text"`
	Origin             Origin         `json:"origin"`
	Tier               TrustTier      `json:"trust_tier"`
	Similarity         float64        `json:"similarity"`
	SuccessRate        float64        `json:"success_rate"`
	SuccessCount       int64          `json:"success_count"`
	FailureCount       int64          `json:"failure_count"`
	UniqueContributors int64          `json:"unique_contributor_count"`
	DerivedFrom        string         `json:"derived_from,omitempty"`
	Lineage            []string       `json:"lineage,omitempty"`
}

// ReportReceipt describes the effect of Report.
type ReportReceipt struct {
	FixID          string    `json:"fix_id"`
	Applied        bool      `json:"applied"`
	NewContributor bool      `json:"new_contributor"`
	SuccessCount   int64     `json:"success_count"`
	FailureCount   int64     `json:"failure_count"`
	Contributors   int64     `json:"unique_contributor_count"`
	Tier           TrustTier `json:"trust_tier"`
}

// FraudReceipt describes the effect of ReportFraud.
type FraudReceipt struct {
	FixID        string `json:"fix_id"`
	Applied      bool   `json:"applied"`
	Counted      bool   `json:"counted"`
	FraudReports int64  `json:"fraud_report_count"`
	Quarantined  bool   `json:"quarantined"`
}

// MergeStats summarizes a Merge.
type MergeStats struct {
	Added       int `json:"added"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Quarantined int `json:"quarantined"`
}

// Stats summarizes the engine contents.
type Stats struct {
	Records     int            `json:"records"`
	Quarantined int            `json:"quarantined"`
	ByOrigin    map[Origin]int `json:"by_origin"`
	ByTier      map[string]int `json:"by_tier"`
}

// =============================================================================
// Engine
// =============================================================================

// slot holds one record and its contributor sets. mu serializes every
// mutation of the record, which makes the engine single-writer per fix id.
type slot struct {
	mu             sync.Mutex
	rec            FixRecord
	voters         map[string]struct{}
	fraudReporters map[string]struct{}
}

// Engine is the fix consensus engine.
//
// Description:
//
//	Records live in an append-only arena of slots addressed by fix id.
//	Quarantine is a flag on the record, never a removal. Reports lock only
//	their slot. Submissions and merges take a coarse submission lock so the
//	lineage check sees a consistent parent graph. Lookups copy records out
//	of their slots and rank the copies.
//
// Thread Safety: safe for concurrent use.
type Engine struct {
	config   Config
	store    Store
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	submitMu sync.Mutex

	mu       sync.RWMutex
	slots    []*slot
	index    map[string]int
	byKind   map[string][]int
	parents  map[string]string
	children map[string][]string
}

// New creates an engine and restores records from store.
//
// # Inputs
//
//   - ctx: Bounds the initial load.
//   - cfg: Engine configuration.
//   - store: Write-through persistence. Nil keeps records in memory only.
//   - logger: Nil uses slog.Default().
//
// # Outputs
//
//   - *Engine: Ready to use.
//   - error: Invalid config or a failed load.
func New(ctx context.Context, cfg Config, store Store, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		config:   cfg,
		store:    store,
		logger:   logger.With(slog.String("component", "fixes")),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		index:    make(map[string]int),
		byKind:   make(map[string][]int),
		parents:  make(map[string]string),
		children: make(map[string][]string),
	}
	if store != nil {
		if err := e.restore(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) restore(ctx context.Context) error {
	stored, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load fix records: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sr := range stored {
		if sr.Record.ID == "" {
			continue
		}
		rec := sr.Record
		rec.Local = rec.Local.sanitize()
		rec.Remote = rec.Remote.sanitize()
		e.insertLocked(rec, sr.Voters, sr.FraudReporters)
	}
	e.logger.Info("fix records restored", slog.Int("records", len(e.slots)))
	return nil
}

// insertLocked appends a slot. Caller holds e.mu for writing.
func (e *Engine) insertLocked(rec FixRecord, voters, fraudReporters []string) {
	if _, exists := e.index[rec.ID]; exists {
		return
	}
	s := &slot{
		rec:            rec,
		voters:         make(map[string]struct{}, len(voters)),
		fraudReporters: make(map[string]struct{}, len(fraudReporters)),
	}
	for _, v := range voters {
		s.voters[v] = struct{}{}
	}
	for _, f := range fraudReporters {
		s.fraudReporters[f] = struct{}{}
	}
	idx := len(e.slots)
	e.slots = append(e.slots, s)
	e.index[rec.ID] = idx
	kind := rec.Signature.ExceptionKind
	e.byKind[kind] = append(e.byKind[kind], idx)
	if rec.DerivedFrom != "" {
		e.parents[rec.ID] = rec.DerivedFrom
		e.children[rec.DerivedFrom] = append(e.children[rec.DerivedFrom], rec.ID)
	}
	recordsGauge.Set(float64(len(e.slots)))
}

func (e *Engine) slotFor(id string) *slot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if idx, ok := e.index[id]; ok {
		return e.slots[idx]
	}
	return nil
}

// Tier derives the trust tier of rec with the engine's thresholds.
func (e *Engine) Tier(rec FixRecord) TrustTier {
	return e.config.Trust.Tier(rec)
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// -----------------------------------------------------------------------------
// Submit
// -----------------------------------------------------------------------------

// Submit stores a new fix and returns its content-hash id.
//
// # Description
//
// Resubmitting identical content returns the existing id. A solution
// matching a dangerous-operation pattern is stored quarantined. derived_from
// must name an existing fix and must not create a cycle.
//
// # Outputs
//
//   - SubmitResult: The fix id and whether it was created or quarantined.
//   - error: ErrMalformedSignature, ErrEmptySolution, ErrInvalidSubmission,
//     ErrParentNotFound, ErrCyclicLineage, ErrLineageTooDeep,
//     ErrLineageImmutable, or a persistence error.
func (e *Engine) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.Submit")
	defer span.End()

	result, err := e.submit(ctx, sub)
	if err != nil {
		submissions.WithLabelValues("rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission rejected")
		e.logger.Info("fix submission rejected", slog.String("error", err.Error()))
		return SubmitResult{}, err
	}
	span.SetAttributes(
		attribute.String("fix_id", result.FixID),
		attribute.Bool("created", result.Created),
		attribute.Bool("quarantined", result.Quarantined),
	)
	if result.Created {
		submissions.WithLabelValues("created").Inc()
	} else {
		submissions.WithLabelValues("existing").Inc()
	}
	return result, nil
}

func (e *Engine) submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	if err := e.validateSubmission(sub); err != nil {
		return SubmitResult{}, err
	}

	solution := strings.TrimSpace(sub.Solution)
	parent := strings.TrimSpace(sub.DerivedFrom)
	id := ContentID(sub.Signature, solution)

	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	if parent != "" {
		if err := e.checkLineage(id, parent); err != nil {
			return SubmitResult{}, err
		}
	}

	if s := e.slotFor(id); s != nil {
		s.mu.Lock()
		existing := s.rec
		s.mu.Unlock()
		if parent != "" && parent != existing.DerivedFrom {
			return SubmitResult{}, fmt.Errorf("%w: %s", ErrLineageImmutable, id)
		}
		return SubmitResult{
			FixID:       id,
			Quarantined: e.Tier(existing) == TierQuarantined,
			Reason:      existing.QuarantineReason,
		}, nil
	}

	rec := FixRecord{
		ID:          id,
		Signature:   sub.Signature.Normalize(),
		Solution:    solution,
		Origin:      OriginLocal,
		CreatedAt:   e.now().UTC(),
		DerivedFrom: parent,
		Quarantine:  QuarantineNone,
	}
	e.screen(&rec)

	if e.store != nil {
		if err := e.store.SaveRecord(ctx, rec); err != nil {
			persistErrors.Inc()
			return SubmitResult{}, fmt.Errorf("persist fix %s: %w", id, err)
		}
	}

	e.mu.Lock()
	e.insertLocked(rec, nil, nil)
	e.mu.Unlock()

	e.logger.Debug("fix submitted",
		slog.String("fix_id", id),
		slog.String("exception_kind", rec.Signature.ExceptionKind),
		slog.String("derived_from", parent))

	return SubmitResult{
		FixID:       id,
		Created:     true,
		Quarantined: rec.Quarantined(),
		Reason:      rec.QuarantineReason,
	}, nil
}

// CheckSignature reports whether sig is usable as a lookup key. Missing or
// oversized fields fail with ErrMalformedSignature.
func (e *Engine) CheckSignature(sig ErrorSignature) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	if err := e.validate.Struct(sig); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return nil
}

func (e *Engine) validateSubmission(sub Submission) error {
	if err := sub.Signature.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(sub.Solution) == "" {
		return ErrEmptySolution
	}
	if err := e.validate.Struct(sub.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if err := e.validate.Struct(sub); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	return nil
}

// screen quarantines rec when its solution matches a dangerous pattern or
// its fraud reports already reach the threshold.
func (e *Engine) screen(rec *FixRecord) {
	if rec.Quarantined() {
		return
	}
	if name, ok := MatchDangerous(rec.Solution); ok {
		rec.Quarantine = QuarantineActive
		rec.QuarantineReason = ReasonDangerousPattern + ":" + name
		quarantined.WithLabelValues(ReasonDangerousPattern).Inc()
		e.logger.Info("fix quarantined",
			slog.String("fix_id", rec.ID),
			slog.String("reason", rec.QuarantineReason))
		return
	}
	if rec.TotalFraudReports() >= e.config.Trust.FraudReportThreshold {
		rec.Quarantine = QuarantineActive
		rec.QuarantineReason = ReasonFraudReports
		quarantined.WithLabelValues(ReasonFraudReports).Inc()
		e.logger.Info("fix quarantined",
			slog.String("fix_id", rec.ID),
			slog.String("reason", rec.QuarantineReason))
	}
}

// checkLineage walks parent pointers from parent and refuses when id is
// reached or the chain exceeds MaxLineageDepth.
func (e *Engine) checkLineage(id, parent string) error {
	if parent == id {
		return fmt.Errorf("%w: %s derives from itself", ErrCyclicLineage, id)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.index[parent]; !ok {
		return fmt.Errorf("%w: %s", ErrParentNotFound, parent)
	}
	depth := 0
	for cur := parent; cur != ""; cur = e.parents[cur] {
		if cur == id {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrCyclicLineage, id, parent)
		}
		depth++
		if depth > e.config.Trust.MaxLineageDepth {
			return fmt.Errorf("%w: more than %d ancestors", ErrLineageTooDeep, e.config.Trust.MaxLineageDepth)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Report
// -----------------------------------------------------------------------------

// Report records the outcome of applying a fix.
//
// # Description
//
// Success or failure is always counted. unique_contributor_count grows only
// the first time contributorID reports on this fix; an empty contributorID
// never counts as a contributor. The tier is derived afterwards from the
// new counters. Report never fails: an unknown fix id or outcome yields
// Applied=false.
func (e *Engine) Report(ctx context.Context, fixID string, outcome Outcome, contributorID string) ReportReceipt {
	ctx, span := tracer.Start(ctx, "Engine.Report")
	defer span.End()
	span.SetAttributes(attribute.String("fix_id", fixID), attribute.String("outcome", string(outcome)))

	receipt := ReportReceipt{FixID: fixID}
	if outcome != OutcomeSuccess && outcome != OutcomeFailure {
		reports.WithLabelValues("invalid").Inc()
		return receipt
	}
	s := e.slotFor(fixID)
	if s == nil {
		reports.WithLabelValues("unknown_fix").Inc()
		e.logger.Debug("report for unknown fix", slog.String("fix_id", fixID))
		return receipt
	}

	s.mu.Lock()
	if outcome == OutcomeSuccess {
		s.rec.Local.Success++
	} else {
		s.rec.Local.Failure++
	}
	contributorID = strings.TrimSpace(contributorID)
	if contributorID != "" {
		if _, seen := s.voters[contributorID]; !seen {
			s.voters[contributorID] = struct{}{}
			s.rec.Local.Contributors++
			receipt.NewContributor = true
		}
	}
	rec := s.rec
	if e.store != nil {
		if err := e.store.SaveReport(ctx, rec, contributorID); err != nil {
			persistErrors.Inc()
			e.logger.Warn("persist report failed",
				slog.String("fix_id", fixID),
				slog.String("error", err.Error()))
		}
	}
	s.mu.Unlock()

	reports.WithLabelValues(string(outcome)).Inc()
	receipt.Applied = true
	receipt.SuccessCount = rec.SuccessCount()
	receipt.FailureCount = rec.FailureCount()
	receipt.Contributors = rec.UniqueContributors()
	receipt.Tier = e.Tier(rec)
	span.SetAttributes(attribute.String("tier", receipt.Tier.String()))
	return receipt
}

// ReportFraud records a community fraud report.
//
// One report counts per contributor; an empty contributorID is ignored.
// Reaching FraudReportThreshold quarantines the fix permanently.
func (e *Engine) ReportFraud(ctx context.Context, fixID, contributorID string) FraudReceipt {
	ctx, span := tracer.Start(ctx, "Engine.ReportFraud")
	defer span.End()
	span.SetAttributes(attribute.String("fix_id", fixID))

	receipt := FraudReceipt{FixID: fixID}
	s := e.slotFor(fixID)
	if s == nil {
		return receipt
	}
	receipt.Applied = true
	contributorID = strings.TrimSpace(contributorID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if contributorID != "" {
		if _, seen := s.fraudReporters[contributorID]; !seen {
			s.fraudReporters[contributorID] = struct{}{}
			s.rec.FraudReports++
			receipt.Counted = true
			e.screen(&s.rec)
			if e.store != nil {
				if err := e.store.SaveFraudReport(ctx, s.rec, contributorID); err != nil {
					persistErrors.Inc()
					e.logger.Warn("persist fraud report failed",
						slog.String("fix_id", fixID),
						slog.String("error", err.Error()))
				}
			}
		}
	}
	receipt.FraudReports = s.rec.TotalFraudReports()
	receipt.Quarantined = e.Tier(s.rec) == TierQuarantined
	return receipt
}

// -----------------------------------------------------------------------------
// Lookup
// -----------------------------------------------------------------------------

// Lookup returns fixes for sig ranked by trust tier, then similarity, then
// unique contributor count.
//
// # Description
//
// Only records with the same normalized exception kind are considered.
// A signature that fails CheckSignature matches nothing. Candidates below
// MinSimilarity are dropped. Quarantined records are
// never returned. Lookup reads a point-in-time copy of each record and
// never fails; no match yields an empty slice.
func (e *Engine) Lookup(ctx context.Context, sig ErrorSignature) []FixResult {
	_, span := tracer.Start(ctx, "Engine.Lookup")
	defer span.End()

	norm := sig.Normalize()
	span.SetAttributes(attribute.String("exception_kind", norm.ExceptionKind))
	if norm.ExceptionKind == "" {
		lookups.WithLabelValues("empty").Inc()
		return []FixResult{}
	}
	if err := e.validate.Struct(sig); err != nil {
		lookups.WithLabelValues("invalid").Inc()
		span.SetAttributes(attribute.Bool("invalid", true))
		return []FixResult{}
	}

	e.mu.RLock()
	idxs := e.byKind[norm.ExceptionKind]
	candidates := make([]*slot, len(idxs))
	for i, idx := range idxs {
		candidates[i] = e.slots[idx]
	}
	e.mu.RUnlock()

	results := make([]FixResult, 0, len(candidates))
	excluded := 0
	for _, s := range candidates {
		s.mu.Lock()
		rec := s.rec
		s.mu.Unlock()

		sim := e.config.Match.Similarity(norm, rec.Signature)
		if sim < e.config.Match.MinSimilarity {
			continue
		}
		tier := e.Tier(rec)
		if tier == TierQuarantined {
			excluded++
			continue
		}
		rate, _ := rec.SuccessRate()
		results = append(results, FixResult{
			FixID:              rec.ID,
			Signature:          rec.Signature,
			Solution:           rec.Solution,
			Origin:             rec.Origin,
			Tier:               tier,
			Similarity:         sim,
			SuccessRate:        rate,
			SuccessCount:       rec.SuccessCount(),
			FailureCount:       rec.FailureCount(),
			UniqueContributors: rec.UniqueContributors(),
			DerivedFrom:        rec.DerivedFrom,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Tier.Rank() != b.Tier.Rank() {
			return a.Tier.Rank() > b.Tier.Rank()
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.UniqueContributors != b.UniqueContributors {
			return a.UniqueContributors > b.UniqueContributors
		}
		return a.FixID < b.FixID
	})
	if limit := e.config.Match.MaxResults; limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		if results[i].DerivedFrom != "" {
			results[i].Lineage, _ = e.Lineage(results[i].FixID)
		}
	}

	if excluded > 0 {
		lookupExcluded.Add(float64(excluded))
	}
	if len(results) == 0 {
		lookups.WithLabelValues("empty").Inc()
	} else {
		lookups.WithLabelValues("hit").Inc()
	}
	span.SetAttributes(attribute.Int("results", len(results)), attribute.Int("excluded", excluded))
	return results
}

// Get returns a copy of the record.
func (e *Engine) Get(fixID string) (FixRecord, error) {
	s := e.slotFor(fixID)
	if s == nil {
		return FixRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, fixID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, nil
}

// Lineage returns the ancestor chain of fixID, nearest parent first,
// bounded by MaxLineageDepth. Ancestors not held locally end the chain.
func (e *Engine) Lineage(fixID string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.index[fixID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, fixID)
	}
	var chain []string
	for cur := e.parents[fixID]; cur != "" && len(chain) < e.config.Trust.MaxLineageDepth; cur = e.parents[cur] {
		chain = append(chain, cur)
		if _, ok := e.index[cur]; !ok {
			break
		}
	}
	return chain, nil
}

// Children returns the ids derived directly from fixID, sorted.
func (e *Engine) Children(fixID string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.index[fixID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, fixID)
	}
	out := append([]string(nil), e.children[fixID]...)
	sort.Strings(out)
	return out, nil
}

// Snapshot returns copies of all records ordered by creation time then id.
func (e *Engine) Snapshot() []FixRecord {
	e.mu.RLock()
	slots := append([]*slot(nil), e.slots...)
	e.mu.RUnlock()

	out := make([]FixRecord, len(slots))
	for i, s := range slots {
		s.mu.Lock()
		out[i] = s.rec
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats counts records by origin and derived tier.
func (e *Engine) Stats() Stats {
	st := Stats{ByOrigin: make(map[Origin]int), ByTier: make(map[string]int)}
	for _, rec := range e.Snapshot() {
		st.Records++
		st.ByOrigin[rec.Origin]++
		tier := e.Tier(rec)
		st.ByTier[tier.String()]++
		if tier == TierQuarantined {
			st.Quarantined++
		}
	}
	return st
}
