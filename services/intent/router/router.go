// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router implements the layered command router.
//
// Layers run in strict order and the first one whose result clears its
// confidence floor wins:
//
//  1. Direct match against a table of zero-ambiguity commands.
//  2. Pattern classification over lexical signal categories.
//  3. Fuzzy target resolution for routes that need a target.
//  4. Delegated classification by an external inference collaborator.
//  5. Fallback to Unknown.
//
// Classify never fails: every input produces exactly one Route.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianRouter/services/intent/fuzzy"
	"github.com/AleutianAI/AleutianRouter/services/intent/normalize"
	"github.com/AleutianAI/AleutianRouter/services/intent/patterns"
	"github.com/AleutianAI/AleutianRouter/services/intent/route"
	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
)

var tracer = otel.Tracer("aleutian.router")

// Reasons attached to Unknown routes.
const (
	ReasonNoMatch    = "no_match"
	ReasonEmptyInput = "empty_input"
	ReasonCancelled  = "cancelled"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds the router's floors and timeouts.
type Config struct {
	// PatternFloor is the minimum layer 2 confidence.
	PatternFloor float64 `yaml:"pattern_floor" validate:"gte=0,lte=1"`

	// DelegatedFloor is the minimum layer 4 confidence.
	DelegatedFloor float64 `yaml:"delegated_floor" validate:"gte=0,lte=1"`

	// TargetResolvedBonus is added when layer 3 accepts a target.
	TargetResolvedBonus float64 `yaml:"target_resolved_bonus" validate:"gte=0,lte=1"`

	// InferenceTimeout bounds the layer 4 call.
	InferenceTimeout time.Duration `yaml:"inference_timeout" validate:"gt=0"`

	// DelegateDisambiguation asks layer 4 for hints when layer 3 is ambiguous.
	DelegateDisambiguation bool `yaml:"delegate_disambiguation"`

	// Instruction is sent to the collaborator. Empty uses DefaultInstruction.
	Instruction string `yaml:"instruction"`
}

// DefaultConfig returns the standard router configuration.
func DefaultConfig() Config {
	return Config{
		PatternFloor:           0.5,
		DelegatedFloor:         0.7,
		TargetResolvedBonus:    0.1,
		InferenceTimeout:       5 * time.Second,
		DelegateDisambiguation: true,
		Instruction:            DefaultInstruction,
	}
}

// Dependencies are the collaborators a Router is built from. Only
// Normalizer, Classifier and Resolver are required.
type Dependencies struct {
	Normalizer   *normalize.Normalizer
	Classifier   *patterns.Classifier
	Resolver     *fuzzy.Resolver
	Sources      map[route.Type]fuzzy.Source
	Collaborator Collaborator
	State        *safemode.State
	Logger       *slog.Logger
}

// =============================================================================
// Router
// =============================================================================

// Router classifies utterances into routes.
//
// Thread Safety: safe for concurrent use. The only shared mutable state is
// the injected safemode.State, which is updated atomically.
type Router struct {
	config       Config
	normalizer   *normalize.Normalizer
	classifier   *patterns.Classifier
	resolver     *fuzzy.Resolver
	sources      map[route.Type]fuzzy.Source
	collaborator Collaborator
	state        *safemode.State
	logger       *slog.Logger
}

// New creates a Router.
//
// Description:
//
//	Validates configuration and required dependencies. A nil Collaborator
//	disables layer 4. A nil State disables safe-mode accounting.
//
// Inputs:
//
//	cfg - Router configuration.
//	deps - Collaborators.
//
// Outputs:
//
//	*Router - Ready to use.
//	error - Non-nil if configuration or dependencies are invalid.
func New(cfg Config, deps Dependencies) (*Router, error) {
	if deps.Normalizer == nil || deps.Classifier == nil || deps.Resolver == nil {
		return nil, fmt.Errorf("router: normalizer, classifier and resolver are required")
	}
	if cfg.PatternFloor < 0 || cfg.PatternFloor > 1 || cfg.DelegatedFloor < 0 || cfg.DelegatedFloor > 1 {
		return nil, fmt.Errorf("router: floors must be in [0,1]")
	}
	if cfg.InferenceTimeout <= 0 {
		return nil, fmt.Errorf("router: inference timeout must be positive")
	}
	if cfg.Instruction == "" {
		cfg.Instruction = DefaultInstruction
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		config:       cfg,
		normalizer:   deps.Normalizer,
		classifier:   deps.Classifier,
		resolver:     deps.Resolver,
		sources:      deps.Sources,
		collaborator: deps.Collaborator,
		state:        deps.State,
		logger:       logger,
	}
	if r.state != nil {
		r.state.OnTransition(func(_, to safemode.Mode) {
			SetSafeModeActive(to == safemode.ModeDegraded)
		})
	}
	return r, nil
}

// Classify normalizes raw and routes it.
func (r *Router) Classify(ctx context.Context, raw string) route.Route {
	return r.ClassifyUtterance(ctx, r.normalizer.Normalize(raw))
}

// ClassifyUtterance routes an already normalized utterance.
//
// Description:
//
//	Runs layers 1 to 5 in order. The returned route carries the
//	normalizer's corrections so the caller can confirm them. Every
//	completed classification updates the safe-mode state; a cancelled one
//	does not.
//
// Inputs:
//
//	ctx - Cancellation. Checked at every layer boundary.
//	u - Normalized utterance.
//
// Outputs:
//
//	route.Route - Always exactly one route.
func (r *Router) ClassifyUtterance(ctx context.Context, u normalize.Utterance) route.Route {
	ctx, span := tracer.Start(ctx, "Router.Classify",
		trace.WithAttributes(attribute.Int("router.tokens", len(u.Tokens))))
	defer span.End()

	start := time.Now()
	rt := r.classify(ctx, u)
	rt.Corrections = u.Corrections

	cancelled := rt.IsFallback() && rt.Payload.Reason == ReasonCancelled
	if r.state != nil && !cancelled {
		r.state.Record(rt.IsFallback())
	}

	if rt.IsFallback() {
		RecordFallback(rt.Payload.Reason)
	}
	if rt.Payload.NeedsDisambiguation {
		RecordDisambiguation(string(rt.Type))
	}
	RecordClassification(rt.Layer.String(), string(rt.Type), rt.Confidence, time.Since(start).Seconds())

	span.SetAttributes(
		attribute.String("router.route_type", string(rt.Type)),
		attribute.String("router.layer", rt.Layer.String()),
		attribute.Float64("router.confidence", rt.Confidence),
		attribute.Bool("router.needs_disambiguation", rt.Payload.NeedsDisambiguation),
	)
	r.logger.Debug("request routed",
		slog.String("route_type", string(rt.Type)),
		slog.String("layer", rt.Layer.String()),
		slog.Float64("confidence", rt.Confidence),
		slog.Int("corrections", len(rt.Corrections)))
	return rt
}

func (r *Router) classify(ctx context.Context, u normalize.Utterance) route.Route {
	if ctx.Err() != nil {
		return route.Unknown(ReasonCancelled)
	}

	// Layer 1
	if cmd, ok := patterns.DirectCommand(u.Normalized); ok {
		return route.Direct(cmd)
	}
	if u.Normalized == "" {
		return route.Unknown(ReasonEmptyInput)
	}

	// Layers 2 and 3
	if ctx.Err() != nil {
		return route.Unknown(ReasonCancelled)
	}
	if cand, ok := r.classifier.Best(u); ok && cand.Confidence >= r.config.PatternFloor {
		rt := fromCandidate(cand)
		rt = r.resolveTarget(ctx, rt, cand.Target, cand.Hints, cand.TargetMode)
		if rt.Payload.NeedsDisambiguation && r.config.DelegateDisambiguation && r.collaborator != nil {
			rt = r.disambiguate(ctx, u, rt)
		}
		if ctx.Err() != nil {
			return route.Unknown(ReasonCancelled)
		}
		return rt
	}

	// Layer 4
	if ctx.Err() != nil {
		return route.Unknown(ReasonCancelled)
	}
	if r.collaborator != nil {
		res, outcome := r.delegate(ctx, u)
		if outcome == outcomeCancelled {
			return route.Unknown(ReasonCancelled)
		}
		if rt, ok := r.fromInference(ctx, res); ok {
			return rt
		}
	}

	// Layer 5
	return route.Unknown(ReasonNoMatch)
}

func fromCandidate(c patterns.Candidate) route.Route {
	return route.Route{
		Type:       c.Type,
		Confidence: c.Confidence,
		Layer:      route.LayerPattern,
		Payload: route.Payload{
			Action: c.Action,
			Hints:  c.Hints,
		},
		Signals: append([]string{"rule:" + c.Rule}, c.Signals...),
	}
}

// resolveTarget is layer 3.
func (r *Router) resolveTarget(ctx context.Context, rt route.Route, explicit string, hints []string, mode patterns.TargetMode) route.Route {
	switch mode {
	case patterns.TargetNone:
		return rt
	case patterns.TargetNew:
		rt.Payload.Target = explicit
		return rt
	}

	if explicit != "" {
		rt.Payload.Target = explicit
		return rt
	}

	required := mode == patterns.TargetExisting
	if len(hints) == 0 {
		rt.Payload.NeedsDisambiguation = required
		return rt
	}

	src := r.sources[rt.Type]
	if src == nil {
		rt.Payload.NeedsDisambiguation = required
		return rt
	}
	cands, err := src.Candidates(ctx)
	if err != nil {
		r.logger.Warn("candidate source failed",
			slog.String("route_type", string(rt.Type)),
			slog.String("error", err.Error()))
		rt.Payload.NeedsDisambiguation = required
		return rt
	}

	decision := r.resolver.Decide(r.resolver.Resolve(hints, cands))
	rt.Layer = route.LayerFuzzy
	if !decision.Ambiguous {
		rt.Payload.Target = decision.Accepted.Identifier
		rt.Payload.Candidates = []route.Candidate{decision.Accepted}
		rt.Payload.NeedsDisambiguation = false
		rt.Confidence = route.ClampConfidence(rt.Confidence + r.config.TargetResolvedBonus)
		rt.Signals = append(rt.Signals, "target_resolved")
		return rt
	}
	rt.Payload.Candidates = decision.Top
	rt.Payload.NeedsDisambiguation = required || len(decision.Top) > 0
	return rt
}

// disambiguate asks layer 4 for better hints when layer 3 was ambiguous.
// Both layers cleared their floors, so the pattern route type is kept and
// only the collaborator's hints are used.
func (r *Router) disambiguate(ctx context.Context, u normalize.Utterance, rt route.Route) route.Route {
	res, outcome := r.delegate(ctx, u)
	if outcome == outcomeCancelled {
		return rt
	}
	answer, ok := res.(InferenceOK)
	if !ok || len(answer.Hints) == 0 {
		return rt
	}
	if math.IsNaN(answer.Confidence) || answer.Confidence < r.config.DelegatedFloor {
		return rt
	}
	if t, valid := route.ParseType(answer.Intent); valid && t != rt.Type {
		r.logger.Debug("layers disagree, keeping pattern route",
			slog.String("pattern", string(rt.Type)),
			slog.String("delegated", string(t)))
	}

	retry := rt
	retry.Payload.Candidates = nil
	retry.Payload.NeedsDisambiguation = false
	retry = r.resolveTarget(ctx, retry, "", answer.Hints, patterns.TargetExisting)
	if retry.Payload.NeedsDisambiguation {
		return rt
	}
	retry.Payload.Hints = answer.Hints
	retry.Signals = append(retry.Signals, "delegated_hints")
	return retry
}
