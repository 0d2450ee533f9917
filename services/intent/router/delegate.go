// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianRouter/services/intent/normalize"
	"github.com/AleutianAI/AleutianRouter/services/intent/patterns"
	"github.com/AleutianAI/AleutianRouter/services/intent/route"
)

// Layer 4 outcomes, used as metric labels.
const (
	outcomeAccepted    = "accepted"
	outcomeBelowFloor  = "below_floor"
	outcomeUnavailable = "unavailable"
	outcomeTimeout     = "timeout"
	outcomeMalformed   = "malformed"
	outcomeCancelled   = "cancelled"
)

// delegatableTypes are the intents the collaborator may return.
// Direct commands are exact-match only and never delegated.
var delegatableTypes = []route.Type{
	route.TypeFileOp,
	route.TypeModelMgmt,
	route.TypeScriptCreation,
	route.TypeScriptFix,
	route.TypeQuestion,
	route.TypeUnknown,
}

var delegatedActions = map[route.Type]string{
	route.TypeScriptCreation: "create",
	route.TypeScriptFix:      "fix",
	route.TypeQuestion:       "answer",
}

// delegate runs the collaborator call with the router's timeout.
//
// The call runs on a context detached from the caller's cancellation, so an
// abandoned request lets the call finish; its result lands in a buffered
// channel nobody reads.
func (r *Router) delegate(ctx context.Context, u normalize.Utterance) (InferenceResult, string) {
	ctx, span := tracer.Start(ctx, "Router.delegate")
	defer span.End()

	req := InferenceRequest{
		Instruction:    r.config.Instruction,
		Utterance:      u.Normalized,
		AllowedIntents: delegatableTypes,
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.InferenceTimeout)
	results := make(chan InferenceResult, 1)
	go func() {
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				results <- InferenceUnavailable{
					Reason: "collaborator panic",
					Err:    fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, p),
				}
			}
		}()
		results <- r.collaborator.Infer(callCtx, req)
	}()

	timer := time.NewTimer(r.config.InferenceTimeout)
	defer timer.Stop()

	var res InferenceResult
	select {
	case res = <-results:
	case <-timer.C:
		res = InferenceUnavailable{Reason: "timeout", Err: ErrCollaboratorTimeout}
	case <-ctx.Done():
		RecordDelegation(outcomeCancelled)
		span.SetAttributes(attribute.String("router.delegation", outcomeCancelled))
		return nil, outcomeCancelled
	}

	_, _, outcome := r.validate(res)
	RecordDelegation(outcome)
	span.SetAttributes(attribute.String("router.delegation", outcome))
	if outcome != outcomeAccepted && outcome != outcomeBelowFloor {
		span.SetStatus(codes.Error, outcome)
		r.logger.Warn("delegated classification skipped",
			slog.String("outcome", outcome),
			slog.String("detail", describe(res)))
	}
	return res, outcome
}

// validate checks a collaborator result. It is pure.
func (r *Router) validate(res InferenceResult) (InferenceOK, route.Type, string) {
	switch v := res.(type) {
	case InferenceOK:
		if math.IsNaN(v.Confidence) || v.Confidence < 0 || v.Confidence > 1 {
			return v, route.TypeUnknown, outcomeMalformed
		}
		t, ok := route.ParseType(v.Intent)
		if !ok || t == route.TypeDirectCommand {
			return v, route.TypeUnknown, outcomeMalformed
		}
		if t == route.TypeUnknown || v.Confidence < r.config.DelegatedFloor {
			return v, t, outcomeBelowFloor
		}
		return v, t, outcomeAccepted
	case InferenceUnavailable:
		if errors.Is(v.Err, ErrCollaboratorTimeout) {
			return InferenceOK{}, route.TypeUnknown, outcomeTimeout
		}
		return InferenceOK{}, route.TypeUnknown, outcomeUnavailable
	case InferenceMalformed:
		return InferenceOK{}, route.TypeUnknown, outcomeMalformed
	default:
		return InferenceOK{}, route.TypeUnknown, outcomeMalformed
	}
}

// fromInference builds a layer 4 route from an accepted result.
func (r *Router) fromInference(ctx context.Context, res InferenceResult) (route.Route, bool) {
	answer, t, outcome := r.validate(res)
	if outcome != outcomeAccepted {
		return route.Route{}, false
	}

	rt := route.Route{
		Type:       t,
		Confidence: answer.Confidence,
		Layer:      route.LayerDelegated,
		Payload: route.Payload{
			Action: delegatedActions[t],
			Hints:  answer.Hints,
		},
		Signals: []string{"delegated"},
	}
	switch t {
	case route.TypeFileOp, route.TypeModelMgmt, route.TypeScriptFix:
		rt = r.resolveTarget(ctx, rt, "", answer.Hints, patterns.TargetOptional)
		rt.Layer = route.LayerDelegated
	}
	return rt, true
}

func describe(res InferenceResult) string {
	switch v := res.(type) {
	case InferenceUnavailable:
		if v.Err != nil {
			return v.Reason + ": " + v.Err.Error()
		}
		return v.Reason
	case InferenceMalformed:
		if v.Err != nil {
			return v.Err.Error()
		}
		return "malformed"
	case nil:
		return "nil result"
	default:
		return fmt.Sprintf("%T", res)
	}
}
