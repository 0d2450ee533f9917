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
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRouter/services/intent/fuzzy"
	"github.com/AleutianAI/AleutianRouter/services/intent/normalize"
	"github.com/AleutianAI/AleutianRouter/services/intent/patterns"
	"github.com/AleutianAI/AleutianRouter/services/intent/route"
	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
)

// =============================================================================
// Helpers
// =============================================================================

func newTestRouter(t *testing.T, collab Collaborator, sources map[route.Type]fuzzy.Source, mutate ...func(*Config)) (*Router, *safemode.State) {
	t.Helper()
	resolver, err := fuzzy.NewResolver(fuzzy.DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.InferenceTimeout = 200 * time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}
	state := safemode.NewState(3)
	r, err := New(cfg, Dependencies{
		Normalizer:   normalize.NewNormalizer(patterns.Vocabulary(), nil),
		Classifier:   patterns.NewClassifier(nil, nil),
		Resolver:     resolver,
		Sources:      sources,
		Collaborator: collab,
		State:        state,
	})
	require.NoError(t, err)
	return r, state
}

func fixed(res InferenceResult) (Collaborator, *atomic.Int32) {
	calls := &atomic.Int32{}
	return CollaboratorFunc(func(context.Context, InferenceRequest) InferenceResult {
		calls.Add(1)
		return res
	}), calls
}

func fileSource(names ...string) map[route.Type]fuzzy.Source {
	return map[route.Type]fuzzy.Source{route.TypeFileOp: fuzzy.NewStaticSource(names...)}
}

func assertRouteInvariants(t *testing.T, rt route.Route) {
	t.Helper()
	assert.True(t, rt.Type.Valid(), "type %q", rt.Type)
	assert.GreaterOrEqual(t, rt.Confidence, 0.0)
	assert.LessOrEqual(t, rt.Confidence, 1.0)
	switch rt.Type {
	case route.TypeDirectCommand:
		assert.Equal(t, 1.0, rt.Confidence)
		assert.Equal(t, route.LayerDirect, rt.Layer)
	case route.TypeUnknown:
		assert.Equal(t, 0.0, rt.Confidence)
		assert.Equal(t, route.LayerFallback, rt.Layer)
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New(DefaultConfig(), Dependencies{})
	assert.Error(t, err)

	resolver, _ := fuzzy.NewResolver(fuzzy.DefaultConfig())
	deps := Dependencies{
		Normalizer: normalize.NewNormalizer(nil, nil),
		Classifier: patterns.NewClassifier(nil, nil),
		Resolver:   resolver,
	}
	bad := DefaultConfig()
	bad.PatternFloor = 1.5
	_, err = New(bad, deps)
	assert.Error(t, err)

	bad = DefaultConfig()
	bad.InferenceTimeout = 0
	_, err = New(bad, deps)
	assert.Error(t, err)

	_, err = New(DefaultConfig(), deps)
	assert.NoError(t, err)
}

// =============================================================================
// Layers 1 to 3
// =============================================================================

func TestClassify_Totality(t *testing.T) {
	r, _ := newTestRouter(t, nil, fileSource("report.txt"))
	inputs := []string{
		"", "   ", "?", "!!!", "file", "blorp zorp", "日本語のテキスト",
		strings.Repeat("a ", 500), "help", "create a file named x.py",
		"rm -rf /", "\x00\x01", "what?", "please please please",
	}
	for _, in := range inputs {
		rt := r.Classify(context.Background(), in)
		assertRouteInvariants(t, rt)
	}
}

func TestClassify_DirectCommands(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	for in, want := range map[string]string{
		"help":            "help",
		"Please help":     "help",
		"LIST MODELS":     "list_models",
		"quit, thanks":    "exit",
		"  status  ":      "status",
		"could you clear": "clear",
	} {
		rt := r.Classify(context.Background(), in)
		assert.Equal(t, route.TypeDirectCommand, rt.Type, in)
		assert.Equal(t, want, rt.Payload.Command, in)
		assert.Equal(t, 1.0, rt.Confidence, in)
		assert.Equal(t, route.LayerDirect, rt.Layer, in)
	}
}

func TestClassify_SingleKeywordFallsThrough(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	rt := r.Classify(context.Background(), "file")
	assert.Equal(t, route.TypeUnknown, rt.Type)
	assert.Equal(t, ReasonNoMatch, rt.Payload.Reason)
}

func TestClassify_PatternRoute(t *testing.T) {
	collab, calls := fixed(InferenceOK{Intent: "question", Confidence: 0.99})
	r, _ := newTestRouter(t, collab, nil)

	rt := r.Classify(context.Background(), "create a file named x.py")
	assert.Equal(t, route.TypeFileOp, rt.Type)
	assert.Equal(t, route.LayerPattern, rt.Layer)
	assert.Equal(t, "create", rt.Payload.Action)
	assert.Equal(t, "x.py", rt.Payload.Target)
	assert.False(t, rt.Payload.NeedsDisambiguation)
	assert.Equal(t, int32(0), calls.Load(), "layer 4 must not run when layer 2 clears its floor")
}

func TestClassify_QuotedTargetIsExact(t *testing.T) {
	r, _ := newTestRouter(t, nil, fileSource("report.txt", "quarterly.csv"))

	rt := r.Classify(context.Background(), `open "quarterly report"`)
	assert.Equal(t, route.TypeFileOp, rt.Type)
	assert.Equal(t, route.LayerPattern, rt.Layer)
	assert.Equal(t, "quarterly report", rt.Payload.Target)
	assert.False(t, rt.Payload.NeedsDisambiguation)
	assert.Empty(t, rt.Payload.Candidates)
}

func TestClassify_OneWordQuestionFallsThrough(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	for _, raw := range []string{"explain", "describe", "define"} {
		rt := r.Classify(context.Background(), raw)
		assert.Equal(t, route.TypeUnknown, rt.Type, raw)
		assertRouteInvariants(t, rt)
	}
}

func TestClassify_CorrectionsReported(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	rt := r.Classify(context.Background(), "crate a fiel named x.py")
	assert.Equal(t, route.TypeFileOp, rt.Type)
	assert.Equal(t, []normalize.Correction{
		{Original: "crate", Corrected: "create"},
		{Original: "fiel", Corrected: "file"},
	}, rt.Corrections)
}

func TestClassify_FuzzyAccepts(t *testing.T) {
	r, _ := newTestRouter(t, nil, fileSource("report.txt", "config.json"))

	rt := r.Classify(context.Background(), "delete the report file")
	assert.Equal(t, route.TypeFileOp, rt.Type)
	assert.Equal(t, route.LayerFuzzy, rt.Layer)
	assert.Equal(t, "delete", rt.Payload.Action)
	assert.Equal(t, "report.txt", rt.Payload.Target)
	assert.False(t, rt.Payload.NeedsDisambiguation)
	assert.InDelta(t, 0.7, rt.Confidence, 1e-9)
	assert.Contains(t, rt.Signals, "target_resolved")
}

func TestClassify_FuzzyAmbiguous(t *testing.T) {
	r, _ := newTestRouter(t, nil, fileSource("a/data.csv", "b/data.csv", "notes.md"))

	rt := r.Classify(context.Background(), "open the data file")
	assert.Equal(t, route.TypeFileOp, rt.Type)
	assert.True(t, rt.Payload.NeedsDisambiguation)
	assert.Empty(t, rt.Payload.Target)
	require.Len(t, rt.Payload.Candidates, 2)
	assert.Equal(t, "a/data.csv", rt.Payload.Candidates[0].Identifier)
}

func TestClassify_ExistingTargetWithoutHints(t *testing.T) {
	r, _ := newTestRouter(t, nil, fileSource("report.txt"))
	rt := r.Classify(context.Background(), "delete the file")
	assert.Equal(t, route.TypeFileOp, rt.Type)
	assert.True(t, rt.Payload.NeedsDisambiguation)
	assert.Empty(t, rt.Payload.Candidates)
}

func TestClassify_DisambiguationRetryKeepsPatternType(t *testing.T) {
	collab, calls := fixed(InferenceOK{Intent: "question", Confidence: 0.9, Hints: []string{"b/data"}})
	r, _ := newTestRouter(t, collab, fileSource("a/data.csv", "b/data.csv"))

	rt := r.Classify(context.Background(), "open the data file")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, route.TypeFileOp, rt.Type, "lower layer wins the tie")
	assert.Equal(t, "b/data.csv", rt.Payload.Target)
	assert.False(t, rt.Payload.NeedsDisambiguation)
	assert.Contains(t, rt.Signals, "delegated_hints")
}

func TestClassify_DisambiguationRetryUnhelpful(t *testing.T) {
	collab, _ := fixed(InferenceUnavailable{Reason: "offline", Err: ErrCollaboratorUnavailable})
	r, _ := newTestRouter(t, collab, fileSource("a/data.csv", "b/data.csv"))

	rt := r.Classify(context.Background(), "open the data file")
	assert.Equal(t, route.TypeFileOp, rt.Type)
	assert.True(t, rt.Payload.NeedsDisambiguation)
	assert.Len(t, rt.Payload.Candidates, 2)
}

// =============================================================================
// Layer 4
// =============================================================================

func TestClassify_Delegated(t *testing.T) {
	collab, calls := fixed(InferenceOK{Intent: "Question", Confidence: 0.9, Hints: []string{"weather"}})
	r, _ := newTestRouter(t, collab, nil)

	rt := r.Classify(context.Background(), "blorp the zorp")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, route.TypeQuestion, rt.Type)
	assert.Equal(t, route.LayerDelegated, rt.Layer)
	assert.Equal(t, 0.9, rt.Confidence)
	assert.Equal(t, []string{"weather"}, rt.Payload.Hints)
}

func TestClassify_DelegatedResolvesTarget(t *testing.T) {
	collab, _ := fixed(InferenceOK{Intent: "file_op", Confidence: 0.8, Hints: []string{"report"}})
	r, _ := newTestRouter(t, collab, fileSource("report.txt", "main.py"))

	rt := r.Classify(context.Background(), "blorp the zorp")
	assert.Equal(t, route.TypeFileOp, rt.Type)
	assert.Equal(t, route.LayerDelegated, rt.Layer)
	assert.Equal(t, "report.txt", rt.Payload.Target)
}

func TestClassify_DelegatedRejected(t *testing.T) {
	tests := []struct {
		name string
		res  InferenceResult
	}{
		{"below floor", InferenceOK{Intent: "question", Confidence: 0.4}},
		{"unknown intent", InferenceOK{Intent: "teleport", Confidence: 0.9}},
		{"model says unknown", InferenceOK{Intent: "unknown", Confidence: 0.95}},
		{"direct command not delegatable", InferenceOK{Intent: "direct_command", Confidence: 1}},
		{"confidence out of range", InferenceOK{Intent: "question", Confidence: 1.5}},
		{"nan confidence", InferenceOK{Intent: "question", Confidence: math.NaN()}},
		{"unavailable", InferenceUnavailable{Reason: "offline", Err: ErrCollaboratorUnavailable}},
		{"malformed", InferenceMalformed{Raw: "not json", Err: ErrMalformedResponse}},
		{"nil result", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collab, calls := fixed(tt.res)
			r, state := newTestRouter(t, collab, nil)
			rt := r.Classify(context.Background(), "blorp the zorp")
			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, route.TypeUnknown, rt.Type)
			assert.Equal(t, ReasonNoMatch, rt.Payload.Reason)
			assert.Equal(t, 1, state.ConsecutiveFallbacks())
		})
	}
}

func TestClassify_CollaboratorPanicIsRecovered(t *testing.T) {
	collab := CollaboratorFunc(func(context.Context, InferenceRequest) InferenceResult {
		panic("boom")
	})
	r, _ := newTestRouter(t, collab, nil)
	rt := r.Classify(context.Background(), "blorp the zorp")
	assert.Equal(t, route.TypeUnknown, rt.Type)
}

func TestClassify_CollaboratorTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	collab := CollaboratorFunc(func(context.Context, InferenceRequest) InferenceResult {
		<-release
		return InferenceOK{Intent: "question", Confidence: 1}
	})
	r, state := newTestRouter(t, collab, nil, func(c *Config) { c.InferenceTimeout = 30 * time.Millisecond })

	start := time.Now()
	rt := r.Classify(context.Background(), "blorp the zorp")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, route.TypeUnknown, rt.Type)
	assert.Equal(t, ReasonNoMatch, rt.Payload.Reason)
	assert.Equal(t, 1, state.ConsecutiveFallbacks())
}

func TestClassify_RequestCarriesInstruction(t *testing.T) {
	var got InferenceRequest
	collab := CollaboratorFunc(func(_ context.Context, req InferenceRequest) InferenceResult {
		got = req
		return InferenceUnavailable{Reason: "test"}
	})
	r, _ := newTestRouter(t, collab, nil)
	r.Classify(context.Background(), "Blorp the ZORP")
	assert.Equal(t, DefaultInstruction, got.Instruction)
	assert.Equal(t, "blorp the zorp", got.Utterance)
	assert.NotContains(t, got.AllowedIntents, route.TypeDirectCommand)
}

// =============================================================================
// Cancellation and Safe Mode
// =============================================================================

func TestClassify_CancelledBeforeStart(t *testing.T) {
	r, state := newTestRouter(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rt := r.Classify(ctx, "help")
	assert.Equal(t, route.TypeUnknown, rt.Type)
	assert.Equal(t, ReasonCancelled, rt.Payload.Reason)
	assert.Equal(t, 0, state.ConsecutiveFallbacks())
}

func TestClassify_CancelledDuringDelegation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan error, 1)
	collab := CollaboratorFunc(func(ctx context.Context, _ InferenceRequest) InferenceResult {
		close(started)
		<-release
		finished <- ctx.Err()
		return InferenceOK{Intent: "question", Confidence: 1}
	})
	r, state := newTestRouter(t, collab, nil, func(c *Config) { c.InferenceTimeout = 5 * time.Second })

	// Two prior fallbacks: a third would activate safe mode.
	state.RecordFallback()
	state.RecordFallback()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan route.Route, 1)
	go func() { done <- r.Classify(ctx, "blorp the zorp") }()

	<-started
	cancel()
	rt := <-done
	assert.Equal(t, route.TypeUnknown, rt.Type)
	assert.Equal(t, ReasonCancelled, rt.Payload.Reason)
	assert.Equal(t, 2, state.ConsecutiveFallbacks(), "cancelled requests do not touch safe mode")
	assert.False(t, state.Active())

	close(release)
	select {
	case err := <-finished:
		assert.NoError(t, err, "outstanding call is allowed to complete")
	case <-time.After(2 * time.Second):
		t.Fatal("collaborator call never completed")
	}
	assert.Equal(t, 2, state.ConsecutiveFallbacks(), "late result is discarded")
}

func TestClassify_SafeModeTransitions(t *testing.T) {
	r, state := newTestRouter(t, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		r.Classify(ctx, "blorp")
		assert.False(t, state.Active())
	}
	r.Classify(ctx, "blorp")
	assert.True(t, state.Active())

	r.Classify(ctx, "help")
	assert.False(t, state.Active())
	assert.Equal(t, 0, state.ConsecutiveFallbacks())
}

func TestClassify_WithSupervisor(t *testing.T) {
	r, state := newTestRouter(t, nil, nil)
	sup := safemode.NewSupervisor(r, state, nil, nil)
	ctx := context.Background()

	var out safemode.Outcome
	for i := 0; i < 3; i++ {
		out = sup.Handle(ctx, "qwzx")
	}
	assert.Equal(t, "degraded", out.Mode)
	assert.NotEmpty(t, out.AllowedCommands)

	out = sup.Handle(ctx, "create a file named x.py")
	assert.Equal(t, "normal", out.Mode)
	assert.Equal(t, route.TypeFileOp, out.Route.Type)
}
