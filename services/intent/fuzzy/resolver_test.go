// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fuzzy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianRouter/services/intent/route"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(DefaultConfig())
	require.NoError(t, err)
	return r
}

func names(cands []route.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Identifier)
	}
	return out
}

func TestResolve_UnrelatedHintYieldsNothing(t *testing.T) {
	r := newTestResolver(t)
	got := r.Resolve([]string{"zzz"}, []route.Candidate{
		{Identifier: "report.txt"},
		{Identifier: "config.json"},
	})
	assert.Empty(t, got)
}

func TestResolve_NoHints(t *testing.T) {
	r := newTestResolver(t)
	assert.Empty(t, r.Resolve(nil, []route.Candidate{{Identifier: "report.txt"}}))
}

func TestResolve_NeverBelowMinimum(t *testing.T) {
	r := newTestResolver(t)
	cands := []route.Candidate{
		{Identifier: "report.txt"},
		{Identifier: "reports/q3.csv"},
		{Identifier: "main.py"},
		{Identifier: "notes.md"},
		{Identifier: "rep.go"},
	}
	for _, hints := range [][]string{{"report"}, {"rep"}, {"main"}, {"x"}, {"notes", "md"}} {
		for _, c := range r.Resolve(hints, cands) {
			assert.GreaterOrEqual(t, c.Similarity, DefaultConfig().MinSimilarity)
			assert.LessOrEqual(t, c.Similarity, 1.0)
		}
	}
}

func TestResolve_Ranking(t *testing.T) {
	r := newTestResolver(t)
	got := r.Resolve([]string{"report"}, []route.Candidate{
		{Identifier: "report_old.txt"},
		{Identifier: "config.json"},
		{Identifier: "report.txt"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"report.txt", "report_old.txt"}, names(got))
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
	assert.InDelta(t, 0.84, got[1].Similarity, 1e-9)
}

func TestResolve_TieBreaks(t *testing.T) {
	r := newTestResolver(t)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	got := r.Resolve([]string{"data"}, []route.Candidate{
		{Identifier: "b/data.csv", LastModified: older},
		{Identifier: "a/data.csv", LastModified: older},
		{Identifier: "c/data.csv", LastModified: newer},
	})
	assert.Equal(t, []string{"c/data.csv", "a/data.csv", "b/data.csv"}, names(got))
}

func TestScore_HintsAccumulateAndCap(t *testing.T) {
	r := newTestResolver(t)
	one := r.Score([]string{"sales"}, "sales_summary_2024.xlsx")
	two := r.Score([]string{"sales", "summary"}, "sales_summary_2024.xlsx")
	assert.Greater(t, two, one)
	assert.LessOrEqual(t, two, 1.0)
	assert.Equal(t, 1.0, r.Score([]string{"report", "report", "report"}, "report.txt"))
}

func TestDecide(t *testing.T) {
	r := newTestResolver(t)

	distinct := r.Decide([]route.Candidate{
		{Identifier: "report.txt", Similarity: 1.0},
		{Identifier: "report_old.txt", Similarity: 0.84},
	})
	assert.False(t, distinct.Ambiguous)
	assert.Equal(t, "report.txt", distinct.Accepted.Identifier)

	tied := r.Decide([]route.Candidate{
		{Identifier: "a/data.csv", Similarity: 1.0},
		{Identifier: "b/data.csv", Similarity: 1.0},
	})
	assert.True(t, tied.Ambiguous)
	assert.Len(t, tied.Top, 2)

	weak := r.Decide([]route.Candidate{{Identifier: "reprt.txt", Similarity: 0.4}})
	assert.True(t, weak.Ambiguous)
	assert.Empty(t, weak.Accepted.Identifier)

	empty := r.Decide(nil)
	assert.True(t, empty.Ambiguous)
	assert.Empty(t, empty.Top)
}

func TestDecide_TopNCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopN = 2
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	d := r.Decide([]route.Candidate{
		{Identifier: "a", Similarity: 0.5},
		{Identifier: "b", Similarity: 0.5},
		{Identifier: "c", Similarity: 0.4},
	})
	assert.True(t, d.Ambiguous)
	assert.Len(t, d.Top, 2)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MinSimilarity = 0.9
	bad.TopN = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accept_threshold must be >= min_similarity")
	assert.Contains(t, err.Error(), "top_n must be positive")

	_, err = NewResolver(bad)
	assert.Error(t, err)
}

func TestDirectorySource(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	mustWrite("report.txt")
	mustWrite("src/main.py")
	mustWrite("src/pkg/util.py")
	mustWrite("src/pkg/deep/hidden_by_depth.py")
	mustWrite(".git/config")
	mustWrite("node_modules/lib/index.js")

	src := NewDirectorySource(root)
	cands, err := src.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"report.txt", "src/main.py", "src/pkg/util.py"}, names(cands))
	for _, c := range cands {
		assert.False(t, c.LastModified.IsZero())
	}
}

func TestDirectorySource_MissingRoot(t *testing.T) {
	_, err := NewDirectorySource(filepath.Join(t.TempDir(), "nope")).Candidates(context.Background())
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource("llama3", "mistral")
	cands, err := src.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "mistral"}, names(cands))
}
