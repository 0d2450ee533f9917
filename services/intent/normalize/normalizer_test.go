// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocabulary = []string{
	"create", "delete", "remove", "script", "python", "download",
	"install", "model", "models", "files", "list", "help",
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(testVocabulary, nil)

	tests := []struct {
		name        string
		raw         string
		normalized  string
		corrections []Correction
		question    bool
	}{
		{
			name:        "politeness and static typo",
			raw:         "  Please create a fiel named x.py  ",
			normalized:  "create a file named x.py",
			corrections: []Correction{{Original: "fiel", Corrected: "file"}},
		},
		{
			name:       "stacked politeness",
			raw:        "Could you please list files, thanks",
			normalized: "list files",
		},
		{
			name:       "question mark",
			raw:        "What is a decorator?",
			normalized: "what is a decorator",
			question:   true,
		},
		{
			name:        "vocabulary distance one",
			raw:         "run the scriptt",
			normalized:  "run the script",
			corrections: []Correction{{Original: "scriptt", Corrected: "script"}},
		},
		{
			name:       "ambiguous vocabulary match is left alone",
			raw:        "show modelz",
			normalized: "show modelz",
		},
		{
			name:       "file-like tokens are never corrected",
			raw:        "open reprot.txt",
			normalized: "open reprot.txt",
		},
		{
			name:       "trailing punctuation",
			raw:        "delete \"old.log\".",
			normalized: "delete old.log",
		},
		{
			name:        "multiple corrections keep order",
			raw:         "crate a pyhton scirpt",
			normalized:  "create a python script",
			corrections: []Correction{{"crate", "create"}, {"pyhton", "python"}, {"scirpt", "script"}},
		},
		{
			name:       "empty",
			raw:        "   ",
			normalized: "",
		},
		{
			name:       "politeness only",
			raw:        "please",
			normalized: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := n.Normalize(tt.raw)
			assert.Equal(t, tt.raw, u.Raw)
			assert.Equal(t, tt.normalized, u.Normalized)
			assert.Equal(t, tt.question, u.Question)
			if tt.corrections == nil {
				assert.Empty(t, u.Corrections)
				assert.False(t, u.Corrected())
			} else {
				assert.Equal(t, tt.corrections, u.Corrections)
				assert.True(t, u.Corrected())
			}
		})
	}
}

func TestNormalize_TokensMatchNormalized(t *testing.T) {
	n := NewNormalizer(nil, nil)
	u := n.Normalize("Hey, delte ./build/output.bin now")
	assert.Equal(t, []string{"delete", "./build/output.bin", "now"}, u.Tokens)
	assert.Equal(t, "delete ./build/output.bin now", u.Normalized)
}

func TestNormalize_QuotedSpans(t *testing.T) {
	n := NewNormalizer(testVocabulary, nil)

	tests := []struct {
		name   string
		raw    string
		tokens []string
		quoted []Quote
	}{
		{
			name:   "multi word span",
			raw:    `open "Quarterly Report"`,
			tokens: []string{"open", "quarterly", "report"},
			quoted: []Quote{{Text: "quarterly report", First: 1, Last: 2}},
		},
		{
			name:   "single quotes with trailing punctuation",
			raw:    "delete 'old notes'.",
			tokens: []string{"delete", "old", "notes"},
			quoted: []Quote{{Text: "old notes", First: 1, Last: 2}},
		},
		{
			name:   "two spans",
			raw:    "rename `a b` to `c`",
			tokens: []string{"rename", "a", "b", "to", "c"},
			quoted: []Quote{{Text: "a b", First: 1, Last: 2}, {Text: "c", First: 4, Last: 4}},
		},
		{
			name:   "apostrophe is not a quote",
			raw:    "what's a model",
			tokens: []string{"what's", "a", "model"},
		},
		{
			name:   "unclosed quote is dropped",
			raw:    `open "draft notes`,
			tokens: []string{"open", "draft", "notes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := n.Normalize(tt.raw)
			assert.Equal(t, tt.tokens, u.Tokens)
			assert.Equal(t, tt.quoted, u.Quoted)
		})
	}
}

func TestNormalize_QuotedTokensNotCorrected(t *testing.T) {
	n := NewNormalizer(testVocabulary, nil)
	u := n.Normalize(`crate a file named "crate scirpt"`)

	assert.Equal(t, []Correction{{Original: "crate", Corrected: "create"}}, u.Corrections)
	assert.Equal(t, "create a file named crate scirpt", u.Normalized)
	require.Len(t, u.Quoted, 1)
	assert.True(t, u.InQuote(4))
	assert.True(t, u.InQuote(5))
	assert.False(t, u.InQuote(3))
}

func TestReload(t *testing.T) {
	n := NewNormalizer(nil, nil)

	n.Reload(map[string]string{"tset": "test", "crate": ""})
	u := n.Normalize("tset the crate")
	assert.Equal(t, "test the crate", u.Normalized)

	n.Reload(nil)
	u = n.Normalize("tset the crate")
	assert.Equal(t, "tset the create", u.Normalized)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrections.yaml")
	require.NoError(t, os.WriteFile(path, []byte("corrections:\n  tset: test\n"), 0600))

	n := NewNormalizer(nil, nil)
	require.NoError(t, n.LoadOverrides(path))
	assert.Equal(t, "test", n.Normalize("tset").Normalized)

	require.NoError(t, os.WriteFile(path, []byte("corrections: [not, a, map"), 0600))
	assert.Error(t, n.LoadOverrides(path))
	assert.Equal(t, "test", n.Normalize("tset").Normalized, "failed load keeps previous table")

	assert.NoError(t, n.LoadOverrides(filepath.Join(dir, "missing.yaml")))
	assert.Equal(t, "tset", n.Normalize("tset").Normalized)
}

func TestOverrideWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrections.yaml")
	require.NoError(t, os.WriteFile(path, []byte("corrections:\n  aaa: bbb\n"), 0600))

	n := NewNormalizer(nil, nil)
	w, err := NewOverrideWatcher(path, n)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	assert.Equal(t, "bbb", n.Normalize("aaa").Normalized)

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("corrections:\n  aaa: ccc\n"), 0600))

	assert.Eventually(t, func() bool {
		return n.Normalize("aaa").Normalized == "ccc"
	}, 5*time.Second, 20*time.Millisecond)
}
