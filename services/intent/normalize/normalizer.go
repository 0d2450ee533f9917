// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize cleans raw user input before routing.
//
// The Normalizer strips politeness phrasing, case-folds, corrects known
// misspellings and reports every correction it made so the caller can
// show a "did you mean" confirmation.
package normalize

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/AleutianAI/AleutianRouter/pkg/textsim"
)

// =============================================================================
// Types
// =============================================================================

// Correction records one token replaced during normalization.
type Correction struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// Utterance is one normalized request. Created per request, never shared.
type Utterance struct {
	// Raw is the input exactly as received.
	Raw string `json:"raw"`

	// Normalized is the cleaned, lowercased, corrected text.
	Normalized string `json:"normalized"`

	// Tokens are the words of Normalized with surrounding punctuation removed.
	Tokens []string `json:"tokens"`

	// Corrections lists every token the normalizer changed, in input order.
	Corrections []Correction `json:"corrections,omitempty"`

	// Question is true when the raw input ended in a question mark.
	Question bool `json:"question"`

	// Quoted lists the quoted spans of the input, in order. Tokens inside a
	// span are never corrected.
	Quoted []Quote `json:"quoted,omitempty"`
}

// Quote is a quoted span and the token range it covers.
type Quote struct {
	Text  string `json:"text"`
	First int    `json:"first"`
	Last  int    `json:"last"`
}

// InQuote reports whether token index i lies inside a quoted span.
func (u Utterance) InQuote(i int) bool {
	for _, q := range u.Quoted {
		if i >= q.First && i <= q.Last {
			return true
		}
	}
	return false
}

// Corrected reports whether any token was changed.
func (u Utterance) Corrected() bool {
	return len(u.Corrections) > 0
}

// =============================================================================
// Normalizer
// =============================================================================

const (
	// minFuzzyTokenLen is the shortest token eligible for vocabulary correction.
	// Short tokens have too many distance-1 neighbours.
	minFuzzyTokenLen = 5
)

var (
	fileLikeRe = regexp.MustCompile(`[./\\~]|\d`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// Normalizer turns raw text into an Utterance.
//
// Thread Safety: safe for concurrent use. The correction table is swapped
// atomically by Reload, so a request sees either the old or the new table.
type Normalizer struct {
	table      atomic.Pointer[map[string]string]
	vocabulary []string
	vocabSet   map[string]struct{}
	logger     *slog.Logger
}

// NewNormalizer creates a Normalizer seeded with the static correction table.
//
// Description:
//
//	vocabulary lists the keywords the downstream classifier understands.
//	Tokens at edit distance 1 from exactly one vocabulary word are
//	corrected to it, in addition to the static table.
//
// Inputs:
//
//	vocabulary - Known keywords. May be nil to disable vocabulary correction.
//	logger - Logger. nil uses slog.Default().
//
// Outputs:
//
//	*Normalizer - Ready to use.
func NewNormalizer(vocabulary []string, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{
		vocabSet: make(map[string]struct{}, len(vocabulary)),
		logger:   logger,
	}
	for _, w := range vocabulary {
		w = strings.ToLower(w)
		if _, dup := n.vocabSet[w]; dup {
			continue
		}
		n.vocabSet[w] = struct{}{}
		if len([]rune(w)) >= minFuzzyTokenLen {
			n.vocabulary = append(n.vocabulary, w)
		}
	}
	sort.Strings(n.vocabulary)

	table := StaticCorrections()
	n.table.Store(&table)
	return n
}

// Reload replaces the correction table with the static table merged with
// overrides. Override keys win. An empty override value removes the entry.
func (n *Normalizer) Reload(overrides map[string]string) {
	table := StaticCorrections()
	for k, v := range overrides {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(v))
		if k == "" {
			continue
		}
		if v == "" {
			delete(table, k)
			continue
		}
		table[k] = v
	}
	n.table.Store(&table)
	n.logger.Info("correction table reloaded",
		slog.Int("entries", len(table)),
		slog.Int("overrides", len(overrides)))
}

// Normalize cleans raw and returns the resulting Utterance.
//
// Description:
//
//	Steps, in order: trim and case-fold; strip politeness prefixes and
//	suffixes; split into tokens; correct each token against the
//	correction table, then against the vocabulary; rejoin.
//
// Inputs:
//
//	raw - User input. May be empty.
//
// Outputs:
//
//	Utterance - Never fails. Empty input yields an empty Normalized string.
func (n *Normalizer) Normalize(raw string) Utterance {
	u := Utterance{Raw: raw}

	text := strings.ToLower(strings.TrimSpace(raw))
	text = spaceRe.ReplaceAllString(text, " ")
	u.Question = strings.HasSuffix(text, "?")
	text = strings.TrimRight(text, "?!. ")
	text = stripPoliteness(text)

	table := *n.table.Load()
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	var span quoteSpan
	for _, field := range fields {
		opened := span.open(field, len(tokens))
		tok := cleanToken(field)
		if tok != "" {
			tokens = append(tokens, n.correct(&u, table, tok, span.active()))
		}
		if q, ok := span.close(field, opened, len(tokens)-1); ok {
			u.Quoted = append(u.Quoted, q)
		}
	}

	u.Tokens = tokens
	u.Normalized = strings.Join(tokens, " ")
	if len(u.Corrections) > 0 {
		n.logger.Debug("input corrected",
			slog.String("normalized", u.Normalized),
			slog.Int("corrections", len(u.Corrections)))
	}
	return u
}

// correct applies the correction table, then vocabulary matching. Quoted
// tokens are returned unchanged.
func (n *Normalizer) correct(u *Utterance, table map[string]string, tok string, quoted bool) string {
	if quoted {
		return tok
	}
	if fixed, ok := table[tok]; ok && fixed != tok {
		u.Corrections = append(u.Corrections, Correction{Original: tok, Corrected: fixed})
		return fixed
	}
	if fixed, ok := n.vocabularyMatch(tok); ok {
		u.Corrections = append(u.Corrections, Correction{Original: tok, Corrected: fixed})
		return fixed
	}
	return tok
}

// vocabularyMatch finds the single vocabulary word at distance 1 from tok.
// Ambiguous matches return false.
func (n *Normalizer) vocabularyMatch(tok string) (string, bool) {
	if len([]rune(tok)) < minFuzzyTokenLen || fileLikeRe.MatchString(tok) {
		return "", false
	}
	if _, known := n.vocabSet[tok]; known {
		return "", false
	}
	match := ""
	for _, w := range n.vocabulary {
		if abs(len(w)-len(tok)) > 1 {
			continue
		}
		if textsim.Levenshtein(tok, w) == 1 {
			if match != "" {
				return "", false
			}
			match = w
		}
	}
	return match, match != ""
}

func stripPoliteness(text string) string {
	for changed := true; changed; {
		changed = false
		for _, p := range politePrefixes {
			if text == p {
				return ""
			}
			if rest, ok := strings.CutPrefix(text, p); ok && (strings.HasPrefix(rest, " ") || strings.HasPrefix(rest, ",")) {
				text = strings.TrimLeft(rest, ", ")
				changed = true
			}
		}
		for _, s := range politeSuffixes {
			if strings.HasSuffix(text, " "+s) {
				text = strings.TrimSpace(strings.TrimSuffix(text, " "+s))
				text = strings.TrimRight(text, ", ")
				changed = true
			}
		}
	}
	return text
}

// cleanToken removes surrounding quotes and punctuation. A trailing dot is
// dropped, a leading dot is kept (hidden files, relative paths).
func cleanToken(field string) string {
	field = strings.TrimFunc(field, func(r rune) bool {
		switch r {
		case '"', '\'', '`', '(', ')', '[', ']', ',', ';', ':', '!', '?':
			return true
		}
		return false
	})
	field = strings.TrimRight(field, ".")
	if strings.IndexFunc(field, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return ""
	}
	return field
}

// quoteSpan tracks a quoted span while fields are scanned.
type quoteSpan struct {
	quote byte
	first int
	parts []string
}

func (s *quoteSpan) active() bool { return s.quote != 0 }

// open starts a span when field begins with a quote character. next is the
// index the field's token will get. It reports whether field opened a span.
func (s *quoteSpan) open(field string, next int) bool {
	if s.quote != 0 {
		return false
	}
	f := strings.TrimLeft(field, "([")
	if f == "" || !isQuote(f[0]) {
		return false
	}
	s.quote, s.first, s.parts = f[0], next, nil
	return true
}

// close adds field to the open span and ends the span when field carries
// the closing quote. last is the index of the newest token.
func (s *quoteSpan) close(field string, opened bool, last int) (Quote, bool) {
	if s.quote == 0 {
		return Quote{}, false
	}
	s.parts = append(s.parts, field)

	body := strings.TrimRight(field, ".,;:!?)]")
	if opened {
		body = strings.TrimLeft(body, "([")
		if body != "" {
			body = body[1:]
		}
	}
	if body == "" || body[len(body)-1] != s.quote {
		return Quote{}, false
	}

	s.quote = 0
	text := strings.TrimLeft(strings.Join(s.parts, " "), "([")
	text = strings.TrimRight(text, ".,;:!?)]")
	if len(text) < 2 {
		return Quote{}, false
	}
	text = strings.TrimSpace(text[1 : len(text)-1])
	if text == "" || last < s.first {
		return Quote{}, false
	}
	return Quote{Text: text, First: s.first, Last: last}, true
}

func isQuote(b byte) bool {
	return b == '"' || b == '\'' || b == '`'
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
