// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patterns implements deterministic lexical classification.
//
// Rules are data (see DefaultRules): each names the signal categories it
// needs and the route it proposes. The classifier extracts signals from an
// utterance once, then scores every rule against them. A rule only proposes
// a route when its evidence comes from at least two independent tokens, so
// a single stray keyword never triggers an action.
package patterns

import (
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianRouter/services/intent/normalize"
	"github.com/AleutianAI/AleutianRouter/services/intent/route"
)

// =============================================================================
// Types
// =============================================================================

// posQuestionMark is the position of a trailing question mark, which is
// punctuation rather than a token.
const posQuestionMark = -1

// signal is one piece of evidence at a token position.
type signal struct {
	category Category
	token    string
	position int
}

// extraction is everything the classifier learns from one utterance.
type extraction struct {
	byCategory map[Category][]signal
	target     string
	modelName  string
	hints      []string
}

// Candidate is a route proposed by one rule.
type Candidate struct {
	Rule       string
	Type       route.Type
	Action     string
	Confidence float64
	Target     string
	Hints      []string
	TargetMode TargetMode
	Signals    []string
}

// =============================================================================
// Classifier
// =============================================================================

// Classifier scores utterances against a rule table.
//
// Thread Safety: immutable after construction; safe for concurrent use.
type Classifier struct {
	rules   []Rule
	weights map[Category]float64
}

// NewClassifier creates a classifier. nil rules or weights use the defaults.
func NewClassifier(rules []Rule, weights map[Category]float64) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	if weights == nil {
		weights = DefaultWeights
	}
	return &Classifier{rules: rules, weights: weights}
}

// Classify returns every rule match for u, best first.
//
// Description:
//
//	Confidence is the rule's base plus the weight of every satisfied
//	category the rule inspects, capped at 1.0. Equal confidences keep
//	rule-table order.
//
// Inputs:
//
//	u - Normalized utterance.
//
// Outputs:
//
//	[]Candidate - Zero or more candidates. Empty when nothing matched.
func (c *Classifier) Classify(u normalize.Utterance) []Candidate {
	ex := extract(u)
	var out []Candidate
	for _, rule := range c.rules {
		cand, ok := c.evaluate(rule, ex)
		if ok {
			out = append(out, cand)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Best returns the top candidate, if any.
func (c *Classifier) Best(u normalize.Utterance) (Candidate, bool) {
	cands := c.Classify(u)
	if len(cands) == 0 {
		return Candidate{}, false
	}
	return cands[0], true
}

func (c *Classifier) evaluate(rule Rule, ex extraction) (Candidate, bool) {
	for _, group := range rule.Groups {
		satisfied := false
		for _, cat := range group {
			if len(ex.byCategory[cat]) > 0 {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return Candidate{}, false
		}
	}

	positions := make(map[int]struct{})
	confidence := rule.Base
	var names []string
	for _, cat := range rule.relevant() {
		sigs := ex.byCategory[cat]
		if len(sigs) == 0 {
			continue
		}
		confidence += c.weights[cat]
		names = append(names, cat.String())
		for _, s := range sigs {
			positions[s.position] = struct{}{}
		}
	}
	if len(positions) < MinIndependentSignals {
		return Candidate{}, false
	}

	action := rule.Action
	verbCats := rule.verbCategories()
	for _, cat := range []Category{CatCreationVerb, CatFixVerb, CatRunVerb, CatFileVerb, CatModelVerb} {
		if !verbCats[cat] || len(ex.byCategory[cat]) == 0 {
			continue
		}
		if v, ok := actionVerbs[ex.byCategory[cat][0].token]; ok {
			action = v.Action
		}
		break
	}

	target := ex.target
	if rule.Type == route.TypeModelMgmt {
		target = ex.modelName
	}

	return Candidate{
		Rule:       rule.Name,
		Type:       rule.Type,
		Action:     action,
		Confidence: route.ClampConfidence(confidence),
		Target:     target,
		Hints:      ex.hints,
		TargetMode: rule.targetModeFor(action),
		Signals:    names,
	}, true
}

// =============================================================================
// Signal Extraction
// =============================================================================

func extract(u normalize.Utterance) extraction {
	ex := extraction{byCategory: make(map[Category][]signal)}
	add := func(cat Category, tok string, pos int) {
		ex.byCategory[cat] = append(ex.byCategory[cat], signal{category: cat, token: tok, position: pos})
	}

	if u.Question {
		add(CatQuestionMark, "?", posQuestionMark)
	}
	for _, re := range questionFrames {
		if loc := re.FindStringIndex(u.Normalized); loc != nil {
			// A frame is anchored on its last token, so a one-word frame
			// shares its position with the question word it matched.
			last := strings.Count(u.Normalized[:loc[1]], " ")
			add(CatQuestionFrame, u.Normalized[loc[0]:loc[1]], last)
			break
		}
	}

	targetPos := -1
	if len(u.Quoted) > 0 {
		ex.target = u.Quoted[0].Text
		targetPos = u.Quoted[0].First
	}
	for i, tok := range u.Tokens {
		if _, ok := namingConnectives[tok]; ok && i+1 < len(u.Tokens) {
			next := u.Tokens[i+1]
			if _, stop := stopwords[next]; !stop && ex.target == "" {
				ex.target = next
				targetPos = i + 1
			}
		}
	}
	for i, tok := range u.Tokens {
		if ex.target == "" && isFileLike(tok) {
			ex.target = tok
			targetPos = i
		}
		if ex.modelName == "" && isModelName(tok) {
			ex.modelName = tok
		}
	}
	if targetPos >= 0 {
		add(CatTarget, ex.target, targetPos)
	}

	for i, tok := range u.Tokens {
		if u.InQuote(i) {
			if ex.modelName == "" && isModelName(tok) {
				ex.modelName = tok
			}
			continue
		}
		known := i == targetPos
		if v, ok := actionVerbs[tok]; ok {
			for _, cat := range v.Categories {
				add(cat, tok, i)
			}
			known = true
		}
		for _, vocab := range []struct {
			set map[string]struct{}
			cat Category
		}{
			{fileNouns, CatFileNoun},
			{modelNouns, CatModelNoun},
			{scriptNouns, CatScriptNoun},
			{languages, CatLanguage},
			{questionWords, CatQuestionWord},
			{connectives, CatConnective},
		} {
			if _, ok := vocab.set[tok]; ok {
				add(vocab.cat, tok, i)
				known = true
			}
		}
		if isModelName(tok) {
			add(CatModelNoun, tok, i)
			known = true
		}
		if isErrorNoun(tok) {
			add(CatErrorNoun, tok, i)
			known = true
		}
		if _, stop := stopwords[tok]; stop {
			known = true
		}
		if !known && len(tok) > 1 && !numericRe.MatchString(tok) {
			ex.hints = append(ex.hints, tok)
		}
	}
	return ex
}

// =============================================================================
// Vocabulary
// =============================================================================

// Vocabulary returns every keyword the classifier recognises, sorted.
// The normalizer uses it for edit-distance correction.
func Vocabulary() []string {
	seen := make(map[string]struct{})
	for w := range actionVerbs {
		seen[w] = struct{}{}
	}
	for _, set := range []map[string]struct{}{
		fileNouns, modelNouns, scriptNouns, languages, errorNouns,
		questionWords, connectives, stopwords,
	} {
		for w := range set {
			seen[w] = struct{}{}
		}
	}
	for _, f := range modelFamilies {
		seen[strings.TrimSuffix(f, "-")] = struct{}{}
	}
	for phrase := range directCommands {
		for _, w := range strings.Fields(phrase) {
			seen[w] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
