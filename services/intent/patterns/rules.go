// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import "github.com/AleutianAI/AleutianRouter/services/intent/route"

// TargetMode describes how a rule's route obtains its target.
type TargetMode int

const (
	// TargetNone means the route never has a target.
	TargetNone TargetMode = iota

	// TargetNew means the target is a name being created. It is taken
	// verbatim from the utterance and never fuzzy-resolved.
	TargetNew

	// TargetExisting means the target must name something that exists.
	// Without an explicit target the router resolves hint tokens.
	TargetExisting

	// TargetOptional resolves hint tokens if there are any, but a missing
	// target does not make the route ambiguous.
	TargetOptional
)

// String returns the mode name.
func (m TargetMode) String() string {
	switch m {
	case TargetNew:
		return "new"
	case TargetExisting:
		return "existing"
	case TargetOptional:
		return "optional"
	default:
		return "none"
	}
}

// Rule is one row of the classification table.
//
// A rule matches when every group has at least one satisfied category and
// the satisfied categories it considers are backed by at least
// MinIndependentSignals distinct tokens.
type Rule struct {
	// Name identifies the rule in logs and route signals.
	Name string

	// Type is the route type proposed on match.
	Type route.Type

	// Action is used when no verb in the utterance supplies one.
	Action string

	// Groups are alternatives; each group needs one satisfied category.
	Groups [][]Category

	// Boosts add confidence when present but are never required.
	Boosts []Category

	// Base is the confidence before category weights are added.
	Base float64

	// Target says how the route's target is obtained.
	Target TargetMode

	// TargetByAction overrides Target for specific canonical actions.
	TargetByAction map[string]TargetMode
}

// MinIndependentSignals is the fewest distinct pieces of evidence a rule
// needs before it may propose a route.
const MinIndependentSignals = 2

// DefaultRules is the built-in rule table, most specific first.
// Ties in confidence go to the earlier rule.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "script-fix",
			Type:   route.TypeScriptFix,
			Action: "fix",
			Groups: [][]Category{{CatFixVerb, CatErrorNoun}},
			Boosts: []Category{CatScriptNoun, CatLanguage, CatTarget, CatErrorNoun, CatFixVerb},
			Base:   0.3,
			Target: TargetOptional,
		},
		{
			Name:   "script-create",
			Type:   route.TypeScriptCreation,
			Action: "create",
			Groups: [][]Category{{CatCreationVerb}, {CatScriptNoun, CatLanguage}},
			Boosts: []Category{CatLanguage, CatConnective, CatTarget},
			Base:   0.3,
			Target: TargetNew,
		},
		{
			Name:   "question",
			Type:   route.TypeQuestion,
			Action: "answer",
			Groups: [][]Category{{CatQuestionWord, CatQuestionFrame, CatQuestionMark}},
			Boosts: []Category{CatQuestionWord, CatQuestionFrame, CatQuestionMark},
			Base:   0.3,
			Target: TargetNone,
		},
		{
			Name:   "file-create",
			Type:   route.TypeFileOp,
			Action: "create",
			Groups: [][]Category{{CatCreationVerb}, {CatFileNoun, CatTarget}},
			Boosts: []Category{CatConnective, CatFileNoun, CatTarget},
			Base:   0.3,
			Target: TargetNew,
		},
		{
			Name:   "file-op",
			Type:   route.TypeFileOp,
			Action: "show",
			Groups: [][]Category{{CatFileVerb}, {CatFileNoun, CatTarget}},
			Boosts: []Category{CatConnective, CatFileNoun, CatTarget},
			Base:   0.3,
			Target: TargetExisting,
			TargetByAction: map[string]TargetMode{
				"list":   TargetOptional,
				"find":   TargetOptional,
				"clean":  TargetOptional,
				"rename": TargetExisting,
			},
		},
		{
			Name:   "file-run",
			Type:   route.TypeFileOp,
			Action: "run",
			Groups: [][]Category{{CatRunVerb}, {CatScriptNoun, CatTarget, CatLanguage}},
			Boosts: []Category{CatScriptNoun, CatTarget, CatLanguage},
			Base:   0.3,
			Target: TargetExisting,
		},
		{
			Name:   "model-mgmt",
			Type:   route.TypeModelMgmt,
			Action: "list",
			Groups: [][]Category{{CatModelVerb}, {CatModelNoun}},
			Boosts: []Category{CatConnective},
			Base:   0.3,
			Target: TargetExisting,
			TargetByAction: map[string]TargetMode{
				"list":     TargetNone,
				"download": TargetOptional,
				"install":  TargetOptional,
			},
		},
	}
}

// targetModeFor resolves the target mode for a matched action.
func (r Rule) targetModeFor(action string) TargetMode {
	if mode, ok := r.TargetByAction[action]; ok {
		return mode
	}
	return r.Target
}

// relevant returns the distinct categories this rule inspects.
func (r Rule) relevant() []Category {
	seen := make(map[Category]bool)
	var out []Category
	add := func(c Category) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, g := range r.Groups {
		for _, c := range g {
			add(c)
		}
	}
	for _, c := range r.Boosts {
		add(c)
	}
	return out
}

// verbCategories are the categories whose matching token supplies the action.
func (r Rule) verbCategories() map[Category]bool {
	out := make(map[Category]bool)
	for _, g := range r.Groups {
		for _, c := range g {
			switch c {
			case CatCreationVerb, CatFileVerb, CatModelVerb, CatRunVerb, CatFixVerb:
				out[c] = true
			}
		}
	}
	return out
}
