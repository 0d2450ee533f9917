// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fuzzy ranks candidate targets (files, models, commands) against
// hint tokens taken from an utterance.
//
// Weak matches are dropped instead of being returned with a low score, and
// a match is only auto-accepted when it is both strong and clearly ahead of
// the runner-up. Everything else is surfaced for confirmation.
package fuzzy

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianRouter/pkg/textsim"
	"github.com/AleutianAI/AleutianRouter/services/intent/route"
)

// Config holds the resolver thresholds.
type Config struct {
	// ContainmentWeight is added when a hint is a substring of the identifier.
	ContainmentWeight float64 `yaml:"containment_weight" json:"containment_weight"`

	// RatioWeight scales the edit-distance ratio between hint and name.
	RatioWeight float64 `yaml:"ratio_weight" json:"ratio_weight"`

	// MinSimilarity drops candidates scoring below it.
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`

	// AcceptThreshold is the score the top candidate needs to be auto-accepted.
	AcceptThreshold float64 `yaml:"accept_threshold" json:"accept_threshold"`

	// AmbiguityMargin is how far the top candidate must lead the second.
	AmbiguityMargin float64 `yaml:"ambiguity_margin" json:"ambiguity_margin"`

	// TopN caps the candidates surfaced for disambiguation.
	TopN int `yaml:"top_n" json:"top_n"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ContainmentWeight: 0.6,
		RatioWeight:       0.4,
		MinSimilarity:     0.25,
		AcceptThreshold:   0.6,
		AmbiguityMargin:   0.1,
		TopN:              5,
	}
}

// Validate checks that thresholds are in range.
func (c Config) Validate() error {
	var errs []string
	for name, v := range map[string]float64{
		"containment_weight": c.ContainmentWeight,
		"ratio_weight":       c.RatioWeight,
		"min_similarity":     c.MinSimilarity,
		"accept_threshold":   c.AcceptThreshold,
		"ambiguity_margin":   c.AmbiguityMargin,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0,1], got %v", name, v))
		}
	}
	if c.AcceptThreshold < c.MinSimilarity {
		errs = append(errs, "accept_threshold must be >= min_similarity")
	}
	if c.TopN <= 0 {
		errs = append(errs, "top_n must be positive")
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("invalid fuzzy config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Resolver scores candidates against hints.
//
// Thread Safety: immutable; safe for concurrent use.
type Resolver struct {
	config Config
}

// NewResolver creates a Resolver after validating cfg.
func NewResolver(cfg Config) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{config: cfg}, nil
}

// Config returns the resolver thresholds.
func (r *Resolver) Config() Config {
	return r.config
}

// Score computes the composite similarity of identifier to hints.
//
// Each hint contributes ContainmentWeight if it occurs inside the
// identifier, plus RatioWeight times its best edit ratio against the
// identifier's base name or stem. Contributions add up and are capped at 1.
func (r *Resolver) Score(hints []string, identifier string) float64 {
	id := strings.ToLower(identifier)
	base := path.Base(strings.ReplaceAll(id, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))

	score := 0.0
	for _, hint := range hints {
		hint = strings.ToLower(strings.TrimSpace(hint))
		if hint == "" {
			continue
		}
		if strings.Contains(id, hint) {
			score += r.config.ContainmentWeight
		}
		ratio := textsim.Ratio(hint, base)
		if sr := textsim.Ratio(hint, stem); sr > ratio {
			ratio = sr
		}
		score += r.config.RatioWeight * ratio
	}
	return route.ClampConfidence(score)
}

// Resolve ranks candidates against hints.
//
// Description:
//
//	Scores every candidate, drops those below MinSimilarity, and sorts by
//	similarity descending, then most recently modified, then identifier.
//
// Inputs:
//
//	hints - Hint tokens. No hints yields no candidates.
//	candidates - Possible targets. Similarity fields are overwritten.
//
// Outputs:
//
//	[]route.Candidate - Ranked, never containing a score below MinSimilarity.
func (r *Resolver) Resolve(hints []string, candidates []route.Candidate) []route.Candidate {
	if len(hints) == 0 {
		return nil
	}
	out := make([]route.Candidate, 0, len(candidates))
	for _, c := range candidates {
		s := r.Score(hints, c.Identifier)
		if s < r.config.MinSimilarity {
			continue
		}
		c.Similarity = s
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}

// Decision is the outcome of choosing among ranked candidates.
type Decision struct {
	// Accepted is the chosen target when Ambiguous is false.
	Accepted route.Candidate

	// Ambiguous means the caller must confirm one of Top.
	Ambiguous bool

	// Top holds at most TopN ranked candidates.
	Top []route.Candidate
}

// Decide accepts the top candidate only if it clears AcceptThreshold and
// leads the runner-up by AmbiguityMargin. Empty input is ambiguous with no
// candidates.
func (r *Resolver) Decide(ranked []route.Candidate) Decision {
	top := ranked
	if len(top) > r.config.TopN {
		top = top[:r.config.TopN]
	}
	if len(ranked) == 0 {
		return Decision{Ambiguous: true}
	}
	first := ranked[0]
	if first.Similarity < r.config.AcceptThreshold {
		return Decision{Ambiguous: true, Top: top}
	}
	if len(ranked) > 1 && first.Similarity-ranked[1].Similarity < r.config.AmbiguityMargin {
		return Decision{Ambiguous: true, Top: top}
	}
	return Decision{Accepted: first, Top: top}
}
