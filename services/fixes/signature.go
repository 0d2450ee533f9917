// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixes implements the fix consensus engine.
//
// Community-submitted fixes are stored per error signature together with
// success and failure counters. Lookups rank candidate fixes by a trust tier
// derived from those counters, then by signature similarity. Fixes matching
// a dangerous-operation pattern, or reported as fraudulent often enough, are
// quarantined and never returned.
//
// Records are never deleted. The engine owns all mutation; callers submit
// fixes and report outcomes.
package fixes

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianRouter/pkg/textsim"
)

// Errors returned by the engine. Lookup and Report never return errors.
var (
	ErrMalformedSignature = errors.New("malformed error signature")
	ErrEmptySolution      = errors.New("solution text is empty")
	ErrCyclicLineage      = errors.New("derived_from would create a lineage cycle")
	ErrLineageTooDeep     = errors.New("lineage exceeds maximum depth")
	ErrLineageImmutable   = errors.New("lineage of an existing fix cannot change")
	ErrParentNotFound     = errors.New("derived_from fix not found")
	ErrRecordNotFound     = errors.New("fix not found")
	ErrInvalidSubmission  = errors.New("invalid fix submission")
)

// ErrorSignature identifies the failure a fix addresses.
//
// Matching is approximate: ExceptionKind must match exactly after
// normalization, the rest contributes a similarity score.
type ErrorSignature struct {
	ExceptionKind   string `json:"exception_kind" yaml:"exception_kind" validate:"required,max=256"`
	Message         string `json:"normalized_message" yaml:"message" validate:"required,max=4096"`
	RuntimeContext  string `json:"runtime_context,omitempty" yaml:"runtime_context" validate:"max=1024"`
	SurroundingCode string `json:"surrounding_code,omitempty" yaml:"surrounding_code" validate:"max=16384"`
}

var (
	quotedRe  = regexp.MustCompile(`"[^"]*"|'[^']*'|` + "`[^`]*`")
	pathRe    = regexp.MustCompile(`(?:[a-zA-Z]:)?(?:[\w.~-]*[/\\])+[\w.-]+(?::\d+)?`)
	hexRe     = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)
	uuidRe    = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	numberRe  = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	spaceRe   = regexp.MustCompile(`\s+`)
	kindTrims = " \t\r\n:"
)

// NormalizeMessage replaces volatile fragments of an error message with
// placeholders so that messages differing only in paths, numbers, addresses
// or quoted values compare equal.
//
// # Inputs
//
//   - msg: Raw error message.
//
// # Outputs
//
//   - string: Lowercased message with <str>, <path>, <uuid>, <hex> and <num>
//     placeholders and collapsed whitespace.
func NormalizeMessage(msg string) string {
	s := quotedRe.ReplaceAllString(msg, "<str>")
	s = pathRe.ReplaceAllString(s, "<path>")
	s = uuidRe.ReplaceAllString(s, "<uuid>")
	s = hexRe.ReplaceAllString(s, "<hex>")
	s = numberRe.ReplaceAllString(s, "<num>")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeKind case-folds and trims an exception kind.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.Trim(kind, kindTrims))
}

// Normalize returns a copy with kind and message normalized and the other
// fields trimmed.
func (s ErrorSignature) Normalize() ErrorSignature {
	return ErrorSignature{
		ExceptionKind:   NormalizeKind(s.ExceptionKind),
		Message:         NormalizeMessage(s.Message),
		RuntimeContext:  strings.ToLower(strings.TrimSpace(s.RuntimeContext)),
		SurroundingCode: strings.TrimSpace(s.SurroundingCode),
	}
}

// Validate reports whether the signature can be stored.
func (s ErrorSignature) Validate() error {
	if NormalizeKind(s.ExceptionKind) == "" {
		return fmt.Errorf("%w: exception_kind is required", ErrMalformedSignature)
	}
	if strings.TrimSpace(s.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrMalformedSignature)
	}
	return nil
}

// MatchConfig weights the parts of a signature during lookup.
type MatchConfig struct {
	MessageWeight float64 `yaml:"message_weight" validate:"gte=0,lte=1"`
	ContextWeight float64 `yaml:"context_weight" validate:"gte=0,lte=1"`
	CodeWeight    float64 `yaml:"code_weight" validate:"gte=0,lte=1"`

	// MinSimilarity drops weaker candidates entirely.
	MinSimilarity float64 `yaml:"min_similarity" validate:"gte=0,lte=1"`

	// MaxResults caps lookup output. Zero means unlimited.
	MaxResults int `yaml:"max_results" validate:"gte=0"`
}

// DefaultMatchConfig returns the default weights.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		MessageWeight: 0.7,
		ContextWeight: 0.2,
		CodeWeight:    0.1,
		MinSimilarity: 0.35,
		MaxResults:    10,
	}
}

// Similarity scores two normalized signatures in [0,1].
//
// Different exception kinds score 0. Context and code only count when both
// sides carry them; the remaining weights are rescaled.
func (m MatchConfig) Similarity(a, b ErrorSignature) float64 {
	if a.ExceptionKind == "" || a.ExceptionKind != b.ExceptionKind {
		return 0
	}
	score := m.MessageWeight * textsim.Blend(a.Message, b.Message)
	total := m.MessageWeight
	if a.RuntimeContext != "" && b.RuntimeContext != "" {
		score += m.ContextWeight * textsim.Blend(a.RuntimeContext, b.RuntimeContext)
		total += m.ContextWeight
	}
	if a.SurroundingCode != "" && b.SurroundingCode != "" {
		score += m.CodeWeight * textsim.Blend(a.SurroundingCode, b.SurroundingCode)
		total += m.CodeWeight
	}
	if total == 0 {
		return 0
	}
	if s := score / total; s < 1 {
		return s
	}
	return 1
}
