// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package route defines the classified outcome of one user utterance.
//
// Route values are plain data: the router produces them, callers consume
// them, and nothing in this package formats or executes anything.
package route

import (
	"strings"
	"time"

	"github.com/AleutianAI/AleutianRouter/services/intent/normalize"
)

// =============================================================================
// Route Type
// =============================================================================

// Type is the action category of a Route.
type Type string

const (
	TypeDirectCommand  Type = "direct_command"
	TypeFileOp         Type = "file_op"
	TypeModelMgmt      Type = "model_mgmt"
	TypeScriptCreation Type = "script_creation"
	TypeScriptFix      Type = "script_fix"
	TypeQuestion       Type = "question"
	TypeUnknown        Type = "unknown"
)

// AllTypes lists every route type in declaration order.
var AllTypes = []Type{
	TypeDirectCommand,
	TypeFileOp,
	TypeModelMgmt,
	TypeScriptCreation,
	TypeScriptFix,
	TypeQuestion,
	TypeUnknown,
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType accepts snake_case, CamelCase or spaced spellings
// ("file_op", "FileOp", "file op"). Unknown strings return false.
func ParseType(s string) (Type, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	for _, t := range AllTypes {
		if strings.ReplaceAll(string(t), "_", "") == key {
			return t, true
		}
	}
	return TypeUnknown, false
}

// =============================================================================
// Layer
// =============================================================================

// Layer identifies which routing strategy produced a Route.
// Lower layers are more specific and win ties.
type Layer int

const (
	LayerNone Layer = iota
	LayerDirect
	LayerPattern
	LayerFuzzy
	LayerDelegated
	LayerFallback
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerDirect:
		return "direct"
	case LayerPattern:
		return "pattern"
	case LayerFuzzy:
		return "fuzzy"
	case LayerDelegated:
		return "delegated"
	case LayerFallback:
		return "fallback"
	default:
		return "none"
	}
}

// MarshalText encodes the layer by name.
func (l Layer) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a layer name. Unknown names decode to LayerNone.
func (l *Layer) UnmarshalText(text []byte) error {
	*l = LayerNone
	for candidate := LayerDirect; candidate <= LayerFallback; candidate++ {
		if candidate.String() == string(text) {
			*l = candidate
			break
		}
	}
	return nil
}

// =============================================================================
// Route
// =============================================================================

// Candidate is one possible target for a route, scored by the fuzzy resolver.
type Candidate struct {
	Identifier   string    `json:"identifier"`
	Similarity   float64   `json:"similarity"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// Payload carries what the execution collaborator needs to act on a route.
type Payload struct {
	// Action is the canonical verb ("create", "delete", "download", ...).
	Action string `json:"action,omitempty"`

	// Command is set for direct commands ("help", "exit", ...).
	Command string `json:"command,omitempty"`

	// Target is the resolved file, model or entity. Empty when unresolved.
	Target string `json:"target,omitempty"`

	// Hints are the tokens used for fuzzy target resolution.
	Hints []string `json:"hints,omitempty"`

	// Candidates are the top fuzzy matches when the target is ambiguous.
	Candidates []Candidate `json:"candidates,omitempty"`

	// NeedsDisambiguation asks the caller to confirm a target before acting.
	NeedsDisambiguation bool `json:"needs_disambiguation,omitempty"`

	// Reason explains an Unknown route ("no_match", "cancelled", ...).
	Reason string `json:"reason,omitempty"`
}

// Route is the classified outcome of one utterance.
//
// Invariants: DirectCommand has confidence 1.0; Unknown has confidence 0.
type Route struct {
	Type        Type                   `json:"type"`
	Confidence  float64                `json:"confidence"`
	Layer       Layer                  `json:"source_layer"`
	Payload     Payload                `json:"payload"`
	Corrections []normalize.Correction `json:"corrections,omitempty"`
	Signals     []string               `json:"signals,omitempty"`
}

// IsFallback reports whether r is the terminal Unknown route.
func (r Route) IsFallback() bool {
	return r.Type == TypeUnknown
}

// Direct builds a layer 1 route for a zero-ambiguity command.
func Direct(command string) Route {
	return Route{
		Type:       TypeDirectCommand,
		Confidence: 1.0,
		Layer:      LayerDirect,
		Payload:    Payload{Command: command, Action: command},
	}
}

// Unknown builds the fallback route.
func Unknown(reason string) Route {
	return Route{
		Type:       TypeUnknown,
		Confidence: 0,
		Layer:      LayerFallback,
		Payload:    Payload{Reason: reason},
	}
}

// ClampConfidence limits c to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
