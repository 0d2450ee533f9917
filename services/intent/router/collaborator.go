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

	"github.com/AleutianAI/AleutianRouter/services/intent/route"
)

// =============================================================================
// Inference Collaborator Boundary
// =============================================================================

// Errors describing why delegated classification was skipped. They are
// carried inside InferenceUnavailable and InferenceMalformed and never
// escape Classify.
var (
	ErrCollaboratorUnavailable = errors.New("inference collaborator unavailable")
	ErrCollaboratorTimeout     = errors.New("inference collaborator timed out")
	ErrMalformedResponse       = errors.New("malformed inference response")
)

// InferenceRequest is what the router sends to the collaborator.
type InferenceRequest struct {
	Instruction    string       `json:"instruction"`
	Utterance      string       `json:"utterance"`
	AllowedIntents []route.Type `json:"allowed_intents"`
}

// InferenceResult is one of InferenceOK, InferenceUnavailable or
// InferenceMalformed.
type InferenceResult interface {
	inferenceResult()
}

// InferenceOK is a well-formed collaborator answer. Its fields are still
// validated by the router.
type InferenceOK struct {
	Intent     string
	Confidence float64
	Hints      []string
}

// InferenceUnavailable means the collaborator could not answer
// (not configured, unreachable, rate limited, timed out).
type InferenceUnavailable struct {
	Reason string
	Err    error
}

// InferenceMalformed means the collaborator answered outside the expected shape.
type InferenceMalformed struct {
	Raw string
	Err error
}

func (InferenceOK) inferenceResult()          {}
func (InferenceUnavailable) inferenceResult() {}
func (InferenceMalformed) inferenceResult()   {}

// Collaborator performs delegated classification.
//
// Implementations must return a result rather than block past ctx's
// deadline. The router also enforces its own timeout.
type Collaborator interface {
	Infer(ctx context.Context, req InferenceRequest) InferenceResult
}

// CollaboratorFunc adapts a function to Collaborator.
type CollaboratorFunc func(ctx context.Context, req InferenceRequest) InferenceResult

// Infer calls f.
func (f CollaboratorFunc) Infer(ctx context.Context, req InferenceRequest) InferenceResult {
	return f(ctx, req)
}

// DefaultInstruction constrains the collaborator to a structured answer.
const DefaultInstruction = `Classify the user's request for a local developer assistant.
Reply with a single JSON object and nothing else:
{"intent": "<one of the allowed intents>", "confidence": <number between 0 and 1>, "hints": ["<file, model or entity name fragments>"]}
Use "unknown" if the request matches none of the intents. Do not explain.`
