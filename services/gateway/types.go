// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"time"

	"github.com/AleutianAI/AleutianRouter/services/fixes"
	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// =============================================================================
// Requests
// =============================================================================

// ClassifyRequest is the body of POST /v1/router/classify.
type ClassifyRequest struct {
	// Utterance is the raw user text.
	Utterance string `json:"utterance" binding:"required,max=4096"`
}

// LookupRequest is the body of POST /v1/fixes/lookup.
type LookupRequest struct {
	Signature fixes.ErrorSignature `json:"error_signature"`
}

// ReportRequest is the body of POST /v1/fixes/:id/report.
type ReportRequest struct {
	// Outcome is "success" or "failure".
	Outcome string `json:"outcome" binding:"required"`

	// ContributorID identifies the reporter. Empty reports still count
	// toward outcomes but never toward unique contributors.
	ContributorID string `json:"contributor_id" binding:"max=256"`
}

// FraudRequest is the body of POST /v1/fixes/:id/fraud.
type FraudRequest struct {
	ContributorID string `json:"contributor_id" binding:"required,max=256"`
}

// =============================================================================
// Responses
// =============================================================================

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`
}

// LookupResponse lists ranked fixes. Results is never null.
type LookupResponse struct {
	Results []fixes.FixResult `json:"results"`
}

// FixResponse is one stored fix plus its computed trust.
type FixResponse struct {
	Record      fixes.FixRecord `json:"record"`
	Tier        fixes.TrustTier `json:"trust_tier"`
	SuccessRate float64         `json:"success_rate"`
	Lineage     []string        `json:"lineage,omitempty"`
}

// LineageResponse lists a fix's ancestors and direct descendants.
type LineageResponse struct {
	FixID     string   `json:"fix_id"`
	Ancestors []string `json:"ancestors"`
	Children  []string `json:"children"`
}

// SafeModeResponse is the current supervisor state.
type SafeModeResponse struct {
	safemode.Status
	SafeCommands []string `json:"safe_commands"`
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status    string      `json:"status"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Fixes     fixes.Stats `json:"fixes"`
}
