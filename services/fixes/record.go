// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fixes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Origin records where a fix was first seen.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// QuarantineState is one-directional once active.
type QuarantineState string

const (
	QuarantineNone   QuarantineState = "none"
	QuarantineActive QuarantineState = "quarantined"
)

// Quarantine reasons.
const (
	ReasonDangerousPattern = "dangerous_pattern"
	ReasonFraudReports     = "fraud_reports"
)

// Outcome of applying a fix.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ParseOutcome accepts success/failure and common synonyms.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "ok", "pass", "passed", "worked":
		return OutcomeSuccess, nil
	case "failure", "fail", "failed", "error":
		return OutcomeFailure, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}

// Counters are the usage counts observed by one side of a merge.
type Counters struct {
	Success      int64 `json:"success_count"`
	Failure      int64 `json:"failure_count"`
	Contributors int64 `json:"unique_contributor_count"`
}

// Add returns the field-wise sum.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Success:      c.Success + o.Success,
		Failure:      c.Failure + o.Failure,
		Contributors: c.Contributors + o.Contributors,
	}
}

// sanitize clamps negatives and keeps Contributors <= Success+Failure.
func (c Counters) sanitize() Counters {
	if c.Success < 0 {
		c.Success = 0
	}
	if c.Failure < 0 {
		c.Failure = 0
	}
	if c.Contributors < 0 {
		c.Contributors = 0
	}
	if c.Contributors > c.Success+c.Failure {
		c.Contributors = c.Success + c.Failure
	}
	return c
}

// FixRecord is the flat record exchanged with persistence and sync.
//
// Local counters are observed by this process. Remote counters are the
// latest totals pulled from the registry and are replaced on every merge.
// Effective counters are their sum.
type FixRecord struct {
	ID               string          `json:"fix_id"`
	Signature        ErrorSignature  `json:"error_signature"`
	Solution         string          `json:"solution_text"`
	Origin           Origin          `json:"origin"`
	CreatedAt        time.Time       `json:"created_at"`
	DerivedFrom      string          `json:"derived_from,omitempty"`
	Local            Counters        `json:"local"`
	Remote           Counters        `json:"remote"`
	Quarantine       QuarantineState `json:"quarantine_state"`
	QuarantineReason string          `json:"quarantine_reason,omitempty"`
	FraudReports     int64           `json:"fraud_report_count"`
	RemoteFraud      int64           `json:"remote_fraud_report_count,omitempty"`
}

// Totals returns local plus remote counters.
func (r FixRecord) Totals() Counters {
	return r.Local.Add(r.Remote)
}

// SuccessCount returns the effective success count.
func (r FixRecord) SuccessCount() int64 { return r.Local.Success + r.Remote.Success }

// FailureCount returns the effective failure count.
func (r FixRecord) FailureCount() int64 { return r.Local.Failure + r.Remote.Failure }

// UniqueContributors returns the effective contributor count.
func (r FixRecord) UniqueContributors() int64 {
	return r.Local.Contributors + r.Remote.Contributors
}

// Attempts returns success plus failure.
func (r FixRecord) Attempts() int64 { return r.SuccessCount() + r.FailureCount() }

// TotalFraudReports returns local plus remote fraud reports.
func (r FixRecord) TotalFraudReports() int64 { return r.FraudReports + r.RemoteFraud }

// SuccessRate returns success/attempts. ok is false when there are no
// attempts; the rate is then 0.
func (r FixRecord) SuccessRate() (rate float64, ok bool) {
	attempts := r.Attempts()
	if attempts == 0 {
		return 0, false
	}
	return float64(r.SuccessCount()) / float64(attempts), true
}

// Quarantined reports whether the flag is set. Tier may still derive
// Quarantined from counters when this is false.
func (r FixRecord) Quarantined() bool {
	return r.Quarantine == QuarantineActive
}

// ContentID is the fix id: a hash over the normalized signature kind and
// message plus the whitespace-collapsed solution.
func ContentID(sig ErrorSignature, solution string) string {
	n := sig.Normalize()
	h := sha256.New()
	h.Write([]byte(n.ExceptionKind))
	h.Write([]byte{0})
	h.Write([]byte(n.Message))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(strings.Fields(solution), " ")))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
