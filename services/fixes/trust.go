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
	"fmt"
	"math"
	"strings"
)

// TrustTier is derived from a record's counters at read time. It is never
// stored.
type TrustTier int

const (
	TierUnknown TrustTier = iota
	TierExperimental
	TierTrusted
	TierHighlyTrusted
	TierQuarantined
)

var tierNames = map[TrustTier]string{
	TierUnknown:       "unknown",
	TierExperimental:  "experimental",
	TierTrusted:       "trusted",
	TierHighlyTrusted: "highly_trusted",
	TierQuarantined:   "quarantined",
}

// String returns the snake_case name.
func (t TrustTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t TrustTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TrustTier) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for tier, name := range tierNames {
		if name == s {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("unknown trust tier %q", s)
}

// Rank orders returnable tiers for lookup. Quarantined ranks lowest but is
// filtered before ranking.
func (t TrustTier) Rank() int {
	switch t {
	case TierHighlyTrusted:
		return 3
	case TierTrusted:
		return 2
	case TierExperimental:
		return 1
	case TierUnknown:
		return 0
	default:
		return -1
	}
}

// TrustConfig holds the tier thresholds.
type TrustConfig struct {
	// MinAttempts is N0: below it a record is Unknown.
	MinAttempts int64 `yaml:"min_attempts" validate:"gte=1"`

	ExperimentalFloor  float64 `yaml:"experimental_floor" validate:"gte=0,lte=1"`
	TrustedFloor       float64 `yaml:"trusted_floor" validate:"gte=0,lte=1"`
	HighlyTrustedFloor float64 `yaml:"highly_trusted_floor" validate:"gte=0,lte=1"`

	// FraudReportThreshold quarantines a record permanently once reached.
	FraudReportThreshold int64 `yaml:"fraud_report_threshold" validate:"gte=1"`

	// MaxLineageDepth bounds parent-pointer walks.
	MaxLineageDepth int `yaml:"max_lineage_depth" validate:"gte=1"`
}

// DefaultTrustConfig returns the default thresholds.
func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		MinAttempts:          5,
		ExperimentalFloor:    0.30,
		TrustedFloor:         0.51,
		HighlyTrustedFloor:   0.75,
		FraudReportThreshold: 3,
		MaxLineageDepth:      32,
	}
}

// Validate checks ranges and floor ordering.
func (c TrustConfig) Validate() error {
	var errs []string
	if c.MinAttempts < 1 {
		errs = append(errs, "min_attempts must be at least 1")
	}
	floors := []struct {
		name  string
		value float64
	}{
		{"experimental_floor", c.ExperimentalFloor},
		{"trusted_floor", c.TrustedFloor},
		{"highly_trusted_floor", c.HighlyTrustedFloor},
	}
	for _, f := range floors {
		if f.value < 0 || f.value > 1 || math.IsNaN(f.value) {
			errs = append(errs, f.name+" must be in [0,1]")
		}
	}
	if c.ExperimentalFloor > c.TrustedFloor || c.TrustedFloor > c.HighlyTrustedFloor {
		errs = append(errs, "floors must be ordered experimental <= trusted <= highly_trusted")
	}
	if c.FraudReportThreshold < 1 {
		errs = append(errs, "fraud_report_threshold must be at least 1")
	}
	if c.MaxLineageDepth < 1 {
		errs = append(errs, "max_lineage_depth must be at least 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid trust config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Tier derives the trust tier of rec. It is a pure function of the
// record's counters, quarantine flag and fraud reports.
//
// # Description
//
// Quarantined overrides everything when the record is flagged, when fraud
// reports reach the threshold, or when the success rate is below the
// experimental floor after MinAttempts. The low-rate path is recomputed on
// every call and recovers if later attempts succeed.
func (c TrustConfig) Tier(rec FixRecord) TrustTier {
	if rec.Quarantine == QuarantineActive || rec.TotalFraudReports() >= c.FraudReportThreshold {
		return TierQuarantined
	}
	attempts := rec.Attempts()
	if attempts < c.MinAttempts {
		return TierUnknown
	}
	rate, _ := rec.SuccessRate()
	switch {
	case rate >= c.HighlyTrustedFloor:
		return TierHighlyTrusted
	case rate >= c.TrustedFloor:
		return TierTrusted
	case rate >= c.ExperimentalFloor:
		return TierExperimental
	default:
		return TierQuarantined
	}
}
