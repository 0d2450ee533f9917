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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counts(success, failure int64) FixRecord {
	return FixRecord{Local: Counters{Success: success, Failure: failure}}
}

func TestTrustConfig_Tier(t *testing.T) {
	cfg := DefaultTrustConfig()

	tests := []struct {
		name string
		rec  FixRecord
		want TrustTier
	}{
		{"no attempts", counts(0, 0), TierUnknown},
		{"below min attempts", counts(3, 1), TierUnknown},
		{"low rate below min attempts stays unknown", counts(0, 4), TierUnknown},
		{"highly trusted", counts(119, 8), TierHighlyTrusted},
		{"quarantined by low rate", counts(10, 35), TierQuarantined},
		{"experimental lower bound", counts(3, 7), TierExperimental},
		{"experimental", counts(2, 3), TierExperimental},
		{"trusted", counts(3, 2), TierTrusted},
		{"trusted lower bound", counts(51, 49), TierTrusted},
		{"highly trusted lower bound", counts(15, 5), TierHighlyTrusted},
		{"remote counters count", FixRecord{Remote: Counters{Success: 9, Failure: 1}}, TierHighlyTrusted},
		{"flag overrides counters", FixRecord{Local: Counters{Success: 100}, Quarantine: QuarantineActive}, TierQuarantined},
		{"fraud reports override", FixRecord{Local: Counters{Success: 100}, FraudReports: 3}, TierQuarantined},
		{"remote fraud reports add up", FixRecord{Local: Counters{Success: 100}, FraudReports: 1, RemoteFraud: 2}, TierQuarantined},
		{"fraud below threshold", FixRecord{Local: Counters{Success: 100}, FraudReports: 2}, TierHighlyTrusted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.Tier(tt.rec))
		})
	}
}

func TestTrustConfig_Tier_RecoversFromLowRate(t *testing.T) {
	cfg := DefaultTrustConfig()
	rec := counts(1, 4)
	assert.Equal(t, TierQuarantined, cfg.Tier(rec))

	rec.Local.Success += 10
	assert.Equal(t, TierTrusted, cfg.Tier(rec))
}

func TestTrustConfig_CustomThresholds(t *testing.T) {
	cfg := TrustConfig{
		MinAttempts:          1,
		ExperimentalFloor:    0.1,
		TrustedFloor:         0.2,
		HighlyTrustedFloor:   0.9,
		FraudReportThreshold: 1,
		MaxLineageDepth:      4,
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, TierTrusted, cfg.Tier(counts(1, 3)))
	assert.Equal(t, TierQuarantined, cfg.Tier(FixRecord{FraudReports: 1}))
}

func TestTrustConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultTrustConfig().Validate())

	tests := []struct {
		name   string
		modify func(*TrustConfig)
	}{
		{"zero min attempts", func(c *TrustConfig) { c.MinAttempts = 0 }},
		{"floor above one", func(c *TrustConfig) { c.HighlyTrustedFloor = 1.5 }},
		{"unordered floors", func(c *TrustConfig) { c.TrustedFloor = 0.8 }},
		{"zero fraud threshold", func(c *TrustConfig) { c.FraudReportThreshold = 0 }},
		{"zero lineage depth", func(c *TrustConfig) { c.MaxLineageDepth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTrustConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid trust config")
		})
	}
}

func TestTrustTier_Text(t *testing.T) {
	b, err := TierHighlyTrusted.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "highly_trusted", string(b))

	var tier TrustTier
	require.NoError(t, tier.UnmarshalText([]byte("Experimental")))
	assert.Equal(t, TierExperimental, tier)
	assert.Error(t, tier.UnmarshalText([]byte("gold")))

	assert.Greater(t, TierHighlyTrusted.Rank(), TierTrusted.Rank())
	assert.Greater(t, TierTrusted.Rank(), TierExperimental.Rank())
	assert.Greater(t, TierExperimental.Rank(), TierUnknown.Rank())
}

func TestFixRecord_Counters(t *testing.T) {
	rec := FixRecord{
		Local:  Counters{Success: 3, Failure: 1, Contributors: 2},
		Remote: Counters{Success: 5, Failure: 1, Contributors: 4},
	}
	assert.Equal(t, int64(8), rec.SuccessCount())
	assert.Equal(t, int64(2), rec.FailureCount())
	assert.Equal(t, int64(6), rec.UniqueContributors())
	assert.Equal(t, int64(10), rec.Attempts())
	rate, ok := rec.SuccessRate()
	assert.True(t, ok)
	assert.InDelta(t, 0.8, rate, 1e-9)

	_, ok = FixRecord{}.SuccessRate()
	assert.False(t, ok)
}

func TestCounters_Sanitize(t *testing.T) {
	c := Counters{Success: -1, Failure: 2, Contributors: 9}.sanitize()
	assert.Equal(t, Counters{Success: 0, Failure: 2, Contributors: 2}, c)
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome(" Success ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, o)

	o, err = ParseOutcome("failed")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailure, o)

	_, err = ParseOutcome("maybe")
	assert.Error(t, err)
}
