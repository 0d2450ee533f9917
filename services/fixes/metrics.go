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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "fixes",
		Name:      "lookups_total",
		Help:      "Fix lookups by result (hit, empty, invalid)",
	}, []string{"result"})

	lookupExcluded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "fixes",
		Name:      "lookup_quarantine_excluded_total",
		Help:      "Similar candidates dropped from lookups because they were quarantined",
	})

	reports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "fixes",
		Name:      "reports_total",
		Help:      "Outcome reports by outcome (success, failure, unknown_fix)",
	}, []string{"outcome"})

	quarantined = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "fixes",
		Name:      "quarantined_total",
		Help:      "Records flagged quarantined by reason",
	}, []string{"reason"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "fixes",
		Name:      "submissions_total",
		Help:      "Fix submissions by status (created, existing, rejected)",
	}, []string{"status"})

	merged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "fixes",
		Name:      "merged_total",
		Help:      "Remote records merged by result (added, updated, skipped)",
	}, []string{"result"})

	persistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "fixes",
		Name:      "persist_errors_total",
		Help:      "Write-through failures to the record store",
	})

	recordsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aleutian",
		Subsystem: "fixes",
		Name:      "records",
		Help:      "Records held by the engine",
	})
)
