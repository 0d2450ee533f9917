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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Layered Routing
// =============================================================================

var (
	// classifications counts routes by producing layer and type.
	classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "router",
		Name:      "classifications_total",
		Help:      "Total classified requests by source layer and route type",
	}, []string{"layer", "route_type"})

	// classifyLatency measures end-to-end classification time.
	classifyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian",
		Subsystem: "router",
		Name:      "classify_latency_seconds",
		Help:      "Classification latency in seconds by source layer",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"layer"})

	// confidence tracks the distribution of route confidence.
	confidence = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian",
		Subsystem: "router",
		Name:      "confidence",
		Help:      "Distribution of route confidence scores",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"route_type"})

	// fallbacks counts layer 5 outcomes.
	// Labels: reason (no_match, empty_input, cancelled)
	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "router",
		Name:      "fallbacks_total",
		Help:      "Total requests that fell through to the Unknown route",
	}, []string{"reason"})

	// delegations counts layer 4 outcomes.
	// Labels: outcome (accepted, below_floor, unavailable, timeout, malformed, cancelled)
	delegations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "router",
		Name:      "delegation_total",
		Help:      "Delegated classification outcomes",
	}, []string{"outcome"})

	// disambiguations counts routes surfaced for target confirmation.
	disambiguations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian",
		Subsystem: "router",
		Name:      "disambiguations_total",
		Help:      "Routes returned with needs_disambiguation set",
	}, []string{"route_type"})

	// safeModeActive is 1 while safe mode is active.
	safeModeActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aleutian",
		Subsystem: "router",
		Name:      "safe_mode_active",
		Help:      "1 while the router is in safe mode",
	})
)

// RecordClassification records one finished classification.
func RecordClassification(layer, routeType string, conf, durationSec float64) {
	classifications.WithLabelValues(layer, routeType).Inc()
	classifyLatency.WithLabelValues(layer).Observe(durationSec)
	confidence.WithLabelValues(routeType).Observe(conf)
}

// RecordFallback records an Unknown route.
func RecordFallback(reason string) {
	fallbacks.WithLabelValues(reason).Inc()
}

// RecordDelegation records a layer 4 outcome.
func RecordDelegation(outcome string) {
	delegations.WithLabelValues(outcome).Inc()
}

// RecordDisambiguation records a route that needs target confirmation.
func RecordDisambiguation(routeType string) {
	disambiguations.WithLabelValues(routeType).Inc()
}

// SetSafeModeActive updates the safe mode gauge.
func SetSafeModeActive(active bool) {
	if active {
		safeModeActive.Set(1)
		return
	}
	safeModeActive.Set(0)
}
