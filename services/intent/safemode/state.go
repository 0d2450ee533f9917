// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safemode tracks consecutive unroutable requests and degrades the
// offered command surface when the router keeps failing.
//
// State is an explicit object, never a package global, so each router (and
// each test) owns its own counter.
package safemode

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Mode is the supervisor state.
type Mode int

const (
	// ModeNormal offers the full command surface.
	ModeNormal Mode = iota

	// ModeDegraded asks the caller to offer only the safe command set.
	ModeDegraded
)

// String returns "normal", "degraded" or "unknown".
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// DefaultThreshold is the number of consecutive fallbacks that activates
// safe mode.
const DefaultThreshold = 3

// Status is a point-in-time view of the state.
type Status struct {
	Mode                 string    `json:"mode"`
	Active               bool      `json:"active"`
	ConsecutiveFallbacks int       `json:"consecutive_fallbacks"`
	Threshold            int       `json:"threshold"`
	LastTransition       time.Time `json:"last_transition,omitempty"`
}

// State is the process-wide fallback counter.
//
// The counter is updated with single atomic operations: a fallback is one
// Add, a routed request is one Swap(0). Exactly one caller observes each
// threshold crossing, so transition hooks fire once per transition.
//
// Thread Safety: safe for concurrent use.
type State struct {
	threshold      int64
	count          atomic.Int64
	lastTransition atomic.Int64

	mu           sync.RWMutex
	onTransition []func(from, to Mode)
}

// NewState creates a state. threshold <= 0 uses DefaultThreshold.
func NewState(threshold int) *State {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &State{threshold: int64(threshold)}
}

// OnTransition registers a hook called after every mode change.
// Hooks run synchronously on the goroutine that caused the change.
func (s *State) OnTransition(fn func(from, to Mode)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTransition = append(s.onTransition, fn)
}

// RecordFallback counts one Unknown route.
func (s *State) RecordFallback() {
	if s.count.Add(1) == s.threshold {
		s.transition(ModeNormal, ModeDegraded)
	}
}

// RecordRouted resets the counter after any non-Unknown route.
func (s *State) RecordRouted() {
	if s.count.Swap(0) >= s.threshold {
		s.transition(ModeDegraded, ModeNormal)
	}
}

// Record dispatches to RecordFallback or RecordRouted.
func (s *State) Record(fallback bool) {
	if fallback {
		s.RecordFallback()
		return
	}
	s.RecordRouted()
}

// Active reports whether safe mode is on.
func (s *State) Active() bool {
	return s.count.Load() >= s.threshold
}

// Mode returns the current mode.
func (s *State) Mode() Mode {
	if s.Active() {
		return ModeDegraded
	}
	return ModeNormal
}

// ConsecutiveFallbacks returns the length of the current run of fallbacks.
func (s *State) ConsecutiveFallbacks() int {
	return int(s.count.Load())
}

// Threshold returns the activation threshold.
func (s *State) Threshold() int {
	return int(s.threshold)
}

// Status returns a snapshot.
func (s *State) Status() Status {
	n := s.count.Load()
	st := Status{
		Mode:                 ModeNormal.String(),
		Active:               n >= s.threshold,
		ConsecutiveFallbacks: int(n),
		Threshold:            int(s.threshold),
	}
	if st.Active {
		st.Mode = ModeDegraded.String()
	}
	if ts := s.lastTransition.Load(); ts != 0 {
		st.LastTransition = time.Unix(0, ts)
	}
	return st
}

func (s *State) transition(from, to Mode) {
	s.lastTransition.Store(time.Now().UnixNano())
	recordTransition(context.Background(), from, to)

	s.mu.RLock()
	hooks := slices.Clone(s.onTransition)
	s.mu.RUnlock()

	for _, fn := range hooks {
		fn(from, to)
	}
}
