// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package safemode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianRouter/services/intent/route"
)

// DefaultSafeCommands is the command surface offered while degraded.
var DefaultSafeCommands = []string{"help", "exit", "clear", "status", "history", "undo", "cancel"}

// Router is the classifier the supervisor wraps. The router is expected to
// record its own outcomes into the same State.
type Router interface {
	Classify(ctx context.Context, raw string) route.Route
}

// Outcome is a routed request plus the caller-facing safe-mode signal.
type Outcome struct {
	Route           route.Route `json:"route"`
	Mode            string      `json:"mode"`
	Notice          string      `json:"notice,omitempty"`
	AllowedCommands []string    `json:"allowed_commands,omitempty"`
}

// Supervisor wraps a router and reports the mode after each request.
//
// The router's behaviour is unchanged while degraded. The supervisor only
// tells the caller to narrow the offered commands and show a notice.
//
// Thread Safety: safe for concurrent use.
type Supervisor struct {
	router       Router
	state        *State
	safeCommands []string
	logger       *slog.Logger
}

// NewSupervisor wires a supervisor to the router's state.
//
// Inputs:
//
//	router - The wrapped router. Must record into state.
//	state - Shared fallback state.
//	safeCommands - Commands offered while degraded. nil uses DefaultSafeCommands.
//	logger - Logger. nil uses slog.Default().
//
// Outputs:
//
//	*Supervisor - Ready to use.
func NewSupervisor(router Router, state *State, safeCommands []string, logger *slog.Logger) *Supervisor {
	if safeCommands == nil {
		safeCommands = DefaultSafeCommands
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Supervisor{
		router:       router,
		state:        state,
		safeCommands: append([]string(nil), safeCommands...),
		logger:       logger,
	}
	state.OnTransition(func(from, to Mode) {
		logger.Info("safe mode transition",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.Int("consecutive_fallbacks", state.ConsecutiveFallbacks()))
	})
	return s
}

// Handle classifies raw and attaches the current mode.
func (s *Supervisor) Handle(ctx context.Context, raw string) Outcome {
	r := s.router.Classify(ctx, raw)
	out := Outcome{Route: r, Mode: s.state.Mode().String()}
	if s.state.Active() {
		out.AllowedCommands = s.SafeCommands()
		out.Notice = fmt.Sprintf(
			"Safe mode: the last %d requests were not understood. Available commands: %v",
			s.state.ConsecutiveFallbacks(), out.AllowedCommands)
	}
	return out
}

// State returns the supervised state.
func (s *Supervisor) State() *State {
	return s.state
}

// SafeCommands returns a copy of the degraded command set.
func (s *Supervisor) SafeCommands() []string {
	return append([]string(nil), s.safeCommands...)
}
