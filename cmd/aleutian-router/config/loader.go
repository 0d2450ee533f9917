// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the aleutian-router YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is read.
const (
	EnvInferenceURL = "ALEUTIAN_ROUTER_INFERENCE_URL"
	EnvModel        = "ALEUTIAN_ROUTER_MODEL"
)

// Load reads the config at path, creating it with defaults on first run.
//
// Description:
//
//	An empty path uses DefaultPath. Keys missing from the file keep their
//	default values. Environment overrides are applied before validation.
//
// Outputs:
//
//	RouterConfig - Validated configuration.
//	bool - True when the file was created by this call.
//	error - Non-nil on I/O, parse or validation failure.
func Load(path string) (RouterConfig, bool, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return RouterConfig{}, false, fmt.Errorf("could not find the user's home directory: %w", err)
		}
		path = p
	}

	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return RouterConfig{}, false, err
		}
		created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RouterConfig{}, created, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RouterConfig{}, created, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return RouterConfig{}, created, err
	}
	return cfg, created, nil
}

func applyEnv(cfg *RouterConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvInferenceURL)); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		cfg.Inference.Model = v
	}
}

// Validate runs struct tag validation and the cross-field checks.
func Validate(cfg RouterConfig) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Fixes.Validate(); err != nil {
		return err
	}
	if cfg.Inference.Enabled {
		if err := cfg.Inference.Validate(); err != nil {
			return err
		}
	}
	if cfg.Router.PatternFloor > 1 || cfg.Router.DelegatedFloor > 1 {
		return errors.New("invalid config: router floors must be at most 1")
	}
	if !cfg.Storage.InMemory && cfg.Storage.Path == "" {
		return errors.New("invalid config: storage.path is required unless storage.in_memory is set")
	}
	return nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
