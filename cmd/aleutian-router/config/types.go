// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"

	"github.com/AleutianAI/AleutianRouter/pkg/telemetry"
	"github.com/AleutianAI/AleutianRouter/services/fixes"
	"github.com/AleutianAI/AleutianRouter/services/fixes/registry"
	"github.com/AleutianAI/AleutianRouter/services/fixes/storage"
	"github.com/AleutianAI/AleutianRouter/services/gateway"
	"github.com/AleutianAI/AleutianRouter/services/intent/fuzzy"
	"github.com/AleutianAI/AleutianRouter/services/intent/inference"
	"github.com/AleutianAI/AleutianRouter/services/intent/router"
	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
)

// CurrentConfigVersion is written into new config files.
const CurrentConfigVersion = "1"

// RouterConfig is the on-disk configuration of aleutian-router.
type RouterConfig struct {
	Meta MetaConfig `yaml:"meta"`

	// Router holds the layer floors and the delegation timeout.
	Router router.Config `yaml:"router"`

	// Fuzzy tunes target resolution.
	Fuzzy fuzzy.Config `yaml:"fuzzy"`

	// Inference configures the layer 4 collaborator.
	Inference InferenceConfig `yaml:"inference"`

	SafeMode   SafeModeConfig   `yaml:"safe_mode"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Targets    TargetsConfig    `yaml:"targets"`

	// Fixes holds trust thresholds and match weights.
	Fixes fixes.Config `yaml:"fixes"`

	Storage   storage.Config   `yaml:"storage"`
	Registry  registry.Config  `yaml:"registry"`
	Gateway   gateway.Config   `yaml:"gateway"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

// InferenceConfig enables layer 4. When disabled the router falls back
// to unknown wherever it would have delegated.
type InferenceConfig struct {
	Enabled          bool `yaml:"enabled"`
	inference.Config `yaml:",inline"`
}

type SafeModeConfig struct {
	Threshold    int      `yaml:"threshold" validate:"gte=1"`
	SafeCommands []string `yaml:"safe_commands" validate:"dive,required"`
}

type NormalizerConfig struct {
	// CorrectionsFile is an optional YAML map of misspelling to keyword.
	CorrectionsFile string `yaml:"corrections_file"`

	// Watch reloads CorrectionsFile on change.
	Watch bool `yaml:"watch"`
}

// TargetsConfig lists the candidate sources for target resolution.
type TargetsConfig struct {
	// Root is scanned for file targets. Empty means the working directory.
	Root string `yaml:"root"`

	// Models is the model catalog used for model_mgmt targets.
	Models []string `yaml:"models"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// DefaultPath returns ~/.aleutian/router.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".aleutian", "router.yaml"), nil
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() RouterConfig {
	storageCfg := storage.DefaultConfig()
	if home, err := os.UserHomeDir(); err == nil {
		storageCfg.Path = filepath.Join(home, ".aleutian", "fixes")
	} else {
		storageCfg.InMemory = true
	}

	tel := telemetry.DefaultConfig()
	tel.TraceExporter = "none"
	tel.MetricExporter = "prometheus"

	return RouterConfig{
		Meta:      MetaConfig{Version: CurrentConfigVersion},
		Router:    router.DefaultConfig(),
		Fuzzy:     fuzzy.DefaultConfig(),
		Inference: InferenceConfig{Enabled: true, Config: inference.DefaultConfig()},
		SafeMode: SafeModeConfig{
			Threshold:    safemode.DefaultThreshold,
			SafeCommands: append([]string(nil), safemode.DefaultSafeCommands...),
		},
		Normalizer: NormalizerConfig{Watch: true},
		Targets: TargetsConfig{
			Models: []string{"llama3.2", "llama3.1:8b", "mistral", "qwen2.5-coder", "phi3", "gemma2"},
		},
		Fixes:     fixes.DefaultConfig(),
		Storage:   storageCfg,
		Registry:  registry.DefaultConfig(),
		Gateway:   gateway.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
		Telemetry: tel,
	}
}
