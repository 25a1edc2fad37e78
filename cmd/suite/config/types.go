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
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// SuiteConfig is the persisted configuration for the suite CLI.
//
// Loaded from ~/.aisuite/config.yaml on startup; a default file is
// created on first run. All fields have working defaults so a fresh
// install needs no manual editing.
type SuiteConfig struct {
	// Suite: where the compose files and .env live
	Suite SuiteDirs `yaml:"suite"`

	// Engine: host inference engine preferences
	Engine EngineConfig `yaml:"engine"`

	// Settle: stack readiness tuning
	Settle SettleConfig `yaml:"settle"`

	// Backup: volume backup location and rotation
	Backup BackupConfig `yaml:"backup"`

	// Logging: log level and optional file logging
	Logging LoggingConfig `yaml:"logging"`
}

type SuiteDirs struct {
	// Dir is the suite directory containing docker-compose.yml,
	// the override files, and .env. Default: current directory.
	Dir string `yaml:"dir" validate:"required"`

	// ProjectName is the compose project name. Default: ai-suite.
	ProjectName string `yaml:"project_name" validate:"required"`

	// EnvFile is the dotenv filename inside Dir. Default: .env.
	EnvFile string `yaml:"env_file" validate:"required"`
}

type EngineConfig struct {
	// Kind selects the preferred host engine when no runtime token
	// is given: "ollama" or "llama-cpp".
	Kind string `yaml:"kind" validate:"oneof=ollama llama-cpp"`

	// OllamaPath overrides the ollama executable location.
	// Empty means search the platform default locations.
	OllamaPath string `yaml:"ollama_path,omitempty"`

	// LlamaServerPath overrides the llama-server executable location.
	LlamaServerPath string `yaml:"llama_server_path,omitempty"`

	// ModelPath is an explicit GGUF file for llama-server (-m).
	ModelPath string `yaml:"model_path,omitempty"`

	// ModelRepo is a Hugging Face repo reference for llama-server (-hf).
	// Used when ModelPath is empty.
	ModelRepo string `yaml:"model_repo,omitempty"`

	// ModelName is a free-form model name matched fuzzily against the
	// local GGUF catalog when neither ModelPath nor ModelRepo is set.
	ModelName string `yaml:"model_name,omitempty"`

	// ModelDir is the directory scanned for local GGUF files.
	// Default: ~/.aisuite/models.
	ModelDir string `yaml:"model_dir,omitempty"`

	// ServerArgs are extra arguments appended to the llama-server
	// command line (context size, GPU layers, ...).
	ServerArgs []string `yaml:"server_args,omitempty"`
}

type SettleConfig struct {
	// DatabaseSeconds is the fallback settle sleep after starting the
	// database stack when readiness polling is unavailable.
	DatabaseSeconds int `yaml:"database_seconds" validate:"min=0"`

	// FilesystemSeconds is the fallback settle sleep after starting
	// the filesystem tool stack.
	FilesystemSeconds int `yaml:"filesystem_seconds" validate:"min=0"`

	// ReadinessTimeoutSeconds bounds readiness polling before
	// falling back to the fixed settle sleep.
	ReadinessTimeoutSeconds int `yaml:"readiness_timeout_seconds" validate:"min=1"`
}

type BackupConfig struct {
	// Dir is where volume backup archives are written.
	// Default: ~/.aisuite/backups.
	Dir string `yaml:"dir" validate:"required"`

	// Keep is how many archives to retain per volume. Older archives
	// are deleted during rotation. 0 disables rotation.
	Keep int `yaml:"keep" validate:"min=0"`
}

type LoggingConfig struct {
	// Level is the default log level (debug/info/warn/error).
	// The --log flag overrides it per invocation.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Dir enables file logging when set (e.g. ~/.aisuite/logs).
	Dir string `yaml:"dir,omitempty"`
}

// Validate checks the config against its struct tags.
func (c *SuiteConfig) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultConfig returns a configuration that works on a fresh machine.
func DefaultConfig() SuiteConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return SuiteConfig{
		Suite: SuiteDirs{
			Dir:         ".",
			ProjectName: "ai-suite",
			EnvFile:     ".env",
		},
		Engine: EngineConfig{
			Kind:     "ollama",
			ModelDir: filepath.Join(home, ".aisuite", "models"),
		},
		Settle: SettleConfig{
			DatabaseSeconds:         10,
			FilesystemSeconds:       1,
			ReadinessTimeoutSeconds: 60,
		},
		Backup: BackupConfig{
			Dir:  filepath.Join(home, ".aisuite", "backups"),
			Keep: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
