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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() should validate, got: %v", err)
	}
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Suite.ProjectName != "ai-suite" {
		t.Errorf("ProjectName = %q, want %q", cfg.Suite.ProjectName, "ai-suite")
	}
	if cfg.Suite.EnvFile != ".env" {
		t.Errorf("EnvFile = %q, want %q", cfg.Suite.EnvFile, ".env")
	}
	if cfg.Engine.Kind != "ollama" {
		t.Errorf("Engine.Kind = %q, want %q", cfg.Engine.Kind, "ollama")
	}
	if cfg.Settle.DatabaseSeconds != 10 {
		t.Errorf("Settle.DatabaseSeconds = %d, want 10", cfg.Settle.DatabaseSeconds)
	}
	if cfg.Settle.FilesystemSeconds != 1 {
		t.Errorf("Settle.FilesystemSeconds = %d, want 1", cfg.Settle.FilesystemSeconds)
	}
	if cfg.Backup.Keep != 5 {
		t.Errorf("Backup.Keep = %d, want 5", cfg.Backup.Keep)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestValidate_RejectsBadEngineKind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Kind = "vllm"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown engine kind")
	}
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown log level")
	}
}

func TestValidate_RejectsNegativeSettle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settle.DatabaseSeconds = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for negative settle seconds")
	}
}

func TestValidate_RejectsEmptyProjectName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Suite.ProjectName = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty project name")
	}
}

func TestLoadFrom_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := strings.Join([]string{
		"suite:",
		"  dir: /opt/ai-suite",
		"  project_name: ai-suite",
		"  env_file: .env",
		"engine:",
		"  kind: llama-cpp",
		"  model_name: gemma-4b",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	require.Equal(t, "/opt/ai-suite", cfg.Suite.Dir)
	require.Equal(t, "llama-cpp", cfg.Engine.Kind)
	require.Equal(t, "gemma-4b", cfg.Engine.ModelName)
	// Unspecified sections keep their defaults
	require.Equal(t, 60, cfg.Settle.ReadinessTimeoutSeconds)
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFrom_InvalidContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  kind: not-an-engine\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("expected validation error for bad engine kind")
	}
}
