// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"  Error  ", LevelError},
		{"bogus", LevelInfo}, // unknown falls back to Info
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	if logger.config.Level != LevelInfo {
		t.Errorf("Default() level = %v, want %v", logger.config.Level, LevelInfo)
	}
	if logger.config.Service != "suite" {
		t.Errorf("Default() service = %q, want %q", logger.config.Service, "suite")
	}
}

func TestLogger_Exporter(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "suite",
		Quiet:    true,
		Exporter: exporter,
	})
	defer logger.Close()

	logger.Info("stack started", "stack", "database")
	logger.Debug("filtered out", "noise", true)

	// Export is asynchronous
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exporter.Entries()) >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := exporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 exported entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "stack started" {
		t.Errorf("entry.Message = %q, want %q", entry.Message, "stack started")
	}
	if entry.Level != LevelInfo {
		t.Errorf("entry.Level = %v, want %v", entry.Level, LevelInfo)
	}
	if entry.Service != "suite" {
		t.Errorf("entry.Service = %q, want %q", entry.Service, "suite")
	}
	if entry.Attrs["stack"] != "database" {
		t.Errorf("entry.Attrs[stack] = %v, want %q", entry.Attrs["stack"], "database")
	}
}

func TestLogger_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "suite-test",
		Quiet:   true,
	})

	logger.Info("marker written", "operation", "start")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}

	filename := "suite-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, `"msg":"marker written"`) {
		t.Errorf("log file missing message, got: %s", content)
	}
	if !strings.Contains(content, `"service":"suite-test"`) {
		t.Errorf("log file missing service attribute, got: %s", content)
	}
}

func TestLogger_With(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Quiet:    true,
		Exporter: exporter,
	})
	defer logger.Close()

	child := logger.With("invocation_id", "abc-123")
	if child == logger {
		t.Fatal("With() should return a new logger")
	}

	// Child shares the exporter
	child.Info("hello")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exporter.Entries()) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("child logger did not export via shared exporter")
}

// =============================================================================
// Exporter Tests
// =============================================================================

func TestNopExporter(t *testing.T) {
	e := &NopExporter{}
	ctx := context.Background()

	if err := e.Export(ctx, LogEntry{Message: "x"}); err != nil {
		t.Errorf("Export() unexpected error: %v", err)
	}
	if err := e.Flush(ctx); err != nil {
		t.Errorf("Flush() unexpected error: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() unexpected error: %v", err)
	}
}

func TestBufferedExporter_CopySemantics(t *testing.T) {
	e := NewBufferedExporter()
	_ = e.Export(context.Background(), LogEntry{Message: "one"})

	entries := e.Entries()
	entries[0].Message = "mutated"

	if got := e.Entries()[0].Message; got != "one" {
		t.Errorf("Entries() should return a copy, internal entry = %q", got)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	got := expandPath("~/.aisuite/logs")
	want := filepath.Join(home, ".aisuite/logs")
	if got != want {
		t.Errorf("expandPath() = %q, want %q", got, want)
	}

	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q, want unchanged", got)
	}
}

func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"a", 1, "b", "two", "dangling"})
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected map contents: %v", m)
	}
}
