// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// DefaultManager Tests
// -----------------------------------------------------------------------------

func TestDefaultManager_Run_Success(t *testing.T) {
	pm := NewDefaultManager()
	ctx := context.Background()

	output, err := pm.Run(ctx, "echo", "hello world")
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	got := strings.TrimSpace(string(output))
	if got != "hello world" {
		t.Errorf("Run() output = %q, want %q", got, "hello world")
	}
}

func TestDefaultManager_Run_CommandNotFound(t *testing.T) {
	pm := NewDefaultManager()
	ctx := context.Background()

	_, err := pm.Run(ctx, "nonexistent-command-12345")
	if err == nil {
		t.Fatal("Run() expected error for non-existent command, got nil")
	}
}

func TestDefaultManager_Run_CommandFailure(t *testing.T) {
	pm := NewDefaultManager()
	ctx := context.Background()

	_, err := pm.Run(ctx, "false") // 'false' always exits with code 1
	if err == nil {
		t.Fatal("Run() expected error for failing command, got nil")
	}
}

func TestDefaultManager_Run_ContextCancellation(t *testing.T) {
	pm := NewDefaultManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pm.Run(ctx, "sleep", "10")
	if err == nil {
		t.Fatal("Run() expected error for cancelled context, got nil")
	}
}

func TestDefaultManager_RunInDir_WorkingDirectory(t *testing.T) {
	pm := NewDefaultManager()
	ctx := context.Background()
	dir := t.TempDir()

	output, err := pm.RunInDir(ctx, dir, nil, "pwd")
	if err != nil {
		t.Fatalf("RunInDir() unexpected error: %v", err)
	}

	got := strings.TrimSpace(string(output))
	// macOS reports /private prefixed temp dirs
	if got != dir && !strings.HasSuffix(got, dir) {
		t.Errorf("RunInDir() pwd = %q, want %q", got, dir)
	}
}

func TestDefaultManager_RunInDir_ExtraEnv(t *testing.T) {
	pm := NewDefaultManager()
	ctx := context.Background()

	output, err := pm.RunInDir(ctx, "", []string{"SUITE_TEST_VAR=marker-value"}, "sh", "-c", "echo $SUITE_TEST_VAR")
	if err != nil {
		t.Fatalf("RunInDir() unexpected error: %v", err)
	}

	if got := strings.TrimSpace(string(output)); got != "marker-value" {
		t.Errorf("RunInDir() env var = %q, want %q", got, "marker-value")
	}
}

func TestDefaultManager_Start_Success(t *testing.T) {
	pm := NewDefaultManager()
	ctx := context.Background()

	pid, err := pm.Start(ctx, "sleep", "0.1")
	if err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	if pid <= 0 {
		t.Errorf("Start() returned invalid PID: %d", pid)
	}

	time.Sleep(200 * time.Millisecond)
}

func TestDefaultManager_Start_InvalidCommand(t *testing.T) {
	pm := NewDefaultManager()
	ctx := context.Background()

	_, err := pm.Start(ctx, "nonexistent-command-12345")
	if err == nil {
		t.Fatal("Start() expected error for non-existent command, got nil")
	}
}

func TestDefaultManager_IsRunning_ProcessNotExists(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only test")
	}
	pm := NewDefaultManager()
	ctx := context.Background()

	running, pid, err := pm.IsRunning(ctx, "nonexistent-process-12345")
	if err != nil {
		t.Fatalf("IsRunning() unexpected error: %v", err)
	}

	if running {
		t.Error("IsRunning() returned true, expected false")
	}
	if pid != 0 {
		t.Errorf("IsRunning() returned PID %d, expected 0", pid)
	}
}

func TestDefaultManager_Kill_NoMatchIsNotError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only test")
	}
	pm := NewDefaultManager()
	ctx := context.Background()

	if err := pm.Kill(ctx, "nonexistent-process-12345"); err != nil {
		t.Errorf("Kill() with no match should not error, got: %v", err)
	}
}

// -----------------------------------------------------------------------------
// MockManager Tests
// -----------------------------------------------------------------------------

func TestMockManager_Run(t *testing.T) {
	mock := &MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if name == "docker" && len(args) > 0 && args[0] == "version" {
				return []byte("Docker version 27.0.0"), nil
			}
			return nil, errors.New("unexpected command")
		},
	}

	ctx := context.Background()
	output, err := mock.Run(ctx, "docker", "version")
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if string(output) != "Docker version 27.0.0" {
		t.Errorf("Run() output = %q, want %q", output, "Docker version 27.0.0")
	}

	if len(mock.Calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.Calls))
	}
	call := mock.Calls[0]
	if call.Method != "Run" || call.Name != "docker" {
		t.Errorf("call = %+v, want Run docker", call)
	}
}

func TestMockManager_RunInDir_RecordsDir(t *testing.T) {
	mock := &MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
			return []byte("ok"), nil
		},
	}

	ctx := context.Background()
	_, err := mock.RunInDir(ctx, "/opt/ai-suite", nil, "docker", "compose", "ps")
	if err != nil {
		t.Fatalf("RunInDir() unexpected error: %v", err)
	}

	call := mock.Calls[0]
	if call.Dir != "/opt/ai-suite" {
		t.Errorf("call.Dir = %q, want %q", call.Dir, "/opt/ai-suite")
	}
}

func TestMockManager_KillAndIsRunning(t *testing.T) {
	mock := &MockManager{
		IsRunningFunc: func(ctx context.Context, name string) (bool, int, error) {
			return name == "ollama", 4242, nil
		},
		KillFunc: func(ctx context.Context, name string) error {
			return nil
		},
	}

	ctx := context.Background()
	running, pid, err := mock.IsRunning(ctx, "ollama")
	if err != nil || !running || pid != 4242 {
		t.Errorf("IsRunning() = (%v, %d, %v), want (true, 4242, nil)", running, pid, err)
	}

	if err := mock.Kill(ctx, "ollama"); err != nil {
		t.Errorf("Kill() unexpected error: %v", err)
	}

	if len(mock.Calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(mock.Calls))
	}
}

func TestMockManager_NilFunc_Panics(t *testing.T) {
	mock := &MockManager{}

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when RunFunc is nil")
		}
	}()

	ctx := context.Background()
	_, _ = mock.Run(ctx, "test")
}

func TestMockManager_Reset(t *testing.T) {
	mock := &MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		},
	}

	ctx := context.Background()
	_, _ = mock.Run(ctx, "test1")
	_, _ = mock.Run(ctx, "test2")

	mock.Reset()

	if len(mock.GetCalls()) != 0 {
		t.Errorf("expected 0 calls after reset, got %d", len(mock.Calls))
	}
}
