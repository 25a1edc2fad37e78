// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package process abstracts external process execution for the suite CLI.

Every docker, git, and inference engine invocation goes through the
Manager interface so the sequencing logic can be unit tested without
touching the real system.

# Design Rationale

Direct calls to exec.Command are not testable because they execute real
processes. By abstracting process execution behind an interface, we can:
  - Mock process execution in tests
  - Capture and verify command invocations
  - Simulate success/failure scenarios without real processes
*/
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Manager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Handling
//
// All methods accept a context.Context for cancellation and timeout support,
// except Start which deliberately detaches from the caller's lifetime.
type Manager interface {
	// Run executes a command synchronously and returns its stdout.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - []byte: Stdout output
	//   - error: Non-nil if the command fails; stderr is folded into the error
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInDir executes a command in a working directory with extra
	// environment variables appended to the inherited environment.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - dir: Working directory ("" means inherit)
	//   - env: Extra KEY=VALUE entries (nil means inherit only)
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - []byte: Stdout output
	//   - error: Non-nil if the command fails
	RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)

	// RunStreaming executes a command with stdout/stderr attached to the
	// caller's terminal. Used for long operations whose progress the user
	// should see (image pulls, log streaming).
	//
	// # Outputs
	//
	//   - error: Non-nil if the command fails or is cancelled
	RunStreaming(ctx context.Context, dir string, name string, args ...string) error

	// Start launches a background process and returns immediately.
	//
	// The process outlives the CLI invocation; context cancellation does
	// not kill it and its output is discarded.
	//
	// # Outputs
	//
	//   - int: Process ID of the started process
	//   - error: Non-nil if the process fails to start
	Start(ctx context.Context, name string, args ...string) (int, error)

	// IsRunning checks if a process with the given executable name exists.
	//
	// Uses `pgrep -x` on Unix and `tasklist` on Windows. The name is the
	// bare executable name ("ollama", "llama-server"), not a pattern.
	//
	// # Outputs
	//
	//   - bool: True if at least one matching process is running
	//   - int: PID of the first match (0 if not found or unparsable)
	//   - error: Non-nil if detection itself fails (not for "not found")
	IsRunning(ctx context.Context, name string) (bool, int, error)

	// Kill forcefully terminates every process with the given executable
	// name. Uses `pkill -x` on Unix and `taskkill /IM /F` on Windows.
	//
	// No matching process is not an error.
	Kill(ctx context.Context, name string) error
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultManager implements Manager using os/exec.
//
// This is the production implementation that executes real processes on
// the system. Use MockManager in tests instead.
type DefaultManager struct{}

// NewDefaultManager creates a Manager that executes real processes.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Run executes a command synchronously and returns its output.
func (pm *DefaultManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return pm.RunInDir(ctx, "", nil, name, args...)
}

// RunInDir executes a command in a working directory with extra environment.
func (pm *DefaultManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Include stderr in error for debugging
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// RunStreaming executes a command with inherited stdio.
func (pm *DefaultManager) RunStreaming(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// Start launches a background process and returns immediately.
func (pm *DefaultManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)

	// The process must survive the CLI exiting; output is discarded.

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", name, err)
	}

	return cmd.Process.Pid, nil
}

// IsRunning checks if a process with the given executable name exists.
func (pm *DefaultManager) IsRunning(ctx context.Context, name string) (bool, int, error) {
	if runtime.GOOS == "windows" {
		return pm.isRunningWindows(ctx, name)
	}
	return pm.isRunningUnix(ctx, name)
}

func (pm *DefaultManager) isRunningUnix(ctx context.Context, name string) (bool, int, error) {
	cmd := exec.CommandContext(ctx, "pgrep", "-x", name)
	output, err := cmd.Output()

	if err != nil {
		// pgrep returns exit code 1 when no processes found - this is not an error
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("pgrep failed: %w", err)
	}

	// Parse the first PID from output
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 0 && lines[0] != "" {
		pid, err := strconv.Atoi(lines[0])
		if err != nil {
			return true, 0, nil // Process found but PID parse failed
		}
		return true, pid, nil
	}

	return false, 0, nil
}

func (pm *DefaultManager) isRunningWindows(ctx context.Context, name string) (bool, int, error) {
	image := name
	if !strings.HasSuffix(strings.ToLower(image), ".exe") {
		image += ".exe"
	}
	cmd := exec.CommandContext(ctx, "tasklist", "/FI", "IMAGENAME eq "+image, "/FO", "CSV", "/NH")
	output, err := cmd.Output()
	if err != nil {
		return false, 0, fmt.Errorf("tasklist failed: %w", err)
	}

	// tasklist prints an INFO line (not CSV) when nothing matches
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if !strings.HasPrefix(line, `"`) {
			continue
		}
		fields := strings.Split(line, `","`)
		if len(fields) >= 2 {
			pid, err := strconv.Atoi(strings.Trim(fields[1], `"`))
			if err != nil {
				return true, 0, nil
			}
			return true, pid, nil
		}
	}
	return false, 0, nil
}

// Kill forcefully terminates processes by executable name.
func (pm *DefaultManager) Kill(ctx context.Context, name string) error {
	if runtime.GOOS == "windows" {
		image := name
		if !strings.HasSuffix(strings.ToLower(image), ".exe") {
			image += ".exe"
		}
		err := exec.CommandContext(ctx, "taskkill", "/IM", image, "/F").Run()
		if err != nil {
			// taskkill exits 128 when no process matched
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == 128 {
				return nil
			}
			return fmt.Errorf("taskkill failed: %w", err)
		}
		return nil
	}

	err := exec.CommandContext(ctx, "pkill", "-x", name).Run()
	if err != nil {
		// pkill exits 1 when no process matched
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil
		}
		return fmt.Errorf("pkill failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockManager is a test double for Manager.
//
// Configure the mock by setting function fields before use. If a function
// field is nil and the corresponding method is called, it will panic.
//
// # Examples
//
//	mock := &MockManager{
//	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
//	        if name == "docker" && args[0] == "version" {
//	            return []byte("Docker version 27.0.0"), nil
//	        }
//	        return nil, fmt.Errorf("unexpected command: %s", name)
//	    },
//	}
type MockManager struct {
	// RunFunc is called when Run is invoked
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInDirFunc is called when RunInDir is invoked
	RunInDirFunc func(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)

	// RunStreamingFunc is called when RunStreaming is invoked
	RunStreamingFunc func(ctx context.Context, dir string, name string, args ...string) error

	// StartFunc is called when Start is invoked
	StartFunc func(ctx context.Context, name string, args ...string) (int, error)

	// IsRunningFunc is called when IsRunning is invoked
	IsRunningFunc func(ctx context.Context, name string) (bool, int, error)

	// KillFunc is called when Kill is invoked
	KillFunc func(ctx context.Context, name string) error

	// Calls records all method invocations for verification
	Calls []ManagerCall

	// mu protects Calls for concurrent access
	mu sync.Mutex
}

// ManagerCall records a single method invocation.
type ManagerCall struct {
	Method string
	Name   string
	Dir    string
	Args   []string
}

func (m *MockManager) record(call ManagerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// Run delegates to RunFunc and records the call.
func (m *MockManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record(ManagerCall{Method: "Run", Name: name, Args: args})
	if m.RunFunc == nil {
		panic("MockManager.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// RunInDir delegates to RunInDirFunc and records the call.
func (m *MockManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	m.record(ManagerCall{Method: "RunInDir", Name: name, Dir: dir, Args: args})
	if m.RunInDirFunc == nil {
		panic("MockManager.RunInDirFunc not set")
	}
	return m.RunInDirFunc(ctx, dir, env, name, args...)
}

// RunStreaming delegates to RunStreamingFunc and records the call.
func (m *MockManager) RunStreaming(ctx context.Context, dir string, name string, args ...string) error {
	m.record(ManagerCall{Method: "RunStreaming", Name: name, Dir: dir, Args: args})
	if m.RunStreamingFunc == nil {
		panic("MockManager.RunStreamingFunc not set")
	}
	return m.RunStreamingFunc(ctx, dir, name, args...)
}

// Start delegates to StartFunc and records the call.
func (m *MockManager) Start(ctx context.Context, name string, args ...string) (int, error) {
	m.record(ManagerCall{Method: "Start", Name: name, Args: args})
	if m.StartFunc == nil {
		panic("MockManager.StartFunc not set")
	}
	return m.StartFunc(ctx, name, args...)
}

// IsRunning delegates to IsRunningFunc and records the call.
func (m *MockManager) IsRunning(ctx context.Context, name string) (bool, int, error) {
	m.record(ManagerCall{Method: "IsRunning", Name: name})
	if m.IsRunningFunc == nil {
		panic("MockManager.IsRunningFunc not set")
	}
	return m.IsRunningFunc(ctx, name)
}

// Kill delegates to KillFunc and records the call.
func (m *MockManager) Kill(ctx context.Context, name string) error {
	m.record(ManagerCall{Method: "Kill", Name: name})
	if m.KillFunc == nil {
		panic("MockManager.KillFunc not set")
	}
	return m.KillFunc(ctx, name)
}

// Reset clears all recorded calls.
func (m *MockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockManager) GetCalls() []ManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Compile-time interface compliance check.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)
