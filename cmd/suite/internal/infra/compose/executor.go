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
Package compose drives `docker compose` for the suite's stacks.

The suite is split across up to three stacks that must be sequenced
independently (database first, filesystem tool second, main stack last),
so the executor operates on a Stack value rather than a single hardwired
compose file. All process execution goes through process.Manager to keep
the package unit testable.
*/
package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/process"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrComposeFileNotFound indicates a stack's compose file is missing.
	ErrComposeFileNotFound = errors.New("compose file not found")

	// ErrDockerNotFound indicates the docker binary is not available.
	ErrDockerNotFound = errors.New("docker not found")
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// Stack describes one compose invocation target.
//
// # Fields
//
//   - Name: Human label for logs ("database", "filesystem", "main")
//   - Dir: Working directory for the invocation
//   - Files: Compose files relative to Dir, in -f order
//   - Profiles: Compose profiles to activate (--profile per entry)
type Stack struct {
	Name     string
	Dir      string
	Files    []string
	Profiles []string
}

// Validate checks that the stack's compose files exist on disk.
func (s Stack) Validate() error {
	if len(s.Files) == 0 {
		return fmt.Errorf("%w: stack %q has no compose files", ErrComposeFileNotFound, s.Name)
	}
	for _, f := range s.Files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.Dir, f)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s", ErrComposeFileNotFound, path)
		}
	}
	return nil
}

// UpOptions tunes an Up invocation.
type UpOptions struct {
	// Build forces image rebuild (--build).
	Build bool

	// RemoveOrphans removes containers for services no longer defined.
	RemoveOrphans bool

	// ExtraEnv is appended to the process environment (KEY=VALUE).
	ExtraEnv []string
}

// ContainerStatus is one row of the project's container listing.
type ContainerStatus struct {
	// Name is the container name.
	Name string

	// State is the docker state ("running", "exited", "paused", ...).
	State string

	// Status is the human status string ("Up 2 minutes", ...).
	Status string
}

// Running reports whether the container is in the running state.
func (c ContainerStatus) Running() bool {
	return strings.EqualFold(c.State, "running")
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Executor abstracts compose operations for the suite's stacks.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use, though the sequencer
// invokes them serially by design.
type Executor interface {
	// Up starts a stack's services detached (`up -d`).
	Up(ctx context.Context, stack Stack, opts UpOptions) error

	// Down stops and removes a stack's containers. When removeVolumes
	// is true the named volumes are deleted too (data loss).
	Down(ctx context.Context, stack Stack, removeVolumes bool) error

	// Stop stops a stack's containers without removing them.
	Stop(ctx context.Context, stack Stack) error

	// Pause suspends a stack's running containers.
	Pause(ctx context.Context, stack Stack) error

	// Unpause resumes a stack's paused containers.
	Unpause(ctx context.Context, stack Stack) error

	// Pull fetches the images for a stack ahead of Up.
	Pull(ctx context.Context, stack Stack) error

	// Status lists all containers belonging to the compose project,
	// across every stack, including stopped ones.
	Status(ctx context.Context) ([]ContainerStatus, error)

	// Logs streams logs for the stack (optionally one service) to the
	// caller's terminal. Blocks while following.
	Logs(ctx context.Context, stack Stack, service string, follow bool) error
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// Config configures the DefaultExecutor.
type Config struct {
	// ProjectName is the compose project (-p). All stacks share it so
	// Status sees the whole suite.
	ProjectName string
}

// DefaultExecutor implements Executor by shelling out to docker.
type DefaultExecutor struct {
	cfg  Config
	proc process.Manager
}

// NewDefaultExecutor creates an Executor backed by the docker CLI.
//
// # Inputs
//
//   - cfg: Project configuration
//   - proc: Process manager for command execution
func NewDefaultExecutor(cfg Config, proc process.Manager) *DefaultExecutor {
	return &DefaultExecutor{cfg: cfg, proc: proc}
}

// baseArgs builds the common `compose -p <project> -f ... --profile ...`
// argument prefix for a stack.
func (e *DefaultExecutor) baseArgs(stack Stack) []string {
	args := []string{"compose", "-p", e.cfg.ProjectName}
	for _, f := range stack.Files {
		args = append(args, "-f", f)
	}
	for _, p := range stack.Profiles {
		args = append(args, "--profile", p)
	}
	return args
}

// Up starts a stack's services detached.
func (e *DefaultExecutor) Up(ctx context.Context, stack Stack, opts UpOptions) error {
	if err := stack.Validate(); err != nil {
		return err
	}

	args := append(e.baseArgs(stack), "up", "-d")
	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	if opts.Build {
		args = append(args, "--build")
	}

	if _, err := e.proc.RunInDir(ctx, stack.Dir, opts.ExtraEnv, "docker", args...); err != nil {
		return e.classify(err, fmt.Sprintf("compose up (%s)", stack.Name))
	}
	return nil
}

// Down stops and removes a stack's containers.
func (e *DefaultExecutor) Down(ctx context.Context, stack Stack, removeVolumes bool) error {
	if err := stack.Validate(); err != nil {
		return err
	}

	args := append(e.baseArgs(stack), "down", "--remove-orphans")
	if removeVolumes {
		args = append(args, "--volumes")
	}

	if _, err := e.proc.RunInDir(ctx, stack.Dir, nil, "docker", args...); err != nil {
		return e.classify(err, fmt.Sprintf("compose down (%s)", stack.Name))
	}
	return nil
}

// Stop stops a stack's containers without removing them.
func (e *DefaultExecutor) Stop(ctx context.Context, stack Stack) error {
	if err := stack.Validate(); err != nil {
		return err
	}

	args := append(e.baseArgs(stack), "stop")
	if _, err := e.proc.RunInDir(ctx, stack.Dir, nil, "docker", args...); err != nil {
		return e.classify(err, fmt.Sprintf("compose stop (%s)", stack.Name))
	}
	return nil
}

// Pause suspends a stack's running containers.
func (e *DefaultExecutor) Pause(ctx context.Context, stack Stack) error {
	if err := stack.Validate(); err != nil {
		return err
	}

	args := append(e.baseArgs(stack), "pause")
	if _, err := e.proc.RunInDir(ctx, stack.Dir, nil, "docker", args...); err != nil {
		return e.classify(err, fmt.Sprintf("compose pause (%s)", stack.Name))
	}
	return nil
}

// Unpause resumes a stack's paused containers.
func (e *DefaultExecutor) Unpause(ctx context.Context, stack Stack) error {
	if err := stack.Validate(); err != nil {
		return err
	}

	args := append(e.baseArgs(stack), "unpause")
	if _, err := e.proc.RunInDir(ctx, stack.Dir, nil, "docker", args...); err != nil {
		return e.classify(err, fmt.Sprintf("compose unpause (%s)", stack.Name))
	}
	return nil
}

// Pull fetches the images for a stack.
func (e *DefaultExecutor) Pull(ctx context.Context, stack Stack) error {
	if err := stack.Validate(); err != nil {
		return err
	}

	// Streaming so the user sees layer progress on slow networks.
	args := append(e.baseArgs(stack), "pull")
	if err := e.proc.RunStreaming(ctx, stack.Dir, "docker", args...); err != nil {
		return e.classify(err, fmt.Sprintf("compose pull (%s)", stack.Name))
	}
	return nil
}

// Status lists all containers of the compose project.
func (e *DefaultExecutor) Status(ctx context.Context) ([]ContainerStatus, error) {
	// docker ps with a project label filter sees every stack at once,
	// which `compose ps` per stack would not.
	output, err := e.proc.Run(ctx, "docker", "ps", "-a",
		"--filter", "label=com.docker.compose.project="+e.cfg.ProjectName,
		"--format", "{{json .}}")
	if err != nil {
		return nil, e.classify(err, "docker ps")
	}

	return parsePsOutput(output)
}

// Logs streams logs for the stack to the caller's terminal.
func (e *DefaultExecutor) Logs(ctx context.Context, stack Stack, service string, follow bool) error {
	if err := stack.Validate(); err != nil {
		return err
	}

	args := append(e.baseArgs(stack), "logs")
	if follow {
		args = append(args, "-f")
	}
	if service != "" {
		args = append(args, service)
	}

	if err := e.proc.RunStreaming(ctx, stack.Dir, "docker", args...); err != nil {
		return e.classify(err, fmt.Sprintf("compose logs (%s)", stack.Name))
	}
	return nil
}

// classify maps raw process errors to sentinel errors where possible.
func (e *DefaultExecutor) classify(err error, op string) error {
	msg := err.Error()
	if strings.Contains(msg, "executable file not found") {
		return fmt.Errorf("%w: %s: %v", ErrDockerNotFound, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// parsePsOutput parses `docker ps --format {{json .}}` line output.
func parsePsOutput(output []byte) ([]ContainerStatus, error) {
	var result []ContainerStatus
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row struct {
			Names  string `json:"Names"`
			State  string `json:"State"`
			Status string `json:"Status"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("unexpected docker ps output %q: %w", line, err)
		}
		result = append(result, ContainerStatus{
			Name:   row.Names,
			State:  row.State,
			Status: row.Status,
		})
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockExecutor is a test double for Executor.
//
// Configure the mock by setting function fields; nil fields make the
// corresponding method succeed silently so sequencing tests only wire
// what they assert on.
type MockExecutor struct {
	UpFunc      func(ctx context.Context, stack Stack, opts UpOptions) error
	DownFunc    func(ctx context.Context, stack Stack, removeVolumes bool) error
	StopFunc    func(ctx context.Context, stack Stack) error
	PauseFunc   func(ctx context.Context, stack Stack) error
	UnpauseFunc func(ctx context.Context, stack Stack) error
	PullFunc    func(ctx context.Context, stack Stack) error
	StatusFunc  func(ctx context.Context) ([]ContainerStatus, error)
	LogsFunc    func(ctx context.Context, stack Stack, service string, follow bool) error

	// Calls records all method invocations for verification
	Calls []ExecutorCall

	mu sync.Mutex
}

// ExecutorCall records a single method invocation.
type ExecutorCall struct {
	Method        string
	Stack         string
	Profiles      []string
	Build         bool
	RemoveVolumes bool
	Service       string
}

func (m *MockExecutor) record(call ExecutorCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// Up records the call and delegates to UpFunc when set.
func (m *MockExecutor) Up(ctx context.Context, stack Stack, opts UpOptions) error {
	m.record(ExecutorCall{Method: "Up", Stack: stack.Name, Profiles: stack.Profiles, Build: opts.Build})
	if m.UpFunc != nil {
		return m.UpFunc(ctx, stack, opts)
	}
	return nil
}

// Down records the call and delegates to DownFunc when set.
func (m *MockExecutor) Down(ctx context.Context, stack Stack, removeVolumes bool) error {
	m.record(ExecutorCall{Method: "Down", Stack: stack.Name, RemoveVolumes: removeVolumes})
	if m.DownFunc != nil {
		return m.DownFunc(ctx, stack, removeVolumes)
	}
	return nil
}

// Stop records the call and delegates to StopFunc when set.
func (m *MockExecutor) Stop(ctx context.Context, stack Stack) error {
	m.record(ExecutorCall{Method: "Stop", Stack: stack.Name})
	if m.StopFunc != nil {
		return m.StopFunc(ctx, stack)
	}
	return nil
}

// Pause records the call and delegates to PauseFunc when set.
func (m *MockExecutor) Pause(ctx context.Context, stack Stack) error {
	m.record(ExecutorCall{Method: "Pause", Stack: stack.Name})
	if m.PauseFunc != nil {
		return m.PauseFunc(ctx, stack)
	}
	return nil
}

// Unpause records the call and delegates to UnpauseFunc when set.
func (m *MockExecutor) Unpause(ctx context.Context, stack Stack) error {
	m.record(ExecutorCall{Method: "Unpause", Stack: stack.Name})
	if m.UnpauseFunc != nil {
		return m.UnpauseFunc(ctx, stack)
	}
	return nil
}

// Pull records the call and delegates to PullFunc when set.
func (m *MockExecutor) Pull(ctx context.Context, stack Stack) error {
	m.record(ExecutorCall{Method: "Pull", Stack: stack.Name})
	if m.PullFunc != nil {
		return m.PullFunc(ctx, stack)
	}
	return nil
}

// Status records the call and delegates to StatusFunc when set.
func (m *MockExecutor) Status(ctx context.Context) ([]ContainerStatus, error) {
	m.record(ExecutorCall{Method: "Status"})
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return nil, nil
}

// Logs records the call and delegates to LogsFunc when set.
func (m *MockExecutor) Logs(ctx context.Context, stack Stack, service string, follow bool) error {
	m.record(ExecutorCall{Method: "Logs", Stack: stack.Name, Service: service})
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, stack, service, follow)
	}
	return nil
}

// Reset clears all recorded calls.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockExecutor) GetCalls() []ExecutorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ExecutorCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// MethodNames returns the recorded method names in order.
//
// Convenience for asserting call sequences.
func (m *MockExecutor) MethodNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		names[i] = c.Method
	}
	return names
}

// Compile-time interface compliance check.
var (
	_ Executor = (*DefaultExecutor)(nil)
	_ Executor = (*MockExecutor)(nil)
)
