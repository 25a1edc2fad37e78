// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSuite/cmd/suite/config"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/process"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/util"
	"github.com/AleutianAI/AleutianSuite/pkg/logging"
	"github.com/AleutianAI/AleutianSuite/pkg/ux"
)

// engineProcessNames maps host engine tokens to their process names.
var engineProcessNames = map[Token]string{
	TokenOllama:   "ollama",
	TokenLlamaCpp: "llama-server",
}

// engineHealthURLs maps host engine tokens to their readiness probes.
var engineHealthURLs = map[Token]string{
	TokenOllama:   "http://127.0.0.1:11434/api/version",
	TokenLlamaCpp: "http://127.0.0.1:8080/health",
}

// EngineProcessName returns the host process name for an engine token.
func EngineProcessName(engine Token) (string, bool) {
	name, ok := engineProcessNames[engine]
	return name, ok
}

// ReadyProbe checks whether an engine is accepting requests.
type ReadyProbe func(ctx context.Context, engine Token) bool

// RuntimeResolver locates, launches, and stops host inference engines.
//
// # Description
//
//	Resolves the engine executable (configured path, then platform
//	default locations, then PATH), launches it detached when absent,
//	and waits for readiness with exponentially backed-off polling
//	bounded by the configured timeout. If polling times out but the
//	process is alive, a fixed settle sleep and a final recheck decide
//	between continuing with a warning and failing. Already-running
//	engines are left untouched.
//
// # Limitations
//
//   - Engines listening on non-default ports are probed at the default
//     port and fall into the settle path
type RuntimeResolver struct {
	cfg      config.EngineConfig
	settle   config.SettleConfig
	proc     process.Manager
	prompter util.UserPrompter
	logger   *logging.Logger

	// probe is replaceable for tests; nil means the HTTP probe.
	probe ReadyProbe

	// pollBase is the initial poll interval.
	pollBase time.Duration

	// settleFallback is slept when polling times out with a live process.
	settleFallback time.Duration
}

// NewRuntimeResolver builds a resolver over the given collaborators.
func NewRuntimeResolver(cfg config.EngineConfig, settle config.SettleConfig, proc process.Manager, prompter util.UserPrompter, logger *logging.Logger) *RuntimeResolver {
	return &RuntimeResolver{
		cfg:            cfg,
		settle:         settle,
		proc:           proc,
		prompter:       prompter,
		logger:         logger,
		pollBase:       500 * time.Millisecond,
		settleFallback: 5 * time.Second,
	}
}

// EnsureRunning makes sure a host engine is up and ready.
//
// # Description
//
//	When the requested engine's executable cannot be located anywhere,
//	the other engine is tried before giving up: a machine with only
//	llama-server installed still serves a profile that asked for
//	ollama, with a warning about the swap.
//
// # Outputs
//
//   - Token: The engine actually running, which may differ from the
//     requested one after a swap
//   - error: ErrEngineUnavailable (wrapped) when no engine can be
//     located, launched, or seen alive after the settle fallback
func (r *RuntimeResolver) EnsureRunning(ctx context.Context, engine Token) (Token, error) {
	procName, ok := engineProcessNames[engine]
	if !ok {
		return "", fmt.Errorf("%w: %q is not a host engine", ErrEngineUnavailable, engine)
	}

	running, pid, err := r.proc.IsRunning(ctx, procName)
	if err != nil {
		return "", fmt.Errorf("checking for %s: %w", procName, err)
	}
	if running {
		r.logger.Info("host engine already running", "engine", engine, "pid", pid)
		return engine, nil
	}

	exe, err := r.locateExecutable(engine)
	if err != nil {
		alt := otherEngine(engine)
		altExe, altErr := r.locateExecutable(alt)
		if altErr != nil {
			return "", err
		}
		r.logger.Warn("requested engine not found, swapping", "requested", engine, "using", alt)
		ux.Warning(fmt.Sprintf("Engine %q not found on this machine, using %q instead", engine, alt))
		engine, exe = alt, altExe
		procName = engineProcessNames[engine]

		running, pid, err = r.proc.IsRunning(ctx, procName)
		if err != nil {
			return "", fmt.Errorf("checking for %s: %w", procName, err)
		}
		if running {
			r.logger.Info("host engine already running", "engine", engine, "pid", pid)
			return engine, nil
		}
	}

	args, err := r.launchArgs(ctx, engine)
	if err != nil {
		return "", err
	}

	r.logger.Info("launching host engine", "engine", engine, "exe", exe, "args", strings.Join(args, " "))
	pid, err = r.proc.Start(ctx, exe, args...)
	if err != nil {
		return "", fmt.Errorf("%w: failed to launch %s: %v", ErrEngineUnavailable, procName, err)
	}
	r.logger.Debug("engine launched", "engine", engine, "pid", pid)

	if err := r.awaitReady(ctx, engine, procName); err != nil {
		return "", err
	}
	return engine, nil
}

// otherEngine returns the alternate host engine.
func otherEngine(engine Token) Token {
	if engine == TokenOllama {
		return TokenLlamaCpp
	}
	return TokenOllama
}

// Stop terminates the engine's host process if it is running.
//
// A missing process is a clean no-op, not an error.
func (r *RuntimeResolver) Stop(ctx context.Context, engine Token) error {
	procName, ok := engineProcessNames[engine]
	if !ok {
		return fmt.Errorf("%w: %q is not a host engine", ErrEngineUnavailable, engine)
	}

	running, pid, err := r.proc.IsRunning(ctx, procName)
	if err != nil {
		return fmt.Errorf("checking for %s: %w", procName, err)
	}
	if !running {
		r.logger.Debug("host engine not running, nothing to stop", "engine", engine)
		return nil
	}

	r.logger.Info("stopping host engine", "engine", engine, "pid", pid)
	if err := r.proc.Kill(ctx, procName); err != nil {
		return fmt.Errorf("stopping %s: %w", procName, err)
	}
	return nil
}

// locateExecutable finds the engine binary.
//
// Resolution order: explicit configured path, platform default
// locations, then PATH.
func (r *RuntimeResolver) locateExecutable(engine Token) (string, error) {
	configured := r.cfg.OllamaPath
	if engine == TokenLlamaCpp {
		configured = r.cfg.LlamaServerPath
	}
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
		r.logger.Warn("configured engine path not found, falling back", "engine", engine, "path", configured)
	}

	for _, candidate := range defaultExecutablePaths(engine) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	procName := engineProcessNames[engine]
	if path, err := exec.LookPath(procName); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s executable not found (configured path, default locations, PATH)", ErrEngineUnavailable, procName)
}

// defaultExecutablePaths lists conventional install locations per OS.
func defaultExecutablePaths(engine Token) []string {
	name := engineProcessNames[engine]
	switch runtime.GOOS {
	case "darwin":
		return []string{
			filepath.Join("/opt/homebrew/bin", name),
			filepath.Join("/usr/local/bin", name),
		}
	case "windows":
		home, _ := os.UserHomeDir()
		return []string{
			filepath.Join(home, "AppData", "Local", "Programs", "Ollama", name+".exe"),
		}
	default:
		return []string{
			filepath.Join("/usr/local/bin", name),
			filepath.Join("/usr/bin", name),
		}
	}
}

// launchArgs builds the engine command line.
//
// llama-server model sources, in priority order: explicit local path
// (-m), remote repository reference (-hf), then the local GGUF catalog.
func (r *RuntimeResolver) launchArgs(ctx context.Context, engine Token) ([]string, error) {
	switch engine {
	case TokenOllama:
		return []string{"serve"}, nil
	case TokenLlamaCpp:
		var args []string
		if r.cfg.ModelPath == "" && r.cfg.ModelRepo != "" {
			args = []string{"-hf", r.cfg.ModelRepo}
		} else {
			model, err := r.ResolveModelPath(ctx)
			if err != nil {
				return nil, err
			}
			args = []string{"-m", model}
		}
		return append(args, r.cfg.ServerArgs...), nil
	default:
		return nil, fmt.Errorf("%w: %q is not a host engine", ErrEngineUnavailable, engine)
	}
}

// ResolveModelPath finds the GGUF model for the llama.cpp server.
//
// # Description
//
//	An explicit configured path wins when it exists. Otherwise the
//	model directory is scanned for GGUF files: an exact match on the
//	configured model name is used directly, while a close fuzzy match
//	is offered to the user for confirmation. Anything else fails.
//
// # Outputs
//
//   - string: Absolute path to the model file
//   - error: ErrPrerequisiteMissing (wrapped) when no model resolves
func (r *RuntimeResolver) ResolveModelPath(ctx context.Context) (string, error) {
	if r.cfg.ModelPath != "" {
		if _, err := os.Stat(r.cfg.ModelPath); err == nil {
			return r.cfg.ModelPath, nil
		}
		r.logger.Warn("configured model path not found, searching model dir", "path", r.cfg.ModelPath)
	}

	if r.cfg.ModelDir == "" {
		return "", fmt.Errorf("%w: no model path or model dir configured", ErrPrerequisiteMissing)
	}

	entries, err := os.ReadDir(r.cfg.ModelDir)
	if err != nil {
		return "", fmt.Errorf("%w: model dir %s unreadable: %v", ErrPrerequisiteMissing, r.cfg.ModelDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".gguf") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no GGUF models in %s", ErrPrerequisiteMissing, r.cfg.ModelDir)
	}

	want := r.cfg.ModelName
	bases := make([]string, len(names))
	for i, n := range names {
		bases[i] = strings.TrimSuffix(n, ".gguf")
		if n == want || bases[i] == want {
			return filepath.Join(r.cfg.ModelDir, n), nil
		}
	}

	// Match on base names so the extension does not dilute the score.
	if match, ok := BestMatch(want, bases); ok {
		file := match + ".gguf"
		confirmed, err := r.prompter.Confirm(
			fmt.Sprintf("Model %q not found. Use %q instead?", want, file),
			"The closest match in the model directory.",
		)
		if err != nil {
			return "", err
		}
		if confirmed {
			return filepath.Join(r.cfg.ModelDir, file), nil
		}
	}

	return "", fmt.Errorf("%w: model %q not found in %s", ErrPrerequisiteMissing, want, r.cfg.ModelDir)
}

// awaitReady polls the readiness probe with exponential backoff.
//
// Backoff doubles from pollBase, capped at 5s, until the configured
// timeout. On timeout a live process gets one settle sleep and a final
// recheck before the engine is declared unavailable.
func (r *RuntimeResolver) awaitReady(ctx context.Context, engine Token, procName string) error {
	probe := r.probe
	if probe == nil {
		probe = httpReadyProbe
	}

	timeout := time.Duration(r.settle.ReadinessTimeoutSeconds) * time.Second
	deadline := time.Now().Add(timeout)
	interval := r.pollBase

	for time.Now().Before(deadline) {
		if probe(ctx, engine) {
			r.logger.Info("host engine ready", "engine", engine)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if interval > 5*time.Second {
			interval = 5 * time.Second
		}
	}

	// Probe never answered. A slow first model load can do this, so
	// give the process one settle window before deciding.
	r.logger.Warn("readiness probe timed out, settling", "engine", engine, "timeout", timeout.String())
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.settleFallback):
	}

	running, _, err := r.proc.IsRunning(ctx, procName)
	if err != nil {
		return fmt.Errorf("rechecking %s: %w", procName, err)
	}
	if !running {
		return fmt.Errorf("%w: %s exited before becoming ready", ErrEngineUnavailable, procName)
	}

	r.logger.Warn("continuing with unverified engine readiness", "engine", engine)
	return nil
}

// httpReadyProbe hits the engine's health endpoint.
func httpReadyProbe(ctx context.Context, engine Token) bool {
	url, ok := engineHealthURLs[engine]
	if !ok {
		return false
	}

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
