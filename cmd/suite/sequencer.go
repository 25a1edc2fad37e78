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
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianSuite/cmd/suite/config"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/compose"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/util"
	"github.com/AleutianAI/AleutianSuite/pkg/logging"
	"github.com/AleutianAI/AleutianSuite/pkg/ux"
)

// Compose file names for the three stacks.
const (
	mainComposeFile       = "docker-compose.yml"
	databaseComposeFile   = "docker-compose.db.yml"
	filesystemComposeFile = "docker-compose.fs.yml"
)

// searxngSettingsRelPath is where vendored SearXNG settings live.
const searxngSettingsRelPath = "searxng/settings.yml"

// Environment keys the sequencer maintains.
const (
	envKeyOllamaHost   = "OLLAMA_HOST"
	envKeyProjectsPath = "PROJECTS_PATH"
)

// OLLAMA_HOST values for container and host inference.
const (
	ollamaHostContainer = "ollama:11434"
	ollamaHostFromHost  = "host.docker.internal:11434"
)

// Sequencer executes lifecycle operations over the suite.
//
// # Description
//
//	Holds every collaborator an operation can need and dispatches on
//	the invocation's operation. State short-circuits happen before any
//	external call: when the recorded marker already satisfies the
//	request, the sequencer reports and returns without touching docker
//	or host processes. Failures on auxiliary stacks and individual
//	volumes are logged and skipped; failures that leave the suite
//	unusable (main stack, host engine) abort.
type Sequencer struct {
	cfg      *config.SuiteConfig
	catalog  *Catalog
	compose  compose.Executor
	resolver *RuntimeResolver
	marker   *StatusMarker
	backup   *BackupManager
	repos    *RepoSyncer
	prompter util.UserPrompter
	logger   *logging.Logger

	// sleep is replaceable so tests do not wait out settle windows.
	sleep func(time.Duration)
}

// NewSequencer wires a sequencer from its collaborators.
func NewSequencer(
	cfg *config.SuiteConfig,
	catalog *Catalog,
	executor compose.Executor,
	resolver *RuntimeResolver,
	marker *StatusMarker,
	backup *BackupManager,
	repos *RepoSyncer,
	prompter util.UserPrompter,
	logger *logging.Logger,
) *Sequencer {
	return &Sequencer{
		cfg:      cfg,
		catalog:  catalog,
		compose:  executor,
		resolver: resolver,
		marker:   marker,
		backup:   backup,
		repos:    repos,
		prompter: prompter,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Run executes the invocation's operation.
func (s *Sequencer) Run(ctx context.Context, ic InvocationContext) error {
	op := ic.Operation()
	s.logger.Info("operation starting",
		"invocation", ic.ID(),
		"operation", op,
		"profiles", fmt.Sprintf("%v", ic.Profiles().Tokens))

	for _, w := range ic.Profiles().Warnings {
		ux.Warning(w.String())
	}

	prior, hasPrior := s.marker.Read()

	// In-state short-circuit: zero external calls when the recorded
	// state already covers the request. install and update always run.
	if op.MutatesState() && op != OpInstall && op != OpUpdate {
		if hasPrior && prior.Satisfies(op) {
			ux.Info(fmt.Sprintf("Suite is already in state %q, nothing to do", prior))
			return nil
		}
		if op == OpUnpause && (!hasPrior || prior.Operation != OpPause) {
			ux.Info("Suite is not paused, nothing to unpause")
			return nil
		}
	}

	s.warnEngineSwap(ic, prior, hasPrior)

	switch op {
	case OpInstall:
		return s.runInstall(ctx, ic)
	case OpUpdate:
		return s.runUpdate(ctx, ic)
	case OpStart:
		return s.runStart(ctx, ic)
	case OpStop, OpStopOllama, OpStopLlama:
		return s.runStop(ctx, ic, prior, hasPrior)
	case OpPause:
		return s.runPause(ctx, ic)
	case OpUnpause:
		return s.runUnpause(ctx, ic)
	case OpBackupData:
		return s.runBackup(ctx)
	case OpRestoreData:
		return s.runRestore(ctx)
	case OpStatus:
		return s.runStatus(ctx)
	case OpLogs:
		return s.runLogs(ctx, ic)
	default:
		return fmt.Errorf("unhandled operation %q", op)
	}
}

// warnEngineSwap flags a host engine change against the recorded state.
//
// Switching engines without stopping the old one leaves two servers
// fighting over the model and the port.
func (s *Sequencer) warnEngineSwap(ic InvocationContext, prior MarkerState, hasPrior bool) {
	if !hasPrior || prior.Engine == "" {
		return
	}
	requested, ok := s.hostEngine(ic)
	if ok && requested != prior.Engine {
		ux.Warning(fmt.Sprintf("Last run used engine %q, this run uses %q; the old engine may still be running", prior.Engine, requested))
	}
}

// ----- Stack construction -----

// buildStacks assembles the database, filesystem, and main stacks.
//
// The environment override file is layered onto the main stack only
// when it exists, so a private-only checkout still starts.
func (s *Sequencer) buildStacks(ic InvocationContext) (db, fs, main compose.Stack) {
	dir := s.cfg.Suite.Dir
	override := ic.Environment().OverrideFile()

	mainFiles := []string{mainComposeFile}
	if _, err := os.Stat(filepath.Join(dir, override)); err == nil {
		mainFiles = append(mainFiles, override)
	}

	db = compose.Stack{Name: "database", Dir: dir, Files: []string{databaseComposeFile}}
	fs = compose.Stack{Name: "filesystem", Dir: dir, Files: []string{filesystemComposeFile}}
	main = compose.Stack{
		Name:     "main",
		Dir:      dir,
		Files:    mainFiles,
		Profiles: ic.Profiles().ComposeProfiles(s.catalog),
	}
	return db, fs, main
}

// activeStacks returns the stacks the profile set actually uses, in
// bring-up order. Stop and pause reuse the same order: each compose
// invocation is independent, so there is nothing to unwind.
func (s *Sequencer) activeStacks(ic InvocationContext) []compose.Stack {
	db, fs, main := s.buildStacks(ic)
	profiles := ic.Profiles()

	var stacks []compose.Stack
	if profiles.NeedsDatabase(s.catalog) {
		stacks = append(stacks, db)
	}
	if profiles.NeedsFilesystem(s.catalog) {
		stacks = append(stacks, fs)
	}
	return append(stacks, main)
}

// settleFor returns the settle window after a stack comes up.
func (s *Sequencer) settleFor(stack compose.Stack) time.Duration {
	switch stack.Name {
	case "database":
		return time.Duration(s.cfg.Settle.DatabaseSeconds) * time.Second
	case "filesystem":
		return time.Duration(s.cfg.Settle.FilesystemSeconds) * time.Second
	default:
		return 0
	}
}

// ----- Shared phases -----

// prepareEnvironment maintains the suite's .env file.
//
// PROJECTS_PATH is created once with a default; OLLAMA_HOST tracks
// the runtime choice on every run so containers always reach the
// right inference endpoint.
func (s *Sequencer) prepareEnvironment(ic InvocationContext) error {
	envPath := filepath.Join(s.cfg.Suite.Dir, s.cfg.Suite.EnvFile)
	store, err := LoadEnvStore(envPath)
	if err != nil {
		return err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home dir: %w", err)
	}
	if _, err := store.SetIfAbsent(envKeyProjectsPath, filepath.Join(home, "projects"),
		"host directory mounted into tool containers"); err != nil {
		return err
	}

	host := ollamaHostContainer
	if _, ok := s.hostEngine(ic); ok {
		host = ollamaHostFromHost
	}
	if err := store.Set(envKeyOllamaHost, host); err != nil {
		return err
	}

	return store.Save()
}

// hostEngine picks the host engine for this invocation.
//
// An explicit runtime-host token wins. Without any runtime token the
// suite still needs inference, so the configured host engine is the
// default; only a containerized runtime token turns host management
// off.
func (s *Sequencer) hostEngine(ic InvocationContext) (Token, bool) {
	if e, ok := ic.Profiles().HostEngine(s.catalog); ok {
		return e, true
	}
	if _, ok := ic.Profiles().DockerRuntime(s.catalog); ok {
		return "", false
	}
	return Token(s.cfg.Engine.Kind), true
}

// ensureEngine brings up the host engine when one is selected.
//
// An unavailable engine is fatal here: every profile depends on
// inference, so continuing would start a suite that cannot answer.
// The returned token is the engine actually running, which can differ
// from the requested one when the resolver had to swap.
func (s *Sequencer) ensureEngine(ctx context.Context, ic InvocationContext) (Token, error) {
	engine, ok := s.hostEngine(ic)
	if !ok {
		return "", nil
	}
	return s.resolver.EnsureRunning(ctx, engine)
}

// bringUp starts the active stacks in order with their settle windows.
//
// Auxiliary stack failures are logged and skipped; the main stack
// failing aborts.
func (s *Sequencer) bringUp(ctx context.Context, ic InvocationContext, opts compose.UpOptions) error {
	for _, stack := range s.activeStacks(ic) {
		ux.Info(fmt.Sprintf("Starting %s stack", stack.Name))
		if err := s.compose.Up(ctx, stack, opts); err != nil {
			if stack.Name == "main" {
				return fmt.Errorf("starting main stack: %w", err)
			}
			s.logger.Error("auxiliary stack failed to start, continuing",
				"stack", stack.Name, "error", err)
			ux.Warning(fmt.Sprintf("%s stack failed to start: %v", stack.Name, err))
			continue
		}

		if settle := s.settleFor(stack); settle > 0 {
			s.logger.Debug("settling", "stack", stack.Name, "duration", settle.String())
			s.sleep(settle)
		}
	}
	return nil
}

// forEachStack runs fn over the active stacks in bring-up order,
// logging failures and continuing.
func (s *Sequencer) forEachStack(ic InvocationContext, fn func(compose.Stack) error, verb string) {
	for _, stack := range s.activeStacks(ic) {
		if err := fn(stack); err != nil {
			s.logger.Error("stack operation failed, continuing",
				"stack", stack.Name, "verb", verb, "error", err)
			ux.Warning(fmt.Sprintf("%s %s failed: %v", verb, stack.Name, err))
		}
	}
}

// reportContainers prints the per-container status summary.
func (s *Sequencer) reportContainers(ctx context.Context) error {
	statuses, err := s.compose.Status(ctx)
	if err != nil {
		return fmt.Errorf("querying container status: %w", err)
	}

	running := 0
	for _, st := range statuses {
		icon := ux.IconError
		if st.Running() {
			icon = ux.IconSuccess
			running++
		}
		ux.ServiceStatus(st.Name, icon, st.Status)
	}
	ux.Summary(running, len(statuses)-running, len(statuses))
	return nil
}

// prepareSuiteAssets syncs vendored repos, splices their compose files
// into the main stack, and seeds write-once secrets.
func (s *Sequencer) prepareSuiteAssets(ctx context.Context, ic InvocationContext) {
	synced := s.repos.SyncAll(ctx)
	s.logger.Info("vendored repos synced", "count", synced)

	if ic.Profiles().NeedsDatabase(s.catalog) {
		composePath := filepath.Join(s.cfg.Suite.Dir, mainComposeFile)
		if _, err := EnsureComposeIncludes(composePath, []string{supabaseIncludePath}); err != nil {
			s.logger.Error("compose include patch failed, continuing", "error", err)
			ux.Warning(fmt.Sprintf("Could not patch compose includes: %v", err))
		}
	}

	settingsPath := filepath.Join(s.cfg.Suite.Dir, searxngSettingsRelPath)
	if written, err := EnsureSearxngSecret(settingsPath); err != nil {
		s.logger.Error("searxng secret write failed, continuing", "error", err)
	} else if written {
		s.logger.Info("searxng secret key generated")
	}
}

// ----- Operations -----

func (s *Sequencer) runInstall(ctx context.Context, ic InvocationContext) error {
	// A failed install must never leave a marker claiming health.
	if err := s.marker.Clear(); err != nil {
		return err
	}

	s.prepareSuiteAssets(ctx, ic)
	if err := s.prepareEnvironment(ic); err != nil {
		return err
	}

	// Install recreates from scratch, volumes included.
	_, _, main := s.buildStacks(ic)
	ux.Info("Removing any previous installation")
	if err := s.compose.Down(ctx, main, true); err != nil {
		s.logger.Warn("teardown of previous installation failed, continuing", "error", err)
	}

	engine, err := s.ensureEngine(ctx, ic)
	if err != nil {
		return err
	}

	if err := s.bringUp(ctx, ic, compose.UpOptions{Build: true, RemoveOrphans: true}); err != nil {
		return err
	}

	if err := s.marker.Write(MarkerState{Operation: OpStart, Engine: engine}); err != nil {
		return err
	}
	ux.Success("Suite installed and running")
	if err := s.reportContainers(ctx); err != nil {
		s.logger.Warn("post-install status query failed", "error", err)
	}
	return nil
}

func (s *Sequencer) runUpdate(ctx context.Context, ic InvocationContext) error {
	confirmed, err := s.prompter.Confirm(
		"Update the suite?",
		"Running containers will be recreated. Volumes are preserved.",
	)
	if err != nil {
		return err
	}
	if !confirmed {
		return ErrConfirmationDeclined
	}

	if err := s.marker.Clear(); err != nil {
		return err
	}

	s.prepareSuiteAssets(ctx, ic)
	if err := s.prepareEnvironment(ic); err != nil {
		return err
	}

	_, _, main := s.buildStacks(ic)
	ux.Info("Pulling updated images")
	if err := s.compose.Pull(ctx, main); err != nil {
		s.logger.Error("image pull failed, continuing with cached images", "error", err)
		ux.Warning(fmt.Sprintf("Image pull failed, using cached images: %v", err))
	}

	// Volumes survive an update; only containers are recreated.
	if err := s.compose.Down(ctx, main, false); err != nil {
		s.logger.Warn("teardown failed, continuing", "error", err)
	}

	engine, err := s.ensureEngine(ctx, ic)
	if err != nil {
		return err
	}

	if err := s.bringUp(ctx, ic, compose.UpOptions{Build: true, RemoveOrphans: true}); err != nil {
		return err
	}

	if err := s.marker.Write(MarkerState{Operation: OpStart, Engine: engine}); err != nil {
		return err
	}
	ux.Success("Suite updated and running")
	if err := s.reportContainers(ctx); err != nil {
		s.logger.Warn("post-update status query failed", "error", err)
	}
	return nil
}

func (s *Sequencer) runStart(ctx context.Context, ic InvocationContext) error {
	if err := s.prepareEnvironment(ic); err != nil {
		return err
	}

	engine, err := s.ensureEngine(ctx, ic)
	if err != nil {
		return err
	}

	if err := s.bringUp(ctx, ic, compose.UpOptions{RemoveOrphans: true}); err != nil {
		return err
	}

	if err := s.marker.Write(MarkerState{Operation: OpStart, Engine: engine}); err != nil {
		return err
	}
	ux.Success("Suite running")
	if err := s.reportContainers(ctx); err != nil {
		s.logger.Warn("post-start status query failed", "error", err)
	}
	return nil
}

func (s *Sequencer) runStop(ctx context.Context, ic InvocationContext, prior MarkerState, hasPrior bool) error {
	s.forEachStack(ic, func(st compose.Stack) error {
		return s.compose.Stop(ctx, st)
	}, "stopping")

	// Which host engine to take down depends on the stop flavor.
	var engine Token
	switch ic.Operation() {
	case OpStopOllama:
		engine = TokenOllama
	case OpStopLlama:
		engine = TokenLlamaCpp
	default:
		if hasPrior && prior.Engine != "" {
			engine = prior.Engine
		} else if e, ok := s.hostEngine(ic); ok {
			engine = e
		}
	}
	if engine != "" {
		if err := s.resolver.Stop(ctx, engine); err != nil {
			s.logger.Error("host engine stop failed, continuing", "engine", engine, "error", err)
			ux.Warning(fmt.Sprintf("Could not stop engine %q: %v", engine, err))
		}
	}

	if err := s.marker.Write(MarkerState{Operation: ic.Operation()}); err != nil {
		return err
	}
	ux.Success("Suite stopped")
	return nil
}

func (s *Sequencer) runPause(ctx context.Context, ic InvocationContext) error {
	s.forEachStack(ic, func(st compose.Stack) error {
		return s.compose.Pause(ctx, st)
	}, "pausing")

	if err := s.marker.Write(MarkerState{Operation: OpPause}); err != nil {
		return err
	}
	ux.Success("Suite paused")
	return nil
}

func (s *Sequencer) runUnpause(ctx context.Context, ic InvocationContext) error {
	s.forEachStack(ic, func(st compose.Stack) error {
		return s.compose.Unpause(ctx, st)
	}, "unpausing")

	engine, _ := s.hostEngine(ic)
	if err := s.marker.Write(MarkerState{Operation: OpStart, Engine: engine}); err != nil {
		return err
	}
	ux.Success("Suite resumed")
	return nil
}

func (s *Sequencer) runBackup(ctx context.Context) error {
	// Every known volume, not just the active profile's: a backup that
	// silently skips data the user happened not to select is worse
	// than none.
	volumes := s.catalog.Volumes()
	archived, err := s.backup.BackupVolumes(ctx, volumes)
	if err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Backed up %d of %d volumes", archived, len(volumes)))
	return nil
}

func (s *Sequencer) runRestore(ctx context.Context) error {
	confirmed, err := s.prompter.Confirm(
		"Restore volumes from backup?",
		"Live volume data will be overwritten with the newest archives.",
	)
	if err != nil {
		return err
	}
	if !confirmed {
		return ErrConfirmationDeclined
	}

	volumes := s.catalog.Volumes()
	restored, err := s.backup.RestoreVolumes(ctx, volumes)
	if err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Restored %d of %d volumes", restored, len(volumes)))
	return nil
}

func (s *Sequencer) runStatus(ctx context.Context) error {
	ux.Title("Suite status")
	if err := s.reportContainers(ctx); err != nil {
		return err
	}

	if state, ok := s.marker.Read(); ok {
		ux.Info(fmt.Sprintf("Recorded state: %s", state))
	} else {
		ux.Info("Recorded state: none (never started or freshly installed)")
	}

	for _, line := range s.backup.describeArchives() {
		ux.Muted(line)
	}
	return nil
}

func (s *Sequencer) runLogs(ctx context.Context, ic InvocationContext) error {
	_, _, main := s.buildStacks(ic)
	return s.compose.Logs(ctx, main, "", true)
}
