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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSuite/cmd/suite/config"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/compose"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/process"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/util"
	"github.com/AleutianAI/AleutianSuite/pkg/logging"
	"github.com/AleutianAI/AleutianSuite/pkg/ux"
)

// --- Global Command Variables ---
var (
	flagProfiles    []string
	flagEnvironment string
	flagOperation   string
	flagLogLevel    string
	flagAssumeYes   bool
	flagPersonality string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "suite",
		Short: "A cli to manage the Aleutian AI suite on your machine",
		Long: `Suite deploys and manages a multi-container private AI stack:
				chat UI, workflow automation, databases, search, and the
				inference engine behind them, selected by profile tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if flagPersonality != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(flagPersonality))
			} else {
				ux.InitPersonality()
			}
		},
		RunE: runSuite,
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&flagPersonality, "personality", "",
		"Output style: full (default, rich), standard, minimal, or machine (scripting)")

	rootCmd.Flags().StringSliceVarP(&flagProfiles, "profile", "p", nil,
		"Profile tokens selecting runtimes and services (repeatable, e.g. -p ollama -p n8n)")
	rootCmd.Flags().StringVarP(&flagEnvironment, "environment", "e", string(EnvPrivate),
		"Deployment environment: private (localhost only) or public (LAN)")
	rootCmd.Flags().StringVarP(&flagOperation, "operation", "o", "",
		fmt.Sprintf("Lifecycle operation %v (default install)", allOperations))
	rootCmd.Flags().StringVarP(&flagLogLevel, "log", "l", "",
		"Override the configured log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&flagAssumeYes, "yes", false,
		"Answer yes to all confirmation prompts")
}

// runSuite resolves flags into an invocation and hands it to the
// sequencer.
func runSuite(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := &config.Global

	level := logging.ParseLevel(cfg.Logging.Level)
	if flagLogLevel != "" {
		level = logging.ParseLevel(flagLogLevel)
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "suite",
		Quiet:   true,
	})
	defer logger.Close()

	op := OpInstall
	explicit := false
	if flagOperation != "" {
		parsed, err := ParseOperation(flagOperation)
		if err != nil {
			return err
		}
		op = parsed
		explicit = true
	}

	env, err := ParseEnvironment(flagEnvironment)
	if err != nil {
		return err
	}

	catalog := DefaultCatalog()
	tokens := make([]Token, len(flagProfiles))
	for i, p := range flagProfiles {
		tokens[i] = Token(p)
	}
	profiles, err := Normalize(catalog, tokens, explicit)
	if err != nil {
		return err
	}

	ic := NewInvocationContext(op, explicit, env, profiles, flagAssumeYes)
	runLogger := logger.With("invocation", ic.ID())

	proc := process.NewDefaultManager()
	executor := compose.NewDefaultExecutor(compose.Config{ProjectName: cfg.Suite.ProjectName}, proc)
	prompter := &util.DefaultPrompter{AssumeYes: flagAssumeYes}
	resolver := NewRuntimeResolver(cfg.Engine, cfg.Settle, proc, prompter, runLogger)
	marker := NewStatusMarker(cfg.Suite.Dir)
	backup := NewBackupManager(cfg.Backup, proc, runLogger)
	repos := NewRepoSyncer(cfg.Suite.Dir, proc, runLogger)

	seq := NewSequencer(cfg, catalog, executor, resolver, marker, backup, repos, prompter, runLogger)
	return seq.Run(cmd.Context(), ic)
}
