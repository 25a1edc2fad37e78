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

	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/process"
	"github.com/AleutianAI/AleutianSuite/pkg/logging"
)

// RepoSpec describes one vendored upstream repository.
//
// SparsePaths limits the checkout to the listed directories, so a
// multi-gigabyte monorepo contributes only its compose files.
type RepoSpec struct {
	Name        string
	URL         string
	Dir         string
	SparsePaths []string
}

// defaultRepos are the upstream repos install and update keep in sync.
var defaultRepos = []RepoSpec{
	{
		Name:        "supabase",
		URL:         "https://github.com/supabase/supabase.git",
		Dir:         "supabase",
		SparsePaths: []string{"docker"},
	},
	{
		Name: "openapi-servers",
		URL:  "https://github.com/open-webui/openapi-servers.git",
		Dir:  "openapi-servers",
	},
}

// RepoSyncer clones and updates vendored upstream repositories.
//
// # Description
//
//	Fresh clones are shallow and blob-filtered; repos with sparse
//	paths get a cone-mode sparse checkout restricted to those paths.
//	Existing clones are fast-forwarded. One repo failing is logged and
//	the others still sync.
type RepoSyncer struct {
	baseDir string
	proc    process.Manager
	logger  *logging.Logger
}

// NewRepoSyncer roots the syncer at the suite directory.
func NewRepoSyncer(baseDir string, proc process.Manager, logger *logging.Logger) *RepoSyncer {
	return &RepoSyncer{baseDir: baseDir, proc: proc, logger: logger}
}

// Sync clones or updates one repository.
func (r *RepoSyncer) Sync(ctx context.Context, spec RepoSpec) error {
	target := filepath.Join(r.baseDir, spec.Dir)

	if _, err := os.Stat(filepath.Join(target, ".git")); err == nil {
		r.logger.Info("updating vendored repo", "repo", spec.Name)
		if _, err := r.proc.Run(ctx, "git", "-C", target, "pull", "--ff-only"); err != nil {
			return fmt.Errorf("updating %s: %w", spec.Name, err)
		}
		return nil
	}

	r.logger.Info("cloning vendored repo", "repo", spec.Name, "url", spec.URL)

	args := []string{"clone", "--depth", "1", "--filter=blob:none"}
	if len(spec.SparsePaths) > 0 {
		args = append(args, "--sparse")
	}
	args = append(args, spec.URL, target)
	if _, err := r.proc.Run(ctx, "git", args...); err != nil {
		return fmt.Errorf("cloning %s: %w", spec.Name, err)
	}

	if len(spec.SparsePaths) > 0 {
		sparse := append([]string{"-C", target, "sparse-checkout", "set", "--cone"}, spec.SparsePaths...)
		if _, err := r.proc.Run(ctx, "git", sparse...); err != nil {
			return fmt.Errorf("configuring sparse checkout for %s: %w", spec.Name, err)
		}
	}
	return nil
}

// SyncAll syncs every default repo, logging failures and moving on.
//
// # Outputs
//
//   - int: Number of repos successfully synced
func (r *RepoSyncer) SyncAll(ctx context.Context) int {
	synced := 0
	for _, spec := range defaultRepos {
		if err := r.Sync(ctx, spec); err != nil {
			r.logger.Error("repo sync failed, continuing", "repo", spec.Name, "error", err)
			continue
		}
		synced++
	}
	return synced
}
