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
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/process"
)

func TestRepoSyncer_Sync_FreshSparseClone(t *testing.T) {
	base := t.TempDir()
	var calls [][]string
	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, append([]string{name}, args...))
			return nil, nil
		},
	}

	syncer := NewRepoSyncer(base, mock, quietLogger())
	spec := RepoSpec{
		Name:        "supabase",
		URL:         "https://github.com/supabase/supabase.git",
		Dir:         "supabase",
		SparsePaths: []string{"docker"},
	}
	if err := syncer.Sync(context.Background(), spec); err != nil {
		t.Fatalf("Sync() unexpected error: %v", err)
	}

	target := filepath.Join(base, "supabase")
	want := [][]string{
		{"git", "clone", "--depth", "1", "--filter=blob:none", "--sparse", spec.URL, target},
		{"git", "-C", target, "sparse-checkout", "set", "--cone", "docker"},
	}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("git calls =\n  %v\nwant\n  %v", calls, want)
	}
}

func TestRepoSyncer_Sync_FullCloneWithoutSparsePaths(t *testing.T) {
	base := t.TempDir()
	var calls [][]string
	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, append([]string{name}, args...))
			return nil, nil
		},
	}

	syncer := NewRepoSyncer(base, mock, quietLogger())
	if err := syncer.Sync(context.Background(), RepoSpec{
		Name: "openapi-servers",
		URL:  "https://github.com/open-webui/openapi-servers.git",
		Dir:  "openapi-servers",
	}); err != nil {
		t.Fatalf("Sync() unexpected error: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected a single clone call, got %v", calls)
	}
	for _, arg := range calls[0] {
		if arg == "--sparse" {
			t.Error("clone without sparse paths must not pass --sparse")
		}
	}
}

func TestRepoSyncer_Sync_ExistingRepoPulls(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "supabase")
	if err := os.MkdirAll(filepath.Join(target, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	var calls [][]string
	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, append([]string{name}, args...))
			return nil, nil
		},
	}

	syncer := NewRepoSyncer(base, mock, quietLogger())
	if err := syncer.Sync(context.Background(), RepoSpec{Name: "supabase", Dir: "supabase"}); err != nil {
		t.Fatalf("Sync() unexpected error: %v", err)
	}

	want := [][]string{{"git", "-C", target, "pull", "--ff-only"}}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("git calls = %v, want %v", calls, want)
	}
}

func TestRepoSyncer_SyncAll_FailureContinues(t *testing.T) {
	base := t.TempDir()
	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			for _, a := range args {
				if a == "https://github.com/supabase/supabase.git" {
					return nil, errors.New("network down")
				}
			}
			return nil, nil
		},
	}

	syncer := NewRepoSyncer(base, mock, quietLogger())
	synced := syncer.SyncAll(context.Background())
	if synced != len(defaultRepos)-1 {
		t.Errorf("SyncAll() = %d, want %d (one failure should not stop the rest)", synced, len(defaultRepos)-1)
	}
}
