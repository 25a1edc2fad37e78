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
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianSuite/cmd/suite/config"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/process"
)

// newTestBackupManager wires a manager with a fixed clock.
func newTestBackupManager(t *testing.T, dir string, keep int, proc *process.MockManager) *BackupManager {
	t.Helper()
	b := NewBackupManager(config.BackupConfig{Dir: dir, Keep: keep}, proc, quietLogger())
	b.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return b
}

// dockerRunArgs extracts the args of recorded "docker run" calls.
func dockerRunArgs(mock *process.MockManager) [][]string {
	var runs [][]string
	for _, c := range mock.GetCalls() {
		if c.Name == "docker" && len(c.Args) > 0 && c.Args[0] == "run" {
			runs = append(runs, c.Args)
		}
	}
	return runs
}

func TestBackupManager_BackupVolumes_ArchivesExisting(t *testing.T) {
	dir := t.TempDir()
	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		},
	}

	b := newTestBackupManager(t, dir, 5, mock)
	archived, err := b.BackupVolumes(context.Background(), []string{"n8n-data"})
	if err != nil {
		t.Fatalf("BackupVolumes() unexpected error: %v", err)
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}

	runs := dockerRunArgs(mock)
	if len(runs) != 1 {
		t.Fatalf("expected 1 docker run, got %d", len(runs))
	}
	joined := strings.Join(runs[0], " ")
	for _, fragment := range []string{
		"--rm",
		"-v n8n-data:/source:ro",
		"-v " + dir + ":/backup",
		"alpine tar czf /backup/n8n-data_20260824-120000.tar.gz -C /source .",
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("docker run args missing %q:\n%s", fragment, joined)
		}
	}
}

func TestBackupManager_BackupVolumes_SkipsMissingVolume(t *testing.T) {
	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if len(args) > 0 && args[0] == "volume" {
				return nil, errors.New("no such volume")
			}
			t.Fatalf("no archive should run for a missing volume, got args %v", args)
			return nil, nil
		},
	}

	b := newTestBackupManager(t, t.TempDir(), 5, mock)
	archived, err := b.BackupVolumes(context.Background(), []string{"ghost-data"})
	if err != nil {
		t.Fatalf("BackupVolumes() unexpected error: %v", err)
	}
	if archived != 0 {
		t.Errorf("archived = %d, want 0", archived)
	}
}

func TestBackupManager_BackupVolumes_FailureContinues(t *testing.T) {
	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if len(args) > 0 && args[0] == "run" && strings.Contains(strings.Join(args, " "), "broken-data") {
				return nil, errors.New("tar failed")
			}
			return nil, nil
		},
	}

	b := newTestBackupManager(t, t.TempDir(), 5, mock)
	archived, err := b.BackupVolumes(context.Background(), []string{"broken-data", "good-data"})
	if err != nil {
		t.Fatalf("BackupVolumes() unexpected error: %v", err)
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1 (failure on one volume must not stop the rest)", archived)
	}
}

func TestBackupManager_Rotation(t *testing.T) {
	dir := t.TempDir()
	// Four pre-existing archives plus today's new one; keep 2.
	for _, stamp := range []string{"20260101-000000", "20260201-000000", "20260301-000000", "20260401-000000"} {
		name := filepath.Join(dir, "n8n-data_"+stamp+".tar.gz")
		if err := os.WriteFile(name, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			// Simulate the archive the container would have written.
			if len(args) > 0 && args[0] == "run" {
				f := filepath.Join(dir, "n8n-data_20260824-120000.tar.gz")
				if err := os.WriteFile(f, []byte("new"), 0644); err != nil {
					t.Fatal(err)
				}
			}
			return nil, nil
		},
	}

	b := newTestBackupManager(t, dir, 2, mock)
	if _, err := b.BackupVolumes(context.Background(), []string{"n8n-data"}); err != nil {
		t.Fatal(err)
	}

	remaining, _ := filepath.Glob(filepath.Join(dir, "*.tar.gz"))
	if len(remaining) != 2 {
		t.Fatalf("rotation left %d archives, want 2: %v", len(remaining), remaining)
	}
	for _, want := range []string{"n8n-data_20260824-120000.tar.gz", "n8n-data_20260401-000000.tar.gz"} {
		found := false
		for _, r := range remaining {
			if filepath.Base(r) == want {
				found = true
			}
		}
		if !found {
			t.Errorf("newest archives should survive rotation, missing %s in %v", want, remaining)
		}
	}
}

func TestBackupManager_RotationDisabledWithKeepZero(t *testing.T) {
	dir := t.TempDir()
	for _, stamp := range []string{"20260101-000000", "20260201-000000"} {
		if err := os.WriteFile(filepath.Join(dir, "v_"+stamp+".tar.gz"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, nil },
	}

	b := newTestBackupManager(t, dir, 0, mock)
	if _, err := b.BackupVolumes(context.Background(), []string{"v"}); err != nil {
		t.Fatal(err)
	}

	remaining, _ := filepath.Glob(filepath.Join(dir, "*.tar.gz"))
	if len(remaining) != 2 {
		t.Errorf("keep=0 must not prune, got %d archives", len(remaining))
	}
}

func TestBackupManager_RestoreVolumes_UsesNewestArchive(t *testing.T) {
	dir := t.TempDir()
	for _, stamp := range []string{"20260101-000000", "20260801-000000"} {
		if err := os.WriteFile(filepath.Join(dir, "n8n-data_"+stamp+".tar.gz"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, nil },
	}

	b := newTestBackupManager(t, dir, 5, mock)
	restored, err := b.RestoreVolumes(context.Background(), []string{"n8n-data"})
	if err != nil {
		t.Fatalf("RestoreVolumes() unexpected error: %v", err)
	}
	if restored != 1 {
		t.Errorf("restored = %d, want 1", restored)
	}

	runs := dockerRunArgs(mock)
	if len(runs) != 1 {
		t.Fatalf("expected 1 docker run, got %d", len(runs))
	}
	joined := strings.Join(runs[0], " ")
	if !strings.Contains(joined, "n8n-data_20260801-000000.tar.gz") {
		t.Errorf("restore should use the newest archive:\n%s", joined)
	}
	if !strings.Contains(joined, "-v n8n-data:/target") || !strings.Contains(joined, ":/backup:ro") {
		t.Errorf("restore mounts wrong:\n%s", joined)
	}
}

func TestBackupManager_RestoreVolumes_NoArchivesAtAll(t *testing.T) {
	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, nil },
	}

	b := newTestBackupManager(t, t.TempDir(), 5, mock)
	_, err := b.RestoreVolumes(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrPrerequisiteMissing) {
		t.Errorf("RestoreVolumes() with no archives = %v, want ErrPrerequisiteMissing", err)
	}
}

func TestBackupManager_RestoreVolumes_PartialArchivesSkipMissing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "present_20260101-000000.tar.gz"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	mock := &process.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, nil },
	}

	b := newTestBackupManager(t, dir, 5, mock)
	restored, err := b.RestoreVolumes(context.Background(), []string{"present", "absent"})
	if err != nil {
		t.Fatalf("RestoreVolumes() unexpected error: %v", err)
	}
	if restored != 1 {
		t.Errorf("restored = %d, want 1", restored)
	}
}
