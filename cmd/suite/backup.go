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
	"sort"
	"time"

	"github.com/AleutianAI/AleutianSuite/cmd/suite/config"
	"github.com/AleutianAI/AleutianSuite/cmd/suite/internal/infra/process"
	"github.com/AleutianAI/AleutianSuite/pkg/logging"
)

// backupTimestampLayout makes archive names sort chronologically.
const backupTimestampLayout = "20060102-150405"

// BackupManager archives and restores named docker volumes.
//
// # Description
//
//	Each volume is archived through a throwaway alpine container that
//	mounts the volume read-only next to the backup directory and tars
//	it, so no host-side tar or docker cp quirks are involved. Archives
//	are named <volume>_<timestamp>.tar.gz; rotation keeps the newest N
//	per volume. A failure on one volume is logged and the rest are
//	still processed.
type BackupManager struct {
	cfg    config.BackupConfig
	proc   process.Manager
	logger *logging.Logger

	// now is replaceable for deterministic archive names in tests.
	now func() time.Time
}

// NewBackupManager builds a manager over the given process runner.
func NewBackupManager(cfg config.BackupConfig, proc process.Manager, logger *logging.Logger) *BackupManager {
	return &BackupManager{
		cfg:    cfg,
		proc:   proc,
		logger: logger,
		now:    time.Now,
	}
}

// volumeExists checks for the volume via docker volume inspect.
func (b *BackupManager) volumeExists(ctx context.Context, volume string) bool {
	_, err := b.proc.Run(ctx, "docker", "volume", "inspect", volume)
	return err == nil
}

// archiveName builds the timestamped archive file name.
func (b *BackupManager) archiveName(volume string) string {
	return fmt.Sprintf("%s_%s.tar.gz", volume, b.now().UTC().Format(backupTimestampLayout))
}

// BackupVolumes archives each existing volume into the backup dir.
//
// # Description
//
//	Missing volumes are skipped with a warning; archive failures are
//	logged and the remaining volumes still run. Rotation prunes old
//	archives per volume after a successful backup.
//
// # Outputs
//
//   - int: Number of volumes successfully archived
//   - error: Non-nil only when the backup directory cannot be created
func (b *BackupManager) BackupVolumes(ctx context.Context, volumes []string) (int, error) {
	if err := os.MkdirAll(b.cfg.Dir, 0755); err != nil {
		return 0, fmt.Errorf("creating backup dir %s: %w", b.cfg.Dir, err)
	}

	archived := 0
	for _, volume := range volumes {
		if !b.volumeExists(ctx, volume) {
			b.logger.Warn("volume does not exist, skipping backup", "volume", volume)
			continue
		}

		archive := b.archiveName(volume)
		b.logger.Info("backing up volume", "volume", volume, "archive", archive)

		_, err := b.proc.Run(ctx, "docker", "run", "--rm",
			"-v", volume+":/source:ro",
			"-v", b.cfg.Dir+":/backup",
			"alpine",
			"tar", "czf", "/backup/"+archive, "-C", "/source", ".")
		if err != nil {
			b.logger.Error("volume backup failed, continuing", "volume", volume, "error", err)
			continue
		}

		archived++
		if err := b.rotate(volume); err != nil {
			b.logger.Warn("archive rotation failed", "volume", volume, "error", err)
		}
	}
	return archived, nil
}

// RestoreVolumes restores each volume from its newest archive.
//
// The volume content is replaced wholesale: the restore container
// clears the target before unpacking so deleted files do not linger.
//
// # Outputs
//
//   - int: Number of volumes successfully restored
//   - error: Non-nil when no archive exists for any requested volume
func (b *BackupManager) RestoreVolumes(ctx context.Context, volumes []string) (int, error) {
	restored := 0
	missing := 0
	for _, volume := range volumes {
		archive, ok := b.latestArchive(volume)
		if !ok {
			b.logger.Warn("no archive found for volume, skipping restore", "volume", volume)
			missing++
			continue
		}

		b.logger.Info("restoring volume", "volume", volume, "archive", archive)
		_, err := b.proc.Run(ctx, "docker", "run", "--rm",
			"-v", volume+":/target",
			"-v", b.cfg.Dir+":/backup:ro",
			"alpine",
			"sh", "-c", fmt.Sprintf("rm -rf /target/* /target/..?* /target/.[!.]* && tar xzf /backup/%s -C /target", archive))
		if err != nil {
			b.logger.Error("volume restore failed, continuing", "volume", volume, "error", err)
			continue
		}
		restored++
	}

	if restored == 0 && missing == len(volumes) && len(volumes) > 0 {
		return 0, fmt.Errorf("%w: no archives found in %s", ErrPrerequisiteMissing, b.cfg.Dir)
	}
	return restored, nil
}

// archivesFor lists a volume's archives, newest first.
func (b *BackupManager) archivesFor(volume string) []string {
	pattern := filepath.Join(b.cfg.Dir, volume+"_*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	// Timestamped names sort lexicographically; reverse for newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names
}

// latestArchive returns the newest archive file name for a volume.
func (b *BackupManager) latestArchive(volume string) (string, bool) {
	archives := b.archivesFor(volume)
	if len(archives) == 0 {
		return "", false
	}
	return archives[0], true
}

// rotate prunes old archives beyond the configured keep count.
//
// Keep of zero disables rotation entirely.
func (b *BackupManager) rotate(volume string) error {
	if b.cfg.Keep <= 0 {
		return nil
	}

	archives := b.archivesFor(volume)
	if len(archives) <= b.cfg.Keep {
		return nil
	}

	for _, name := range archives[b.cfg.Keep:] {
		path := filepath.Join(b.cfg.Dir, name)
		b.logger.Debug("pruning old archive", "archive", name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// describeArchives summarizes the backup directory for status output.
func (b *BackupManager) describeArchives() []string {
	matches, err := filepath.Glob(filepath.Join(b.cfg.Dir, "*.tar.gz"))
	if err != nil || len(matches) == 0 {
		return nil
	}

	var lines []string
	sort.Strings(matches)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%d bytes)", filepath.Base(m), info.Size()))
	}
	return lines
}
