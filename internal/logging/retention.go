package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget selects entries of Dir to prune. Pattern is a filepath.Match
// glob on the entry name; an empty Pattern matches everything. With
// Directories set, whole subdirectories (one per run of unit logs) are pruned
// instead of files.
type RetentionTarget struct {
	Dir         string
	Pattern     string
	Exclude     []string
	Directories bool
}

// CleanupOldLogs deletes target entries last modified more than retentionDays
// ago and returns how many were removed. retentionDays <= 0 keeps everything.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		for _, path := range target.expired(cutoff) {
			if err := target.remove(path); err != nil {
				WarnWithContext(logger, "old log could not be removed", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check log_dir ownership and permissions"),
					String(FieldImpact, "old logs keep using disk space"),
				)
				continue
			}
			if logger != nil {
				logger.Debug("old log removed", String("path", path), String(FieldEventType, "log_pruned"))
			}
			removed++
		}
	}
	return removed
}

func (t RetentionTarget) expired(cutoff time.Time) []string {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	skip := make(map[string]bool, len(t.Exclude))
	for _, path := range t.Exclude {
		skip[filepath.Clean(path)] = true
	}
	pattern := strings.TrimSpace(t.Pattern)

	var out []string
	for _, entry := range entries {
		if entry.IsDir() != t.Directories {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := filepath.Join(dir, entry.Name())
		if skip[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, path)
	}
	return out
}

func (t RetentionTarget) remove(path string) error {
	if t.Directories {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}
