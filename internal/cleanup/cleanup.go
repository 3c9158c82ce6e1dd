// Package cleanup removes stale download artifacts left behind by
// crashed or interrupted jobs
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// Artifacts are deleted right after delivery; anything older than
	// this in the staging directory was orphaned by a crash or restart.
	defaultRetention = 24 * time.Hour

	sweepInterval = 6 * time.Hour
)

// Service sweeps the artifact staging directory.
type Service struct {
	dir       string
	retention time.Duration
	logger    *slog.Logger
}

// NewService creates a sweeper for the given staging directory.
func NewService(dir string) *Service {
	return &Service{
		dir:       dir,
		retention: defaultRetention,
		logger:    slog.Default(),
	}
}

// Run sweeps immediately, then periodically until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) {
	if err := s.Sweep(); err != nil {
		s.logger.Warn("Artifact sweep failed", "error", err)
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Artifact sweeper shutting down")
			return
		case <-ticker.C:
			if err := s.Sweep(); err != nil {
				s.logger.Warn("Artifact sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes regular files in the staging directory whose modification
// time is older than the retention window. Subdirectories are left alone.
func (s *Service) Sweep() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read staging directory: %w", err)
	}

	cutoff := time.Now().Add(-s.retention)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("Failed to stat artifact", "file", entry.Name(), "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Failed to remove stale artifact", "file", path, "error", err)
			continue
		}
		removed++
		s.logger.Info("Removed stale artifact", "file", path, "age", time.Since(info.ModTime()).Round(time.Minute))
	}

	if removed > 0 {
		s.logger.Info("Artifact sweep completed", "removed", removed)
	}
	return nil
}
