package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// StaleSweeper marks notebooks stuck in a non-terminal status as failed.
type StaleSweeper interface {
	MarkStaleFailed(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler periodically reconciles leftovers: staged audio files that were
// never deleted (crash mid-pipeline) and notebook rows stuck in a
// non-terminal state with no process still working on them.
type Scheduler struct {
	stagingDir string
	sweeper    StaleSweeper
	interval   time.Duration
	maxAge     time.Duration
	log        *zap.SugaredLogger
	stopChan   chan struct{}
}

// NewScheduler creates a cleanup scheduler.
func NewScheduler(stagingDir string, sweeper StaleSweeper, intervalMinutes, maxAgeHours int, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		stagingDir: stagingDir,
		sweeper:    sweeper,
		interval:   time.Duration(intervalMinutes) * time.Minute,
		maxAge:     time.Duration(maxAgeHours) * time.Hour,
		log:        log,
		stopChan:   make(chan struct{}),
	}
}

// Start runs one cleanup immediately, then on every tick until Stop.
func (s *Scheduler) Start() {
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.Infow("cleanup scheduler started",
		"interval", s.interval, "max_age", s.maxAge)
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.log.Info("cleanup scheduler stopped")
}

func (s *Scheduler) runOnce() {
	s.cleanStagingFiles()
	s.sweepStuckNotebooks()
}

// cleanStagingFiles removes staged audio older than maxAge. A healthy
// pipeline deletes its own blob; anything old here was orphaned by a crash.
func (s *Scheduler) cleanStagingFiles() {
	if s.stagingDir == "" {
		return
	}

	now := time.Now()
	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		if now.Sub(info.ModTime()) > s.maxAge {
			size := info.Size()
			if err := os.Remove(path); err != nil {
				s.log.Warnw("failed to delete stale staging file", "path", path, "error", err)
			} else {
				deletedCount++
				deletedSize += size
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warnw("staging cleanup walk failed", "error", err)
	}

	if deletedCount > 0 {
		s.log.Infow("staging cleanup complete",
			"deleted", deletedCount, "freed_kb", deletedSize/1024)
	}
}

// sweepStuckNotebooks fails rows abandoned in a non-terminal state, so
// pollers eventually see a terminal status even after a crash.
func (s *Scheduler) sweepStuckNotebooks() {
	if s.sweeper == nil {
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	swept, err := s.sweeper.MarkStaleFailed(context.Background(), cutoff)
	if err != nil {
		s.log.Errorw("stuck-notebook sweep failed", "error", err)
		return
	}
	if swept > 0 {
		s.log.Warnw("swept stuck notebooks to failed", "count", swept)
	}
}

// EnsureDirExists creates the staging directory if needed.
func EnsureDirExists(dir string) error {
	return os.MkdirAll(dir, 0755)
}
