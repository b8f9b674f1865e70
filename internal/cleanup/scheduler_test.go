package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeSweeper struct {
	cutoff time.Time
	swept  int64
}

func (f *fakeSweeper) MarkStaleFailed(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.swept, nil
}

func TestCleanStagingFiles(t *testing.T) {
	dir := t.TempDir()

	oldFile := filepath.Join(dir, "old.wav")
	if err := os.WriteFile(oldFile, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}
	oldTime := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatal(err)
	}

	freshFile := filepath.Join(dir, "fresh.wav")
	if err := os.WriteFile(freshFile, []byte("active"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(dir, nil, 30, 24, zap.NewNop().Sugar())
	s.runOnce()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("stale file should be deleted")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Errorf("fresh file should survive: %v", err)
	}
}

func TestSweepStuckNotebooks(t *testing.T) {
	sweeper := &fakeSweeper{swept: 2}
	s := NewScheduler("", sweeper, 30, 24, zap.NewNop().Sugar())

	before := time.Now().Add(-24 * time.Hour)
	s.runOnce()
	after := time.Now().Add(-24 * time.Hour)

	if sweeper.cutoff.Before(before) || sweeper.cutoff.After(after) {
		t.Errorf("cutoff = %v, want about 24h ago", sweeper.cutoff)
	}
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(t.TempDir(), &fakeSweeper{}, 1, 1, zap.NewNop().Sugar())
	s.Start()
	s.Stop()
}
