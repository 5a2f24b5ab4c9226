// Package backup writes periodic snapshot files of a store and prunes old ones.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mmynk/meterbill/internal/snapshot"
	"github.com/mmynk/meterbill/internal/storage"
)

const (
	filePrefix = "snapshot-"
	fileSuffix = ".json"

	// Sortable and free of characters that are awkward in file names.
	timestampLayout = "20060102T150405.000000000Z"

	runTimeout = time.Minute
)

// Scheduler captures snapshots of a store into a directory.
type Scheduler struct {
	store  storage.Store
	dir    string
	retain int
	now    func() time.Time
	cron   *cron.Cron
}

// New creates a scheduler writing into dir and keeping the newest retain files.
func New(store storage.Store, dir string, retain int) *Scheduler {
	return &Scheduler{
		store:  store,
		dir:    dir,
		retain: retain,
		now:    time.Now,
		cron:   cron.New(),
	}
}

// Start runs a backup on every tick of schedule, a standard cron expression
// or descriptor such as "@daily".
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			slog.Warn("Scheduled backup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	slog.Info("Backup scheduler started", "schedule", schedule, "dir", s.dir, "retain", s.retain)
	return nil
}

// Stop stops the schedule and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce writes one snapshot file and prunes old ones. It returns the path
// of the written file.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	snap, err := snapshot.Capture(ctx, s.store)
	if err != nil {
		return "", fmt.Errorf("failed to capture snapshot: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := filePrefix + s.now().UTC().Format(timestampLayout) + fileSuffix
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := snapshot.Encode(tmp, snap); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to finalise backup file: %w", err)
	}

	slog.Info("Backup written", "path", path, "customers", len(snap.Customers), "bills", len(snap.Bills))

	if err := s.prune(); err != nil {
		slog.Warn("Failed to prune old backups", "error", err)
	}
	return path, nil
}

// prune removes all but the newest s.retain snapshot files.
func (s *Scheduler) prune() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), fileSuffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= s.retain {
		return nil
	}

	slices.Sort(names)
	for _, name := range names[:len(names)-s.retain] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return err
		}
		slog.Debug("Backup pruned", "file", name)
	}
	return nil
}
