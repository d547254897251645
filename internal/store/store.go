// Package store persists equipment result snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/stats"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
)

const (
	resultsDir   = "results"
	valuesFile   = "values.json"
	reportFile   = "statistics.txt"
	TimestampFmt = "20060102T150405.000000000"
)

// Gateway stores and retrieves the latest snapshot per equipment identifier.
type Gateway interface {
	// LoadLatest returns nil and no error when no snapshot exists for sn.
	LoadLatest(ctx context.Context, sn string) (*stats.Snapshot, error)
	Save(ctx context.Context, sn string, ts time.Time, snap stats.Snapshot) error
	ListSNs(ctx context.Context) ([]string, error)
}

// FS keeps snapshots under <root>/results/<sn>/<timestamp>/. Timestamp
// directory names sort lexicographically in creation order.
type FS struct {
	fs     afero.Fs
	root   string
	logger *zap.Logger
}

var _ Gateway = (*FS)(nil)

// NewFS creates a snapshot store under root on fs.
func NewFS(fs afero.Fs, root string, logger *zap.Logger) *FS {
	return &FS{fs: fs, root: root, logger: logger}
}

// Init creates the results directory.
func (s *FS) Init() error {
	if err := s.fs.MkdirAll(filepath.Join(s.root, resultsDir), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateDir, err)
	}
	return nil
}

// LoadLatest returns the most recent snapshot of sn, or nil when none exists.
func (s *FS) LoadLatest(ctx context.Context, sn string) (*stats.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := telemetry.ValidSN(sn); err != nil {
		return nil, err
	}
	dirs, err := s.snapshotDirs(sn)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, nil
	}
	latest := dirs[len(dirs)-1]

	data, err := afero.ReadFile(s.fs, filepath.Join(s.snDir(sn), latest, valuesFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrReadSnapshot, sn, latest, err)
	}
	var snap stats.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrDecodeSnapshot, sn, latest, err)
	}
	s.logger.Debug("Loaded latest snapshot", zap.String("sn", sn), zap.String("snapshot", latest))
	return &snap, nil
}

// Save writes snap as a new snapshot. An existing snapshot directory is never
// overwritten.
func (s *FS) Save(ctx context.Context, sn string, ts time.Time, snap stats.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := telemetry.ValidSN(sn); err != nil {
		return err
	}
	name := ts.UTC().Format(TimestampFmt)
	dir := filepath.Join(s.snDir(sn), name)
	if exists, err := afero.DirExists(s.fs, dir); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	} else if exists {
		return fmt.Errorf("%w: %s/%s", ErrSnapshotExists, sn, name)
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateDir, err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(dir, valuesFile), data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(dir, reportFile), []byte(Report(snap)), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}

	s.logger.Info("Snapshot saved",
		zap.String("sn", sn),
		zap.String("snapshot", name),
		zap.Int("file_count", snap.FileCount),
	)
	return nil
}

// ListSNs returns every identifier with at least one snapshot directory.
func (s *FS) ListSNs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, filepath.Join(s.root, resultsDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadSnapshot, err)
	}
	var sns []string
	for _, fi := range infos {
		if fi.IsDir() {
			sns = append(sns, fi.Name())
		}
	}
	return sns, nil
}

func (s *FS) snDir(sn string) string {
	return filepath.Join(s.root, resultsDir, sn)
}

func (s *FS) snapshotDirs(sn string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.snDir(sn))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadSnapshot, sn, err)
	}
	var dirs []string
	for _, fi := range infos {
		if fi.IsDir() {
			dirs = append(dirs, fi.Name())
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}
