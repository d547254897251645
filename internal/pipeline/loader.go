package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
)

// FailureReason tags a file that did not contribute to a run.
type FailureReason string

const (
	ReasonNone           FailureReason = ""
	ReasonUnreadable     FailureReason = "unreadable"
	ReasonMalformed      FailureReason = "malformed"
	ReasonNoSweepingData FailureReason = "no_sweeping_data"
	ReasonOutOfRange     FailureReason = "out_of_range"
)

// FileResult is what one worker produced for one file.
type FileResult struct {
	Path         string
	Batch        telemetry.Batch
	FuelConsumed float64
	Reason       FailureReason
	Err          error
}

// OK reports whether the file contributed to the run.
func (r FileResult) OK() bool { return r.Reason == ReasonNone }

// Loader parses log files concurrently. Each worker reduces one file to an
// independent FileResult; nothing is shared between workers.
type Loader struct {
	fs      afero.Fs
	workers int
	logger  *zap.Logger
}

// NewLoader creates a Loader running at least one worker.
func NewLoader(fs afero.Fs, workers int, logger *zap.Logger) *Loader {
	if workers < 1 {
		workers = 1
	}
	return &Loader{fs: fs, workers: workers, logger: logger}
}

// Load parses paths and keeps samples with start <= t <= end (zero bounds are
// open). Results come back in path order. Per-file failures are reported in
// the result; only context cancellation fails the whole load.
func (l *Loader) Load(ctx context.Context, paths []string, start, end time.Time) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = l.loadFile(p, start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if !r.OK() {
			l.logger.Warn("Skipping file",
				zap.String("path", r.Path),
				zap.String("reason", string(r.Reason)),
				zap.Error(r.Err),
			)
		}
	}
	return results, nil
}

func (l *Loader) loadFile(p string, start, end time.Time) FileResult {
	res := FileResult{Path: p}

	f, err := l.fs.Open(p)
	if err != nil {
		res.Reason, res.Err = ReasonUnreadable, err
		return res
	}
	defer f.Close()

	batch, err := telemetry.ParseLog(f, filepath.Base(p))
	if err != nil {
		res.Reason, res.Err = classify(err), err
		return res
	}

	batch = batch.Between(start, end)
	if batch.Len() == 0 {
		res.Reason = ReasonOutOfRange
		return res
	}
	res.Batch = batch
	res.FuelConsumed = batch.FuelDelta()
	return res
}

func classify(err error) FailureReason {
	switch {
	case errors.Is(err, telemetry.ErrReadFailed):
		return ReasonUnreadable
	case errors.Is(err, telemetry.ErrNoSweepingData):
		return ReasonNoSweepingData
	default:
		return ReasonMalformed
	}
}

// usable splits loaded results into the batches that contribute to a run
// and their total fuel.
func usable(results []FileResult) ([]telemetry.Batch, float64) {
	var (
		batches []telemetry.Batch
		fuel    float64
	)
	for _, r := range results {
		if !r.OK() {
			continue
		}
		batches = append(batches, r.Batch)
		fuel += r.FuelConsumed
	}
	return batches, fuel
}
