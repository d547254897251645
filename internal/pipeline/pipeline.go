// Package pipeline runs processing over stored log files: load, summarize,
// merge with the latest snapshot, persist, render and publish.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/config"
	"github.com/sanspareilsmyn/sweeplens/internal/ingest"
	"github.com/sanspareilsmyn/sweeplens/internal/stats"
	"github.com/sanspareilsmyn/sweeplens/internal/store"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
)

const (
	kindIngest = "ingest"
	kindQuery  = "query"
)

// Renderer produces chart artifacts for a run.
type Renderer interface {
	Render(ctx context.Context, sn string, batches []telemetry.Batch, durations []float64) ([]string, error)
}

// Run is the outcome of one processing run.
type Run struct {
	ID       string
	Snapshot stats.Snapshot
	Files    []FileResult
	Charts   []string
	Merged   bool // folded into an earlier snapshot
}

// Skipped lists the files that did not contribute.
func (r *Run) Skipped() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if !f.OK() {
			out = append(out, f)
		}
	}
	return out
}

// Processor wires the loader, calculator, merger, store, renderer and
// publisher together. It holds no per-run state and is safe for concurrent
// use by different SNs.
type Processor struct {
	layout    *ingest.Layout
	loader    *Loader
	calc      *stats.Calculator
	merger    *stats.Merger
	store     store.Gateway
	renderer  Renderer
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Processor.
func New(cfg *config.Config, layout *ingest.Layout, gw store.Gateway, renderer Renderer, publisher Publisher, logger *zap.Logger) *Processor {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	p := &Processor{
		layout:    layout,
		loader:    NewLoader(layout.Fs, cfg.Processing.Workers, logger.Named("loader")),
		calc:      stats.NewCalculator(cfg.Sampling.Period, logger.Named("calculator")),
		merger:    stats.NewMerger(cfg.Sampling.Period, logger.Named("merger")),
		store:     gw,
		renderer:  renderer,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.Named("pipeline"),
	}

	initLogger.Info("Pipeline created",
		zap.Int("workers", cfg.Processing.Workers),
		zap.Float64("sample_period_s", cfg.Sampling.Period),
	)
	return p
}

// Ingest processes newly stored files of sn. The fresh result becomes the
// first snapshot, or is merged into the latest one, and is saved under a new
// timestamp. Earlier snapshots are left in place.
func (p *Processor) Ingest(ctx context.Context, sn string, paths []string) (run *Run, err error) {
	timer := prometheus.NewTimer(runDuration.WithLabelValues(kindIngest))
	defer timer.ObserveDuration()
	defer func() { countRun(kindIngest, err) }()
	if err := telemetry.ValidSN(sn); err != nil {
		return nil, err
	}

	run = &Run{ID: uuid.NewString()}
	logger := p.logger.With(zap.String("sn", sn), zap.String("run_id", run.ID))
	logger.Info("Ingest started", zap.Int("files", len(paths)))

	run.Files, err = p.loader.Load(ctx, paths, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	recordFiles(sn, run.Files)
	batches, fuel := usable(run.Files)
	if len(batches) == 0 {
		logger.Warn("No usable files in upload")
		return nil, fmt.Errorf("%w: %s", ErrNoUsableFiles, sn)
	}

	ts := p.now().UTC()
	res := p.calc.Summarize(batches...)
	snap := stats.NewSnapshot(sn, ts, res, len(batches), fuel)

	past, err := p.store.LoadLatest(ctx, sn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadSnapshot, err)
	}
	if past != nil {
		snap = p.merger.MergeSnapshots(*past, snap)
		run.Merged = true
		snapshotMerges.WithLabelValues(sn).Inc()
		logger.Debug("Merged into previous snapshot", zap.Time("previous", past.CreatedAt))
	}

	if err := p.store.Save(ctx, sn, ts, snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSaveSnapshot, err)
	}
	run.Snapshot = snap
	recordSnapshot(logger, snap)

	run.Charts = p.render(ctx, logger, sn, batches, res.EventDurations)

	ev := SnapshotEvent{RunID: run.ID, SN: sn, SavedAt: ts, Snapshot: snap}
	if err := p.publisher.Publish(ctx, ev); err != nil {
		logger.Warn("Snapshot saved but not published", zap.Error(err))
	}

	logger.Info("Ingest finished",
		zap.Int("used_files", len(batches)),
		zap.Int("skipped_files", len(run.Skipped())),
		zap.Bool("merged", run.Merged),
	)
	return run, nil
}

// Query computes statistics over the stored files of sn recorded between
// start and end. end covers its whole day. Nothing is persisted. With no
// matching data the snapshot has zero files and no summaries.
func (p *Processor) Query(ctx context.Context, sn string, start, end time.Time) (run *Run, err error) {
	timer := prometheus.NewTimer(runDuration.WithLabelValues(kindQuery))
	defer timer.ObserveDuration()
	defer func() { countRun(kindQuery, err) }()

	run = &Run{ID: uuid.NewString()}
	logger := p.logger.With(zap.String("sn", sn), zap.String("run_id", run.ID))

	paths, err := p.layout.Files(sn, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFiles, err)
	}
	if !end.IsZero() {
		end = end.Truncate(24*time.Hour).AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	run.Files, err = p.loader.Load(ctx, paths, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	batches, fuel := usable(run.Files)

	res := p.calc.Summarize(batches...)
	run.Snapshot = stats.NewSnapshot(sn, p.now().UTC(), res, len(batches), fuel)
	if len(batches) > 0 {
		run.Charts = p.render(ctx, logger, sn, batches, res.EventDurations)
	}

	logger.Info("Query finished",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("matched_files", len(paths)),
		zap.Int("used_files", len(batches)),
	)
	return run, nil
}

// render failures do not fail the run; the snapshot is already complete.
func (p *Processor) render(ctx context.Context, logger *zap.Logger, sn string, batches []telemetry.Batch, durations []float64) []string {
	charts, err := p.renderer.Render(ctx, sn, batches, durations)
	if err != nil {
		logger.Warn("Rendering charts failed", zap.Error(err))
	}
	return charts
}

func countRun(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	runsTotal.WithLabelValues(kind, result).Inc()
}
