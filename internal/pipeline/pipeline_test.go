package pipeline

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/config"
	"github.com/sanspareilsmyn/sweeplens/internal/ingest"
	"github.com/sanspareilsmyn/sweeplens/internal/render"
	"github.com/sanspareilsmyn/sweeplens/internal/store"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry/telemetrytest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []SnapshotEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev SnapshotEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type fixture struct {
	layout *ingest.Layout
	store  *store.FS
	pub    *recordingPublisher
	proc   *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger := zap.NewNop()

	layout := ingest.NewLayout(fs, "/srv", logger)
	require.NoError(t, layout.Setup())
	gw := store.NewFS(fs, "/srv", logger)
	pub := &recordingPublisher{}
	cfg := &config.Config{
		Sampling:   config.SamplingConfig{Period: 0.1},
		Processing: config.ProcessingConfig{Workers: 2},
	}

	proc := New(cfg, layout, gw, render.New(fs, layout.GraphDir, logger), pub, logger)
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	proc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{layout: layout, store: gw, pub: pub, proc: proc}
}

func (f *fixture) upload(t *testing.T, name string, rows []telemetrytest.Row) string {
	t.Helper()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stored, rejected := f.layout.StoreUpload(name, []byte(telemetrytest.LogFile(start, rows)))
	require.Empty(t, rejected)
	require.Len(t, stored, 1)
	return stored[0].Path
}

func idleRows(n int) []telemetrytest.Row {
	rows := make([]telemetrytest.Row, n)
	for i := range rows {
		rows[i] = telemetrytest.Row{FuelRate: 4, EngineSpeed: 800, FanSpeed: 0}
	}
	return rows
}

func TestIngestFirstSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paths := []string{
		f.upload(t, "SN1_2024_05_01_1200.log", telemetrytest.Flags(0, 1, 1, 0)),
		f.upload(t, "SN1_2024_05_02_1200.log", telemetrytest.Flags(1, 1, 0, 0)),
		f.upload(t, "SN1_2024_05_03_1200.log", idleRows(5)),
		"/srv/data/SN1/log_files/SN1_2024_05_04_1200.log",
	}

	run, err := f.proc.Ingest(ctx, "SN1", paths)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	require.False(t, run.Merged)

	require.Len(t, run.Files, 4)
	require.True(t, run.Files[0].OK())
	require.True(t, run.Files[1].OK())
	require.Equal(t, ReasonNoSweepingData, run.Files[2].Reason)
	require.Equal(t, ReasonUnreadable, run.Files[3].Reason)
	require.Len(t, run.Skipped(), 2)

	snap := run.Snapshot
	require.Equal(t, "SN1", snap.SN)
	require.Equal(t, 2, snap.FileCount)
	require.Greater(t, snap.TotalFuelConsumed, 0.0)
	require.NotNil(t, snap.Events)
	require.EqualValues(t, 2, snap.Events.Count)
	require.InDelta(t, 50.0, snap.Events.ProportionPct, 1e-9)
	require.EqualValues(t, 8, snap.Categories.All.SampleCount)

	latest, err := f.store.LoadLatest(ctx, "SN1")
	require.NoError(t, err)
	require.Equal(t, snap.FileCount, latest.FileCount)

	require.Contains(t, run.Charts, "correlation_matrix.json")
	require.Contains(t, run.Charts, "event_durations_dist.json")

	require.Len(t, f.pub.events, 1)
	require.Equal(t, run.ID, f.pub.events[0].RunID)
}

func TestIngestSkipsNonFiniteFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := telemetrytest.Flags(0, 1, 1, 0)
	bad[1].EngineSpeed = math.NaN()
	paths := []string{
		f.upload(t, "SN1_2024_05_01_1200.log", telemetrytest.Flags(0, 1, 1, 0)),
		f.upload(t, "SN1_2024_05_02_1200.log", bad),
	}

	run, err := f.proc.Ingest(ctx, "SN1", paths)
	require.NoError(t, err)
	require.Equal(t, 1, run.Snapshot.FileCount)

	skipped := run.Skipped()
	require.Len(t, skipped, 1)
	require.Equal(t, paths[1], skipped[0].Path)
	require.Equal(t, ReasonMalformed, skipped[0].Reason)

	latest, err := f.store.LoadLatest(ctx, "SN1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 1, latest.FileCount)
}

func TestRejectsEscapingSN(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.Ingest(context.Background(), "..", nil)
	require.ErrorIs(t, err, telemetry.ErrBadSN)

	_, err = f.proc.Query(context.Background(), "../results", time.Time{}, time.Time{})
	require.ErrorIs(t, err, ErrListFiles)
	require.ErrorIs(t, err, telemetry.ErrBadSN)
}

func TestIngestMergesIntoLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.proc.Ingest(ctx, "SN1", []string{
		f.upload(t, "SN1_2024_05_01_1200.log", telemetrytest.Flags(0, 1, 1, 0)),
	})
	require.NoError(t, err)

	second, err := f.proc.Ingest(ctx, "SN1", []string{
		f.upload(t, "SN1_2024_05_02_1200.log", telemetrytest.Flags(1, 1, 1, 1)),
	})
	require.NoError(t, err)
	require.True(t, second.Merged)

	snap := second.Snapshot
	require.Equal(t, 2, snap.FileCount)
	require.Greater(t, snap.TotalFuelConsumed, first.Snapshot.TotalFuelConsumed)
	require.EqualValues(t, 2, snap.Events.Count)
	require.EqualValues(t, 8, snap.Categories.All.SampleCount)
	// 0.2 s open out of 0.4 s, then 0.4 s out of 0.4 s.
	require.InDelta(t, 75.0, snap.Events.ProportionPct, 1e-6)

	dirs, err := afero.ReadDir(f.layout.Fs, "/srv/results/SN1")
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	require.Len(t, f.pub.events, 2)
}

func TestIngestNoUsableFiles(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.Ingest(context.Background(), "SN1", []string{
		f.upload(t, "SN1_2024_05_03_1200.log", idleRows(3)),
	})
	require.ErrorIs(t, err, ErrNoUsableFiles)

	snap, err := f.store.LoadLatest(context.Background(), "SN1")
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestIngestCancelled(t *testing.T) {
	f := newFixture(t)
	path := f.upload(t, "SN1_2024_05_01_1200.log", telemetrytest.Flags(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.proc.Ingest(ctx, "SN1", []string{path})
	require.ErrorIs(t, err, ErrLoadFailed)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueryDateRange(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "SN1_2024_05_01_1200.log", telemetrytest.Flags(1, 1, 1, 1))
	f.upload(t, "SN1_2024_05_03_1200.log", telemetrytest.Flags(0, 1, 0, 0))

	run, err := f.proc.Query(context.Background(), "SN1",
		time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, run.Snapshot.FileCount)
	require.EqualValues(t, 1, run.Snapshot.Events.Count)
	require.InDelta(t, 25.0, run.Snapshot.Events.ProportionPct, 1e-9)
	require.NotEmpty(t, run.Charts)

	// Queries never persist.
	snap, err := f.store.LoadLatest(context.Background(), "SN1")
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestQueryWithoutData(t *testing.T) {
	f := newFixture(t)
	run, err := f.proc.Query(context.Background(), "SN404", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Zero(t, run.Snapshot.FileCount)
	require.Nil(t, run.Snapshot.Events)
	require.Nil(t, run.Snapshot.Categories.All)
	require.Empty(t, run.Charts)
}
