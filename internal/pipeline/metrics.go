package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/stats"
)

var (
	filesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeplens_files_processed_total",
			Help: "Log files loaded, by outcome (reason is empty for files that contributed).",
		},
		[]string{"sn", "reason"},
	)
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeplens_runs_total",
			Help: "Processing runs, by kind (ingest, query) and result.",
		},
		[]string{"kind", "result"},
	)
	snapshotMerges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeplens_snapshot_merges_total",
			Help: "Ingest runs that merged into an existing snapshot.",
		},
		[]string{"sn"},
	)
	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweeplens_run_duration_seconds",
			Help:    "Wall time of a processing run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"kind"},
	)
	eventProportion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sweeplens_nozzle_gap_open_proportion_percent",
			Help: "Share of sweeping time with the nozzle gap open, from the latest snapshot.",
		},
		[]string{"sn"},
	)
	eventCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sweeplens_nozzle_gap_open_events",
			Help: "Number of nozzle gap open events in the latest snapshot.",
		},
		[]string{"sn"},
	)
	fuelConsumed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sweeplens_fuel_consumed_liters",
			Help: "Total fuel consumed according to the latest snapshot.",
		},
		[]string{"sn"},
	)
)

func recordFiles(sn string, results []FileResult) {
	for _, r := range results {
		filesProcessed.WithLabelValues(sn, string(r.Reason)).Inc()
	}
}

// recordSnapshot updates the per-SN gauges and logs the headline numbers.
func recordSnapshot(logger *zap.Logger, snap stats.Snapshot) {
	fuelConsumed.WithLabelValues(snap.SN).Set(snap.TotalFuelConsumed)

	fields := []zap.Field{
		zap.String("sn", snap.SN),
		zap.Int("file_count", snap.FileCount),
		zap.Float64("total_fuel_consumed", snap.TotalFuelConsumed),
	}
	if ev := snap.Events; ev != nil {
		eventProportion.WithLabelValues(snap.SN).Set(ev.ProportionPct)
		eventCount.WithLabelValues(snap.SN).Set(float64(ev.Count))
		fields = append(fields,
			zap.Int64("events", ev.Count),
			zap.Float64("proportion_pct", ev.ProportionPct),
		)
	} else {
		eventProportion.WithLabelValues(snap.SN).Set(0)
		eventCount.WithLabelValues(snap.SN).Set(0)
	}
	logger.Info("Snapshot stats", fields...)
}
