package stats

import (
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
)

const secondsPerHour = 3600.0

// Calculator summarizes sample batches. It holds no per-run state and may be
// shared between goroutines.
type Calculator struct {
	period float64
	logger *zap.Logger
}

// NewCalculator creates a Calculator for samples taken every period seconds.
func NewCalculator(period float64, logger *zap.Logger) *Calculator {
	logger.Debug("Calculator initialized", zap.Float64("sample_period_s", period))
	return &Calculator{period: period, logger: logger}
}

// Summarize partitions the samples of all batches by the nozzle gap flag and
// describes each partition. Events are segmented per batch so that no event
// spans two source files; their durations are returned in batch order.
func (c *Calculator) Summarize(batches ...telemetry.Batch) Result {
	var all, open, closed []telemetry.Sample
	var durations []float64
	for _, b := range batches {
		durations = append(durations, Segment(b.Flags(), c.period)...)
		for _, s := range b.Samples {
			all = append(all, s)
			if s.NozzleGapOpen == GapOpen {
				open = append(open, s)
			} else {
				closed = append(closed, s)
			}
		}
	}

	res := Result{
		EventDurations: durations,
		Samples:        len(all),
		Categories: Categories{
			All:    c.summarizeCategory(PartitionAll, all),
			Open:   c.summarizeCategory(PartitionOpen, open),
			Closed: c.summarizeCategory(PartitionClosed, closed),
		},
	}
	res.Events = c.summarizeEvents(durations, len(all))

	c.logger.Debug("Batches summarized",
		zap.Int("batches", len(batches)),
		zap.Int("samples", len(all)),
		zap.Int("events", len(durations)),
	)
	return res
}

// summarizeCategory returns nil for an empty partition.
func (c *Calculator) summarizeCategory(p Partition, samples []telemetry.Sample) *CategorySummary {
	if len(samples) == 0 {
		c.logger.Debug("Partition has no samples", zap.String("partition", string(p)))
		return nil
	}

	batch := telemetry.Batch{Samples: samples}
	sum := &CategorySummary{
		TotalHours:  c.hours(len(samples)),
		SampleCount: int64(len(samples)),
	}
	for _, s := range samples {
		sum.FuelConsumed += s.FuelRate * c.period / secondsPerHour
	}

	quantities := []struct {
		name string
		dst  *QuantityStats
		get  func(telemetry.Sample) float64
	}{
		{"fuel_rate", &sum.FuelRate, func(s telemetry.Sample) float64 { return s.FuelRate }},
		{"engine_speed", &sum.EngineSpeed, func(s telemetry.Sample) float64 { return s.EngineSpeed }},
		{"fan_speed", &sum.FanSpeed, func(s telemetry.Sample) float64 { return s.FanSpeed }},
	}
	for _, q := range quantities {
		d, err := describe(batch.Column(q.get))
		if err != nil {
			c.logger.Warn("Failed to describe quantity, partition dropped",
				zap.String("partition", string(p)),
				zap.String("quantity", q.name),
				zap.Error(err),
			)
			return nil
		}
		*q.dst = d
	}
	return sum
}

// summarizeEvents returns nil when no event was observed.
func (c *Calculator) summarizeEvents(durations []float64, totalSamples int) *EventSummary {
	if len(durations) == 0 {
		return nil
	}
	d, err := describe(durations)
	if err != nil {
		c.logger.Warn("Failed to describe event durations", zap.Error(err))
		return nil
	}

	var total float64
	for _, v := range durations {
		total += v
	}
	ev := &EventSummary{
		TotalHours:    total / secondsPerHour,
		MeanSeconds:   d.Mean,
		MedianSeconds: orderMedian(durations),
		StdevSeconds:  d.Stdev,
		MaxSeconds:    d.Max,
		MinSeconds:    d.Min,
		Count:         int64(len(durations)),
	}
	if elapsed := float64(totalSamples) * c.period; elapsed > 0 {
		ev.ProportionPct = total / elapsed * 100
	}
	return ev
}

func (c *Calculator) hours(samples int) float64 {
	return float64(samples) * c.period / secondsPerHour
}
