package stats

import (
	"math"

	"go.uber.org/zap"
)

// Merger combines a persisted summary with a freshly computed one without
// access to the underlying samples.
//
// Means, totals, extrema and the pooled stdev follow from the summaries. The
// median cannot be recovered from two medians, so WeightedMedian interpolates
// between them by relative count. When a summary has no stored sample count
// the count is reconstructed from elapsed time. Neither the median nor a
// reconstructed count is exact, and merging is only approximately
// associative: merge(merge(A, B), C) can differ from merge(A, merge(B, C)).
type Merger struct {
	period float64
	logger *zap.Logger
}

// NewMerger creates a Merger for samples taken every period seconds.
func NewMerger(period float64, logger *zap.Logger) *Merger {
	return &Merger{period: period, logger: logger}
}

// MergeSnapshots folds next into past. File counts and fuel totals add up;
// every summary is merged with its counterpart.
func (m *Merger) MergeSnapshots(past, next Snapshot) Snapshot {
	out := Snapshot{
		SN:                next.SN,
		CreatedAt:         next.CreatedAt,
		TotalFuelConsumed: past.TotalFuelConsumed + next.TotalFuelConsumed,
		FileCount:         past.FileCount + next.FileCount,
		Events: m.MergeEvents(past.Events, next.Events,
			totalHours(past.Categories.All), totalHours(next.Categories.All)),
		Categories: Categories{
			All:    m.MergeCategory(past.Categories.All, next.Categories.All),
			Open:   m.MergeCategory(past.Categories.Open, next.Categories.Open),
			Closed: m.MergeCategory(past.Categories.Closed, next.Categories.Closed),
		},
	}
	if out.SN == "" {
		out.SN = past.SN
	}
	m.logger.Debug("Snapshots merged",
		zap.String("sn", out.SN),
		zap.Int("file_count", out.FileCount),
		zap.Float64("total_fuel_consumed", out.TotalFuelConsumed),
	)
	return out
}

// MergeCategory merges two partition summaries. If either side is nil the
// other is returned unchanged.
func (m *Merger) MergeCategory(past, next *CategorySummary) *CategorySummary {
	if past == nil || next == nil {
		m.logger.Debug("Category summary missing on one side, keeping the other",
			zap.Bool("past_present", past != nil),
			zap.Bool("new_present", next != nil),
		)
		return pick(past, next)
	}

	nA, nB := m.count(past), m.count(next)
	return &CategorySummary{
		TotalHours:   past.TotalHours + next.TotalHours,
		FuelConsumed: past.FuelConsumed + next.FuelConsumed,
		SampleCount:  int64(math.Round(nA + nB)),
		FuelRate:     mergeQuantity(past.FuelRate, nA, next.FuelRate, nB),
		EngineSpeed:  mergeQuantity(past.EngineSpeed, nA, next.EngineSpeed, nB),
		FanSpeed:     mergeQuantity(past.FanSpeed, nA, next.FanSpeed, nB),
	}
}

// MergeEvents merges two event summaries. pastHours and nextHours are the
// total elapsed hours of the "all" partition behind each summary and are used
// for the combined proportion. If either side is nil the other is returned
// unchanged, so its ProportionPct still refers to its own elapsed time only.
func (m *Merger) MergeEvents(past, next *EventSummary, pastHours, nextHours float64) *EventSummary {
	if past == nil || next == nil {
		m.logger.Debug("Event summary missing on one side, keeping the other",
			zap.Bool("past_present", past != nil),
			zap.Bool("new_present", next != nil),
		)
		return pick(past, next)
	}

	nA, nB := float64(past.Count), float64(next.Count)
	mean := CombinedMean(past.MeanSeconds, nA, next.MeanSeconds, nB)
	return &EventSummary{
		TotalHours:    past.TotalHours + next.TotalHours,
		MeanSeconds:   mean,
		MedianSeconds: WeightedMedian(past.MedianSeconds, nA, next.MedianSeconds, nB),
		StdevSeconds:  PooledStdev(past.StdevSeconds, past.MeanSeconds, nA, next.StdevSeconds, next.MeanSeconds, nB),
		MaxSeconds:    math.Max(past.MaxSeconds, next.MaxSeconds),
		MinSeconds:    math.Min(past.MinSeconds, next.MinSeconds),
		Count:         past.Count + next.Count,
		ProportionPct: CombinedProportion(past.TotalHours, pastHours, next.TotalHours, nextHours),
	}
}

// count is the exact sample count when persisted, else elapsed seconds / period.
func (m *Merger) count(c *CategorySummary) float64 {
	if c.SampleCount > 0 {
		return float64(c.SampleCount)
	}
	return c.TotalHours * secondsPerHour / m.period
}

func mergeQuantity(a QuantityStats, nA float64, b QuantityStats, nB float64) QuantityStats {
	return QuantityStats{
		Mean:   CombinedMean(a.Mean, nA, b.Mean, nB),
		Median: WeightedMedian(a.Median, nA, b.Median, nB),
		Stdev:  PooledStdev(a.Stdev, a.Mean, nA, b.Stdev, b.Mean, nB),
		Max:    math.Max(a.Max, b.Max),
		Min:    math.Min(a.Min, b.Min),
	}
}

// CombinedMean is the count-weighted mean of two means.
func CombinedMean(meanA, nA, meanB, nB float64) float64 {
	n := nA + nB
	if n <= 0 {
		return 0
	}
	return (meanA*nA + meanB*nB) / n
}

// PooledStdev combines two sample standard deviations:
//
//	SS = (nA-1)sA² + (nB-1)sB² + nA(mA-M)² + nB(mB-M)²,  s = √(SS / (nA+nB-1))
//
// where M is the combined mean. It needs nA+nB > 1; otherwise it returns 0.
func PooledStdev(stdevA, meanA, nA, stdevB, meanB, nB float64) float64 {
	switch {
	case nA <= 0:
		return stdevB
	case nB <= 0:
		return stdevA
	case nA+nB <= 1:
		return 0
	}
	mean := CombinedMean(meanA, nA, meanB, nB)
	ss := (nA-1)*stdevA*stdevA + (nB-1)*stdevB*stdevB +
		nA*(meanA-mean)*(meanA-mean) + nB*(meanB-mean)*(meanB-mean)
	variance := ss / (nA + nB - 1)
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// WeightedMedian approximates the median of the union of two samples by
// moving from the lower median towards the higher one by the relative count
// of the higher side. It is not the true merged median.
func WeightedMedian(medianA, nA, medianB, nB float64) float64 {
	n := nA + nB
	if n <= 0 {
		return medianA
	}
	if medianA <= medianB {
		return medianA + (medianB-medianA)*(nB/n)
	}
	return medianB + (medianA-medianB)*(nA/n)
}

// CombinedProportion is the percentage of total time spent in events.
// Event and total times must share a unit.
func CombinedProportion(eventA, totalA, eventB, totalB float64) float64 {
	total := totalA + totalB
	if total <= 0 {
		return 0
	}
	return (eventA + eventB) / total * 100
}

func totalHours(c *CategorySummary) float64 {
	if c == nil {
		return 0
	}
	return c.TotalHours
}

func pick[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}
