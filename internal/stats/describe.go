package stats

import (
	"fmt"
	"math"
	"slices"

	mstats "github.com/montanaflynn/stats"
)

// describe computes mean, interpolated median, sample stdev and extrema.
// The stdev of fewer than two values is reported as 0.
func describe(values []float64) (QuantityStats, error) {
	data := mstats.Float64Data(values)
	var (
		q   QuantityStats
		err error
	)
	if q.Mean, err = mstats.Mean(data); err != nil {
		return QuantityStats{}, fmt.Errorf("mean: %w", err)
	}
	if q.Median, err = mstats.Median(data); err != nil {
		return QuantityStats{}, fmt.Errorf("median: %w", err)
	}
	if q.Max, err = mstats.Max(data); err != nil {
		return QuantityStats{}, fmt.Errorf("max: %w", err)
	}
	if q.Min, err = mstats.Min(data); err != nil {
		return QuantityStats{}, fmt.Errorf("min: %w", err)
	}
	if len(values) > 1 {
		if q.Stdev, err = mstats.StandardDeviationSample(data); err != nil {
			return QuantityStats{}, fmt.Errorf("stdev: %w", err)
		}
		if math.IsNaN(q.Stdev) {
			q.Stdev = 0
		}
	}
	return q, nil
}

// orderMedian is the element at index n/2 of the sorted values. For an even
// count this is the upper of the two middle values, not their average.
func orderMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}
