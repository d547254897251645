package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Sample is one telemetry row. NozzleGapOpen is 1.0 when the gap is open.
type Sample struct {
	Time          time.Time `json:"time"`
	FuelRate      float64   `json:"fuel_rate"`    // L/h
	EngineSpeed   float64   `json:"engine_speed"` // rpm
	FanSpeed      float64   `json:"fan_speed"`    // rpm
	NozzleGapOpen float64   `json:"nozzle_gap_open"`
	TotalFuel     float64   `json:"total_fuel"` // cumulative litres, non-decreasing
}

// Batch is the time-ordered samples read from one source file.
type Batch struct {
	SN      string
	Source  string
	Samples []Sample
}

func (b Batch) Len() int { return len(b.Samples) }

// Flags returns the nozzle gap flag of every sample in order.
func (b Batch) Flags() []float64 {
	return b.Column(func(s Sample) float64 { return s.NozzleGapOpen })
}

// Column projects one quantity out of the batch.
func (b Batch) Column(get func(Sample) float64) []float64 {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = get(s)
	}
	return out
}

// FuelDelta is the fuel burned over the batch according to the cumulative counter.
func (b Batch) FuelDelta() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	return b.Samples[len(b.Samples)-1].TotalFuel - b.Samples[0].TotalFuel
}

// Between returns a copy of the batch holding only samples with start <= t <= end.
// A zero start or end leaves that side open.
func (b Batch) Between(start, end time.Time) Batch {
	out := Batch{SN: b.SN, Source: b.Source}
	for _, s := range b.Samples {
		if !start.IsZero() && s.Time.Before(start) {
			continue
		}
		if !end.IsZero() && s.Time.After(end) {
			continue
		}
		out.Samples = append(out.Samples, s)
	}
	return out
}

// Record is one data row keyed by column name, as read from a log file.
type Record map[string]string

// Float64 parses the named column. Missing, non-numeric and non-finite
// (NaN, Inf) values report false.
func (r Record) Float64(key string) (float64, bool) {
	raw, ok := r[key]
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Snippet returns a printable, truncated view of a column for log fields.
func (r Record) Snippet(key string, maxLength int) string {
	value, ok := r[key]
	if !ok {
		return "<missing>"
	}
	if maxLength <= 0 {
		return "..."
	}
	if len(value) > maxLength {
		return fmt.Sprintf("%s...", value[:maxLength])
	}
	return value
}
