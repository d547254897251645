package stats

import "time"

// Partition names a subset of a batch grouped by the nozzle gap flag.
type Partition string

const (
	PartitionAll    Partition = "all"
	PartitionOpen   Partition = "signal-open"
	PartitionClosed Partition = "signal-closed"
)

// Partitions lists every partition in display order.
var Partitions = []Partition{PartitionAll, PartitionOpen, PartitionClosed}

// QuantityStats describes one measured quantity within a partition.
type QuantityStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Stdev  float64 `json:"stdev"`
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
}

// CategorySummary holds the statistics of one partition.
// SampleCount is zero in snapshots written before exact counts were persisted;
// merges then fall back to a count reconstructed from TotalHours.
type CategorySummary struct {
	TotalHours   float64       `json:"total_time_hrs"`
	FuelConsumed float64       `json:"total_fuel_consumed_l"`
	SampleCount  int64         `json:"sample_count,omitempty"`
	FuelRate     QuantityStats `json:"fuel_rate_lph"`
	EngineSpeed  QuantityStats `json:"engine_speed_rpm"`
	FanSpeed     QuantityStats `json:"fan_speed_rpm"`
}

// EventSummary describes the nozzle-gap-open events of the "all" partition.
// Durations are in seconds, TotalHours in hours.
type EventSummary struct {
	TotalHours    float64 `json:"total_duration_hrs"`
	MeanSeconds   float64 `json:"mean_duration_s"`
	MedianSeconds float64 `json:"median_duration_s"`
	StdevSeconds  float64 `json:"stdev_duration_s"`
	MaxSeconds    float64 `json:"max_duration_s"`
	MinSeconds    float64 `json:"min_duration_s"`
	Count         int64   `json:"event_count"`
	ProportionPct float64 `json:"proportion_pct"`
}

// Categories carries one summary per partition. A nil entry means the
// partition had no samples.
type Categories struct {
	All    *CategorySummary `json:"all,omitempty"`
	Open   *CategorySummary `json:"signal_open,omitempty"`
	Closed *CategorySummary `json:"signal_closed,omitempty"`
}

// Get returns the summary for p, or nil.
func (c Categories) Get(p Partition) *CategorySummary {
	switch p {
	case PartitionAll:
		return c.All
	case PartitionOpen:
		return c.Open
	case PartitionClosed:
		return c.Closed
	}
	return nil
}

// Result is what the calculator produces for one processing run.
type Result struct {
	EventDurations []float64
	Events         *EventSummary
	Categories     Categories
	Samples        int
}

// Snapshot is the persisted aggregate for one equipment identifier.
// It is never modified after it is saved; a later run writes a new one.
type Snapshot struct {
	SN                string        `json:"sn"`
	CreatedAt         time.Time     `json:"created_at"`
	TotalFuelConsumed float64       `json:"total_fuel_consumed_l"`
	FileCount         int           `json:"file_count"`
	Events            *EventSummary `json:"events,omitempty"`
	Categories        Categories    `json:"categories"`
}

// NewSnapshot wraps a fresh calculator result.
func NewSnapshot(sn string, createdAt time.Time, res Result, fileCount int, fuelConsumed float64) Snapshot {
	return Snapshot{
		SN:                sn,
		CreatedAt:         createdAt,
		TotalFuelConsumed: fuelConsumed,
		FileCount:         fileCount,
		Events:            res.Events,
		Categories:        res.Categories,
	}
}
