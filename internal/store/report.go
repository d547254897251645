package store

import (
	"fmt"
	"strings"

	"github.com/sanspareilsmyn/sweeplens/internal/stats"
)

var partitionTitles = map[stats.Partition]string{
	stats.PartitionAll:    "All Data",
	stats.PartitionOpen:   "Nozzle Open",
	stats.PartitionClosed: "Nozzle Closed",
}

// Report renders a snapshot as the plain-text statistics.txt kept next to it.
func Report(snap stats.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", snap.SN)
	fmt.Fprintf(&b, "Created: %s\n\n", snap.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Total Fuel Consumed (L): %g\n\n", snap.TotalFuelConsumed)
	fmt.Fprintf(&b, "Number of Sweeping Files: %d\n\n", snap.FileCount)

	b.WriteString("Nozzle Open Statistics:\n")
	if ev := snap.Events; ev != nil {
		fmt.Fprintf(&b, "Total NozGapOpen Duration (hrs): %g\n", ev.TotalHours)
		fmt.Fprintf(&b, "Mean NozGapOpen Duration (s): %g\n", ev.MeanSeconds)
		fmt.Fprintf(&b, "Median NozGapOpen Duration (s): %g\n", ev.MedianSeconds)
		fmt.Fprintf(&b, "Stdev NozGapOpen Duration (s): %g\n", ev.StdevSeconds)
		fmt.Fprintf(&b, "Max NozGapOpen Duration (s): %g\n", ev.MaxSeconds)
		fmt.Fprintf(&b, "Min NozGapOpen Duration (s): %g\n", ev.MinSeconds)
		fmt.Fprintf(&b, "NozGapOpen Event Count: %d\n", ev.Count)
		fmt.Fprintf(&b, "Proportion NozGapOpen %%: %g\n", ev.ProportionPct)
	} else {
		b.WriteString("No NozGapOpen events\n")
	}

	for _, p := range stats.Partitions {
		c := snap.Categories.Get(p)
		fmt.Fprintf(&b, "\n%s:\n", partitionTitles[p])
		if c == nil {
			b.WriteString("No data\n")
			continue
		}
		fmt.Fprintf(&b, "Total Time (hrs): %g\n", c.TotalHours)
		fmt.Fprintf(&b, "Total Fuel Consumed (L): %g\n", c.FuelConsumed)
		writeQuantity(&b, "Fuel Rate", "L/hr", c.FuelRate)
		writeQuantity(&b, "Engine Speed", "rpm", c.EngineSpeed)
		writeQuantity(&b, "Fan Speed", "rpm", c.FanSpeed)
	}
	return b.String()
}

func writeQuantity(b *strings.Builder, name, unit string, q stats.QuantityStats) {
	fmt.Fprintf(b, "Mean %s (%s): %g\n", name, unit, q.Mean)
	fmt.Fprintf(b, "Median %s (%s): %g\n", name, unit, q.Median)
	fmt.Fprintf(b, "Stdev %s (%s): %g\n", name, unit, q.Stdev)
	fmt.Fprintf(b, "Max %s (%s): %g\n", name, unit, q.Max)
	fmt.Fprintf(b, "Min %s (%s): %g\n", name, unit, q.Min)
}
