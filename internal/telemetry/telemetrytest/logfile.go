// Package telemetrytest builds logger files for tests.
package telemetrytest

import (
	"fmt"
	"strings"
	"time"
)

// Row is one line of a generated log. Sweeping rows have Nozzle1Down set.
type Row struct {
	FuelRate    float64
	EngineSpeed float64
	FanSpeed    float64
	GapOpen     float64
	TotalFuel   float64
	Nozzle1Down float64
	Nozzle2Down float64
}

// Sweeping returns a sweeping row with the given gap flag and fuel rate.
func Sweeping(gap, fuelRate float64) Row {
	return Row{FuelRate: fuelRate, EngineSpeed: 1500, FanSpeed: 2000, GapOpen: gap, Nozzle1Down: 1}
}

// LogFile renders rows in the logger's sectioned text format, 0.1 s apart
// starting at start. TotalFuel is accumulated from fuel rate when left zero.
func LogFile(start time.Time, rows []Row) string {
	var b strings.Builder
	b.WriteString("[header]\nlogger v2\n[column names]\n")
	b.WriteString("time EngineFuelRateTMSCS EngineSpeed FanSpeed NozGapOpen TotalFuelConsumption Nozzle1downTMSCS Nozzle2downTMS\n")
	b.WriteString("[data]\n")
	total := 100.0
	for i, r := range rows {
		ts := start.Add(time.Duration(i) * 100 * time.Millisecond)
		if r.TotalFuel == 0 {
			total += r.FuelRate * 0.1 / 3600
			r.TotalFuel = total
		}
		fmt.Fprintf(&b, "%s %g %g %g %g %.6f %g %g\n",
			ts.Format("15:04:05.000"), r.FuelRate, r.EngineSpeed, r.FanSpeed,
			r.GapOpen, r.TotalFuel, r.Nozzle1Down, r.Nozzle2Down)
	}
	return b.String()
}

// Flags builds sweeping rows from a gap flag sequence.
func Flags(flags ...float64) []Row {
	rows := make([]Row, len(flags))
	for i, f := range flags {
		rows[i] = Sweeping(f, 10+f*5)
	}
	return rows
}
