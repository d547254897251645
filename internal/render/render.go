// Package render turns summarized telemetry into chart artifacts for the web
// front end. Each chart is a JSON document under graphs/<sn>/.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	mstats "github.com/montanaflynn/stats"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/stats"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
)

const (
	histogramBins    = 30
	distributionBins = 50
	Ext              = ".json"
)

var ErrWriteChart = errors.New("failed to write chart")

var eventCharts = []string{"event_durations_dist", "total_event_duration_per_bin"}

// Series is one labelled set of bars or points.
type Series struct {
	Label string    `json:"label"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
}

// Chart is a bar/histogram chart.
type Chart struct {
	Title  string   `json:"title"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
	Series []Series `json:"series"`
}

// Matrix is a labelled square matrix, used for correlations.
type Matrix struct {
	Title  string      `json:"title"`
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"values"`
}

// Renderer writes chart artifacts for one equipment identifier.
type Renderer struct {
	fs     afero.Fs
	dir    func(sn string) string
	logger *zap.Logger
}

// New creates a Renderer writing into dir(sn).
func New(fs afero.Fs, dir func(sn string) string, logger *zap.Logger) *Renderer {
	return &Renderer{fs: fs, dir: dir, logger: logger}
}

// Render writes every chart for sn and returns the artifact file names.
// Event charts are skipped when there are no events.
func (r *Renderer) Render(ctx context.Context, sn string, batches []telemetry.Batch, durations []float64) ([]string, error) {
	dir := r.dir(sn)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteChart, err)
	}

	artifacts := map[string]any{}
	if len(durations) > 0 {
		artifacts["event_durations_dist"] = EventHistogram(durations)
		artifacts["total_event_duration_per_bin"] = EventTotalsPerBin(durations)
	} else if err := r.removeEventCharts(dir); err != nil {
		return nil, err
	}
	parts := partition(batches)
	artifacts["fuel_rate_dist"] = distribution("Distribution of Fuel Rate", "Fuel Rate (L/h)", parts,
		func(s telemetry.Sample) float64 { return s.FuelRate })
	artifacts["engine_speed_dist"] = distribution("Distribution of Engine Speed", "Engine Speed (rpm)", parts,
		func(s telemetry.Sample) float64 { return s.EngineSpeed })
	artifacts["fan_speed_dist"] = distribution("Distribution of Fan Speed", "Fan Speed (rpm)", parts,
		func(s telemetry.Sample) float64 { return s.FanSpeed })
	artifacts["correlation_matrix"] = Correlations(parts[stats.PartitionAll])

	var names []string
	for name, chart := range artifacts {
		if err := ctx.Err(); err != nil {
			return names, err
		}
		data, err := json.Marshal(chart)
		if err != nil {
			return names, fmt.Errorf("%w: %s: %w", ErrWriteChart, name, err)
		}
		file := name + Ext
		if err := afero.WriteFile(r.fs, filepath.Join(dir, file), data, 0o644); err != nil {
			return names, fmt.Errorf("%w: %s: %w", ErrWriteChart, file, err)
		}
		names = append(names, file)
	}
	slices.Sort(names)
	r.logger.Debug("Charts rendered", zap.String("sn", sn), zap.Int("charts", len(names)))
	return names, nil
}

// removeEventCharts drops event charts left by an earlier run so a run
// without events does not serve them.
func (r *Renderer) removeEventCharts(dir string) error {
	for _, name := range eventCharts {
		err := r.fs.Remove(filepath.Join(dir, name+Ext))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", ErrWriteChart, name+Ext, err)
		}
	}
	return nil
}

// EventHistogram bins event durations in seconds.
func EventHistogram(durations []float64) Chart {
	edges, counts := histogram(durations, histogramBins)
	y := make([]float64, len(counts))
	for i, c := range counts {
		y[i] = float64(c)
	}
	return Chart{
		Title:  "Distribution of NozGapOpen Events Duration",
		XLabel: "Duration (seconds)",
		YLabel: "Frequency",
		Series: []Series{{Label: "events", X: centers(edges), Y: y}},
	}
}

// EventTotalsPerBin sums the event hours falling in each duration bin.
// Bin centres are reported in minutes.
func EventTotalsPerBin(durations []float64) Chart {
	edges, _ := histogram(durations, histogramBins)
	totals := make([]float64, len(edges)-1)
	for _, d := range durations {
		totals[binOf(d, edges)] += d / 3600
	}
	x := centers(edges)
	for i := range x {
		x[i] /= 60
	}
	return Chart{
		Title:  "Total Duration of NozGapOpen Events per Bin",
		XLabel: "Duration (minutes)",
		YLabel: "Total Duration (hours)",
		Series: []Series{{Label: "events", X: x, Y: totals}},
	}
}

// Correlations is the Pearson correlation matrix of the measured quantities
// and the nozzle gap flag.
func Correlations(samples []telemetry.Sample) Matrix {
	b := telemetry.Batch{Samples: samples}
	cols := []struct {
		label string
		data  []float64
	}{
		{"EngineSpeed", b.Column(func(s telemetry.Sample) float64 { return s.EngineSpeed })},
		{"FanSpeed", b.Column(func(s telemetry.Sample) float64 { return s.FanSpeed })},
		{"FuelRate", b.Column(func(s telemetry.Sample) float64 { return s.FuelRate })},
		{"NozGapOpen", b.Flags()},
	}
	m := Matrix{Title: "Correlation Matrix", Values: make([][]float64, len(cols))}
	for i, ci := range cols {
		m.Labels = append(m.Labels, ci.label)
		m.Values[i] = make([]float64, len(cols))
		for j, cj := range cols {
			if i == j {
				m.Values[i][j] = 1
				continue
			}
			r, err := mstats.Correlation(ci.data, cj.data)
			if err != nil || math.IsNaN(r) {
				r = 0
			}
			m.Values[i][j] = r
		}
	}
	return m
}

func distribution(title, xLabel string, parts map[stats.Partition][]telemetry.Sample, get func(telemetry.Sample) float64) Chart {
	c := Chart{Title: title, XLabel: xLabel, YLabel: "Frequency"}
	for _, p := range stats.Partitions {
		samples := parts[p]
		if len(samples) == 0 {
			continue
		}
		values := telemetry.Batch{Samples: samples}.Column(get)
		edges, counts := histogram(values, distributionBins)
		y := make([]float64, len(counts))
		for i, n := range counts {
			y[i] = float64(n)
		}
		c.Series = append(c.Series, Series{Label: string(p), X: centers(edges), Y: y})
	}
	return c
}

func partition(batches []telemetry.Batch) map[stats.Partition][]telemetry.Sample {
	parts := map[stats.Partition][]telemetry.Sample{}
	for _, b := range batches {
		for _, s := range b.Samples {
			parts[stats.PartitionAll] = append(parts[stats.PartitionAll], s)
			if s.NozzleGapOpen == stats.GapOpen {
				parts[stats.PartitionOpen] = append(parts[stats.PartitionOpen], s)
			} else {
				parts[stats.PartitionClosed] = append(parts[stats.PartitionClosed], s)
			}
		}
	}
	return parts
}

// histogram splits [min, max] into n equal bins. The last bin is closed on
// the right. A constant input gets the unit range around its value.
func histogram(values []float64, n int) ([]float64, []int) {
	lo, _ := mstats.Min(values)
	hi, _ := mstats.Max(values)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	edges[n] = hi
	counts := make([]int, n)
	for _, v := range values {
		counts[binOf(v, edges)]++
	}
	return edges, counts
}

func binOf(v float64, edges []float64) int {
	n := len(edges) - 1
	i := int((v - edges[0]) / (edges[n] - edges[0]) * float64(n))
	switch {
	case i < 0:
		return 0
	case i >= n:
		return n - 1
	}
	return i
}

func centers(edges []float64) []float64 {
	out := make([]float64, len(edges)-1)
	for i := range out {
		out[i] = (edges[i] + edges[i+1]) / 2
	}
	return out
}
