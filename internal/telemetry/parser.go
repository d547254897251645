package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// Column names as written by the on-board logger.
const (
	ColTime        = "time"
	ColFuelRate    = "EngineFuelRateTMSCS"
	ColEngineSpeed = "EngineSpeed"
	ColFanSpeed    = "FanSpeed"
	ColNozzleGap   = "NozGapOpen"
	ColTotalFuel   = "TotalFuelConsumption"
	ColNozzle1Down = "Nozzle1downTMSCS"
	ColNozzle2Down = "Nozzle2downTMS"

	sectionColumns = "[column names]"
	sectionData    = "[data]"

	timeOfDayFmt = "2006-01-02 15:04:05.999999999"
	maxLineBytes = 1 << 20
)

var requiredColumns = []string{
	ColTime, ColFuelRate, ColEngineSpeed, ColFanSpeed,
	ColNozzleGap, ColTotalFuel, ColNozzle1Down, ColNozzle2Down,
}

// ParseLog reads a logger file and returns the sweeping rows as a batch.
// A row is sweeping when either nozzle is down.
func ParseLog(r io.Reader, name string) (Batch, error) {
	fn, err := ParseFileName(name)
	if err != nil {
		return Batch{}, err
	}

	records, err := readRecords(r)
	if err != nil {
		return Batch{}, err
	}
	if len(records) == 0 {
		return Batch{}, fmt.Errorf("%w: %s", ErrNoData, fn.Base)
	}

	batch := Batch{SN: fn.SN, Source: fn.Base}
	day := fn.Date.Format(dateFmt)
	for i, rec := range records {
		if !isSweeping(rec) {
			continue
		}
		s, err := toSample(rec, day)
		if err != nil {
			return Batch{}, fmt.Errorf("%s row %d: %w", fn.Base, i+1, err)
		}
		batch.Samples = append(batch.Samples, s)
	}
	if len(batch.Samples) == 0 {
		return Batch{}, fmt.Errorf("%w: %s", ErrNoSweepingData, fn.Base)
	}
	return batch, nil
}

// readRecords walks the sections of a log file. The line after [column names]
// is the header; every line after [data] is a row.
func readRecords(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		header  []string
		records []Record
		prev    string
		inData  bool
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(prev, sectionData):
			inData = true
		case strings.HasPrefix(prev, sectionColumns):
			header = strings.Fields(line)
		}
		prev = line

		if !inData || line == "" {
			continue
		}
		if header == nil {
			return nil, ErrNoColumnHeader
		}
		fields := strings.Fields(line)
		if len(fields) != len(header) {
			return nil, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedRow, len(header), len(fields))
		}
		rec := make(Record, len(header))
		for i, col := range header {
			rec[col] = fields[i]
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if header == nil {
		return nil, ErrNoColumnHeader
	}
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return records, nil
}

func isSweeping(rec Record) bool {
	n1, _ := rec.Float64(ColNozzle1Down)
	n2, _ := rec.Float64(ColNozzle2Down)
	return n1 == 1.0 || n2 == 1.0
}

func toSample(rec Record, day string) (Sample, error) {
	ts, err := time.Parse(timeOfDayFmt, day+" "+rec[ColTime])
	if err != nil {
		return Sample{}, fmt.Errorf("%w: time %q", ErrMalformedRow, rec.Snippet(ColTime, 32))
	}
	s := Sample{Time: ts}
	fields := []struct {
		col string
		dst *float64
	}{
		{ColFuelRate, &s.FuelRate},
		{ColEngineSpeed, &s.EngineSpeed},
		{ColFanSpeed, &s.FanSpeed},
		{ColNozzleGap, &s.NozzleGapOpen},
		{ColTotalFuel, &s.TotalFuel},
	}
	for _, f := range fields {
		v, ok := rec.Float64(f.col)
		if !ok {
			return Sample{}, fmt.Errorf("%w: %s=%q", ErrMalformedRow, f.col, rec.Snippet(f.col, 32))
		}
		*f.dst = v
	}
	return s, nil
}
