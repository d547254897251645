package telemetry

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	LogExt  = ".log"
	ZipExt  = ".zip"
	dateFmt = "2006-01-02"
)

// FileName is the parsed form of SN213390_2024_05_01_1200.log.
type FileName struct {
	Base string
	SN   string
	Date time.Time
}

// ParseFileName extracts the equipment identifier and recording date from a log name.
func ParseFileName(name string) (FileName, error) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(stem, "_")
	if len(parts) < 4 || parts[0] == "" {
		return FileName{}, fmt.Errorf("%w: %s", ErrBadFileName, base)
	}
	if err := ValidSN(parts[0]); err != nil {
		return FileName{}, fmt.Errorf("%w: %s: %w", ErrBadFileName, base, err)
	}
	date, err := time.Parse(dateFmt, strings.Join(parts[1:4], "-"))
	if err != nil {
		return FileName{}, fmt.Errorf("%w: %s: %w", ErrBadFileName, base, err)
	}
	return FileName{Base: base, SN: parts[0], Date: date}, nil
}

// ValidSN rejects identifiers that could leave their directory when joined
// into a storage path.
func ValidSN(sn string) error {
	if sn == "" || sn == "." || sn == ".." || strings.ContainsAny(sn, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadSN, sn)
	}
	return nil
}

// IsLog reports whether name carries the log extension.
func IsLog(name string) bool {
	return strings.EqualFold(filepath.Ext(name), LogExt)
}

// InDateRange reports whether the file's recording day falls in [start, end].
// Only the calendar day of start and end is considered.
func (f FileName) InDateRange(start, end time.Time) bool {
	if !start.IsZero() && f.Date.Before(truncateDay(start)) {
		return false
	}
	if !end.IsZero() && f.Date.After(truncateDay(end)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
