package telemetry

import "errors"

var (
	ErrBadFileName      = errors.New("log file name does not match SN_YYYY_MM_DD_HHMM")
	ErrBadSN            = errors.New("invalid equipment identifier")
	ErrNoColumnHeader   = errors.New("log file has no [column names] section")
	ErrMissingColumn    = errors.New("log file is missing a required column")
	ErrMalformedRow     = errors.New("log file contains a malformed data row")
	ErrNoData           = errors.New("log file has no data rows")
	ErrNoSweepingData   = errors.New("log file has no sweeping rows")
	ErrReadFailed       = errors.New("failed to read log file")
	ErrUnsupportedInput = errors.New("unsupported upload type")
)
