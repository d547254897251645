package store

import "errors"

var (
	ErrCreateDir      = errors.New("failed to create storage directory")
	ErrReadSnapshot   = errors.New("failed to read snapshot")
	ErrDecodeSnapshot = errors.New("failed to decode snapshot")
	ErrWriteSnapshot  = errors.New("failed to write snapshot")
	ErrSnapshotExists = errors.New("snapshot already exists")
)
