package pipeline

import "errors"

var (
	ErrInvalidPublisherConfig = errors.New("invalid publisher configuration provided")
	ErrPublishFailed          = errors.New("failed to publish snapshot event")
	ErrLoadFailed             = errors.New("failed to load telemetry files")
	ErrNoUsableFiles          = errors.New("no usable telemetry files")
	ErrLoadSnapshot           = errors.New("failed to load latest snapshot")
	ErrSaveSnapshot           = errors.New("failed to save snapshot")
	ErrListFiles              = errors.New("failed to list stored files")
)
