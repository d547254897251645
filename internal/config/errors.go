package config

import "errors"

var (
	ErrReadingConfigFile     = errors.New("failed to read config file")
	ErrUnmarshallingConfig   = errors.New("failed to unmarshal config")
	ErrConfigFileMissing     = errors.New("config file not found")
	ErrEmptyStorageRoot      = errors.New("storage root cannot be empty")
	ErrInvalidSamplePeriod   = errors.New("sampling period must be positive")
	ErrInvalidWorkerCount    = errors.New("processing workers must be positive")
	ErrEmptyServerAddr       = errors.New("server addr cannot be empty")
	ErrEmptyPublisherBrokers = errors.New("publisher brokers list cannot be empty when enabled")
	ErrEmptyPublisherTopic   = errors.New("publisher topic cannot be empty when enabled")
)
