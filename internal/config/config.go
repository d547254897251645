package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultStorageRoot     = "."
	defaultSamplePeriod    = 0.1
	defaultWorkers         = 4
	defaultServerAddr      = ":8080"
	defaultMaxUploadMB     = 512
	defaultPublisherTopic  = "sweeplens-snapshots"
	defaultPublisherEnable = false
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultLogFileEnabled  = false
	defaultLogDirectory    = "log"
	defaultLogFilename     = "sweeplens.log"
	defaultLogMaxSizeMB    = 100
	defaultLogMaxBackups   = 3
	defaultLogMaxAgeDays   = 7
	defaultLogCompress     = false

	// Environment variable prefix
	envPrefix = "SWEEPLENS"
)

type Config struct {
	Storage    StorageConfig    `mapstructure:"storage"`
	Sampling   SamplingConfig   `mapstructure:"sampling"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Server     ServerConfig     `mapstructure:"server"`
	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Log        LogConfig        `mapstructure:"log"`
}

// StorageConfig holds the root path every data, results and graphs directory hangs off.
type StorageConfig struct {
	Root string `mapstructure:"root"`
}

type SamplingConfig struct {
	Period float64 `mapstructure:"period"` // seconds between two telemetry rows
}

type ProcessingConfig struct {
	Workers int `mapstructure:"workers"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	MaxUploadMB int64  `mapstructure:"maxUploadMB"`
}

type PublisherConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	// Set default values before reading config source .yaml
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.root", defaultStorageRoot)
	v.SetDefault("sampling.period", defaultSamplePeriod)
	v.SetDefault("processing.workers", defaultWorkers)
	v.SetDefault("server.addr", defaultServerAddr)
	v.SetDefault("server.maxUploadMB", defaultMaxUploadMB)
	v.SetDefault("publisher.enabled", defaultPublisherEnable)
	v.SetDefault("publisher.topic", defaultPublisherTopic)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Storage.Root == "" {
		return ErrEmptyStorageRoot
	}
	if cfg.Sampling.Period <= 0 {
		return ErrInvalidSamplePeriod
	}
	if cfg.Processing.Workers <= 0 {
		return ErrInvalidWorkerCount
	}
	if cfg.Server.Addr == "" {
		return ErrEmptyServerAddr
	}
	if cfg.Publisher.Enabled {
		if len(cfg.Publisher.Brokers) == 0 {
			return ErrEmptyPublisherBrokers
		}
		if cfg.Publisher.Topic == "" {
			return ErrEmptyPublisherTopic
		}
	}
	return nil
}
