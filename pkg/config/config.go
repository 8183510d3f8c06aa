// Package config provides configuration loading and validation for the rbtree CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidCount       = errors.New("workload count must be positive")
	ErrInvalidKeySpan     = errors.New("workload key span must be positive")
	ErrInvalidDeleteRatio = errors.New("workload delete ratio must be within [0, 1]")
	ErrInvalidCheckEvery  = errors.New("workload check interval must not be negative")
	ErrInvalidMaxMemory   = errors.New("invalid workload memory limit")
	ErrInvalidThreshold   = errors.New("hibernation threshold must not be negative")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
)

// Default configuration values.
const (
	defaultCount       = 10000
	defaultKeySpan     = 1 << 16
	defaultDeleteRatio = 0.4
	defaultCheckEvery  = 1
	defaultSeed        = 1
	defaultThreshold   = 1000
)

// Config holds all configuration for the rbtree CLI.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Allocator AllocatorConfig `mapstructure:"allocator"`
	Workload  WorkloadConfig  `mapstructure:"workload"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AllocatorConfig holds node arena configuration.
type AllocatorConfig struct {
	// HibernationThreshold is the minimal number of slots worth compressing.
	HibernationThreshold int `mapstructure:"hibernation_threshold"`
}

// WorkloadConfig describes the randomized stress workload.
type WorkloadConfig struct {
	MaxMemory   string  `mapstructure:"max_memory"`
	Seed        int64   `mapstructure:"seed"`
	DeleteRatio float64 `mapstructure:"delete_ratio"`
	Count       int     `mapstructure:"count"`
	KeySpan     int     `mapstructure:"key_span"`
	CheckEvery  int     `mapstructure:"check_every"`
}

// MetricsConfig holds telemetry export configuration.
type MetricsConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty path searches for .rbtree.yaml in the working and home directories.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".rbtree")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix("RBTREE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// LogLevel returns the parsed logging level.
func (cfg *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(cfg.Logging.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Logging.Level)
	}

	return level, nil
}

// MaxMemoryBytes returns the workload memory limit in bytes, 0 meaning unlimited.
func (cfg *Config) MaxMemoryBytes() (uint64, error) {
	if cfg.Workload.MaxMemory == "" || cfg.Workload.MaxMemory == "0" {
		return 0, nil
	}

	limit, err := humanize.ParseBytes(cfg.Workload.MaxMemory)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMaxMemory, err)
	}

	return limit, nil
}

func setDefaults(viperCfg *viper.Viper) {
	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	// Allocator defaults.
	viperCfg.SetDefault("allocator.hibernation_threshold", defaultThreshold)

	// Workload defaults.
	viperCfg.SetDefault("workload.count", defaultCount)
	viperCfg.SetDefault("workload.seed", defaultSeed)
	viperCfg.SetDefault("workload.key_span", defaultKeySpan)
	viperCfg.SetDefault("workload.delete_ratio", defaultDeleteRatio)
	viperCfg.SetDefault("workload.check_every", defaultCheckEvery)
	viperCfg.SetDefault("workload.max_memory", "0")

	// Metrics defaults.
	viperCfg.SetDefault("metrics.otlp_endpoint", "")
	viperCfg.SetDefault("metrics.otlp_insecure", false)
}

func validateConfig(config *Config) error {
	if config.Workload.Count <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, config.Workload.Count)
	}

	if config.Workload.KeySpan <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidKeySpan, config.Workload.KeySpan)
	}

	if config.Workload.DeleteRatio < 0 || config.Workload.DeleteRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidDeleteRatio, config.Workload.DeleteRatio)
	}

	if config.Workload.CheckEvery < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCheckEvery, config.Workload.CheckEvery)
	}

	if config.Allocator.HibernationThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Allocator.HibernationThreshold)
	}

	if config.Logging.Format != "text" && config.Logging.Format != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	_, err := config.LogLevel()
	if err != nil {
		return err
	}

	_, err = config.MaxMemoryBytes()

	return err
}
