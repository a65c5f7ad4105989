// Package config provides configuration loading and validation for the
// githarvest CLI.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrNoOutput        = errors.New("output path must not be empty")
	ErrInvalidWorkers  = errors.New("workers must not be negative")
	ErrInvalidFlush    = errors.New("flush_every must be positive")
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config holds all configuration for githarvest.
type Config struct {
	Repos      []string        `mapstructure:"repos"`
	ParentDirs []string        `mapstructure:"parent_dirs"`
	Output     string          `mapstructure:"output"`
	Extract    ExtractConfig   `mapstructure:"extract"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	Telemetry  TelemetryConfig `mapstructure:"telemetry"`
}

// ExtractConfig holds history traversal settings.
type ExtractConfig struct {
	Since       string `mapstructure:"since"`
	Until       string `mapstructure:"until"`
	Branch      string `mapstructure:"branch"`
	FirstParent bool   `mapstructure:"first_parent"`
	Workers     int    `mapstructure:"workers"`
	FlushEvery  int    `mapstructure:"flush_every"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	Environment  string `mapstructure:"environment"`
}

// LoadConfig loads configuration from file and environment variables.
// A missing config file is not an error; defaults and env apply.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("githarvest")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.config/githarvest")
	}

	viperCfg.SetEnvPrefix("GITHARVEST")
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

func validateConfig(config *Config) error {
	if config.Output == "" {
		return ErrNoOutput
	}

	if config.Extract.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Extract.Workers)
	}

	if config.Extract.FlushEvery <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFlush, config.Extract.FlushEvery)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, config.Logging.Level)
	}

	return nil
}
