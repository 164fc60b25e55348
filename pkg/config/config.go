// Package config assembles server configuration from defaults, an
// optional YAML file, an optional .env file, and finally CLI flags, each
// layer overriding the one before it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pipetunnel/pipetunnel/pkg/logging"
)

// Config holds every value the server needs to start listening.
type Config struct {
	Host     string `yaml:"host"`
	Port     uint16 `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
}

// defaults returns the configuration used when no file, environment
// variable, or flag overrides a field.
func defaults() Config {
	return Config{
		Host:     "0.0.0.0",
		Port:     8080,
		LogLevel: "info",
	}
}

// Load builds a Config by layering a YAML file (if path is non-empty and
// the file exists), a .env file in the current directory (if present),
// and environment variables, in that order. A missing file at path, or a
// missing .env file, is not an error — both layers are optional.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("unable to load configuration file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("unable to parse configuration file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("unable to load .env file: %w", err)
	}

	if host := os.Getenv("PIPETUNNEL_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PIPETUNNEL_PORT"); port != "" {
		parsed, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return cfg, fmt.Errorf("invalid PIPETUNNEL_PORT: %w", err)
		}
		cfg.Port = uint16(parsed)
	}
	if level := os.Getenv("PIPETUNNEL_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return cfg, nil
}

// ApplyLogLevel parses cfg.LogLevel and sets it on logger, returning an
// error if the name isn't recognized.
func ApplyLogLevel(cfg Config, logger *logging.Logger) error {
	level, ok := logging.NameToLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	logger.SetLevel(level)
	return nil
}
