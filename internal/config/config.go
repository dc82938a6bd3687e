// Package config loads the settings shared by the sqlmodel command and library users.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel      = "info"
	DefaultSlowThreshold = time.Second
	DefaultInfoThreshold = 100 * time.Millisecond
)

// Config represents the top-level YAML configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	// Schema is the PostgreSQL schema or MySQL database to inspect.
	Schema    string `yaml:"schema"`
	Namespace string `yaml:"namespace"`
	// Checksum is 32 bytes, hex or base64 encoded. It replaces the namespace as
	// password key material when set.
	Checksum string   `yaml:"checksum"`
	LogLevel string   `yaml:"log_level"`
	Models   []string `yaml:"models"`

	SlowThreshold time.Duration `yaml:"slow_threshold"`
	InfoThreshold time.Duration `yaml:"info_threshold"`
}

// Load reads and parses a YAML config file. An empty path loads from the
// environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv fills in empty fields from environment variables.
// YAML values take precedence; env vars are used only as fallback.
func (c *Config) applyEnv() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("SQLMODEL_DATABASE_URL")
	}
	if c.Schema == "" {
		c.Schema = os.Getenv("SQLMODEL_SCHEMA")
	}
	if c.Namespace == "" {
		c.Namespace = os.Getenv("SQLMODEL_NAMESPACE")
	}
	if c.Checksum == "" {
		c.Checksum = os.Getenv("SQLMODEL_CHECKSUM")
	}
	if c.LogLevel == "" {
		c.LogLevel = os.Getenv("SQLMODEL_LOG_LEVEL")
	}
	if len(c.Models) == 0 {
		if v := os.Getenv("SQLMODEL_MODELS"); v != "" {
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					c.Models = append(c.Models, p)
				}
			}
		}
	}
}

func (c *Config) validate() error {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = DefaultSlowThreshold
	}
	if c.InfoThreshold == 0 {
		c.InfoThreshold = DefaultInfoThreshold
	}
	if c.SlowThreshold < 0 || c.InfoThreshold < 0 {
		return errors.New("query thresholds must be positive")
	}
	if c.InfoThreshold > c.SlowThreshold {
		return fmt.Errorf("info_threshold %s exceeds slow_threshold %s", c.InfoThreshold, c.SlowThreshold)
	}
	if _, err := c.ChecksumBytes(); err != nil {
		return err
	}
	return nil
}

// Level parses the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// ChecksumBytes decodes the checksum, returning nil when none is configured.
func (c *Config) ChecksumBytes() ([]byte, error) {
	if c.Checksum == "" {
		return nil, nil
	}
	if b, err := hex.DecodeString(c.Checksum); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(c.Checksum); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, errors.New("checksum must be 32 bytes, hex or base64 encoded")
}

// RequireDatabase reports a missing database URL.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required (or set SQLMODEL_DATABASE_URL)")
	}
	return nil
}
