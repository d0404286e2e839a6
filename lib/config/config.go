// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for the backfill tool.
type Config struct {
	// Server configures the database connection.
	Server ServerConfig `yaml:"server"`

	// Backfill configures the copy job itself.
	Backfill BackfillConfig `yaml:"backfill"`
}

// ServerConfig configures the HTTP connection to the database.
type ServerConfig struct {
	// URL is the HTTP endpoint, e.g. http://localhost:8123.
	URL string `yaml:"url"`

	// Database is the database queries run against.
	Database string `yaml:"database"`

	// User authenticates the connection.
	User string `yaml:"user"`

	// Password authenticates the connection. May also come from the
	// CHSTREAM_PASSWORD environment variable; the file wins when both
	// are set.
	Password string `yaml:"password"`

	// Compression selects the transfer compression: "lz4", "zstd",
	// or "none".
	Compression string `yaml:"compression"`
}

// BackfillConfig configures one backfill job.
type BackfillConfig struct {
	// SourceTable is the table rows are read from.
	SourceTable string `yaml:"source_table"`

	// DestinationTable is the table rows are written to.
	DestinationTable string `yaml:"destination_table"`

	// Partition restricts the copy to one partition (YYYYMM).
	Partition string `yaml:"partition"`

	// BatchSize is the number of rows fetched per page.
	BatchSize int `yaml:"batch_size"`

	// CheckpointPath is where cursor state is persisted. Supports
	// ${HOME} expansion.
	CheckpointPath string `yaml:"checkpoint_path"`
}

// Default returns the default configuration. These defaults ensure all
// fields have sensible zero-values before the file is loaded; the file
// itself is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			URL:         "http://localhost:8123",
			Database:    "default",
			User:        "default",
			Compression: "lz4",
		},
		Backfill: BackfillConfig{
			BatchSize:      50000,
			CheckpointPath: filepath.Join(homeDir, ".cache", "chstream", "checkpoint.cbor"),
		},
	}
}

// Load loads configuration from the path in the CHSTREAM_CONFIG
// environment variable. There are no fallbacks: if the variable is not
// set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CHSTREAM_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CHSTREAM_CONFIG environment variable not set; " +
			"set it to the path of your config file, or use the --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; environment variables do not override
// its values, except CHSTREAM_PASSWORD which fills an empty password.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.Server.Password == "" {
		cfg.Server.Password = os.Getenv("CHSTREAM_PASSWORD")
	}
	cfg.Backfill.CheckpointPath = expandVars(cfg.Backfill.CheckpointPath, map[string]string{
		"HOME": os.Getenv("HOME"),
	})
	return cfg, nil
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.URL == "" {
		errs = append(errs, fmt.Errorf("server.url is required"))
	}
	if c.Server.Database == "" {
		errs = append(errs, fmt.Errorf("server.database is required"))
	}
	switch c.Server.Compression {
	case "lz4", "zstd", "none":
	default:
		errs = append(errs, fmt.Errorf("server.compression must be one of: lz4, zstd, none"))
	}

	if c.Backfill.SourceTable == "" {
		errs = append(errs, fmt.Errorf("backfill.source_table is required"))
	}
	if c.Backfill.DestinationTable == "" {
		errs = append(errs, fmt.Errorf("backfill.destination_table is required"))
	}
	if c.Backfill.SourceTable == c.Backfill.DestinationTable {
		errs = append(errs, fmt.Errorf("backfill.source_table and backfill.destination_table must differ"))
	}
	if c.Backfill.Partition == "" {
		errs = append(errs, fmt.Errorf("backfill.partition is required"))
	}
	if c.Backfill.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("backfill.batch_size must be positive"))
	}
	if c.Backfill.CheckpointPath == "" {
		errs = append(errs, fmt.Errorf("backfill.checkpoint_path is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
