// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.URL != "http://localhost:8123" {
		t.Errorf("expected default URL, got %s", cfg.Server.URL)
	}
	if cfg.Server.Compression != "lz4" {
		t.Errorf("expected compression=lz4, got %s", cfg.Server.Compression)
	}
	if cfg.Backfill.BatchSize != 50000 {
		t.Errorf("expected batch_size=50000, got %d", cfg.Backfill.BatchSize)
	}
}

func TestLoadRequiresConfigVariable(t *testing.T) {
	t.Setenv("CHSTREAM_CONFIG", "")
	os.Unsetenv("CHSTREAM_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CHSTREAM_CONFIG not set, got nil")
	}
	if !strings.Contains(err.Error(), "CHSTREAM_CONFIG") {
		t.Errorf("error %q does not mention CHSTREAM_CONFIG", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chstream.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
server:
  url: https://ch.example.com:8443
  database: analytics
  user: backfill
  password: hunter2
  compression: zstd
backfill:
  source_table: observations
  destination_table: events
  partition: "202608"
  batch_size: 10000
  checkpoint_path: /tmp/cp.cbor
`

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.URL != "https://ch.example.com:8443" {
		t.Errorf("url = %s", cfg.Server.URL)
	}
	if cfg.Server.Compression != "zstd" {
		t.Errorf("compression = %s", cfg.Server.Compression)
	}
	if cfg.Backfill.Partition != "202608" {
		t.Errorf("partition = %s", cfg.Backfill.Partition)
	}
	if cfg.Backfill.BatchSize != 10000 {
		t.Errorf("batch_size = %d", cfg.Backfill.BatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadViaEnvironment(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("CHSTREAM_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backfill.SourceTable != "observations" {
		t.Errorf("source_table = %s", cfg.Backfill.SourceTable)
	}
}

func TestPasswordFromEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  url: http://localhost:8123
  database: analytics
backfill:
  source_table: a
  destination_table: b
  partition: "202608"
`)
	t.Setenv("CHSTREAM_PASSWORD", "from-env")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Password != "from-env" {
		t.Errorf("password = %q", cfg.Server.Password)
	}
}

func TestPasswordFileWinsOverEnvironment(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("CHSTREAM_PASSWORD", "from-env")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Password != "hunter2" {
		t.Errorf("password = %q, file must win", cfg.Server.Password)
	}
}

func TestCheckpointPathExpansion(t *testing.T) {
	path := writeConfig(t, `
backfill:
  source_table: a
  destination_table: b
  partition: "202608"
  checkpoint_path: ${HOME}/state/cp.cbor
`)
	t.Setenv("HOME", "/home/backfill")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Backfill.CheckpointPath != "/home/backfill/state/cp.cbor" {
		t.Errorf("checkpoint_path = %s", cfg.Backfill.CheckpointPath)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing url", func(c *Config) { c.Server.URL = "" }, "server.url"},
		{"bad compression", func(c *Config) { c.Server.Compression = "gzip" }, "compression"},
		{"missing source", func(c *Config) { c.Backfill.SourceTable = "" }, "source_table"},
		{"same tables", func(c *Config) { c.Backfill.DestinationTable = c.Backfill.SourceTable }, "must differ"},
		{"missing partition", func(c *Config) { c.Backfill.Partition = "" }, "partition"},
		{"zero batch", func(c *Config) { c.Backfill.BatchSize = 0 }, "batch_size"},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.Backfill.SourceTable = "observations"
		cfg.Backfill.DestinationTable = "events"
		cfg.Backfill.Partition = "202608"

		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestExpandVarsDefault(t *testing.T) {
	got := expandVars("${MISSING_VAR:-/fallback}/x", map[string]string{})
	if got != "/fallback/x" {
		t.Errorf("got %s", got)
	}
}
