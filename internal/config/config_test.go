// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("db-type", "sqlite", "")
	cmd.Flags().String("db-dsn", "./keyshare.db", "")
	cmd.Flags().String("lang", "en", "")
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c, err := LoadConfig[Config](newTestCmd(), Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Type != "sqlite" || c.Database.DSN != "./keyshare.db" {
		t.Fatalf("unexpected database defaults: %+v", c.Database)
	}
	if c.PollInterval != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", c.PollInterval)
	}
	if c.Homeserver.URL != "" {
		t.Fatalf("expected empty homeserver url, got %q", c.Homeserver.URL)
	}
}

func TestLoadConfig_FileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	content := "language: de\nrefresh_interval: 30s\nhomeserver:\n  url: https://matrix.example.org\n"
	if err := os.WriteFile(filepath.Join(dir, "keyshare.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("KEYSHARE_LOG_LEVEL", "debug")

	cmd := newTestCmd()
	if err := cmd.Flags().Set("db-dsn", ":memory:"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	c, err := LoadConfig[Config](cmd, Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Language != "de" {
		t.Fatalf("expected language from file, got %q", c.Language)
	}
	if c.RefreshInterval != 30*time.Second {
		t.Fatalf("expected refresh interval from file, got %s", c.RefreshInterval)
	}
	if c.Homeserver.URL != "https://matrix.example.org" {
		t.Fatalf("expected homeserver url from file, got %q", c.Homeserver.URL)
	}
	if c.LogLevel != "debug" {
		t.Fatalf("expected log level from env, got %q", c.LogLevel)
	}
	if c.Database.DSN != ":memory:" {
		t.Fatalf("expected dsn from flag, got %q", c.Database.DSN)
	}
}
