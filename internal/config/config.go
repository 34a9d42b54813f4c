// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// package config loads keyshare settings from defaults, config files,
// environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the effective keyshare configuration.
type Config struct {
	Database        Database      `mapstructure:"database" yaml:"database"`
	Language        string        `mapstructure:"language" yaml:"language"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile         string        `mapstructure:"log_file" yaml:"log_file"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	Homeserver      Homeserver    `mapstructure:"homeserver" yaml:"homeserver"`
}

type Database struct {
	Type string `mapstructure:"type" yaml:"type"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// Homeserver configures the optional remote device list refresh. An empty
// URL keeps the directory local-only.
type Homeserver struct {
	URL         string `mapstructure:"url" yaml:"url"`
	UserID      string `mapstructure:"user_id" yaml:"user_id"`
	AccessToken string `mapstructure:"access_token" yaml:"access_token"`
}

// Defaults returns the default key/value pairs used by LoadConfig.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":           "sqlite",
		"database.dsn":            "./keyshare.db",
		"language":                "en",
		"log_level":               "info",
		"log_file":                defaultLogFile(),
		"poll_interval":           2 * time.Second,
		"refresh_interval":        10 * time.Minute,
		"homeserver.url":          "",
		"homeserver.user_id":      "",
		"homeserver.access_token": "",
	}
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "keyshare.log"
	}
	return filepath.Join(dir, "keyshare", "keyshare.log")
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Keyshare")
		default: // Linux, macOS, etc.
			configDir = "/etc/keyshare"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "keyshare")
	}

	return filepath.Join(configDir, "keyshare.yaml"), nil
}

// LoadConfig builds a T from defaults, keyshare.yaml, KEYSHARE_* environment
// variables and the flags of cmd, in increasing order of precedence.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, additionalConfigFilePath *string) (T, error) {
	var c T
	v := viper.New()

	// 1. Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. Set up file search paths
	v.SetConfigName("keyshare")
	v.SetConfigType("yaml")

	// 3. An explicit --config path wins over the search paths.
	if additionalConfigFilePath != nil && *additionalConfigFilePath != "" {
		v.SetConfigFile(*additionalConfigFilePath)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	// 4. Read in the primary config file.
	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	// 5. Environment
	v.SetEnvPrefix("keyshare")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	// 6. Flags
	if cmd != nil {
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// flagKeys maps CLI flag names onto config keys where they differ.
var flagKeys = map[string]string{
	"db-type":   "database.type",
	"db-dsn":    "database.dsn",
	"lang":      "language",
	"log-level": "log_level",
	"log-file":  "log_file",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// WriteConfigFile writes c as YAML to the user or system config path and
// returns the path written.
func WriteConfigFile[T any](c *T, system bool) (string, error) {
	path, err := getConfigPath(system)
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the file may hold a homeserver access token.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}

	return path, nil
}
