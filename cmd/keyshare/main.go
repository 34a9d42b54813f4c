// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for keyshare using the
// Cobra library. It defines the root command, which launches the request
// queue TUI, the single prompt command and the maintenance subcommands.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toeirei/keyshare/internal/config"
	"github.com/toeirei/keyshare/internal/db"
	"github.com/toeirei/keyshare/internal/directory"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/logging"
	"github.com/toeirei/keyshare/internal/tui"
	"github.com/toeirei/keyshare/internal/verify"
	"maunium.net/go/mautrix/id"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA

// services are the dependencies every data command shares. They are set up
// by openServices and released by closeServices.
type services struct {
	cfg   config.Config
	store db.Store
	dir   *directory.Directory
}

var svc *services

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration for cmd and applies the
// language and log level.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := getConfigPathFromCli(cmd)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.LoadConfig[config.Config](cmd, config.Defaults(), path)
	if err != nil {
		return cfg, fmt.Errorf("error loading config: %w", err)
	}

	if _, ok := i18n.GetAvailableLocales()[cfg.Language]; !ok {
		logging.Warnf("unknown language %q, falling back to en", cfg.Language)
		cfg.Language = "en"
	}
	i18n.Init(cfg.Language)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logging.SetDebug(true)
	} else if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openServices is the PersistentPreRunE of every command that touches the
// database.
func openServices(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := db.New(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		return errors.New(i18n.T("config.error_init_db", err))
	}

	opts := []directory.Option{directory.WithRefreshInterval(cfg.RefreshInterval)}
	if cfg.Homeserver.URL != "" {
		fetcher, err := directory.NewMatrixFetcher(cfg.Homeserver.URL, id.UserID(cfg.Homeserver.UserID), cfg.Homeserver.AccessToken)
		if err != nil {
			_ = store.Close()
			return err
		}
		opts = append(opts, directory.WithFetcher(fetcher))
		logging.Debugf("device lists are refreshed from %s", cfg.Homeserver.URL)
	}

	svc = &services{cfg: cfg, store: store, dir: directory.New(store, opts...)}
	return nil
}

func closeServices(*cobra.Command, []string) error {
	if svc == nil {
		return nil
	}
	err := svc.store.Close()
	svc = nil
	return err
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	// Only proceed if the user has explicitly set the --config flag.
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	// Make sure the user-provided file exists to avoid unwanted behavior.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
	}
	return &path, nil
}

// tuiDeps wires the open services into the TUI.
func tuiDeps() tui.Deps {
	return tui.Deps{
		Store:        svc.store,
		Directory:    svc.dir,
		Trust:        svc.dir,
		Verifier:     verify.NewFingerprintInitiator(svc.dir),
		PollInterval: svc.cfg.PollInterval,
		LogFile:      svc.cfg.LogFile,
	}
}

// NewRootCmd creates and configures a new root cobra command.
// It builds fresh subcommands on every call so tests get isolated flag sets.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyshare",
		Short: "keyshare decides which devices may receive encryption keys.",
		Long: `keyshare keeps a directory of users and their devices and asks you,
one device at a time, whether pending encryption key requests should be
answered. A device can be verified by fingerprint before its keys are shared.

Running without a subcommand will launch the interactive request queue.`,
		SilenceUsage:       true,
		PersistentPreRunE:  openServices,
		PersistentPostRunE: closeServices,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTerminal(); err != nil {
				return err
			}
			return tui.Run(cmd.Context(), tuiDeps())
		},
	}

	cmd.Version = resolveVersion()

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file")
	cmd.PersistentFlags().String("db-type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("db-dsn", "./keyshare.db", "Database connection string (DSN)")
	cmd.PersistentFlags().String("lang", "en", "Language ("+strings.Join(i18n.SortedLocales(), ", ")+")")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", "", "Log file used while the TUI is running")

	cmd.AddCommand(
		newPromptCmd(),
		newDevicesCmd(),
		newRequestsCmd(),
		newAuditCmd(),
		newExportCmd(),
		newImportCmd(),
		newMaintenanceCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

// resolveVersion prefers the linker-provided version and falls back to the
// module build info.
func resolveVersion() string {
	v, c := version, gitCommit
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" && c == "dev" {
				c = s.Value
			}
		}
	}
	if c != "" && c != "dev" {
		return v + " (" + c + ")"
	}
	return v
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		// No database needed.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("version: %s\n", resolveVersion())
		},
	}
}
