// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/keyshare/internal/config"
	"github.com/toeirei/keyshare/internal/i18n"
)

func newAuditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := svc.store.GetAllAuditLogEntries(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			for _, e := range entries {
				cmd.Printf("%s  %-10s %-22s %s\n", e.Timestamp, e.Username, e.Action, e.Details)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many entries (0 shows all)")
	return cmd
}

func newMaintenanceCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "db-maintain",
		Short: "Run database maintenance (VACUUM/OPTIMIZE) for the configured DB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := svc.store.RunMaintenance(ctx); err != nil {
				return err
			}
			cmd.Println(i18n.T("cli.maintenance_done"))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort maintenance after this long (0 means no timeout)")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// Config commands must work without a reachable database.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	}

	var system bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to keyshare.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path, err := config.WriteConfigFile(&cfg, system)
			if err != nil {
				return err
			}
			cmd.Println(i18n.T("cli.config_written", path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&system, "system", false, "Write the system-wide config instead of the user config")
	cmd.AddCommand(initCmd)
	return cmd
}
