// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/toeirei/keyshare/internal/logging"
)

const maintenanceTimeout = 2 * time.Minute

// maintainedTables are the tables OPTIMIZE TABLE is run on for MySQL.
var maintainedTables = []string{"users", "devices", "key_share_requests", "audit_log"}

// RunMaintenance compacts and checks the database. The work is engine
// specific and bounded by maintenanceTimeout unless ctx ends first.
func (s *BunStore) RunMaintenance(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch s.dbType {
	case "sqlite":
		err = s.maintainSQLite(ctx)
	case "postgres":
		if _, err = s.bun.ExecContext(ctx, "VACUUM ANALYZE"); err != nil {
			err = fmt.Errorf("postgres vacuum failed: %w", err)
		}
	case "mysql":
		err = s.maintainMySQL(ctx)
	default:
		err = fmt.Errorf("unsupported db type for maintenance: %s", s.dbType)
	}
	if err == nil {
		logging.Debugf("db: %s maintenance finished in %s", s.dbType, time.Since(start))
	}
	return err
}

func (s *BunStore) maintainSQLite(ctx context.Context) error {
	// optimize is a hint and may be refused, e.g. for in-memory databases.
	if _, err := s.bun.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		logging.Debugf("db: sqlite optimize failed (ignored): %v", err)
	}
	if _, err := s.bun.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("sqlite vacuum failed: %w", err)
	}
	_, _ = s.bun.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")

	var res string
	if err := s.bun.NewRaw("PRAGMA integrity_check").Scan(ctx, &res); err != nil {
		return fmt.Errorf("sqlite integrity_check: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("sqlite integrity_check failed: %s", res)
	}
	return nil
}

func (s *BunStore) maintainMySQL(ctx context.Context) error {
	var failed []string
	var lastErr error
	for _, table := range maintainedTables {
		if _, err := s.bun.ExecContext(ctx, "OPTIMIZE TABLE "+table); err != nil {
			logging.Debugf("db: mysql optimize table %s failed: %v", table, err)
			failed = append(failed, table)
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("mysql optimize failed for %v: %w", failed, lastErr)
	}
	return nil
}
