// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/model"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [output-file]",
		Short: "Write users, sessions and key requests to a compressed (zstd) JSON file",
		Long: `Dumps the device directory and the key request history into a single,
Zstandard-compressed JSON file. '.zst' is appended to the name if missing.
Without an argument the file is named 'keyshare-backup-YYYY-MM-DD.json.zst'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFile := fmt.Sprintf("keyshare-backup-%s.json.zst", time.Now().Format("2006-01-02"))
			if len(args) == 1 {
				outputFile = args[0]
				if !strings.HasSuffix(outputFile, ".zst") {
					outputFile += ".zst"
				}
			}
			data, err := svc.store.ExportData(cmd.Context())
			if err != nil {
				return fmt.Errorf("export data: %w", err)
			}
			if err := writeCompressedBackup(outputFile, data); err != nil {
				return err
			}
			cmd.Println(i18n.T("cli.export_done", outputFile))
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Restore users, sessions and key requests from an export",
		Long: `Merges a file written by 'keyshare export' into the database. Existing
users and sessions are overwritten, existing key requests are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readCompressedBackup(args[0])
			if err != nil {
				return err
			}
			if err := svc.store.ImportData(cmd.Context(), data); err != nil {
				return fmt.Errorf("import data: %w", err)
			}
			cmd.Println(i18n.T("cli.import_done", len(data.Users), len(data.Devices), len(data.Requests), args[0]))
			return nil
		},
	}
}

// writeCompressedBackup streams the JSON encoding directly into a zstd
// writer.
func writeCompressedBackup(filename string, data *model.BackupData) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	zstdWriter, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}

	encoder := json.NewEncoder(zstdWriter)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		_ = zstdWriter.Close()
		return fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	if err := zstdWriter.Close(); err != nil {
		return fmt.Errorf("could not flush zstd writer: %w", err)
	}
	return file.Close()
}

// readCompressedBackup reads and decodes a zstd-compressed JSON backup file.
func readCompressedBackup(filename string) (*model.BackupData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zstdReader.Close()

	var backupData model.BackupData
	if err := json.NewDecoder(zstdReader).Decode(&backupData); err != nil {
		return nil, fmt.Errorf("could not decode json from zstd reader: %w", err)
	}
	return &backupData, nil
}
