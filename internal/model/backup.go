// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// BackupSchemaVersion is bumped whenever BackupData changes shape.
const BackupSchemaVersion = 1

// BackupData is the full directory and request history, as written by export.
type BackupData struct {
	SchemaVersion int               `json:"schema_version"`
	Users         []User            `json:"users"`
	Devices       []Device          `json:"devices"`
	Requests      []KeyShareRequest `json:"requests"`
}
