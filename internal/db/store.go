// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"errors"

	"github.com/toeirei/keyshare/internal/model"
	"maunium.net/go/mautrix/id"
)

// ErrNotFound is returned by updates that target a missing row. Lookups
// return a nil value and a nil error instead.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations in keyshare.
type Store interface {
	// User methods
	GetUser(ctx context.Context, userID id.UserID) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error

	// Device methods
	GetDevices(ctx context.Context, userID id.UserID) ([]model.Device, error)
	GetDevice(ctx context.Context, userID id.UserID, deviceID id.DeviceID) (*model.Device, error)
	PutDevice(ctx context.Context, d *model.Device) error
	SetDeviceKnown(ctx context.Context, userID id.UserID, deviceID id.DeviceID, known bool) error
	SetDeviceTrust(ctx context.Context, userID id.UserID, deviceID id.DeviceID, trust id.TrustState) error

	// Key share request methods
	AddKeyShareRequest(ctx context.Context, r *model.KeyShareRequest) error
	GetKeyShareRequest(ctx context.Context, requestID string) (*model.KeyShareRequest, error)
	ListKeyShareRequests(ctx context.Context, status model.RequestStatus) ([]model.KeyShareRequest, error)
	UpdateKeyShareRequestStatus(ctx context.Context, requestID string, status model.RequestStatus) error

	// Audit Log methods
	GetAllAuditLogEntries(ctx context.Context) ([]model.AuditLogEntry, error)
	LogAction(ctx context.Context, action string, details string) error

	// Backup
	ExportData(ctx context.Context) (*model.BackupData, error)
	ImportData(ctx context.Context, backup *model.BackupData) error

	RunMaintenance(ctx context.Context) error
	Close() error
}

var _ Store = (*BunStore)(nil)
