// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures shared by the directory,
// the prompt and the request queue.
package model // import "github.com/toeirei/keyshare/internal/model"

import (
	"fmt"
	"time"

	"maunium.net/go/mautrix/id"
)

// User is a remote account whose devices are tracked in the directory.
type User struct {
	UserID      id.UserID
	DisplayName string
	// DevicesUpdatedAt is the last time the device list was fetched from the
	// homeserver. Zero means it was never fetched.
	DevicesUpdatedAt time.Time
}

// Device is a single login session of a user.
type Device struct {
	UserID      id.UserID
	DeviceID    id.DeviceID
	DisplayName string
	IdentityKey id.Curve25519
	SigningKey  id.Ed25519
	// Known is set once the local user has been shown the device. It is not
	// the same as Trust.
	Known   bool
	Trust   id.TrustState
	Deleted bool
}

// Name returns the display name, or the device ID when there is none.
func (d Device) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return string(d.DeviceID)
}

// IsVerified reports whether the device has been explicitly verified.
func (d Device) IsVerified() bool {
	return d.Trust == id.TrustStateVerified
}

// String returns the user:device representation.
func (d Device) String() string {
	return fmt.Sprintf("%s:%s", d.UserID, d.DeviceID)
}

// AuditLogEntry is a single row of the audit trail.
type AuditLogEntry struct {
	ID        int
	Timestamp string
	Username  string
	Action    string
	Details   string
}
