// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"time"

	"maunium.net/go/mautrix/id"
)

// RequestStatus is the lifecycle state of a key share request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestShared    RequestStatus = "shared"
	RequestIgnored   RequestStatus = "ignored"
	RequestDismissed RequestStatus = "dismissed"
	RequestCancelled RequestStatus = "cancelled"
)

// ParseRequestStatus validates a status string.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(s); st {
	case RequestPending, RequestShared, RequestIgnored, RequestDismissed, RequestCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// KeyShareRequest is a request from a device to receive a room key.
type KeyShareRequest struct {
	RequestID   string
	UserID      id.UserID
	DeviceID    id.DeviceID
	RoomID      id.RoomID
	SessionID   id.SessionID
	Algorithm   id.Algorithm
	Status      RequestStatus
	RequestedAt time.Time
	ResolvedAt  *time.Time
}
