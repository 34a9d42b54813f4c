// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/toeirei/keyshare/internal/model"
	"github.com/uptrace/bun"
	"maunium.net/go/mautrix/id"
)

// BunStore is the bun implementation of Store. The same queries serve all
// three dialects; only migrations and maintenance differ per engine.
type BunStore struct {
	bun    *bun.DB
	dbType string
}

// UserModel maps the `users` table for Bun queries.
type UserModel struct {
	bun.BaseModel    `bun:"table:users"`
	UserID           string     `bun:"user_id,pk"`
	DisplayName      string     `bun:"display_name"`
	DevicesUpdatedAt *time.Time `bun:"devices_updated_at"`
}

// DeviceModel maps the `devices` table.
type DeviceModel struct {
	bun.BaseModel `bun:"table:devices"`
	UserID        string `bun:"user_id,pk"`
	DeviceID      string `bun:"device_id,pk"`
	DisplayName   string `bun:"display_name"`
	IdentityKey   string `bun:"identity_key"`
	SigningKey    string `bun:"signing_key"`
	Known         bool   `bun:"known"`
	Trust         int    `bun:"trust"`
	Deleted       bool   `bun:"deleted"`
}

// KeyShareRequestModel maps the `key_share_requests` table.
type KeyShareRequestModel struct {
	bun.BaseModel `bun:"table:key_share_requests"`
	RequestID     string     `bun:"request_id,pk"`
	UserID        string     `bun:"user_id"`
	DeviceID      string     `bun:"device_id"`
	RoomID        string     `bun:"room_id"`
	SessionID     string     `bun:"session_id"`
	Algorithm     string     `bun:"algorithm"`
	Status        string     `bun:"status"`
	RequestedAt   time.Time  `bun:"requested_at"`
	ResolvedAt    *time.Time `bun:"resolved_at"`
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Username      string `bun:"username"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

func userModelToModel(m UserModel) model.User {
	u := model.User{UserID: id.UserID(m.UserID), DisplayName: m.DisplayName}
	if m.DevicesUpdatedAt != nil {
		u.DevicesUpdatedAt = *m.DevicesUpdatedAt
	}
	return u
}

func userToModel(u *model.User) UserModel {
	m := UserModel{UserID: string(u.UserID), DisplayName: u.DisplayName}
	if !u.DevicesUpdatedAt.IsZero() {
		t := u.DevicesUpdatedAt
		m.DevicesUpdatedAt = &t
	}
	return m
}

func deviceModelToModel(m DeviceModel) model.Device {
	return model.Device{
		UserID:      id.UserID(m.UserID),
		DeviceID:    id.DeviceID(m.DeviceID),
		DisplayName: m.DisplayName,
		IdentityKey: id.Curve25519(m.IdentityKey),
		SigningKey:  id.Ed25519(m.SigningKey),
		Known:       m.Known,
		Trust:       id.TrustState(m.Trust),
		Deleted:     m.Deleted,
	}
}

func deviceToModel(d *model.Device) DeviceModel {
	return DeviceModel{
		UserID:      string(d.UserID),
		DeviceID:    string(d.DeviceID),
		DisplayName: d.DisplayName,
		IdentityKey: string(d.IdentityKey),
		SigningKey:  string(d.SigningKey),
		Known:       d.Known,
		Trust:       int(d.Trust),
		Deleted:     d.Deleted,
	}
}

func requestModelToModel(m KeyShareRequestModel) model.KeyShareRequest {
	return model.KeyShareRequest{
		RequestID:   m.RequestID,
		UserID:      id.UserID(m.UserID),
		DeviceID:    id.DeviceID(m.DeviceID),
		RoomID:      id.RoomID(m.RoomID),
		SessionID:   id.SessionID(m.SessionID),
		Algorithm:   id.Algorithm(m.Algorithm),
		Status:      model.RequestStatus(m.Status),
		RequestedAt: m.RequestedAt,
		ResolvedAt:  m.ResolvedAt,
	}
}

func requestToModel(r *model.KeyShareRequest) KeyShareRequestModel {
	return KeyShareRequestModel{
		RequestID:   r.RequestID,
		UserID:      string(r.UserID),
		DeviceID:    string(r.DeviceID),
		RoomID:      string(r.RoomID),
		SessionID:   string(r.SessionID),
		Algorithm:   string(r.Algorithm),
		Status:      string(r.Status),
		RequestedAt: r.RequestedAt,
		ResolvedAt:  r.ResolvedAt,
	}
}

// GetUser returns the user or nil when it is not in the directory.
func (s *BunStore) GetUser(ctx context.Context, userID id.UserID) (*model.User, error) {
	var m UserModel
	err := s.bun.NewSelect().Model(&m).Where("user_id = ?", string(userID)).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u := userModelToModel(m)
	return &u, nil
}

// SaveUser inserts or updates a user.
func (s *BunStore) SaveUser(ctx context.Context, u *model.User) error {
	m := userToModel(u)
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*UserModel)(nil)).Where("user_id = ?", m.UserID).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			_, err = tx.NewUpdate().Model(&m).WherePK().Exec(ctx)
		} else {
			_, err = tx.NewInsert().Model(&m).Exec(ctx)
		}
		return MapDBError(err)
	})
}

// GetDevices returns every device of a user, including deleted ones.
func (s *BunStore) GetDevices(ctx context.Context, userID id.UserID) ([]model.Device, error) {
	var rows []DeviceModel
	if err := s.bun.NewSelect().Model(&rows).Where("user_id = ?", string(userID)).Order("device_id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Device, 0, len(rows))
	for _, r := range rows {
		out = append(out, deviceModelToModel(r))
	}
	return out, nil
}

// GetDevice returns a single device or nil when it does not exist.
func (s *BunStore) GetDevice(ctx context.Context, userID id.UserID, deviceID id.DeviceID) (*model.Device, error) {
	var m DeviceModel
	err := s.bun.NewSelect().Model(&m).
		Where("user_id = ?", string(userID)).
		Where("device_id = ?", string(deviceID)).
		Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	d := deviceModelToModel(m)
	return &d, nil
}

// PutDevice inserts or fully replaces a device row.
func (s *BunStore) PutDevice(ctx context.Context, d *model.Device) error {
	m := deviceToModel(d)
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*DeviceModel)(nil)).
			Where("user_id = ?", m.UserID).
			Where("device_id = ?", m.DeviceID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			_, err = tx.NewUpdate().Model(&m).WherePK().Exec(ctx)
		} else {
			_, err = tx.NewInsert().Model(&m).Exec(ctx)
		}
		return MapDBError(err)
	})
}

// SetDeviceKnown sets or clears the known flag of a device.
func (s *BunStore) SetDeviceKnown(ctx context.Context, userID id.UserID, deviceID id.DeviceID, known bool) error {
	res, err := s.bun.NewUpdate().Model((*DeviceModel)(nil)).
		Set("known = ?", known).
		Where("user_id = ?", string(userID)).
		Where("device_id = ?", string(deviceID)).
		Exec(ctx)
	return checkAffected(res, err)
}

// SetDeviceTrust stores a new trust state for a device.
func (s *BunStore) SetDeviceTrust(ctx context.Context, userID id.UserID, deviceID id.DeviceID, trust id.TrustState) error {
	res, err := s.bun.NewUpdate().Model((*DeviceModel)(nil)).
		Set("trust = ?", int(trust)).
		Where("user_id = ?", string(userID)).
		Where("device_id = ?", string(deviceID)).
		Exec(ctx)
	return checkAffected(res, err)
}

// checkAffected turns a zero-row update into ErrNotFound. MySQL DSNs need
// clientFoundRows=true, otherwise an unchanged row counts as zero.
func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddKeyShareRequest records a new request. A repeated request id maps to ErrDuplicate.
func (s *BunStore) AddKeyShareRequest(ctx context.Context, r *model.KeyShareRequest) error {
	if r.Status == "" {
		r.Status = model.RequestPending
	}
	if r.RequestedAt.IsZero() {
		r.RequestedAt = time.Now().UTC()
	}
	m := requestToModel(r)
	_, err := s.bun.NewInsert().Model(&m).Exec(ctx)
	return MapDBError(err)
}

// GetKeyShareRequest returns a request or nil when it does not exist.
func (s *BunStore) GetKeyShareRequest(ctx context.Context, requestID string) (*model.KeyShareRequest, error) {
	var m KeyShareRequestModel
	err := s.bun.NewSelect().Model(&m).Where("request_id = ?", requestID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r := requestModelToModel(m)
	return &r, nil
}

// ListKeyShareRequests returns requests in arrival order. An empty status
// returns all of them.
func (s *BunStore) ListKeyShareRequests(ctx context.Context, status model.RequestStatus) ([]model.KeyShareRequest, error) {
	var rows []KeyShareRequestModel
	q := s.bun.NewSelect().Model(&rows).Order("requested_at ASC", "request_id ASC")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.KeyShareRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, requestModelToModel(r))
	}
	return out, nil
}

// UpdateKeyShareRequestStatus moves a request to status. Anything other than
// pending also stamps resolved_at.
func (s *BunStore) UpdateKeyShareRequestStatus(ctx context.Context, requestID string, status model.RequestStatus) error {
	q := s.bun.NewUpdate().Model((*KeyShareRequestModel)(nil)).
		Set("status = ?", string(status)).
		Where("request_id = ?", requestID)
	if status == model.RequestPending {
		q = q.Set("resolved_at = NULL")
	} else {
		q = q.Set("resolved_at = ?", time.Now().UTC())
	}
	res, err := q.Exec(ctx)
	return checkAffected(res, err)
}

// GetAllAuditLogEntries retrieves all entries from the audit log, most recent first.
func (s *BunStore) GetAllAuditLogEntries(ctx context.Context) ([]model.AuditLogEntry, error) {
	var rows []AuditLogModel
	if err := s.bun.NewSelect().Model(&rows).Order("id DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.AuditLogEntry{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			Username:  r.Username,
			Action:    r.Action,
			Details:   r.Details,
		})
	}
	return out, nil
}

// LogAction records an audit trail event for the current OS user.
func (s *BunStore) LogAction(ctx context.Context, action string, details string) error {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	_, err := s.bun.NewInsert().Model(&AuditLogModel{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Username:  username,
		Action:    action,
		Details:   details,
	}).Exec(ctx)
	return err
}

// ExportData retrieves all users, devices and requests for a backup.
func (s *BunStore) ExportData(ctx context.Context) (*model.BackupData, error) {
	backup := &model.BackupData{SchemaVersion: model.BackupSchemaVersion}

	var users []UserModel
	if err := s.bun.NewSelect().Model(&users).Order("user_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	for _, u := range users {
		backup.Users = append(backup.Users, userModelToModel(u))
	}

	var devices []DeviceModel
	if err := s.bun.NewSelect().Model(&devices).Order("user_id ASC", "device_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("export devices: %w", err)
	}
	for _, d := range devices {
		backup.Devices = append(backup.Devices, deviceModelToModel(d))
	}

	reqs, err := s.ListKeyShareRequests(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("export requests: %w", err)
	}
	backup.Requests = reqs
	return backup, nil
}

// ImportData merges a backup into the store. Existing users and devices are
// overwritten; existing requests are kept as they are.
func (s *BunStore) ImportData(ctx context.Context, backup *model.BackupData) error {
	if backup.SchemaVersion != model.BackupSchemaVersion {
		return fmt.Errorf("unsupported backup schema version %d", backup.SchemaVersion)
	}
	for i := range backup.Users {
		if err := s.SaveUser(ctx, &backup.Users[i]); err != nil {
			return fmt.Errorf("import user %s: %w", backup.Users[i].UserID, err)
		}
	}
	for i := range backup.Devices {
		if err := s.PutDevice(ctx, &backup.Devices[i]); err != nil {
			return fmt.Errorf("import device %s: %w", backup.Devices[i], err)
		}
	}
	for i := range backup.Requests {
		err := s.AddKeyShareRequest(ctx, &backup.Requests[i])
		if err != nil && !errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("import request %s: %w", backup.Requests[i].RequestID, err)
		}
	}
	return nil
}

// Close releases the underlying database.
func (s *BunStore) Close() error {
	return s.bun.Close()
}
