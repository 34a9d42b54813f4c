// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/toeirei/keyshare/internal/db"
	"github.com/toeirei/keyshare/internal/handler"
	"github.com/toeirei/keyshare/internal/logging"
	"github.com/toeirei/keyshare/internal/model"
)

// Audit actions written for prompt outcomes.
const (
	ActionShareKeys      = "SHARE_KEYS"
	ActionIgnoreRequest  = "IGNORE_KEY_REQUEST"
	ActionDismissRequest = "DISMISS_KEY_REQUEST"
)

// AuditAction maps a decision onto its audit log action.
func AuditAction(d model.Decision) string {
	switch d {
	case model.DecisionShare:
		return ActionShareKeys
	case model.DecisionDeny:
		return ActionIgnoreRequest
	default:
		return ActionDismissRequest
	}
}

// resolution is one decided device as shown in the history.
type resolution struct {
	key      handler.DeviceKey
	decision model.Decision
	requests int
	at       time.Time
}

type recordedMsg struct {
	res resolution
	err error
}

// recordResolution stores the decision on every request of the device and
// writes one audit entry for it. Requests that vanished in the meantime are
// skipped.
func recordResolution(ctx context.Context, store Store, key handler.DeviceKey, reqs []model.KeyShareRequest, d model.Decision) tea.Cmd {
	return func() tea.Msg {
		res := resolution{key: key, decision: d, requests: len(reqs), at: time.Now()}
		status := d.RequestStatus()
		for _, r := range reqs {
			err := store.UpdateKeyShareRequestStatus(ctx, r.RequestID, status)
			if errors.Is(err, db.ErrNotFound) {
				logging.Debugf("request %s vanished before it could be marked %s", r.RequestID, status)
				continue
			}
			if err != nil {
				return recordedMsg{res: res, err: fmt.Errorf("mark request %s %s: %w", r.RequestID, status, err)}
			}
		}
		details := fmt.Sprintf("device: %s, requests: %d", key, len(reqs))
		if err := store.LogAction(ctx, AuditAction(d), details); err != nil {
			return recordedMsg{res: res, err: fmt.Errorf("write audit log: %w", err)}
		}
		return recordedMsg{res: res}
	}
}
