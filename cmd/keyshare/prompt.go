// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/model"
	"github.com/toeirei/keyshare/internal/tui"
	"golang.org/x/term"
	"maunium.net/go/mautrix/id"
)

// isTerminal is swapped out by tests.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

func requireTerminal() error {
	if !isTerminal() {
		return errors.New(i18n.T("config.error_not_terminal"))
	}
	return nil
}

// runPrompt is swapped out by tests.
var runPrompt = tui.RunPrompt

func newPromptCmd() *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   "prompt USER DEVICE",
		Short: "Ask whether keys may be shared with one device",
		Long: `Shows the key share prompt for a single device and prints the decision.
With --request-id the decision is also recorded on that request.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			deviceID := id.DeviceID(args[1])
			ctx := cmd.Context()

			var req *model.KeyShareRequest
			if requestID != "" {
				if req, err = lookupRequest(ctx, requestID, userID, deviceID); err != nil {
					return err
				}
			}
			if err := requireTerminal(); err != nil {
				return err
			}

			decision, err := runPrompt(ctx, tuiDeps(), userID, deviceID)
			if err != nil {
				return err
			}
			cmd.Println(i18n.T("cli.decision", fmt.Sprintf("%s:%s", userID, deviceID), i18n.T("decision."+decision.String())))

			if req == nil {
				return nil
			}
			return recordDecision(ctx, req, decision)
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "Record the decision on this key request")
	return cmd
}

func parseUserID(s string) (id.UserID, error) {
	userID := id.UserID(s)
	if _, _, err := userID.Parse(); err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return userID, nil
}

func lookupRequest(ctx context.Context, requestID string, userID id.UserID, deviceID id.DeviceID) (*model.KeyShareRequest, error) {
	req, err := svc.store.GetKeyShareRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", requestID, err)
	}
	if req == nil {
		return nil, fmt.Errorf("key request %s not found", requestID)
	}
	if req.UserID != userID || req.DeviceID != deviceID {
		return nil, fmt.Errorf("key request %s belongs to %s:%s", requestID, req.UserID, req.DeviceID)
	}
	if req.Status != model.RequestPending {
		return nil, fmt.Errorf("key request %s is already %s", requestID, req.Status)
	}
	return req, nil
}

func recordDecision(ctx context.Context, req *model.KeyShareRequest, d model.Decision) error {
	if err := svc.store.UpdateKeyShareRequestStatus(ctx, req.RequestID, d.RequestStatus()); err != nil {
		return fmt.Errorf("record decision on %s: %w", req.RequestID, err)
	}
	details := fmt.Sprintf("device: %s:%s, request: %s", req.UserID, req.DeviceID, req.RequestID)
	return svc.store.LogAction(ctx, tui.AuditAction(d), details)
}
