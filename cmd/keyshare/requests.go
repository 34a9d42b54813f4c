// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/model"
	"maunium.net/go/mautrix/id"
)

func newRequestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Queue, list and cancel key share requests",
	}
	cmd.AddCommand(newRequestsAddCmd(), newRequestsListCmd(), newRequestsCancelCmd())
	return cmd
}

func newRequestsAddCmd() *cobra.Command {
	var room, session, algorithm string
	cmd := &cobra.Command{
		Use:   "add USER DEVICE",
		Short: "Queue a key share request from a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			req := &model.KeyShareRequest{
				RequestID:   uuid.NewString(),
				UserID:      userID,
				DeviceID:    id.DeviceID(args[1]),
				RoomID:      id.RoomID(room),
				SessionID:   id.SessionID(session),
				Algorithm:   id.Algorithm(algorithm),
				Status:      model.RequestPending,
				RequestedAt: time.Now().UTC(),
			}
			if err := svc.store.AddKeyShareRequest(cmd.Context(), req); err != nil {
				return err
			}
			cmd.Println(i18n.T("cli.request_added", req.RequestID))
			return nil
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "Room the requested session belongs to")
	cmd.Flags().StringVar(&session, "session", "", "Megolm session id")
	cmd.Flags().StringVar(&algorithm, "algorithm", string(id.AlgorithmMegolmV1), "Encryption algorithm")
	return cmd
}

func newRequestsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List key share requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st model.RequestStatus
			if status != "" {
				var err error
				if st, err = model.ParseRequestStatus(status); err != nil {
					return err
				}
			}
			reqs, err := svc.store.ListKeyShareRequests(cmd.Context(), st)
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				cmd.Println(i18n.T("cli.no_requests"))
				return nil
			}
			for _, r := range reqs {
				cmd.Printf("%s  %-36s %-10s %s:%s %s\n",
					r.RequestedAt.Local().Format(time.DateTime), r.RequestID, r.Status, r.UserID, r.DeviceID, r.RoomID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show requests with this status (pending, shared, ignored, dismissed, cancelled)")
	return cmd
}

func newRequestsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending key share request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req, err := svc.store.GetKeyShareRequest(ctx, args[0])
			if err != nil {
				return err
			}
			if req == nil {
				return fmt.Errorf("key request %s not found", args[0])
			}
			if req.Status != model.RequestPending {
				return fmt.Errorf("key request %s is already %s", req.RequestID, req.Status)
			}
			if err := svc.store.UpdateKeyShareRequestStatus(ctx, req.RequestID, model.RequestCancelled); err != nil {
				return err
			}
			if err := svc.store.LogAction(ctx, "CANCEL_KEY_REQUEST", fmt.Sprintf("device: %s:%s, request: %s", req.UserID, req.DeviceID, req.RequestID)); err != nil {
				return err
			}
			cmd.Println(i18n.T("cli.request_cancelled", req.RequestID))
			return nil
		},
	}
}
