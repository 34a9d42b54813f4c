// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/model"
	"github.com/toeirei/keyshare/internal/verify"
	"maunium.net/go/mautrix/id"
)

// copyToClipboard is swapped out by tests.
var copyToClipboard = clipboard.WriteAll

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect and manage the device directory",
	}
	cmd.AddCommand(
		newDevicesListCmd(),
		newDevicesAddCmd(),
		newDevicesKnownCmd(),
		newDevicesTrustCmd(),
		newDevicesRefreshCmd(),
		newDevicesFingerprintCmd(),
	)
	return cmd
}

func newDevicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list USER",
		Short: "List the sessions of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			devices, err := svc.store.GetDevices(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				cmd.Println(i18n.T("cli.no_devices", userID))
				return nil
			}
			sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceID < devices[j].DeviceID })
			cmd.Printf("%-14s %-24s %-6s %-14s %s\n", "DEVICE", "NAME", "KNOWN", "TRUST", "FINGERPRINT")
			for _, d := range devices {
				name := d.Name()
				if d.Deleted {
					name += " (deleted)"
				}
				fp := "-"
				if d.SigningKey != "" {
					fp = verify.Fingerprint(d.SigningKey)
				}
				cmd.Printf("%-14s %-24s %-6t %-14s %s\n", d.DeviceID, name, d.Known, d.Trust, fp)
			}
			return nil
		},
	}
}

func newDevicesAddCmd() *cobra.Command {
	var name, ed25519, curve25519 string
	cmd := &cobra.Command{
		Use:   "add USER DEVICE",
		Short: "Add or update a session in the local directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ed25519") {
				if err := verify.ValidateSigningKey(id.Ed25519(ed25519)); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("curve25519") {
				if err := verify.ValidateIdentityKey(id.Curve25519(curve25519)); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			deviceID := id.DeviceID(args[1])

			if u, err := svc.store.GetUser(ctx, userID); err != nil {
				return err
			} else if u == nil {
				if err := svc.store.SaveUser(ctx, &model.User{UserID: userID}); err != nil {
					return err
				}
			}

			dev := &model.Device{UserID: userID, DeviceID: deviceID}
			if existing, err := svc.store.GetDevice(ctx, userID, deviceID); err != nil {
				return err
			} else if existing != nil {
				dev = existing
			}
			if cmd.Flags().Changed("name") {
				dev.DisplayName = name
			}
			if cmd.Flags().Changed("ed25519") && id.Ed25519(ed25519) != dev.SigningKey {
				dev.SigningKey = id.Ed25519(ed25519)
				// A new signing key invalidates any earlier verification.
				dev.Trust = id.TrustStateUnset
			}
			if cmd.Flags().Changed("curve25519") {
				dev.IdentityKey = id.Curve25519(curve25519)
			}
			dev.Deleted = false
			if err := svc.store.PutDevice(ctx, dev); err != nil {
				return err
			}
			cmd.Println(i18n.T("cli.device_added", dev))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name of the session")
	cmd.Flags().StringVar(&ed25519, "ed25519", "", "Unpadded base64 ed25519 signing key")
	cmd.Flags().StringVar(&curve25519, "curve25519", "", "Unpadded base64 curve25519 identity key")
	return cmd
}

func newDevicesKnownCmd() *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "known USER DEVICE",
		Short: "Mark a session as seen before (or not)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return svc.dir.SetDeviceKnown(cmd.Context(), userID, id.DeviceID(args[1]), !unset)
		},
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "Clear the known flag instead")
	return cmd
}

// trustStates are the states a user may set by hand.
var trustStates = map[string]id.TrustState{
	"verified":    id.TrustStateVerified,
	"unset":       id.TrustStateUnset,
	"blacklisted": id.TrustStateBlacklisted,
}

func newDevicesTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "trust USER DEVICE verified|unset|blacklisted",
		Short:     "Set the trust state of a session",
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"verified", "unset", "blacklisted"},
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			state, ok := trustStates[strings.ToLower(args[2])]
			if !ok {
				return fmt.Errorf("unknown trust state %q", args[2])
			}
			deviceID := id.DeviceID(args[1])
			if err := svc.dir.SetDeviceTrust(cmd.Context(), userID, deviceID, state); err != nil {
				return err
			}
			return svc.store.LogAction(cmd.Context(), "SET_DEVICE_TRUST", fmt.Sprintf("device: %s:%s, trust: %s", userID, deviceID, state))
		},
	}
}

func newDevicesRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh USER...",
		Short: "Download the current device lists from the homeserver",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if svc.cfg.Homeserver.URL == "" {
				return fmt.Errorf("no homeserver configured (homeserver.url)")
			}
			users := make([]id.UserID, 0, len(args))
			for _, a := range args {
				u, err := parseUserID(a)
				if err != nil {
					return err
				}
				users = append(users, u)
			}
			devices, err := svc.dir.DownloadKeys(cmd.Context(), users, true)
			if err != nil {
				return err
			}
			for _, u := range users {
				cmd.Println(i18n.T("cli.refreshed", len(devices[u]), u))
			}
			return nil
		},
	}
}

func newDevicesFingerprintCmd() *cobra.Command {
	var copyIt bool
	cmd := &cobra.Command{
		Use:   "fingerprint USER DEVICE",
		Short: "Print the signing key fingerprint of a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			dev, err := svc.store.GetDevice(cmd.Context(), userID, id.DeviceID(args[1]))
			if err != nil {
				return err
			}
			if dev == nil {
				return fmt.Errorf("session %s:%s not found", userID, args[1])
			}
			if dev.SigningKey == "" {
				return fmt.Errorf("session %s has no signing key", dev)
			}
			fp := verify.Fingerprint(dev.SigningKey)
			cmd.Println(fp)
			if copyIt {
				if err := copyToClipboard(fp); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				cmd.Println(i18n.T("cli.fingerprint_copied"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyIt, "copy", false, "Also copy the fingerprint to the clipboard")
	return cmd
}
