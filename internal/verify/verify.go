// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// package verify runs the interactive device verification that the key share
// prompt can route through before sharing keys.
package verify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/logging"
	"github.com/toeirei/keyshare/internal/model"
	"maunium.net/go/mautrix/id"
)

// Initiator starts an interactive verification of device. The returned
// command must eventually deliver done(err), where err is non-nil only if
// the flow itself failed. An abandoned or rejected verification is not an
// error; the caller re-reads the trust state afterwards.
type Initiator interface {
	Verify(ctx context.Context, user *model.User, device *model.Device, done func(error) tea.Msg) tea.Cmd
}

// TrustSetter stores the outcome of a verification.
type TrustSetter interface {
	SetDeviceTrust(ctx context.Context, userID id.UserID, deviceID id.DeviceID, trust id.TrustState) error
}

// ConfirmFunc asks the user a yes/no question on the given terminal streams.
type ConfirmFunc func(in io.Reader, out io.Writer, title, body string) (bool, error)

// FingerprintInitiator suspends the running program and asks the user to
// compare the device's signing key fingerprint out of band.
type FingerprintInitiator struct {
	trust   TrustSetter
	confirm ConfirmFunc
}

// NewFingerprintInitiator returns an initiator that asks through a huh form.
func NewFingerprintInitiator(trust TrustSetter) *FingerprintInitiator {
	return &FingerprintInitiator{trust: trust, confirm: huhConfirm}
}

// Verify implements Initiator via tea.Exec so the form owns the terminal
// while it runs.
func (f *FingerprintInitiator) Verify(ctx context.Context, user *model.User, device *model.Device, done func(error) tea.Msg) tea.Cmd {
	return tea.Exec(f.check(ctx, user, device), done)
}

func (f *FingerprintInitiator) check(ctx context.Context, user *model.User, device *model.Device) *fingerprintCheck {
	return &fingerprintCheck{ctx: ctx, user: user, device: device, trust: f.trust, confirm: f.confirm}
}

// fingerprintCheck is the tea.ExecCommand run while the TUI is suspended.
type fingerprintCheck struct {
	ctx     context.Context
	user    *model.User
	device  *model.Device
	trust   TrustSetter
	confirm ConfirmFunc

	stdin  io.Reader
	stdout io.Writer
}

func (c *fingerprintCheck) SetStdin(r io.Reader)  { c.stdin = r }
func (c *fingerprintCheck) SetStdout(w io.Writer) { c.stdout = w }
func (c *fingerprintCheck) SetStderr(io.Writer)   {}

func (c *fingerprintCheck) Run() error {
	if c.device.SigningKey == "" {
		return fmt.Errorf("device %s has no signing key to verify", c.device)
	}
	owner := string(c.user.UserID)
	if c.user.DisplayName != "" {
		owner = c.user.DisplayName
	}
	title := i18n.T("verify.heading", c.device.Name())
	body := i18n.T("verify.body", owner, Fingerprint(c.device.SigningKey))

	ok, err := c.confirm(c.stdin, c.stdout, title, body)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			logging.Infof("verify: verification of %s abandoned", c.device)
			return nil
		}
		return fmt.Errorf("verification prompt failed: %w", err)
	}
	if !ok {
		logging.Infof("verify: fingerprint of %s rejected", c.device)
		return nil
	}
	if err := c.trust.SetDeviceTrust(c.ctx, c.device.UserID, c.device.DeviceID, id.TrustStateVerified); err != nil {
		return fmt.Errorf("store verification of %s: %w", c.device, err)
	}
	logging.Infof("verify: %s verified by fingerprint", c.device)
	return nil
}

// keyLength is the decoded size of ed25519 and curve25519 keys.
const keyLength = 32

// Fingerprint formats a signing key for comparison by a human: groups of
// four characters separated by spaces.
func Fingerprint(key id.Ed25519) string {
	var b strings.Builder
	for i, r := range []rune(string(key)) {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateSigningKey checks that key is unpadded base64 of an ed25519 key.
func ValidateSigningKey(key id.Ed25519) error {
	return validateKey("ed25519", string(key))
}

// ValidateIdentityKey checks that key is unpadded base64 of a curve25519 key.
func ValidateIdentityKey(key id.Curve25519) error {
	return validateKey("curve25519", string(key))
}

func validateKey(kind, key string) error {
	raw, err := base64.RawStdEncoding.DecodeString(key)
	if err != nil {
		return fmt.Errorf("invalid %s key %q: not unpadded base64: %w", kind, key, err)
	}
	if len(raw) != keyLength {
		return fmt.Errorf("invalid %s key %q: %d bytes, want %d", kind, key, len(raw), keyLength)
	}
	return nil
}

func huhConfirm(in io.Reader, out io.Writer, title, body string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(body).
				Affirmative(i18n.T("verify.affirmative")).
				Negative(i18n.T("verify.negative")).
				Value(&ok),
		),
	)
	if in != nil {
		form = form.WithInput(in)
	}
	if out != nil {
		form = form.WithOutput(out)
	}
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}
