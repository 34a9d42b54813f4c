// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package verify

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/huh"
	"github.com/toeirei/keyshare/internal/model"
	"maunium.net/go/mautrix/id"
)

type recordingTrust struct {
	calls int
	last  id.TrustState
	err   error
}

func (r *recordingTrust) SetDeviceTrust(_ context.Context, _ id.UserID, _ id.DeviceID, trust id.TrustState) error {
	r.calls++
	r.last = trust
	return r.err
}

func newCheck(trust TrustSetter, confirm ConfirmFunc) *fingerprintCheck {
	f := &FingerprintInitiator{trust: trust, confirm: confirm}
	user := &model.User{UserID: "@bob:example.org", DisplayName: "Bob"}
	dev := &model.Device{UserID: "@bob:example.org", DeviceID: "DEVICE1", DisplayName: "Bob's Phone", SigningKey: "abcdefghijkl"}
	return f.check(context.Background(), user, dev)
}

func TestFingerprintCheck_Confirmed(t *testing.T) {
	trust := &recordingTrust{}
	var gotBody string
	c := newCheck(trust, func(_ io.Reader, _ io.Writer, _, body string) (bool, error) {
		gotBody = body
		return true, nil
	})
	if err := c.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if trust.calls != 1 || trust.last != id.TrustStateVerified {
		t.Fatalf("expected one verified trust write, got %d %v", trust.calls, trust.last)
	}
	if !strings.Contains(gotBody, "abcd efgh ijkl") || !strings.Contains(gotBody, "Bob") {
		t.Fatalf("body should show owner and grouped fingerprint, got %q", gotBody)
	}
}

func TestFingerprintCheck_RejectedOrAborted(t *testing.T) {
	for name, confirm := range map[string]ConfirmFunc{
		"rejected": func(io.Reader, io.Writer, string, string) (bool, error) { return false, nil },
		"aborted":  func(io.Reader, io.Writer, string, string) (bool, error) { return false, huh.ErrUserAborted },
	} {
		trust := &recordingTrust{}
		if err := newCheck(trust, confirm).Run(); err != nil {
			t.Fatalf("%s: expected nil error, got %v", name, err)
		}
		if trust.calls != 0 {
			t.Fatalf("%s: trust must not change", name)
		}
	}
}

func TestFingerprintCheck_Errors(t *testing.T) {
	boom := errors.New("tty gone")
	c := newCheck(&recordingTrust{}, func(io.Reader, io.Writer, string, string) (bool, error) { return false, boom })
	if err := c.Run(); !errors.Is(err, boom) {
		t.Fatalf("expected prompt error, got %v", err)
	}

	c = newCheck(&recordingTrust{}, func(io.Reader, io.Writer, string, string) (bool, error) { return true, nil })
	c.device.SigningKey = ""
	if err := c.Run(); err == nil {
		t.Fatalf("expected error for device without signing key")
	}
}

func TestFingerprint(t *testing.T) {
	tests := []struct {
		key  id.Ed25519
		want string
	}{
		{"", ""},
		{"abcdefgh", "abcd efgh"},
		{"abcdefghijkl", "abcd efgh ijkl"},
		{"abcdefghi", "abcd efgh i"},
		{
			"nBhUk1ujUjbtK1Ht6YKqwyEgtfxHQCtBo2xfyVWxC1k",
			"nBhU k1uj Ujbt K1Ht 6YKq wyEg tfxH QCtB o2xf yVWx C1k",
		},
		{
			"nBhUk1ujUjbtK1Ht6YKqwyEgtfxHQCtBo2xfyVWxC1k=",
			"nBhU k1uj Ujbt K1Ht 6YKq wyEg tfxH QCtB o2xf yVWx C1k=",
		},
	}
	for _, tt := range tests {
		if got := Fingerprint(tt.key); got != tt.want {
			t.Fatalf("Fingerprint(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestValidateSigningKey(t *testing.T) {
	if err := ValidateSigningKey("nBhUk1ujUjbtK1Ht6YKqwyEgtfxHQCtBo2xfyVWxC1k"); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	for _, bad := range []id.Ed25519{
		"",
		"abcdefgh",
		"nBhUk1ujUjbtK1Ht6YKqwyEgtfxHQCtBo2xfyVWxC1k=",
		"nBhUk1ujUjbtK1Ht6YKqwyEgtfxHQCtBo2xfyVWx!1k",
	} {
		if err := ValidateSigningKey(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if err := ValidateIdentityKey("abcd"); err == nil {
		t.Fatalf("expected short identity key to be rejected")
	}
}
