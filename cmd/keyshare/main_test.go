// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toeirei/keyshare/internal/db"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/model"
	"github.com/toeirei/keyshare/internal/tui"
	"github.com/toeirei/keyshare/internal/verify"
	"maunium.net/go/mautrix/id"
)

// testEnv isolates config discovery and points the CLI at a fresh sqlite file.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	return filepath.Join(dir, "keyshare.db")
}

// execute runs the CLI with args and returns its combined output.
func execute(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db-dsn", dsn}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, dsn string, args ...string) string {
	t.Helper()
	out, err := execute(t, dsn, args...)
	if err != nil {
		t.Fatalf("keyshare %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func openStore(t *testing.T, dsn string) db.Store {
	t.Helper()
	s, err := db.New("sqlite", dsn)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	for _, n := range []string{"prompt", "devices", "requests", "audit", "export", "import", "db-maintain", "config", "version"} {
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == n {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected subcommand %s to be registered", n)
		}
	}
	if cmd.Version == "" {
		t.Fatalf("expected a version")
	}
}

func TestDevicesCommands(t *testing.T) {
	dsn := testEnv(t)
	const bob = "@bob:example.org"
	const signingKey = "VzJIYXQ85u19z2HFIvdOX1ewGfVSOhI3jRmJ/PXwtEc"
	fingerprint := verify.Fingerprint(signingKey)

	mustExecute(t, dsn, "devices", "add", bob, "PHONE", "--name", "Bob's Phone", "--ed25519", signingKey)
	out := mustExecute(t, dsn, "devices", "list", bob)
	if !strings.Contains(out, "Bob's Phone") || !strings.Contains(out, fingerprint) {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	mustExecute(t, dsn, "devices", "trust", bob, "PHONE", "verified")
	mustExecute(t, dsn, "devices", "known", bob, "PHONE")

	var copied string
	old := copyToClipboard
	copyToClipboard = func(s string) error { copied = s; return nil }
	defer func() { copyToClipboard = old }()
	out = mustExecute(t, dsn, "devices", "fingerprint", bob, "PHONE", "--copy")
	if copied != fingerprint || !strings.Contains(out, copied) {
		t.Fatalf("expected fingerprint to be printed and copied, got %q / %q", out, copied)
	}

	s := openStore(t, dsn)
	d, _ := s.GetDevice(context.Background(), bob, "PHONE")
	if d == nil || !d.Known || !d.IsVerified() {
		t.Fatalf("device flags not stored: %#v", d)
	}
	_ = s.Close()

	// a new signing key drops the verification
	mustExecute(t, dsn, "devices", "add", bob, "PHONE", "--ed25519", "rotated"+signingKey[7:])
	s = openStore(t, dsn)
	d, _ = s.GetDevice(context.Background(), bob, "PHONE")
	if d == nil || d.IsVerified() || d.DisplayName != "Bob's Phone" {
		t.Fatalf("expected trust reset with name kept, got %#v", d)
	}
}

func TestDevicesCommands_Errors(t *testing.T) {
	dsn := testEnv(t)
	if _, err := execute(t, dsn, "devices", "list", "not-a-user"); err == nil {
		t.Fatalf("expected invalid user id error")
	}
	if _, err := execute(t, dsn, "devices", "trust", "@bob:example.org", "PHONE", "sorta"); err == nil {
		t.Fatalf("expected unknown trust state error")
	}
	if _, err := execute(t, dsn, "devices", "fingerprint", "@bob:example.org", "MISSING"); err == nil {
		t.Fatalf("expected missing session error")
	}
	if _, err := execute(t, dsn, "devices", "refresh", "@bob:example.org"); err == nil {
		t.Fatalf("refresh without a homeserver should fail")
	}
	for _, key := range []string{"abcdefgh", "nBhUk1ujUjbtK1Ht6YKqwyEgtfxHQCtBo2xfyVWxC1k="} {
		if _, err := execute(t, dsn, "devices", "add", "@bob:example.org", "PHONE", "--ed25519", key); err == nil {
			t.Fatalf("expected signing key %q to be rejected", key)
		}
	}
	s := openStore(t, dsn)
	if d, _ := s.GetDevice(context.Background(), "@bob:example.org", "PHONE"); d != nil {
		t.Fatalf("a rejected key must not store the session: %#v", d)
	}
}

func TestRequestsCommands(t *testing.T) {
	dsn := testEnv(t)
	mustExecute(t, dsn, "requests", "add", "@bob:example.org", "PHONE", "--room", "!room:example.org")

	s := openStore(t, dsn)
	reqs, err := s.ListKeyShareRequests(context.Background(), model.RequestPending)
	if err != nil || len(reqs) != 1 {
		t.Fatalf("expected one pending request, got %v, %v", reqs, err)
	}
	rid := reqs[0].RequestID
	if reqs[0].Algorithm != id.AlgorithmMegolmV1 {
		t.Fatalf("expected default algorithm, got %q", reqs[0].Algorithm)
	}
	_ = s.Close()

	out := mustExecute(t, dsn, "requests", "list", "--status", "pending")
	if !strings.Contains(out, rid) {
		t.Fatalf("list should show %s:\n%s", rid, out)
	}
	if _, err := execute(t, dsn, "requests", "list", "--status", "bogus"); err == nil {
		t.Fatalf("expected status validation error")
	}

	mustExecute(t, dsn, "requests", "cancel", rid)
	if _, err := execute(t, dsn, "requests", "cancel", rid); err == nil {
		t.Fatalf("cancelling twice should fail")
	}
	out = mustExecute(t, dsn, "audit")
	if !strings.Contains(out, "CANCEL_KEY_REQUEST") {
		t.Fatalf("audit should list the cancellation:\n%s", out)
	}
}

func TestPromptCmd_RecordsDecision(t *testing.T) {
	dsn := testEnv(t)
	mustExecute(t, dsn, "requests", "add", "@bob:example.org", "PHONE")
	s := openStore(t, dsn)
	reqs, _ := s.ListKeyShareRequests(context.Background(), model.RequestPending)
	rid := reqs[0].RequestID
	_ = s.Close()

	oldTerm, oldRun := isTerminal, runPrompt
	defer func() { isTerminal, runPrompt = oldTerm, oldRun }()
	isTerminal = func() bool { return true }
	var gotDevice id.DeviceID
	runPrompt = func(_ context.Context, _ tui.Deps, _ id.UserID, deviceID id.DeviceID) (model.Decision, error) {
		gotDevice = deviceID
		return model.DecisionShare, nil
	}

	out := mustExecute(t, dsn, "prompt", "@bob:example.org", "PHONE", "--request-id", rid)
	if gotDevice != "PHONE" || !strings.Contains(out, "shared") {
		t.Fatalf("unexpected prompt run: %q, %q", gotDevice, out)
	}

	s = openStore(t, dsn)
	r, _ := s.GetKeyShareRequest(context.Background(), rid)
	if r == nil || r.Status != model.RequestShared {
		t.Fatalf("expected request to be shared, got %#v", r)
	}
	entries, _ := s.GetAllAuditLogEntries(context.Background())
	if len(entries) == 0 || entries[0].Action != tui.ActionShareKeys {
		t.Fatalf("expected SHARE_KEYS audit entry, got %#v", entries)
	}
	_ = s.Close()

	// the request is resolved now
	if _, err := execute(t, dsn, "prompt", "@bob:example.org", "PHONE", "--request-id", rid); err == nil {
		t.Fatalf("expected error for a resolved request")
	}
}

func TestPromptCmd_RequiresTerminal(t *testing.T) {
	dsn := testEnv(t)
	old := isTerminal
	defer func() { isTerminal = old }()
	isTerminal = func() bool { return false }

	_, err := execute(t, dsn, "prompt", "@bob:example.org", "PHONE")
	if err == nil || err.Error() != i18n.T("config.error_not_terminal") {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func TestExportImport(t *testing.T) {
	dsn := testEnv(t)
	mustExecute(t, dsn, "devices", "add", "@bob:example.org", "PHONE", "--name", "Bob's Phone")
	mustExecute(t, dsn, "requests", "add", "@bob:example.org", "PHONE")

	mustExecute(t, dsn, "export", "backup.json")
	if _, err := os.Stat("backup.json.zst"); err != nil {
		t.Fatalf("expected backup.json.zst: %v", err)
	}

	other := filepath.Join(filepath.Dir(dsn), "other.db")
	out := mustExecute(t, other, "import", "backup.json.zst")
	if !strings.Contains(out, "1 users, 1 sessions and 1 key requests") {
		t.Fatalf("unexpected import output: %s", out)
	}
	s := openStore(t, other)
	d, _ := s.GetDevice(context.Background(), "@bob:example.org", "PHONE")
	if d == nil || d.DisplayName != "Bob's Phone" {
		t.Fatalf("device not imported: %#v", d)
	}
}

func TestMaintenanceCmd(t *testing.T) {
	dsn := testEnv(t)
	out := mustExecute(t, dsn, "db-maintain")
	if !strings.Contains(out, "Maintenance completed") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestConfigInit(t *testing.T) {
	dsn := testEnv(t)
	out := mustExecute(t, dsn, "config", "init", "--lang", "de")
	want := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "keyshare", "keyshare.yaml")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("config not written to %s: %v (%s)", want, err, out)
	}
	if !strings.Contains(string(data), "language: de") || !strings.Contains(string(data), dsn) {
		t.Fatalf("unexpected config:\n%s", data)
	}
	i18n.Init("en")
}

func TestConfigInit_UnknownLanguageFallsBack(t *testing.T) {
	dsn := testEnv(t)
	mustExecute(t, dsn, "config", "init", "--lang", "xx")
	data, err := os.ReadFile(filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "keyshare", "keyshare.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "language: en") {
		t.Fatalf("expected english fallback:\n%s", data)
	}
}
