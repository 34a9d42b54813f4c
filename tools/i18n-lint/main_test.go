// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFlattenYAML(t *testing.T) {
	keys := map[string]struct{}{}
	flattenYAML("", map[string]any{
		"keyshare": map[string]any{"title": "x", "help_move": "y"},
		"top":      "z",
	}, keys)
	for _, k := range []string{"keyshare.title", "keyshare.help_move", "top"} {
		if _, ok := keys[k]; !ok {
			t.Fatalf("expected %s in %v", k, keys)
		}
	}
}

func TestLint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "internal", "app", "app.go"), `package app
func f(d fmt.Stringer) {
	_ = i18n.T("app.title")
	_ = i18n.T("app.gone", 1)
	_ = i18n.T("decision." + d.String())
}`)
	// Test files and tools are not scanned.
	writeFile(t, filepath.Join(root, "internal", "app", "app_test.go"), `package app
var _ = i18n.T("test.only")`)
	writeFile(t, filepath.Join(root, "tools", "x", "main.go"), `package main
var _ = i18n.T("tools.only")`)

	locales := filepath.Join(root, "locales")
	writeFile(t, filepath.Join(locales, "en.yaml"), `app:
  title: "Title"
  unused: "Unused"
decision:
  share: "shared"
  deny: "ignored"
`)
	writeFile(t, filepath.Join(locales, "de.yaml"), `app:
  title: "Titel"
  unused: "Unbenutzt"
decision:
  share: "geteilt"
`)

	r, err := lint(root, locales, "en.yaml")
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if !reflect.DeepEqual(r.unknown, []string{"app.gone"}) {
		t.Fatalf("unknown = %v", r.unknown)
	}
	if !reflect.DeepEqual(r.orphaned, []string{"app.unused"}) {
		t.Fatalf("orphaned = %v", r.orphaned)
	}
	if !reflect.DeepEqual(r.missing, map[string][]string{"de.yaml": {"decision.deny"}}) {
		t.Fatalf("missing = %v", r.missing)
	}
	if !r.failed() {
		t.Fatalf("expected the run to fail")
	}
}

func TestLint_ShippedLocales(t *testing.T) {
	root := filepath.Join("..", "..")
	r, err := lint(root, filepath.Join(root, localesDir), primaryLocale)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if r.failed() {
		t.Fatalf("locales are inconsistent: unknown=%v missing=%v", r.unknown, r.missing)
	}
}
