// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package frame

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
)

func TestDialogRender_TitleBodyButtons(t *testing.T) {
	d := NewDialog()
	out := d.Render("Encryption key request", "hello body", []string{"One", "Two", "Three"}, 0)
	for _, want := range []string{"Encryption key request", "hello body", "One", "Two", "Three"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in dialog output:\n%s", want, out)
		}
	}
}

func TestDialogRender_ChromeOnly(t *testing.T) {
	d := NewDialog()
	out := d.Render("Title", "", nil, -1)
	if !strings.Contains(out, "Title") {
		t.Fatalf("missing title: %s", out)
	}
	if n := strings.Count(out, "\n"); n > 3 {
		t.Fatalf("chrome-only dialog should be a few lines, got %d:\n%s", n, out)
	}
}

func TestDialogSetWidth(t *testing.T) {
	d := NewDialog()
	d.SetWidth(10)
	if d.Width() != defaultDialogWidth {
		t.Fatalf("too-small width should be ignored, got %d", d.Width())
	}
	d.SetWidth(40)
	if d.Width() != 40 {
		t.Fatalf("expected width 40, got %d", d.Width())
	}
}

func TestFooter(t *testing.T) {
	if got := Footer("left", "right", 12); got != "left   right" {
		t.Fatalf("unexpected footer %q", got)
	}
	if got := Footer("a long left side", "R", 6); got != "a lonR" {
		t.Fatalf("unexpected truncated footer %q", got)
	}
	if got := Footer("l", "r", 0); got != "l r" {
		t.Fatalf("unexpected zero-width footer %q", got)
	}
}

func TestSpinner_IgnoresForeignMessages(t *testing.T) {
	s := NewSpinner()
	if s.Init() == nil {
		t.Fatalf("expected a tick command from Init")
	}
	if cmd := s.Update("not a tick"); cmd != nil {
		t.Fatalf("expected nil cmd for foreign message")
	}
	if cmd := s.Update(s.model.Tick()); cmd == nil {
		t.Fatalf("expected next tick after a tick message")
	}
	if _, ok := s.model.Tick().(spinner.TickMsg); !ok {
		t.Fatalf("Tick should produce spinner.TickMsg")
	}
}
