// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
)

// TestLoggingHelpers_WriteToBuffer verifies the package helper functions write
// formatted messages to the package-level logger `L`. The test swaps `L` with
// a buffer-backed logger and restores it afterwards.
func TestLoggingHelpers_WriteToBuffer(t *testing.T) {
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	L.SetLevel(clog.DebugLevel)
	defer func() { L = prev }()

	Debugf("hello %s", "dbg")
	Infof("info %d", 1)
	Warnf("No details found for session %s:%s", "@bob:example.org", "DEVICE1")
	Errorf("err %v", "E")

	out := buf.String()
	for _, want := range []string{"hello dbg", "info 1", "@bob:example.org:DEVICE1", "err E"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output; got: %s", want, out)
		}
	}
}

func TestSetLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	defer func() { L = prev }()

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	Infof("should not appear")
	Warnf("visible")
	if strings.Contains(buf.String(), "should not appear") {
		t.Fatalf("info message leaked through warn level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("warn message missing: %s", buf.String())
	}

	if err := SetLevel("nonsense"); err == nil {
		t.Fatalf("expected error for invalid level")
	}

	SetDebug(true)
	Debugf("dbg on")
	if !strings.Contains(buf.String(), "dbg on") {
		t.Fatalf("debug message missing after SetDebug(true): %s", buf.String())
	}
}

func TestToFile_RestoresStderr(t *testing.T) {
	prev := L
	L = clog.New(&bytes.Buffer{})
	defer func() { L = prev }()

	path := filepath.Join(t.TempDir(), "logs", "keyshare.log")
	closeLog, err := ToFile(path)
	if err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	Warnf("written to file")
	if err := closeLog(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "written to file") {
		t.Fatalf("log file content %q, %v", data, err)
	}
}
