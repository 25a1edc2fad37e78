// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// Helper to capture stdout
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// Helper to capture stderr
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestSuccess_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := captureStdout(func() {
		Success("stack started")
	})

	if out != "OK: stack started\n" {
		t.Errorf("Success() machine output = %q, want %q", out, "OK: stack started\n")
	}
}

func TestWarning_MachineMode_GoesToStderr(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	errOut := captureStderr(func() {
		Warning("profile dropped")
	})

	if errOut != "WARN: profile dropped\n" {
		t.Errorf("Warning() machine output = %q, want %q", errOut, "WARN: profile dropped\n")
	}
}

func TestError_MachineMode_GoesToStderr(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	errOut := captureStderr(func() {
		Error("compose up failed")
	})

	if errOut != "ERROR: compose up failed\n" {
		t.Errorf("Error() machine output = %q, want %q", errOut, "ERROR: compose up failed\n")
	}
}

func TestInfo_MachineMode_PlainText(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := captureStdout(func() {
		Info("waiting for database")
	})

	if out != "waiting for database\n" {
		t.Errorf("Info() machine output = %q, want %q", out, "waiting for database\n")
	}
}

func TestTitle_MachineMode_Suppressed(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := captureStdout(func() {
		Title("Aleutian Suite")
	})

	if out != "" {
		t.Errorf("Title() machine output = %q, want empty", out)
	}
}

func TestServiceStatus_MachineMode_TabSeparated(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := captureStdout(func() {
		ServiceStatus("open-webui", IconSuccess, "running")
	})

	if out != "✓\topen-webui\trunning\n" {
		t.Errorf("ServiceStatus() machine output = %q", out)
	}
}

func TestSummary_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := captureStdout(func() {
		Summary(3, 1, 4)
	})

	if out != "SUMMARY: running=3 stopped=1 total=4\n" {
		t.Errorf("Summary() machine output = %q", out)
	}
}

func TestBox_MachineMode_Flattened(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	out := captureStdout(func() {
		Box("Status", "all services running")
	})

	if out != "Status: all services running\n" {
		t.Errorf("Box() machine output = %q", out)
	}
}

func TestIcon_Render_Unstyled(t *testing.T) {
	// Icons without a dedicated style render as their raw glyph
	if got := IconArrow.Render(); got != string(IconArrow) {
		t.Errorf("IconArrow.Render() = %q, want %q", got, string(IconArrow))
	}
}

func TestSuccess_FullMode_ContainsIcon(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityFull)

	out := captureStdout(func() {
		Success("done")
	})

	if !strings.Contains(out, "✓") || !strings.Contains(out, "done") {
		t.Errorf("Success() full output = %q, want icon and message", out)
	}
}
