// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package util provides small shared helpers for the suite CLI.
package util

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// UserPrompter asks the user for yes/no confirmation.
//
// Destructive operations route every prompt through this interface so
// tests can script answers without a terminal.
type UserPrompter interface {
	// Confirm asks a yes/no question and returns the answer.
	Confirm(title, description string) (bool, error)
}

// DefaultPrompter is the production prompter.
//
// # Description
//
//	Interactive sessions get a styled confirmation form. When stdin is
//	not a terminal the prompter falls back to reading a plain y/n line,
//	so piped invocations still work. AssumeYes short-circuits both
//	paths for --yes runs.
type DefaultPrompter struct {
	// AssumeYes answers every prompt affirmatively without asking.
	AssumeYes bool
}

// Compile-time interface checks.
var (
	_ UserPrompter = (*DefaultPrompter)(nil)
	_ UserPrompter = (*MockPrompter)(nil)
)

// Confirm asks a yes/no question.
func (p *DefaultPrompter) Confirm(title, description string) (bool, error) {
	if p.AssumeYes {
		return true, nil
	}

	if !stdinIsTerminal() {
		return confirmPlain(title)
	}

	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}

// stdinIsTerminal reports whether stdin is attached to a terminal.
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// confirmPlain reads a y/n answer from stdin without any TUI.
func confirmPlain(title string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", title)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		// EOF on a closed stdin means nobody can answer: decline.
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// PromptCall records one Confirm invocation on the mock.
type PromptCall struct {
	Title       string
	Description string
}

// MockPrompter is a test double for UserPrompter.
//
// # Description
//
//	Scripts answers via ConfirmFunc and records every call. A nil
//	ConfirmFunc answers yes, which keeps happy-path tests short.
type MockPrompter struct {
	ConfirmFunc func(title, description string) (bool, error)

	mu    sync.Mutex
	Calls []PromptCall
}

// Confirm implements UserPrompter.
func (m *MockPrompter) Confirm(title, description string) (bool, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, PromptCall{Title: title, Description: description})
	m.mu.Unlock()

	if m.ConfirmFunc == nil {
		return true, nil
	}
	return m.ConfirmFunc(title, description)
}

// Reset clears recorded calls.
func (m *MockPrompter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of recorded calls.
func (m *MockPrompter) GetCalls() []PromptCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]PromptCall, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}
