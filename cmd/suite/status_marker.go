// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// markerFileName is the state marker kept in the suite directory.
const markerFileName = ".operation"

// MarkerState is the suite's last recorded lifecycle state.
//
// Serialized as "operation" or "operation:engine", e.g. "start:ollama".
// The engine is recorded so stop knows which host process to kill.
type MarkerState struct {
	Operation Operation
	Engine    Token
}

// String serializes the marker content.
func (m MarkerState) String() string {
	if m.Engine != "" {
		return fmt.Sprintf("%s:%s", m.Operation, m.Engine)
	}
	return string(m.Operation)
}

// Satisfies reports whether the recorded state already covers the
// requested operation, making it a no-op.
//
// Any stop variant satisfies any other stop variant: the suite is
// down either way.
func (m MarkerState) Satisfies(op Operation) bool {
	if m.Operation == op {
		return true
	}
	return m.Operation.IsStopVariant() && op.IsStopVariant()
}

// StatusMarker reads and writes the suite's state marker file.
//
// # Description
//
//	The marker is the source of truth for in-state short-circuits:
//	when the recorded state already satisfies the requested operation,
//	the sequencer exits without a single external call. install and
//	update clear the marker up front so a failed run never claims a
//	healthy state.
type StatusMarker struct {
	dir string
}

// NewStatusMarker returns a marker rooted at the suite directory.
func NewStatusMarker(dir string) *StatusMarker {
	return &StatusMarker{dir: dir}
}

// path returns the marker file location.
func (s *StatusMarker) path() string {
	return filepath.Join(s.dir, markerFileName)
}

// Read returns the recorded state.
//
// # Outputs
//
//   - MarkerState: The recorded state (zero value when absent)
//   - bool: False when no marker exists or it is unreadable
func (s *StatusMarker) Read() (MarkerState, bool) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return MarkerState{}, false
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return MarkerState{}, false
	}

	op, engine, _ := strings.Cut(content, ":")
	parsed, err := ParseOperation(op)
	if err != nil {
		// Stale or hand-edited marker: treat as absent.
		return MarkerState{}, false
	}
	return MarkerState{Operation: parsed, Engine: Token(engine)}, true
}

// Write records a new state.
func (s *StatusMarker) Write(state MarkerState) error {
	if err := os.WriteFile(s.path(), []byte(state.String()+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write state marker: %w", err)
	}
	return nil
}

// Clear removes the marker. A missing marker is not an error.
func (s *StatusMarker) Clear() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear state marker: %w", err)
	}
	return nil
}
