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
	"regexp"
	"strings"
)

// envKeyPattern is the shell-compatible identifier rule for keys.
var envKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sensitiveKeyMarkers flag keys whose values must never be displayed.
var sensitiveKeyMarkers = []string{"SECRET", "PASSWORD", "TOKEN", "KEY"}

// envLine is one physical line of the dotenv file.
//
// Comment and blank lines carry raw text only; entry lines also carry
// the parsed key/value so lookups and in-place updates work without
// disturbing the rest of the file.
type envLine struct {
	raw     string
	key     string
	value   string
	isEntry bool
}

// EnvStore is an order-preserving dotenv file editor.
//
// # Description
//
//	Parses a .env file into its physical lines, keeping comments,
//	blank lines, and declaration order intact. Mutations touch only
//	the affected line; Save serializes the lines back verbatim. A
//	missing file loads as an empty store, so first-run writes work.
//
// # Limitations
//
//   - No interpolation: ${VAR} references are treated as literal text
//   - Multi-line quoted values are not supported
type EnvStore struct {
	path  string
	lines []envLine
}

// LoadEnvStore reads a dotenv file into a store.
//
// A missing file is not an error: the store starts empty and Save
// creates the file.
func LoadEnvStore(path string) (*EnvStore, error) {
	store := &EnvStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	content := strings.TrimSuffix(string(data), "\n")
	if content == "" {
		return store, nil
	}
	for _, raw := range strings.Split(content, "\n") {
		store.lines = append(store.lines, parseEnvLine(raw))
	}
	return store, nil
}

// parseEnvLine classifies one physical line.
func parseEnvLine(raw string) envLine {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return envLine{raw: raw}
	}

	eq := strings.Index(trimmed, "=")
	if eq <= 0 {
		return envLine{raw: raw}
	}

	key := strings.TrimSpace(trimmed[:eq])
	if !envKeyPattern.MatchString(key) {
		return envLine{raw: raw}
	}

	value := strings.TrimSpace(trimmed[eq+1:])
	value = unquoteEnvValue(value)
	return envLine{raw: raw, key: key, value: value, isEntry: true}
}

// unquoteEnvValue strips one matching pair of surrounding quotes.
func unquoteEnvValue(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// quoteEnvValue quotes a value when serialization would be ambiguous.
func quoteEnvValue(v string) string {
	if strings.ContainsAny(v, " \t#\"'") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}

// Path returns the file the store was loaded from.
func (s *EnvStore) Path() string {
	return s.path
}

// Get returns the value for a key.
func (s *EnvStore) Get(key string) (string, bool) {
	for i := len(s.lines) - 1; i >= 0; i-- {
		if s.lines[i].isEntry && s.lines[i].key == key {
			return s.lines[i].value, true
		}
	}
	return "", false
}

// Has reports whether the key is declared.
func (s *EnvStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set assigns a value, updating the existing line in place or
// appending a new one.
func (s *EnvStore) Set(key, value string) error {
	if !envKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid env key %q", key)
	}

	for i := range s.lines {
		if s.lines[i].isEntry && s.lines[i].key == key {
			s.lines[i].value = value
			s.lines[i].raw = key + "=" + quoteEnvValue(value)
			return nil
		}
	}

	s.lines = append(s.lines, envLine{
		raw:     key + "=" + quoteEnvValue(value),
		key:     key,
		value:   value,
		isEntry: true,
	})
	return nil
}

// SetIfAbsent assigns a value only when the key is not yet declared.
//
// When comment is non-empty and the key is new, a comment line is
// written immediately above the entry.
//
// # Outputs
//
//   - bool: True when the store was modified
//   - error: Non-nil for invalid keys
func (s *EnvStore) SetIfAbsent(key, value, comment string) (bool, error) {
	if !envKeyPattern.MatchString(key) {
		return false, fmt.Errorf("invalid env key %q", key)
	}
	if s.Has(key) {
		return false, nil
	}

	if comment != "" {
		s.lines = append(s.lines, envLine{raw: "# " + comment})
	}
	return true, s.Set(key, value)
}

// Unset removes the key's entry line. Comments above it stay.
func (s *EnvStore) Unset(key string) bool {
	for i := range s.lines {
		if s.lines[i].isEntry && s.lines[i].key == key {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns declared keys in file order.
func (s *EnvStore) Keys() []string {
	var keys []string
	for _, l := range s.lines {
		if l.isEntry {
			keys = append(keys, l.key)
		}
	}
	return keys
}

// Redacted returns all entries with sensitive values masked, for
// status display and logs.
func (s *EnvStore) Redacted() map[string]string {
	result := make(map[string]string)
	for _, l := range s.lines {
		if !l.isEntry {
			continue
		}
		if isSensitiveKey(l.key) {
			result[l.key] = "********"
		} else {
			result[l.key] = l.value
		}
	}
	return result
}

// isSensitiveKey reports whether a key looks like it holds a credential.
func isSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// Save writes the file back, preserving untouched lines byte for byte.
func (s *EnvStore) Save() error {
	var b strings.Builder
	for _, l := range s.lines {
		b.WriteString(l.raw)
		b.WriteString("\n")
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", s.path, err)
	}
	return nil
}
