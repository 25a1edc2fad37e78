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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// searxngSecretPlaceholder ships in the stock SearXNG settings file.
const searxngSecretPlaceholder = "ultrasecretkey"

// generateSecretKey returns a 64-char hex secret from crypto/rand.
func generateSecretKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// EnsureSearxngSecret replaces the placeholder secret exactly once.
//
// # Description
//
//	The stock settings.yml ships with a well-known placeholder key.
//	On first install it is swapped for a random value; subsequent
//	runs see no placeholder and leave the file alone, so the secret
//	is stable across updates and sessions survive.
//
// # Inputs
//
//   - path: The SearXNG settings.yml
//
// # Outputs
//
//   - bool: True when the secret was written
//   - error: Read or write failures (a missing file is not an error:
//     the profile may not vendor SearXNG settings)
func EnsureSearxngSecret(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	if !strings.Contains(content, searxngSecretPlaceholder) {
		return false, nil
	}

	secret, err := generateSecretKey()
	if err != nil {
		return false, err
	}

	updated := strings.Replace(content, searxngSecretPlaceholder, secret, 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
