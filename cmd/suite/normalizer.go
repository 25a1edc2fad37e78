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

import "fmt"

// Warning records a recoverable adjustment made during normalization.
type Warning struct {
	Token  Token
	Reason string
}

// String renders the warning for display.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Token, w.Reason)
}

// NormalizeResult is the output of profile normalization.
//
// Tokens is the final active set in catalog declaration order, free of
// aggregates, duplicates, runtime conflicts, and unsatisfiable entries.
type NormalizeResult struct {
	Tokens   []Token
	Warnings []Warning
}

// Contains reports whether a token survived normalization.
func (r NormalizeResult) Contains(t Token) bool {
	for _, tok := range r.Tokens {
		if tok == t {
			return true
		}
	}
	return false
}

// ComposeProfiles returns compose profile names for the active tokens,
// in catalog order. Host runtime tokens have no compose profile and
// are skipped.
func (r NormalizeResult) ComposeProfiles(c *Catalog) []string {
	var profiles []string
	for _, t := range r.Tokens {
		desc, ok := c.Lookup(t)
		if !ok || desc.Profile == "" {
			continue
		}
		profiles = append(profiles, desc.Profile)
	}
	return profiles
}

// NeedsDatabase reports whether any active token implies the database
// stack.
func (r NormalizeResult) NeedsDatabase(c *Catalog) bool {
	for _, t := range r.Tokens {
		if desc, ok := c.Lookup(t); ok && desc.NeedsDatabase {
			return true
		}
	}
	return false
}

// NeedsFilesystem reports whether any active token implies the
// filesystem tool stack.
func (r NormalizeResult) NeedsFilesystem(c *Catalog) bool {
	for _, t := range r.Tokens {
		if desc, ok := c.Lookup(t); ok && desc.NeedsFilesystem {
			return true
		}
	}
	return false
}

// HostEngine returns the active host runtime token, if any.
func (r NormalizeResult) HostEngine(c *Catalog) (Token, bool) {
	for _, t := range r.Tokens {
		if desc, ok := c.Lookup(t); ok && desc.Category == CategoryRuntimeHost {
			return t, true
		}
	}
	return "", false
}

// DockerRuntime returns the active containerized runtime token, if any.
func (r NormalizeResult) DockerRuntime(c *Catalog) (Token, bool) {
	for _, t := range r.Tokens {
		if desc, ok := c.Lookup(t); ok && desc.Category == CategoryRuntimeDocker {
			return t, true
		}
	}
	return "", false
}

// Normalize reduces raw profile tokens to a canonical active set.
//
// # Description
//
//	Applies, in order: unknown-token rejection (fatal, with a fuzzy
//	suggestion when one is plausible), aggregate expansion, runtime
//	duplicate collapse to the earliest declared token, host-over-docker
//	runtime conflict resolution, then supersede and requirement drops
//	iterated to a fixed point. The surviving set is deduplicated and
//	emitted in catalog declaration order. When no functional token
//	survives, a default is injected: the whole suite for explicit
//	lifecycle operations, the chat UI otherwise.
//
//	Normalization is idempotent: feeding the result back in yields the
//	same tokens and no warnings.
//
// # Inputs
//
//   - catalog: The module catalog
//   - input: Raw tokens as given by the user
//   - explicitOperation: True when the user named a lifecycle operation
//
// # Outputs
//
//   - NormalizeResult: Canonical tokens plus recoverable warnings
//   - error: Non-nil only for unknown tokens
func Normalize(catalog *Catalog, input []Token, explicitOperation bool) (NormalizeResult, error) {
	for _, t := range input {
		if !catalog.Contains(t) {
			if suggestion, ok := catalog.Suggest(string(t)); ok {
				return NormalizeResult{}, fmt.Errorf("unknown profile %q (did you mean %q?)", t, suggestion)
			}
			return NormalizeResult{}, fmt.Errorf("unknown profile %q", t)
		}
	}

	var warnings []Warning
	active := expandAggregates(catalog, input)
	active = collapseRuntimes(catalog, active, &warnings)
	active = dropToFixedPoint(catalog, active, &warnings)

	if !hasFunctional(catalog, active) {
		fallback := DefaultToken
		if explicitOperation {
			fallback = DefaultTokenWithOperation
		}
		defaults := expandAggregates(catalog, []Token{fallback})
		for t := range defaults {
			active[t] = true
		}
	}

	return NormalizeResult{
		Tokens:   inCatalogOrder(catalog, active),
		Warnings: warnings,
	}, nil
}

// expandAggregates builds the active set, replacing aggregate tokens
// with their members. Deduplication falls out of the set.
func expandAggregates(catalog *Catalog, input []Token) map[Token]bool {
	active := make(map[Token]bool, len(input))
	for _, t := range input {
		desc, _ := catalog.Lookup(t)
		if desc.IsAggregate() {
			for _, m := range desc.Expands {
				active[m] = true
			}
			continue
		}
		active[t] = true
	}
	return active
}

// collapseRuntimes enforces at most one runtime token.
//
// Within each runtime category the earliest declared token wins; when
// both a host and a docker runtime remain, the host engine wins and
// the docker token is dropped.
func collapseRuntimes(catalog *Catalog, active map[Token]bool, warnings *[]Warning) map[Token]bool {
	keepEarliest := func(category TokenCategory) (Token, bool) {
		var kept Token
		found := false
		for _, desc := range catalog.Descriptors() {
			if desc.Category != category || !active[desc.Token] {
				continue
			}
			if !found {
				kept = desc.Token
				found = true
				continue
			}
			delete(active, desc.Token)
			*warnings = append(*warnings, Warning{
				Token:  desc.Token,
				Reason: fmt.Sprintf("multiple %s profiles given, keeping %q", category, kept),
			})
		}
		return kept, found
	}

	docker, hasDocker := keepEarliest(CategoryRuntimeDocker)
	host, hasHost := keepEarliest(CategoryRuntimeHost)

	if hasDocker && hasHost {
		delete(active, docker)
		*warnings = append(*warnings, Warning{
			Token:  docker,
			Reason: fmt.Sprintf("host engine %q takes precedence over containerized runtime", host),
		})
	}
	return active
}

// dropToFixedPoint removes superseded and unsatisfiable tokens until
// the set is stable. Dropping one token can invalidate another's
// requirements, so a single pass is not enough.
func dropToFixedPoint(catalog *Catalog, active map[Token]bool, warnings *[]Warning) map[Token]bool {
	for changed := true; changed; {
		changed = false
		for _, desc := range catalog.Descriptors() {
			if !active[desc.Token] {
				continue
			}

			for _, s := range desc.SupersededBy {
				if active[s] {
					delete(active, desc.Token)
					*warnings = append(*warnings, Warning{
						Token:  desc.Token,
						Reason: fmt.Sprintf("superseded by %q, which bundles it", s),
					})
					changed = true
					break
				}
			}
			if !active[desc.Token] {
				continue
			}

			for _, group := range desc.Requires {
				satisfied := false
				for _, alt := range group {
					if active[alt] {
						satisfied = true
						break
					}
				}
				if !satisfied {
					delete(active, desc.Token)
					*warnings = append(*warnings, Warning{
						Token:  desc.Token,
						Reason: fmt.Sprintf("requires one of %v, none active", group),
					})
					changed = true
					break
				}
			}
		}
	}
	return active
}

// hasFunctional reports whether any functional token is active.
func hasFunctional(catalog *Catalog, active map[Token]bool) bool {
	for t := range active {
		if desc, ok := catalog.Lookup(t); ok && desc.Category == CategoryFunctional {
			return true
		}
	}
	return false
}

// inCatalogOrder flattens the active set into declaration order.
func inCatalogOrder(catalog *Catalog, active map[Token]bool) []Token {
	var result []Token
	for _, desc := range catalog.Descriptors() {
		if active[desc.Token] {
			result = append(result, desc.Token)
		}
	}
	return result
}
