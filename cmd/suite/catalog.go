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

// TokenCategory classifies profile tokens.
//
// Runtime categories are mutually exclusive within themselves; the
// normalizer collapses duplicates and resolves host-vs-docker conflicts.
type TokenCategory int

const (
	// CategoryRuntimeDocker selects a containerized inference runtime.
	CategoryRuntimeDocker TokenCategory = iota

	// CategoryRuntimeHost selects a host-side inference engine.
	CategoryRuntimeHost

	// CategoryFunctional selects suite services.
	CategoryFunctional
)

// String returns the category name.
func (c TokenCategory) String() string {
	switch c {
	case CategoryRuntimeDocker:
		return "runtime-docker"
	case CategoryRuntimeHost:
		return "runtime-host"
	case CategoryFunctional:
		return "functional"
	default:
		return "unknown"
	}
}

// Token is a profile token from the closed catalog vocabulary.
type Token string

// Runtime tokens.
const (
	TokenCPU       Token = "cpu"
	TokenGPUNvidia Token = "gpu-nvidia"
	TokenGPUAMD    Token = "gpu-amd"
	TokenOllama    Token = "ollama"
	TokenLlamaCpp  Token = "llama-cpp"
)

// Functional tokens.
const (
	TokenOpenWebUI     Token = "open-webui"
	TokenOpenWebUIAll  Token = "open-webui-all"
	TokenN8N           Token = "n8n"
	TokenN8NAll        Token = "n8n-all"
	TokenAIAll         Token = "ai-all"
	TokenOpenCode      Token = "opencode"
	TokenOpenWebUIFS   Token = "open-webui-fs"
	TokenOpenWebUIPipe Token = "open-webui-pipe"
	TokenOpenWebUIMCPO Token = "open-webui-mcpo"
	TokenSupabase      Token = "supabase"
	TokenFlowise       Token = "flowise"
	TokenSearxNG       Token = "searxng"
	TokenLangfuse      Token = "langfuse"
	TokenNeo4j         Token = "neo4j"
	TokenCaddy         Token = "caddy"
)

// DefaultToken is applied when normalization yields no functional token
// and the user gave no explicit operation.
const DefaultToken = TokenOpenWebUI

// DefaultTokenWithOperation is applied instead when an explicit operation
// was requested: lifecycle operations act on the whole suite by default.
const DefaultTokenWithOperation = TokenAIAll

// ModuleDescriptor describes one catalog entry.
//
// # Fields
//
//   - Token: The profile token
//   - Category: Token category (runtime-docker/runtime-host/functional)
//   - Profile: Compose profile name activated by this token
//   - Description: One-line human description
//   - Requires: Requirement groups; for each group at least one listed
//     token must be active or this token is dropped
//   - SupersededBy: Presence of any listed token removes this one
//   - Expands: Aggregate expansion (replaces this token)
//   - NeedsDatabase: Token implies the database stack
//   - NeedsFilesystem: Token implies the filesystem tool stack
//   - Volumes: Named volumes owned by this module (backup/restore)
type ModuleDescriptor struct {
	Token           Token
	Category        TokenCategory
	Profile         string
	Description     string
	Requires        [][]Token
	SupersededBy    []Token
	Expands         []Token
	NeedsDatabase   bool
	NeedsFilesystem bool
	Volumes         []string
}

// IsAggregate reports whether the token expands into other tokens.
func (d ModuleDescriptor) IsAggregate() bool {
	return len(d.Expands) > 0
}

// Catalog is the ordered, closed set of module descriptors.
//
// Declaration order matters: the normalizer collapses runtime duplicates
// to the earliest declared token, and result ordering follows it.
type Catalog struct {
	ordered []ModuleDescriptor
	byToken map[Token]int
}

// NewCatalog builds a catalog from descriptors in declaration order.
//
// Duplicate tokens are a programming error and panic at startup.
func NewCatalog(descriptors []ModuleDescriptor) *Catalog {
	c := &Catalog{
		ordered: descriptors,
		byToken: make(map[Token]int, len(descriptors)),
	}
	for i, d := range descriptors {
		if _, dup := c.byToken[d.Token]; dup {
			panic(fmt.Sprintf("duplicate catalog token %q", d.Token))
		}
		c.byToken[d.Token] = i
	}
	return c
}

// DefaultCatalog returns the built-in suite catalog.
func DefaultCatalog() *Catalog {
	n8nFamily := []Token{TokenN8N, TokenN8NAll}
	webUIFamily := []Token{TokenOpenWebUI, TokenOpenWebUIAll}

	return NewCatalog([]ModuleDescriptor{
		// --- Runtime (docker) - order defines collapse priority ---
		{
			Token:       TokenCPU,
			Category:    CategoryRuntimeDocker,
			Profile:     "cpu",
			Description: "Containerized inference on CPU",
			Volumes:     []string{"ollama-data"},
		},
		{
			Token:       TokenGPUNvidia,
			Category:    CategoryRuntimeDocker,
			Profile:     "gpu-nvidia",
			Description: "Containerized inference on NVIDIA GPUs",
			Volumes:     []string{"ollama-data"},
		},
		{
			Token:       TokenGPUAMD,
			Category:    CategoryRuntimeDocker,
			Profile:     "gpu-amd",
			Description: "Containerized inference on AMD GPUs",
			Volumes:     []string{"ollama-data"},
		},

		// --- Runtime (host) ---
		{
			Token:       TokenOllama,
			Category:    CategoryRuntimeHost,
			Description: "Host-side Ollama engine",
		},
		{
			Token:       TokenLlamaCpp,
			Category:    CategoryRuntimeHost,
			Description: "Host-side llama.cpp server",
		},

		// --- Functional ---
		{
			Token:           TokenAIAll,
			Category:        CategoryFunctional,
			Profile:         "ai-all",
			Description:     "The full AI suite",
			Expands:         []Token{TokenN8NAll, TokenSupabase, TokenFlowise, TokenSearxNG, TokenLangfuse, TokenNeo4j, TokenCaddy},
			NeedsDatabase:   true,
			NeedsFilesystem: true,
		},
		{
			Token:           TokenN8N,
			Category:        CategoryFunctional,
			Profile:         "n8n",
			Description:     "Workflow automation with bundled chat UI",
			NeedsDatabase:   true,
			NeedsFilesystem: true,
			Volumes:         []string{"n8n-data"},
		},
		{
			Token:           TokenN8NAll,
			Category:        CategoryFunctional,
			Profile:         "n8n-all",
			Description:     "Workflow automation plus companion services",
			NeedsDatabase:   true,
			NeedsFilesystem: true,
			Volumes:         []string{"n8n-data"},
		},
		{
			Token:           TokenOpenWebUI,
			Category:        CategoryFunctional,
			Profile:         "open-webui",
			Description:     "Chat UI",
			SupersededBy:    n8nFamily,
			NeedsFilesystem: true,
			Volumes:         []string{"open-webui-data"},
		},
		{
			Token:           TokenOpenWebUIAll,
			Category:        CategoryFunctional,
			Profile:         "open-webui-all",
			Description:     "Chat UI plus companion tools",
			SupersededBy:    n8nFamily,
			NeedsFilesystem: true,
			Volumes:         []string{"open-webui-data"},
		},
		{
			Token:           TokenOpenCode,
			Category:        CategoryFunctional,
			Profile:         "opencode",
			Description:     "Coding agent container over the projects directory",
			NeedsFilesystem: true,
			Volumes:         []string{"opencode-config"},
		},
		{
			Token:           TokenOpenWebUIFS,
			Category:        CategoryFunctional,
			Profile:         "open-webui-fs",
			Description:     "Filesystem access tool for the chat UI",
			Requires:        [][]Token{webUIFamily},
			NeedsFilesystem: true,
		},
		{
			Token:       TokenOpenWebUIPipe,
			Category:    CategoryFunctional,
			Profile:     "open-webui-pipe",
			Description: "Pipeline extensions for the chat UI",
			Requires:    [][]Token{webUIFamily},
		},
		{
			Token:       TokenOpenWebUIMCPO,
			Category:    CategoryFunctional,
			Profile:     "open-webui-mcpo",
			Description: "MCP-to-OpenAPI bridge for the chat UI",
			Requires:    [][]Token{webUIFamily},
		},
		{
			Token:         TokenSupabase,
			Category:      CategoryFunctional,
			Profile:       "supabase",
			Description:   "Postgres database stack",
			Requires:      [][]Token{n8nFamily},
			NeedsDatabase: true,
			Volumes:       []string{"supabase-db-data", "supabase-storage-data"},
		},
		{
			Token:       TokenFlowise,
			Category:    CategoryFunctional,
			Profile:     "flowise",
			Description: "Visual agent builder",
			Volumes:     []string{"flowise-data"},
		},
		{
			Token:       TokenSearxNG,
			Category:    CategoryFunctional,
			Profile:     "searxng",
			Description: "Metasearch engine",
			Volumes:     []string{"searxng-data"},
		},
		{
			Token:         TokenLangfuse,
			Category:      CategoryFunctional,
			Profile:       "langfuse",
			Description:   "LLM observability",
			Requires:      [][]Token{{TokenSupabase}},
			NeedsDatabase: true,
			Volumes:       []string{"langfuse-data"},
		},
		{
			Token:       TokenNeo4j,
			Category:    CategoryFunctional,
			Profile:     "neo4j",
			Description: "Graph database",
			Volumes:     []string{"neo4j-data"},
		},
		{
			Token:       TokenCaddy,
			Category:    CategoryFunctional,
			Profile:     "caddy",
			Description: "Reverse proxy with TLS",
			Volumes:     []string{"caddy-data"},
		},
	})
}

// Lookup returns the descriptor for a token.
func (c *Catalog) Lookup(t Token) (ModuleDescriptor, bool) {
	i, ok := c.byToken[t]
	if !ok {
		return ModuleDescriptor{}, false
	}
	return c.ordered[i], true
}

// Contains reports whether the token is in the catalog.
func (c *Catalog) Contains(t Token) bool {
	_, ok := c.byToken[t]
	return ok
}

// OrderIndex returns the declaration index of a token (-1 if unknown).
//
// Used to collapse runtime duplicates to the earliest declared token.
func (c *Catalog) OrderIndex(t Token) int {
	i, ok := c.byToken[t]
	if !ok {
		return -1
	}
	return i
}

// Tokens returns all tokens in declaration order.
func (c *Catalog) Tokens() []Token {
	result := make([]Token, len(c.ordered))
	for i, d := range c.ordered {
		result[i] = d.Token
	}
	return result
}

// Volumes returns every named volume in the catalog, deduplicated, in
// declaration order. Backup and restore cover all of them regardless
// of the active profile set.
func (c *Catalog) Volumes() []string {
	seen := make(map[string]bool)
	var volumes []string
	for _, d := range c.ordered {
		for _, v := range d.Volumes {
			if !seen[v] {
				seen[v] = true
				volumes = append(volumes, v)
			}
		}
	}
	return volumes
}

// Descriptors returns all descriptors in declaration order.
func (c *Catalog) Descriptors() []ModuleDescriptor {
	result := make([]ModuleDescriptor, len(c.ordered))
	copy(result, c.ordered)
	return result
}

// Suggest finds the closest catalog token for an unknown input.
//
// Uses the positional similarity score shared with the model matcher:
// a candidate is suggested only when the score clears the acceptance
// threshold, so wild typos get no misleading suggestion.
func (c *Catalog) Suggest(input string) (Token, bool) {
	names := make([]string, len(c.ordered))
	for i, d := range c.ordered {
		names[i] = string(d.Token)
	}
	match, ok := BestMatch(input, names)
	if !ok {
		return "", false
	}
	return Token(match), true
}
