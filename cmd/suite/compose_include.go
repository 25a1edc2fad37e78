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

	"gopkg.in/yaml.v3"
)

// supabaseIncludePath is the vendored compose file spliced into the
// main stack after a repo sync.
const supabaseIncludePath = "supabase/docker/docker-compose.yml"

// EnsureComposeIncludes patches a compose file's include list.
//
// # Description
//
//	Parses the compose file into a YAML document tree, ensures every
//	entry is present in the top-level include sequence (creating the
//	sequence when absent), and serializes the tree back. Working on
//	the node tree rather than a map keeps comments and key order
//	intact, so hand-edits to the compose file survive an update.
//	Already-present entries leave the file byte-identical aside from
//	re-encoding.
//
// # Inputs
//
//   - path: The compose file to patch
//   - entries: Include paths that must be present
//
// # Outputs
//
//   - bool: True when the file was modified
//   - error: Parse or write failures
func EnsureComposeIncludes(path string, entries []string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: compose file %s: %v", ErrPrerequisiteMissing, path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return false, fmt.Errorf("parsing %s: empty document", path)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return false, fmt.Errorf("parsing %s: top level is not a mapping", path)
	}

	include := findMappingValue(root, "include")
	if include == nil {
		include = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		// New keys go first: compose resolves includes before services.
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "include"}
		root.Content = append([]*yaml.Node{keyNode, include}, root.Content...)
	}
	if include.Kind != yaml.SequenceNode {
		return false, fmt.Errorf("parsing %s: include is not a sequence", path)
	}

	modified := false
	for _, entry := range entries {
		if sequenceContains(include, entry) {
			continue
		}
		include.Content = append(include.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: entry,
		})
		modified = true
	}

	if !modified {
		return false, nil
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return false, fmt.Errorf("serializing %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

// findMappingValue returns the value node for a top-level mapping key.
func findMappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// sequenceContains reports whether a scalar value is in the sequence.
//
// Include entries may also be mappings with a path key; those are
// matched on the path value.
func sequenceContains(seq *yaml.Node, value string) bool {
	for _, item := range seq.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			if item.Value == value {
				return true
			}
		case yaml.MappingNode:
			if p := findMappingValue(item, "path"); p != nil && p.Value == value {
				return true
			}
		}
	}
	return false
}
