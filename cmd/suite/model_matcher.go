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

import "strings"

// matchScore computes positional similarity between two strings.
//
// # Description
//
//	Counts characters that are identical at the same index, compared
//	case-insensitively, up to the length of the shorter string. This
//	deliberately favors shared prefixes: "gemma-4b" against
//	"gemma-4b-it" scores 8, while a transposed or shifted name scores
//	near zero past the divergence point.
//
// # Inputs
//
//   - input: The user-supplied string
//   - candidate: The known name to compare against
//
// # Outputs
//
//   - int: Number of positions with identical characters
func matchScore(input, candidate string) int {
	a := strings.ToLower(input)
	b := strings.ToLower(candidate)

	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}

	score := 0
	for i := 0; i < limit; i++ {
		if a[i] == b[i] {
			score++
		}
	}
	return score
}

// acceptMatch reports whether a score is good enough for a candidate.
//
// The bar is more than half the candidate's own length, so short
// candidates are not matched by coincidental prefix overlap.
func acceptMatch(score int, candidate string) bool {
	return score > len(candidate)/2
}

// BestMatch returns the closest candidate for an input string.
//
// # Description
//
//	Scores every candidate with matchScore and returns the highest
//	scorer, but only if that score clears the acceptance threshold
//	for the winning candidate. Ties keep the earliest candidate,
//	which lets callers encode priority in candidate order.
//
// # Inputs
//
//   - input: The user-supplied string
//   - candidates: Known names, in priority order
//
// # Outputs
//
//   - string: The best-matching candidate
//   - bool: False when no candidate clears the threshold
//
// # Examples
//
//	BestMatch("gemma-4b", []string{"gemma-4b-it", "llama-3-8b"})
//	// "gemma-4b-it", true
func BestMatch(input string, candidates []string) (string, bool) {
	best := ""
	bestScore := -1

	for _, c := range candidates {
		score := matchScore(input, c)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}

	if best == "" || !acceptMatch(bestScore, best) {
		return "", false
	}
	return best, true
}
