// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gametitle

import (
	"regexp"
	"strings"
)

var normalizedPart = regexp.MustCompile(`\bpart\s+(\d+)\b`)

// FuzzyMatch reports whether two titles likely denote the same game.
// Both are normalized first; differing "part" numbers never match, the rest
// is contiguous token-subsequence containment with a tolerance for one
// trailing qualifier on the shorter title.
func FuzzyMatch(a, b string) bool {
	normA := NormalizeTitle(a)
	normB := NormalizeTitle(b)
	if normA == "" || normB == "" {
		return false
	}

	if normA == normB {
		return true
	}

	partA := matchedPart(normA)
	partB := matchedPart(normB)
	if partA != "" && partB != "" && partA != partB {
		return false
	}

	tokensA := strings.Fields(normA)
	tokensB := strings.Fields(normB)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return false
	}

	longer, shorter := tokensA, tokensB
	if len(tokensB) > len(tokensA) {
		longer, shorter = tokensB, tokensA
	}

	if len(shorter) == 1 {
		if len(shorter[0]) < 3 {
			return false
		}
		for _, token := range longer {
			if token == shorter[0] {
				return true
			}
		}
		return false
	}

	if hasContiguousTokenSequence(longer, shorter) {
		return true
	}

	// Tolerate a trailing qualifier the longer title lacks.
	if len(shorter) >= 3 {
		return hasContiguousTokenSequence(longer, shorter[:len(shorter)-1])
	}

	return false
}

func matchedPart(normalized string) string {
	if m := normalizedPart.FindStringSubmatch(normalized); m != nil {
		return m[1]
	}
	return ""
}

func hasContiguousTokenSequence(haystack, needle []string) bool {
	if len(needle) > len(haystack) {
		return false
	}

	for start := 0; start <= len(haystack)-len(needle); start++ {
		matched := true
		for i := range needle {
			if haystack[start+i] != needle[i] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}

	return false
}
