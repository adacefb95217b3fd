// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package gameversion extracts, compares and scores version identifiers found
// in free-text game release titles.
package gameversion

import (
	"regexp"
	"strconv"
	"strings"
)

var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>"'` + "`" + `]+`)

// versionPatterns is the fixed extraction cascade; the first pattern that
// yields a candidate wins.
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bv?(\d+(?:\.\d+){1,6}(?:-[A-Za-z0-9]+){1,4})\b`),
	regexp.MustCompile(`(?i)\bv(?:ersion)?\.?\s*(\d+(?:\.\d+){1,4}[a-z]?)`),
	regexp.MustCompile(`(?i)\b(\d+(?:\.\d+){1,6})\s*hotfix\b`),
	regexp.MustCompile(`(?i)\[(\d+(?:\.\d+){1,4}[a-z]?)\]`),
	regexp.MustCompile(`(?i)\((\d+(?:\.\d+){1,4}[a-z]?)(?:\s*(?:\+\s*\d+\s*dlc|/dlc))?\)`),
	regexp.MustCompile(`(?i)\bbuild[\s._-]?(\d{3,8})\b`),
	regexp.MustCompile(`(?i)(?:^|[.\-_\s])b(\d{4,})(?:$|[.\-_\s])`),
	regexp.MustCompile(`(?i)\bv(\d{3,8})\b`),
}

var (
	slashBlock          = regexp.MustCompile(`\(([^)]*/[^)]*)\)`)
	slashHyphenVersion  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)+(?:-[A-Za-z0-9]+){1,4})`)
	slashDottedVersion  = regexp.MustCompile(`(?i)(\d+(?:\.\d+){1,6}[a-z]?)`)
	slashBuildVersion   = regexp.MustCompile(`(?i)(?:build|b)\s*(\d{3,8})`)
	parenthesizedBuild  = regexp.MustCompile(`\((\d{3,8})\)`)
	bareFourDigitNumber = regexp.MustCompile(`^\d{4}$`)
)

// Extract pulls a best-guess version identifier out of a release title.
// Returns "" when no trustworthy version token is found. Bare 4-digit values
// in the 1900-2099 range are rejected so release years never pass as
// versions.
func Extract(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	title = urlPattern.ReplaceAllString(title, " ")

	// Parenthesized "multi-version" annotations like "(1.2.3/build 456)".
	var slashCandidates []string
	for _, block := range slashBlock.FindAllStringSubmatch(title, -1) {
		for _, part := range strings.Split(block[1], "/") {
			part = strings.TrimSpace(part)
			if m := slashHyphenVersion.FindStringSubmatch(part); m != nil {
				slashCandidates = append(slashCandidates, m[1])
				continue
			}
			if m := slashDottedVersion.FindStringSubmatch(part); m != nil {
				slashCandidates = append(slashCandidates, m[1])
				continue
			}
			if m := slashBuildVersion.FindStringSubmatch(part); m != nil {
				slashCandidates = append(slashCandidates, m[1])
			}
		}
	}
	// Rightmost candidate wins.
	for i := len(slashCandidates) - 1; i >= 0; i-- {
		if normalized := normalizeExtracted(slashCandidates[i]); normalized != "" {
			return normalized
		}
	}

	buildCandidates := parenthesizedBuild.FindAllStringSubmatch(title, -1)
	for i := len(buildCandidates) - 1; i >= 0; i-- {
		if normalized := normalizeExtracted(buildCandidates[i][1]); normalized != "" {
			return normalized
		}
	}

	for _, pattern := range versionPatterns {
		if m := pattern.FindStringSubmatch(title); m != nil {
			if normalized := normalizeExtracted(m[1]); normalized != "" {
				return normalized
			}
		}
	}

	return ""
}

// normalizeExtracted strips whitespace from a raw match and rejects values
// that look like a bare calendar year.
func normalizeExtracted(version string) string {
	normalized := strings.Join(strings.Fields(version), "")
	if normalized == "" {
		return ""
	}

	if bareFourDigitNumber.MatchString(normalized) {
		if year, err := strconv.Atoi(normalized); err == nil && year >= 1900 && year <= 2099 {
			return ""
		}
	}

	return normalized
}
