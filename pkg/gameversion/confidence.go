// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gameversion

import (
	"regexp"
	"strings"
)

var (
	explicitVersionMarker = regexp.MustCompile(`(?i)\bv(?:ersion)?\.?\s*\d`)
	buildMarker           = regexp.MustCompile(`(?i)\bbuild[\s._-]?\d+`)
	threeComponentDotted  = regexp.MustCompile(`^\d+\.\d+\.\d+`)
	twoComponentDotted    = regexp.MustCompile(`^\d+\.\d+$`)
	trailingLetter        = regexp.MustCompile(`(?i)[a-z]$`)
	earlyAccessPhrase     = regexp.MustCompile(`\bearly access\b`)
	portableToken         = regexp.MustCompile(`\bportable\b`)
	seasonPhrase          = regexp.MustCompile(`\bseason\s*\d+`)
	episodePhrase         = regexp.MustCompile(`\bepisode\b|\bep\.\s*\d+`)
)

// Confidence estimates how trustworthy a version extracted from a release
// title is, as a score in [0, 100]. Zero means no evidence at all.
func Confidence(title, version string) int {
	if title == "" || version == "" {
		return 0
	}

	score := 60
	titleLower := strings.ToLower(title)

	if explicitVersionMarker.MatchString(title) {
		score += 12
	}
	if buildMarker.MatchString(title) {
		score += 10
	}
	if threeComponentDotted.MatchString(version) {
		score += 8
	}
	if twoComponentDotted.MatchString(version) {
		score += 5
	}
	if trailingLetter.MatchString(version) {
		score -= 4
	}
	if earlyAccessPhrase.MatchString(titleLower) {
		score -= 6
	}
	if portableToken.MatchString(titleLower) {
		score -= 3
	}
	if seasonPhrase.MatchString(titleLower) {
		score -= 30
	}
	if episodePhrase.MatchString(titleLower) {
		score -= 20
	}

	return min(max(score, 0), 100)
}
