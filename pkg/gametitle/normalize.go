// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package gametitle provides normalization and fuzzy matching for game release
// titles as they appear on trackers and in download client file names.
package gametitle

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>"'` + "`" + `]+`)

// editionPatterns strip edition/quality suffix phrases. Applied in order so
// compound phrases ("game of the year") are removed before their parts.
var editionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-_:]?\s*digital`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*deluxe`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*ultimate`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*complete`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*goty`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*game\s+of\s+the\s+year`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*definitive`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*enhanced`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*remastered`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*remake`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*special`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*collector['s]*`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*premium`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*gold`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*platinum`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*anniversary`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*royal`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*standard`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*edition`),
	regexp.MustCompile(`(?i)\s*[-_:]?\s*version`),
}

// cleanEditionPatterns remove full "<edition> Edition" phrases while keeping
// the original casing of the rest of the title.
var cleanEditionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-:]?\s*digital\s+deluxe\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*deluxe\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*digital\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*ultimate\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*complete\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*goty\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*game\s+of\s+the\s+year\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*definitive\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*enhanced\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*remastered\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*special\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*collector['’]?s?\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*premium\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*gold\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*platinum\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*anniversary\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*royal\s+edition`),
	regexp.MustCompile(`(?i)\s*[-:]?\s*standard\s+edition`),
	regexp.MustCompile(`(?i)\s+edition$`),
}

var (
	nonWordOrSpace     = regexp.MustCompile(`[^\w\s]`)
	nonAlnumOrSpace    = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
	partToken          = regexp.MustCompile(`(?i)\bpart\s+([ivxlcdm]+|\d+)\b`)
	titleCaseWordParts = regexp.MustCompile(`^([^A-Za-z0-9]*)([A-Za-z]+)([^A-Za-z]*)$`)
)

var searchQuerySuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-_]?\s*(?:repack|proper|internal|fix|update)`),
	regexp.MustCompile(`(?i)\s*[-_]?\s*(?:gog|steam|egs|epic)`),
	regexp.MustCompile(`(?i)\s*[-_]?\s*v?\d+(?:\.\d+)*$`),
}

var englishTitleCaser = cases.Title(language.English)

// NormalizeForMatch lowercases and strips everything except letters, digits
// and spaces. Coarser than NormalizeTitle: edition suffixes are kept. Used
// for matching against external metadata search results.
func NormalizeForMatch(text string) string {
	lower := strings.ToLower(text)
	lower = nonAlnumOrSpace.ReplaceAllString(lower, " ")
	return collapseWhitespace(lower)
}

// NormalizeTitle normalizes a title for duplicate and library matching.
// Edition phrases are removed, "part <roman>" tokens are canonicalized to
// arabic numbers and remaining punctuation is stripped.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	result := strings.ToLower(strings.TrimSpace(title))

	for _, pattern := range editionPatterns {
		result = pattern.ReplaceAllString(result, "")
	}

	result = partToken.ReplaceAllStringFunc(result, func(match string) string {
		token := partToken.FindStringSubmatch(match)[1]
		if normalized := normalizePartToken(token); normalized != "" {
			return "part " + normalized
		}
		return "part " + strings.ToLower(token)
	})

	result = nonWordOrSpace.ReplaceAllString(result, " ")
	return collapseWhitespace(result)
}

// CleanGameTitle removes edition suffix phrases while preserving the original
// casing and spacing, for display and external metadata lookups.
func CleanGameTitle(title string) string {
	if title == "" {
		return title
	}

	cleaned := title
	for _, pattern := range cleanEditionPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	return strings.TrimSpace(cleaned)
}

// ToTitleCaseWords capitalizes each word. Short roman numerals (II, IV, ...)
// are upper-cased in full, keeping any surrounding punctuation intact.
func ToTitleCaseWords(value string) string {
	words := strings.Split(value, " ")
	for i, word := range words {
		if word == "" {
			continue
		}

		if parts := titleCaseWordParts.FindStringSubmatch(word); parts != nil && isShortRomanNumeral(parts[2]) {
			words[i] = parts[1] + strings.ToUpper(parts[2]) + parts[3]
			continue
		}

		words[i] = englishTitleCaser.String(strings.ToLower(word))
	}

	return strings.Join(words, " ")
}

// SanitizeSearchQuery strips trailing release-group, platform and version
// suffixes plus punctuation so the remainder works as an indexer query.
func SanitizeSearchQuery(query string) string {
	if query == "" {
		return ""
	}

	result := query
	for _, pattern := range searchQuerySuffixes {
		result = pattern.ReplaceAllString(result, "")
	}

	result = nonWordOrSpace.ReplaceAllString(result, " ")
	return collapseWhitespace(result)
}

func collapseWhitespace(s string) string {
	fields := whitespaceRun.Split(strings.TrimSpace(s), -1)
	kept := fields[:0]
	for _, f := range fields {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
