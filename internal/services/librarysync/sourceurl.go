// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package librarysync

import (
	"regexp"
	"strings"
)

var (
	urlPattern           = regexp.MustCompile("(?i)https?://[^\\s<>\"'`]+")
	trailingPunctuation  = regexp.MustCompile(`[)\].,;!?]+$`)
	pageTitlePattern     = regexp.MustCompile(`(?i)<title[^>]*>([^<]{1,700})</title>`)
	ogTitlePattern       = regexp.MustCompile(`(?i)property=["']og:title["'][^>]*content=["']([^"']{1,700})["']`)
	headingPattern       = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	markupTagPattern     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRunPattern = regexp.MustCompile(`\s+`)
)

// ExtractSourceURL returns the first http(s) URL found in the given fields,
// with trailing punctuation stripped. Empty when none of the fields carry one.
func ExtractSourceURL(fields ...string) string {
	for _, field := range fields {
		if strings.TrimSpace(field) == "" {
			continue
		}
		match := urlPattern.FindString(field)
		if match == "" {
			continue
		}
		return trailingPunctuation.ReplaceAllString(match, "")
	}
	return ""
}

// pageTitleCandidates pulls the page title, og:title and first heading out of
// raw HTML, most reliable first.
func pageTitleCandidates(html string) []string {
	var candidates []string

	if m := pageTitlePattern.FindStringSubmatch(html); m != nil {
		candidates = appendCandidate(candidates, m[1])
	}
	if m := ogTitlePattern.FindStringSubmatch(html); m != nil {
		candidates = appendCandidate(candidates, m[1])
	}
	if m := headingPattern.FindStringSubmatch(html); m != nil {
		candidates = appendCandidate(candidates, markupTagPattern.ReplaceAllString(m[1], " "))
	}

	return candidates
}

func appendCandidate(candidates []string, value string) []string {
	cleaned := strings.TrimSpace(whitespaceRunPattern.ReplaceAllString(value, " "))
	if cleaned == "" {
		return candidates
	}
	return append(candidates, cleaned)
}
