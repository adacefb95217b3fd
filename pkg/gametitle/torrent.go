// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gametitle

import (
	"regexp"
	"strings"
)

var (
	fileExtension    = regexp.MustCompile(`(?i)\.(zip|rar|7z|iso|exe|torrent|nfo)$`)
	bracketedGroup   = regexp.MustCompile(`\[.*?\]`)
	parenthesized    = regexp.MustCompile(`\(.*?\)`)
	sceneGroupSuffix = regexp.MustCompile(`(?i)[-._](?:CODEX|SKIDROW|RELOADED|CPY|FLT|PLAZA|RAZOR1911|HOODLUM|DOGE|RUNE|TiNYiSO|DARKSiDERS|ANOMALY|PROPHET|GOLDBERG|STEAMPUNKS|EMPRESS|DODI|FITGIRL|NECROS|ElAmigos|KaOs|GOG|TENOKE|P2P|insaneramzes)(?:[-._].*)?$`)
	capsGroupSuffix  = regexp.MustCompile(`[-._]([A-Z]{2,15})$`)
	separators       = regexp.MustCompile(`[._]`)

	trailingBuildToken = regexp.MustCompile(`(?i)\s+[vb]\d{3,8}\b`)
	trailingDLC        = regexp.MustCompile(`(?i)\s*\+\s*\d+\s*DLC\b`)
	trailingQuality    = regexp.MustCompile(`(?i)\s+(?:repack|portable|scene|steamrip|license)\b.*$`)
	trailingVersion    = regexp.MustCompile(`(?i)\s*v?\d+(?:\.\d+)+\s*$`)
)

// ParseTorrentName extracts a game title from a raw torrent or file name by
// stripping extensions, bracketed groups, scene-group tags and trailing
// release metadata. Returns "" when nothing usable remains.
func ParseTorrentName(rawName string) string {
	if rawName == "" {
		return ""
	}

	title := urlPattern.ReplaceAllString(rawName, "")
	title = fileExtension.ReplaceAllString(title, "")
	title = bracketedGroup.ReplaceAllString(title, "")
	title = parenthesized.ReplaceAllString(title, "")
	title = sceneGroupSuffix.ReplaceAllString(title, "")
	title = capsGroupSuffix.ReplaceAllString(title, "")

	title = separators.ReplaceAllString(title, " ")

	title = trailingBuildToken.ReplaceAllString(title, "")
	title = trailingDLC.ReplaceAllString(title, "")
	title = trailingQuality.ReplaceAllString(title, "")
	title = trailingVersion.ReplaceAllString(title, "")

	return strings.TrimSpace(title)
}
