// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gameversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		title    string
		expected string
	}{
		{"dotted with release group", "Game.Title.v1.2.3-CODEX", "1.2.3-CODEX"},
		{"v prefix", "Game Title v1.03", "1.03"},
		{"version word", "Game Title Version 2.5.1", "2.5.1"},
		{"hotfix suffix", "Game Update 1.5.2 hotfix", "1.5.2"},
		{"bracketed", "Game Title [1.9b]", "1.9b"},
		{"parenthesized with dlc", "Game Title (2.1 + 5 DLC)", "2.1"},
		{"build word", "Starfield Build 12345", "12345"},
		{"b shorthand", "Game.b12345.GOG", "12345"},
		{"v with bare build", "Game Title v20250101", "20250101"},
		{"slash block prefers rightmost", "Game (1.2.10/2.0.1)", "2.0.1"},
		{"slash block mixed forms", "Game (v1.0.3/Build 54321)", "54321"},
		{"parenthesized build number", "Game Title (12345678)", "12345678"},
		{"bare year rejected", "Hollow Knight (2017)", ""},
		{"year outside parens rejected", "Game 2017", ""},
		{"url stripped before matching", "Game https://example.com/v2.0 release", ""},
		{"no version", "Hollow Knight Silksong", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Extract(tt.title))
		})
	}
}

func TestExtractRoundTrip(t *testing.T) {
	t.Parallel()

	// An extracted version embedded back into a title must extract to
	// itself, otherwise stored versions drift on rescan.
	titles := []string{
		"Game.Title.v1.2.3-CODEX",
		"Game Title v1.03",
		"Game Title Version 2.5.1",
		"Game Title [1.9b]",
		"Starfield Build 12345",
		"Game (1.2.10/2.0.1)",
	}

	for _, title := range titles {
		t.Run(title, func(t *testing.T) {
			t.Parallel()
			version := Extract(title)
			require.NotEmpty(t, version)
			assert.Equal(t, version, Extract("Some Game v"+version))
		})
	}
}

func TestExtractYearBounds(t *testing.T) {
	t.Parallel()

	// Values outside the calendar-year range still count as builds.
	assert.Equal(t, "1234", Extract("Game (1234)"))
	assert.Equal(t, "2100", Extract("Game (2100)"))
	assert.Equal(t, "", Extract("Game (1900)"))
	assert.Equal(t, "", Extract("Game (2099)"))
}
