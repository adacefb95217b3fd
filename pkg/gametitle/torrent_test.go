// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gametitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTorrentName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"scene group with build", "Hades.b12345-TENOKE", "Hades"},
		{"caps group suffix", "Hogwarts_Legacy-GHOST", "Hogwarts Legacy"},
		{"bracketed repack tag", "Baldurs.Gate.3.[FitGirl.Repack]", "Baldurs Gate 3"},
		{"parenthesized metadata", "Hades (v1.38 + DLC)", "Hades"},
		{"dlc count suffix", "Cyberpunk 2077 + 3 DLC", "Cyberpunk 2077"},
		{"build token", "Starfield b12345", "Starfield"},
		{"quality suffix", "Factorio portable edition", "Factorio"},
		{"torrent extension", "Stardew Valley.torrent", "Stardew Valley"},
		{"plain title untouched", "Hollow Knight Silksong", "Hollow Knight Silksong"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ParseTorrentName(tt.input))
		})
	}
}
