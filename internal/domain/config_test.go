// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthEnabled(t *testing.T) {
	t.Parallel()

	assert.False(t, (&Config{}).IsAuthEnabled())
	assert.False(t, (&Config{AuthUsername: "admin"}).IsAuthEnabled())
	assert.False(t, (&Config{AuthPassword: "secret"}).IsAuthEnabled())
	assert.True(t, (&Config{AuthUsername: "admin", AuthPassword: "secret"}).IsAuthEnabled())
}

func TestSettingsLists(t *testing.T) {
	t.Parallel()

	s := &Settings{
		IgnoredKeywords: "ps5, denuvo , ,beta",
		AllowedIndexers: "",
		Platforms:       "Windows, Linux",
	}

	assert.Equal(t, []string{"ps5", "denuvo", "beta"}, s.IgnoredKeywordsList())
	assert.Nil(t, s.AllowedIndexersList())
	assert.Equal(t, []string{"windows", "linux"}, s.PlatformList())
}

func TestSettingsListsLowercaseMixedCase(t *testing.T) {
	t.Parallel()

	s := &Settings{
		IgnoredKeywords: "RePack, BETA",
		AllowedIndexers: "RuTracker, DODI",
	}

	// Lists feed case-insensitive substring matching downstream, so mixed
	// case in the stored setting must not change what matches.
	assert.Equal(t, []string{"repack", "beta"}, s.IgnoredKeywordsList())
	assert.Equal(t, []string{"rutracker", "dodi"}, s.AllowedIndexersList())
}

func TestPlatformListDefault(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	assert.Equal(t, []string{"windows"}, s.PlatformList())
}

func TestIsIGDBEnabled(t *testing.T) {
	t.Parallel()

	assert.False(t, (&Settings{}).IsIGDBEnabled())
	assert.False(t, (&Settings{IGDBClientID: "id"}).IsIGDBEnabled())
	assert.True(t, (&Settings{IGDBClientID: "id", IGDBClientSecret: "secret"}).IsIGDBEnabled())
}
