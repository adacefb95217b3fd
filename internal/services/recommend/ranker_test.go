// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamearr/gamearr/internal/models"
)

var rankNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestFreshnessScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		upload   time.Time
		expected int
	}{
		{"brand new", rankNow, 40},
		{"ten days old", rankNow.Add(-10 * 24 * time.Hour), 31},
		{"44 days old", rankNow.Add(-44 * 24 * time.Hour), 0},
		{"ancient", rankNow.Add(-365 * 24 * time.Hour), 0},
		{"zero value", time.Time{}, 0},
		{"epoch sentinel", models.Epoch, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, freshnessScore(tt.upload, rankNow))
		})
	}
}

func TestLogScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    *int
		clamp    int
		maxScore float64
		expected int
	}{
		{"nil", nil, 500, 24, 0},
		{"zero", intPtr(0), 500, 24, 0},
		{"one seeder", intPtr(1), 500, 24, 3},
		{"hundred seeders", intPtr(100), 500, 24, 18},
		{"at clamp", intPtr(500), 500, 24, 24},
		{"beyond clamp", intPtr(5000), 500, 24, 24},
		{"grabs at clamp", intPtr(1000), 1000, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, logScore(tt.value, tt.clamp, tt.maxScore))
		})
	}
}

func TestRankOwnedGame(t *testing.T) {
	t.Parallel()

	game := &models.Game{
		ID:                 1,
		Title:              "elden ring",
		CurrentVersion:     strPtr("1.10"),
		CurrentVersionDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	releases := []*models.Release{
		{
			ID:            1,
			GameID:        1,
			RawTitle:      "Elden Ring v1.12.0",
			ParsedVersion: strPtr("1.12.0"),
			UploadDate:    rankNow,
			Seeders:       intPtr(500),
			Leechers:      intPtr(10),
			Grabs:         intPtr(1000),
		},
		{
			ID:            2,
			GameID:        1,
			RawTitle:      "Elden Ring v1.12.0 Repack",
			ParsedVersion: strPtr("1.12.0"),
			UploadDate:    rankNow.Add(-24 * time.Hour),
			Seeders:       intPtr(100),
		},
		{
			ID:            3,
			GameID:        1,
			RawTitle:      "Elden Ring v1.10",
			ParsedVersion: strPtr("1.10"),
			UploadDate:    rankNow.Add(-48 * time.Hour),
		},
		{
			ID:            4,
			GameID:        1,
			RawTitle:      "Elden Ring v1.09",
			ParsedVersion: strPtr("1.09"),
			UploadDate:    rankNow.Add(-72 * time.Hour),
		},
	}

	groups := Rank([]*models.Game{game}, releases, rankNow)
	require.Len(t, groups, 1)

	group := groups[0]
	assert.Equal(t, "Elden Ring", group.Game.Title)
	require.Len(t, group.Releases, 4)

	best := group.Releases[0]
	assert.Equal(t, 1, best.ID)
	assert.Equal(t, VersionNewer, best.VersionState)
	assert.Equal(t, 16, best.ConfidenceScore)
	assert.Equal(t, 40, best.FreshnessScore)
	assert.Equal(t, 24, best.SeederScore)
	assert.Equal(t, 10, best.GrabScore)
	assert.Equal(t, 34, best.PopularityScore)
	assert.Equal(t, 130, best.Score)
	assert.Equal(t, TierHigh, best.Tier)
	assert.True(t, best.Candidate)
	assert.Equal(t, "Newer than owned version • 500 seeders • 10 leechers • 1000 grabs", best.Reason)

	// Same parsed version as the best release stays low despite being a
	// candidate on its own merits.
	second := group.Releases[1]
	assert.Equal(t, 2, second.ID)
	assert.True(t, second.Candidate)
	assert.Equal(t, TierLow, second.Tier)

	// Matching the owned version is not recommended while a newer one is
	// on offer.
	third := group.Releases[2]
	assert.Equal(t, 3, third.ID)
	assert.Equal(t, VersionSame, third.VersionState)
	assert.False(t, third.Candidate)
	assert.Equal(t, TierLow, third.Tier)

	fourth := group.Releases[3]
	assert.Equal(t, VersionOlder, fourth.VersionState)
	assert.False(t, fourth.Candidate)
}

func TestRankUnownedGame(t *testing.T) {
	t.Parallel()

	game := &models.Game{
		ID:                 2,
		Title:              "hades",
		CurrentVersionDate: models.Epoch,
	}

	releases := []*models.Release{
		{
			ID:            10,
			GameID:        2,
			RawTitle:      "Hades v1.0",
			ParsedVersion: strPtr("1.0"),
			UploadDate:    rankNow.Add(-30 * 24 * time.Hour),
			Seeders:       intPtr(10),
		},
		{
			ID:         11,
			GameID:     2,
			RawTitle:   "Hades GOG",
			UploadDate: rankNow.Add(-30 * 24 * time.Hour),
		},
	}

	groups := Rank([]*models.Game{game}, releases, rankNow)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Releases, 2)

	top := groups[0].Releases[0]
	assert.Equal(t, 10, top.ID)
	assert.True(t, top.Candidate)
	assert.Equal(t, TierMedium, top.Tier)
	assert.Equal(t, 77, top.Score)
	assert.Equal(t, "Best available version • 10 seeders", top.Reason)

	unversioned := groups[0].Releases[1]
	assert.Equal(t, VersionUnknown, unversioned.VersionState)
	assert.False(t, unversioned.Candidate)
	assert.Equal(t, TierLow, unversioned.Tier)
}

func TestRankCapsRecommendationsPerGame(t *testing.T) {
	t.Parallel()

	game := &models.Game{
		ID:                 3,
		Title:              "factorio",
		CurrentVersion:     strPtr("1.0"),
		CurrentVersionDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	releases := []*models.Release{
		{ID: 20, GameID: 3, RawTitle: "Factorio v1.3", ParsedVersion: strPtr("1.3"), UploadDate: rankNow, Seeders: intPtr(500)},
		{ID: 21, GameID: 3, RawTitle: "Factorio v1.2", ParsedVersion: strPtr("1.2"), UploadDate: rankNow, Seeders: intPtr(100)},
		{ID: 22, GameID: 3, RawTitle: "Factorio v1.1", ParsedVersion: strPtr("1.1"), UploadDate: rankNow},
	}

	groups := Rank([]*models.Game{game}, releases, rankNow)
	require.Len(t, groups, 1)
	scored := groups[0].Releases
	require.Len(t, scored, 3)

	assert.Equal(t, 20, scored[0].ID)
	assert.NotEqual(t, TierLow, scored[0].Tier)
	assert.Equal(t, 21, scored[1].ID)
	assert.NotEqual(t, TierLow, scored[1].Tier)
	assert.Equal(t, 22, scored[2].ID)
	assert.True(t, scored[2].Candidate)
	assert.Equal(t, TierLow, scored[2].Tier)
}

func TestRankKeepsTopWindowPerGame(t *testing.T) {
	t.Parallel()

	game := &models.Game{ID: 4, Title: "rimworld", CurrentVersionDate: models.Epoch}

	var releases []*models.Release
	for i := range 15 {
		releases = append(releases, &models.Release{
			ID:         100 + i,
			GameID:     4,
			RawTitle:   "RimWorld",
			UploadDate: rankNow.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}

	groups := Rank([]*models.Game{game}, releases, rankNow)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Releases, windowPerGame)
}

func TestRankGroupOrderFollowsNewestRelease(t *testing.T) {
	t.Parallel()

	games := []*models.Game{
		{ID: 1, Title: "alpha", CurrentVersionDate: models.Epoch},
		{ID: 2, Title: "beta", CurrentVersionDate: models.Epoch},
	}
	releases := []*models.Release{
		{ID: 1, GameID: 2, RawTitle: "Beta", UploadDate: rankNow},
		{ID: 2, GameID: 1, RawTitle: "Alpha", UploadDate: rankNow.Add(-time.Hour)},
	}

	groups := Rank(games, releases, rankNow)
	require.Len(t, groups, 2)
	assert.Equal(t, "Beta", groups[0].Game.Title)
	assert.Equal(t, "Alpha", groups[1].Game.Title)
}

func TestRankSkipsReleasesWithoutGame(t *testing.T) {
	t.Parallel()

	releases := []*models.Release{{ID: 1, GameID: 99, RawTitle: "Orphan", UploadDate: rankNow}}
	assert.Empty(t, Rank(nil, releases, rankNow))
}
