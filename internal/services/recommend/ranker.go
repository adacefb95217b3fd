// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package recommend scores pending releases so the dashboard can surface
// the few worth grabbing per game.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/pkg/gametitle"
	"github.com/gamearr/gamearr/pkg/gameversion"
)

const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"

	// maxPerGame bounds how many releases per game leave the low tier.
	maxPerGame = 2

	// highTierThreshold promotes a recommended release to the high tier.
	highTierThreshold = 88

	// windowPerGame bounds how many scored releases are kept per game.
	windowPerGame = 10
)

// Version states relative to the owned version.
const (
	VersionNewer   = "newer"
	VersionSame    = "same"
	VersionOlder   = "older"
	VersionUnknown = "unknown"
)

// ScoredRelease is a release annotated with its recommendation breakdown.
type ScoredRelease struct {
	*models.Release
	Score           int    `json:"recommendationScore"`
	Tier            string `json:"recommendationTier"`
	ConfidenceScore int    `json:"confidenceScore"`
	FreshnessScore  int    `json:"freshnessScore"`
	PopularityScore int    `json:"popularityScore"`
	SeederScore     int    `json:"seederScore"`
	GrabScore       int    `json:"grabScore"`
	VersionState    string `json:"versionState"`
	Candidate       bool   `json:"recommendationCandidate"`
	Reason          string `json:"recommendationReason"`
}

// GameUpdates groups a game's scored releases, best first.
type GameUpdates struct {
	Game     models.Game      `json:"game"`
	Releases []*ScoredRelease `json:"releases"`
}

// Rank scores every release against its game and assigns recommendation
// tiers. releases are expected newest-upload first; groups come back in
// order of their newest release. Only the top releases per game are kept.
func Rank(games []*models.Game, releases []*models.Release, now time.Time) []*GameUpdates {
	gamesByID := make(map[int]*models.Game, len(games))
	for _, game := range games {
		gamesByID[game.ID] = game
	}

	// Highest version observed per game, for games without an owned
	// baseline.
	latestVersion := map[int]string{}
	for _, rel := range releases {
		if rel.ParsedVersion == nil {
			continue
		}
		current, ok := latestVersion[rel.GameID]
		if !ok {
			latestVersion[rel.GameID] = *rel.ParsedVersion
			continue
		}
		if gameversion.Compare(current, *rel.ParsedVersion) == gameversion.Newer {
			latestVersion[rel.GameID] = *rel.ParsedVersion
		}
	}

	var order []int
	grouped := map[int]*GameUpdates{}

	for _, rel := range releases {
		game, ok := gamesByID[rel.GameID]
		if !ok {
			continue
		}

		group, ok := grouped[rel.GameID]
		if !ok {
			display := *game
			display.Title = gametitle.ToTitleCaseWords(game.Title)
			group = &GameUpdates{Game: display}
			grouped[rel.GameID] = group
			order = append(order, rel.GameID)
		}

		group.Releases = append(group.Releases, scoreRelease(game, rel, latestVersion[rel.GameID], now))
	}

	result := make([]*GameUpdates, 0, len(order))
	for _, gameID := range order {
		group := grouped[gameID]
		group.Releases = assignTiers(group.Releases)
		result = append(result, group)
	}

	return result
}

func scoreRelease(game *models.Game, rel *models.Release, latest string, now time.Time) *ScoredRelease {
	confidenceRaw := 0
	if rel.ParsedVersion != nil {
		confidenceRaw = gameversion.Confidence(rel.RawTitle, *rel.ParsedVersion)
	}
	confidenceScore := int(math.Round(float64(confidenceRaw) / 100 * 20))

	freshness := freshnessScore(rel.UploadDate, now)
	seederScore := logScore(rel.Seeders, 500, 24)
	grabScore := logScore(rel.Grabs, 1000, 10)
	popularity := seederScore + grabScore

	hasOwned := game.CurrentVersion != nil && *game.CurrentVersion != "" && game.HasEstablishedVersion()

	state := VersionUnknown
	ownedScore := 8
	if rel.ParsedVersion != nil {
		ownedScore = 12
		if hasOwned {
			switch gameversion.Compare(*game.CurrentVersion, *rel.ParsedVersion) {
			case gameversion.Newer:
				state, ownedScore = VersionNewer, 40
			case gameversion.Equal:
				state, ownedScore = VersionSame, 22
			case gameversion.Older:
				state, ownedScore = VersionOlder, 0
			}
		}
	}

	isTopVersion := !hasOwned &&
		rel.ParsedVersion != nil &&
		latest != "" &&
		gameversion.Compare(latest, *rel.ParsedVersion) == gameversion.Equal

	versionScore := ownedScore
	if !hasOwned {
		switch {
		case isTopVersion:
			versionScore = 40
		case rel.ParsedVersion != nil:
			versionScore = 12
		default:
			versionScore = 8
		}
	}

	hasNewerAvailable := false
	if hasOwned && latest != "" {
		hasNewerAvailable = gameversion.Compare(*game.CurrentVersion, latest) == gameversion.Newer
	}

	candidate := isTopVersion
	label := ""
	if hasOwned {
		switch {
		case state == VersionNewer:
			candidate, label = true, "Newer than owned version"
		case state == VersionSame && !hasNewerAvailable:
			candidate, label = true, "Best same-version match"
		default:
			candidate = false
		}
	} else if isTopVersion {
		label = "Best available version"
	}

	return &ScoredRelease{
		Release:         rel,
		Score:           versionScore + confidenceScore + freshness + popularity,
		Tier:            TierLow,
		ConfidenceScore: confidenceScore,
		FreshnessScore:  freshness,
		PopularityScore: popularity,
		SeederScore:     seederScore,
		GrabScore:       grabScore,
		VersionState:    state,
		Candidate:       candidate,
		Reason:          buildReason(label, rel),
	}
}

// assignTiers keeps the strongest releases and promotes at most maxPerGame
// candidates out of the low tier, one per distinct version.
func assignTiers(scored []*ScoredRelease) []*ScoredRelease {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		si, sj := intOrZero(scored[i].Seeders), intOrZero(scored[j].Seeders)
		if si != sj {
			return si > sj
		}
		return scored[i].UploadDate.After(scored[j].UploadDate)
	})
	if len(scored) > windowPerGame {
		scored = scored[:windowPerGame]
	}

	recommended := map[string]struct{}{}
	count := 0
	for _, rel := range scored {
		if !rel.Candidate || count >= maxPerGame {
			continue
		}

		versionKey := fmt.Sprintf("release-%d", rel.ID)
		if rel.ParsedVersion != nil {
			versionKey = *rel.ParsedVersion
		}
		if _, seen := recommended[versionKey]; seen {
			continue
		}

		recommended[versionKey] = struct{}{}
		count++

		if rel.Score >= highTierThreshold {
			rel.Tier = TierHigh
		} else {
			rel.Tier = TierMedium
		}
	}

	return scored
}

// freshnessScore decays from 40 at roughly 0.9 points per day of age.
func freshnessScore(uploadDate time.Time, now time.Time) int {
	if uploadDate.IsZero() || uploadDate.Equal(models.Epoch) || uploadDate.Unix() == 0 {
		return 0
	}
	ageDays := now.Sub(uploadDate).Hours() / 24
	score := int(math.Round(40 - ageDays*0.9))
	return max(0, score)
}

// logScore maps a swarm metric onto [0, maxScore] logarithmically so the
// difference between 5 and 50 seeders matters more than 400 versus 500.
func logScore(value *int, clamp int, maxScore float64) int {
	if value == nil || *value <= 0 {
		return 0
	}
	clamped := min(*value, clamp)
	return int(math.Round(math.Log10(float64(clamped)+1) / math.Log10(float64(clamp)+1) * maxScore))
}

func buildReason(label string, rel *models.Release) string {
	if label == "" {
		return ""
	}

	parts := []string{label}
	if rel.Seeders != nil {
		parts = append(parts, fmt.Sprintf("%d seeders", *rel.Seeders))
	}
	if rel.Leechers != nil {
		parts = append(parts, fmt.Sprintf("%d leechers", *rel.Leechers))
	}
	if rel.Grabs != nil {
		parts = append(parts, fmt.Sprintf("%d grabs", *rel.Grabs))
	}
	return strings.Join(parts, " • ")
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
