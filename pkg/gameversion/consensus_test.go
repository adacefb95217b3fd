// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gameversion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tsPtr(t time.Time) *time.Time {
	return &t
}

func TestPickBestCandidateEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, PickBestCandidate(nil))
	assert.Nil(t, PickBestCandidate([]Candidate{}))
}

func TestPickBestCandidateSingle(t *testing.T) {
	t.Parallel()

	now := time.Now()
	best := PickBestCandidate([]Candidate{
		{Version: "1.2.3", Confidence: 80, UploadedAt: tsPtr(now)},
	})
	require.NotNil(t, best)
	assert.Equal(t, "1.2.3", best.Version)
}

func TestPickBestCandidateConfidenceFloor(t *testing.T) {
	t.Parallel()

	now := time.Now()
	best := PickBestCandidate([]Candidate{
		{Version: "1.0", Confidence: 59, UploadedAt: tsPtr(now)},
		{Version: "1.0", Confidence: 40, UploadedAt: tsPtr(now.Add(-time.Hour))},
	})
	assert.Nil(t, best)
}

func TestPickBestCandidateFrequencyOutvotesRecency(t *testing.T) {
	t.Parallel()

	// One fresh "1.3" observation against nine in-window "1.2" observations.
	// "1.3" scores 70 + 1*12 + 10 = 92, the newest "1.2" scores
	// 70 + 9*12 + 9 = 187, so the frequent version wins.
	now := time.Now()
	candidates := []Candidate{{Version: "1.3", Confidence: 70, UploadedAt: tsPtr(now)}}
	for i := 1; i <= 10; i++ {
		candidates = append(candidates, Candidate{
			Version:    "1.2",
			Confidence: 70,
			UploadedAt: tsPtr(now.Add(-time.Duration(i) * time.Hour)),
		})
	}

	best := PickBestCandidate(candidates)
	require.NotNil(t, best)
	assert.Equal(t, "1.2", best.Version)
}

func TestPickBestCandidateTiePrefersNewerVersion(t *testing.T) {
	t.Parallel()

	// 70 + 12 + 10 == 71 + 12 + 9: equal weighted scores, so the
	// numerically newer version wins the tie.
	now := time.Now()
	best := PickBestCandidate([]Candidate{
		{Version: "1.0", Confidence: 70, UploadedAt: tsPtr(now)},
		{Version: "2.0", Confidence: 71, UploadedAt: tsPtr(now.Add(-time.Hour))},
	})
	require.NotNil(t, best)
	assert.Equal(t, "2.0", best.Version)
}

func TestPickBestCandidateTieKeepsHigherWhenCandidateOlder(t *testing.T) {
	t.Parallel()

	now := time.Now()
	best := PickBestCandidate([]Candidate{
		{Version: "2.0", Confidence: 70, UploadedAt: tsPtr(now)},
		{Version: "1.0", Confidence: 71, UploadedAt: tsPtr(now.Add(-time.Hour))},
	})
	require.NotNil(t, best)
	assert.Equal(t, "2.0", best.Version)
}

func TestPickBestCandidateIncomparableTieUsesUploadTime(t *testing.T) {
	t.Parallel()

	// Incomparable versions with equal weighted scores resolve by upload
	// recency, not by parsing the version strings as anything else.
	now := time.Now()
	best := PickBestCandidate([]Candidate{
		{Version: "alpha", Confidence: 70, UploadedAt: tsPtr(now)},
		{Version: "omega", Confidence: 71, UploadedAt: tsPtr(now.Add(-time.Hour))},
	})
	require.NotNil(t, best)
	assert.Equal(t, "alpha", best.Version)
}

func TestPickBestCandidateWindowExcludesStale(t *testing.T) {
	t.Parallel()

	// Ten recent low-confidence observations push the single trustworthy
	// one out of the window, so no consensus is reached.
	now := time.Now()
	var candidates []Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, Candidate{
			Version:    "1.0",
			Confidence: 40,
			UploadedAt: tsPtr(now.Add(-time.Duration(i) * time.Minute)),
		})
	}
	candidates = append(candidates, Candidate{
		Version:    "9.9",
		Confidence: 95,
		UploadedAt: tsPtr(now.Add(-24 * time.Hour)),
	})

	assert.Nil(t, PickBestCandidate(candidates))
}

func TestPickBestCandidateNilUploadSortsLast(t *testing.T) {
	t.Parallel()

	now := time.Now()
	best := PickBestCandidate([]Candidate{
		{Version: "1.0", Confidence: 70},
		{Version: "1.1", Confidence: 70, UploadedAt: tsPtr(now)},
	})
	require.NotNil(t, best)
	// Same confidence and frequency: the dated candidate gets the larger
	// recency boost.
	assert.Equal(t, "1.1", best.Version)
}

func TestNewCandidateScoresTitle(t *testing.T) {
	t.Parallel()

	c := NewCandidate("Game v1.2.3", "1.2.3", nil)
	assert.Equal(t, 80, c.Confidence)
	assert.Equal(t, "Game v1.2.3", c.SourceTitle)
}
