// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gameversion

import (
	"sort"
	"time"
)

// consensusWindow bounds how many of the most recent observations take part
// in consensus resolution, so stale observations cannot outvote current
// tracker state.
const consensusWindow = 10

// minConsensusConfidence is the confidence floor below which a consensus
// winner is discarded rather than used to seed a game's version.
const minConsensusConfidence = 60

// Candidate is one observed version string with confidence and recency
// metadata, collected while scanning even when the release itself is skipped.
type Candidate struct {
	Version     string
	Confidence  int
	UploadedAt  *time.Time
	SourceTitle string
}

// NewCandidate builds a Candidate for a version observed in a release title.
func NewCandidate(title, version string, uploadedAt *time.Time) Candidate {
	return Candidate{
		Version:     version,
		Confidence:  Confidence(title, version),
		UploadedAt:  uploadedAt,
		SourceTitle: title,
	}
}

func candidateTimestamp(c Candidate) int64 {
	if c.UploadedAt == nil {
		return 0
	}
	return c.UploadedAt.UnixMilli()
}

// PickBestCandidate reconciles multiple version observations into one
// canonical value, or nil when no candidate is trustworthy enough.
//
// The most recent observations are scored by confidence plus a frequency
// boost (12 per occurrence of the same version inside the window) plus a
// recency boost (10 down to 1 by window position). Ties prefer the
// numerically newer version, then the more recent upload.
func PickBestCandidate(candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	recent := make([]Candidate, len(candidates))
	copy(recent, candidates)
	sort.SliceStable(recent, func(i, j int) bool {
		return candidateTimestamp(recent[i]) > candidateTimestamp(recent[j])
	})
	if len(recent) > consensusWindow {
		recent = recent[:consensusWindow]
	}

	frequency := make(map[string]int, len(recent))
	for _, candidate := range recent {
		frequency[candidate.Version]++
	}

	var best *Candidate
	bestWeighted := 0

	for i := range recent {
		candidate := recent[i]

		frequencyBoost := frequency[candidate.Version] * 12
		recencyBoost := max(0, consensusWindow-i)
		weighted := candidate.Confidence + frequencyBoost + recencyBoost

		if best == nil || weighted > bestWeighted {
			best = &recent[i]
			bestWeighted = weighted
			continue
		}
		if weighted < bestWeighted {
			continue
		}

		switch Compare(best.Version, candidate.Version) {
		case Newer:
			best = &recent[i]
			bestWeighted = weighted
			continue
		case Older:
			continue
		}

		// Equal or incomparable: the more recent upload wins.
		if candidateTimestamp(candidate) > candidateTimestamp(*best) {
			best = &recent[i]
			bestWeighted = weighted
		}
	}

	if best == nil || best.Confidence < minConsensusConfidence {
		return nil
	}

	result := *best
	return &result
}
