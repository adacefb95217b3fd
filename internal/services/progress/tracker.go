// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package progress tracks the state of a running scan cycle for the API.
package progress

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the current scan.
type Snapshot struct {
	IsScanning  bool       `json:"isScanning"`
	Phase       string     `json:"phase"`
	CurrentStep int        `json:"currentStep"`
	TotalSteps  int        `json:"totalSteps"`
	CurrentItem string     `json:"currentItem"`
	Percent     int        `json:"percent"`
	StartedAt   *time.Time `json:"startedAt"`
}

// Tracker records scan phase and step progress. All methods are safe for
// concurrent use and safe on a nil receiver so services can run untracked.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Start begins a new phase with the given number of steps.
func (t *Tracker) Start(phase string, totalSteps int) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	startedAt := time.Now().UTC()
	t.snap = Snapshot{
		IsScanning: true,
		Phase:      phase,
		TotalSteps: totalSteps,
		StartedAt:  &startedAt,
	}
}

// Step advances the current phase by one step.
func (t *Tracker) Step(item string) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.CurrentStep++
	t.snap.CurrentItem = item
	t.snap.Percent = percent(t.snap.CurrentStep, t.snap.TotalSteps)
}

// Update sets the current step directly.
func (t *Tracker) Update(step int, item string) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.CurrentStep = step
	t.snap.CurrentItem = item
	t.snap.Percent = percent(step, t.snap.TotalSteps)
}

// Complete resets the tracker to idle.
func (t *Tracker) Complete() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap = Snapshot{}
}

// Snapshot returns the current progress state.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snap
}

func percent(step, total int) int {
	if total <= 0 {
		return 0
	}
	p := step * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}
