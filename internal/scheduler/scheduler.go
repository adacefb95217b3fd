// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scheduler runs the periodic scan cycle: library sync, update
// search, and optional auto-download of high-scoring recommendations.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/qbittorrent"
	"github.com/gamearr/gamearr/internal/services/librarysync"
	"github.com/gamearr/gamearr/internal/services/progress"
	"github.com/gamearr/gamearr/internal/services/recommend"
	"github.com/gamearr/gamearr/internal/services/scanner"
)

// ErrScanInProgress is returned by Trigger while a cycle is already running.
var ErrScanInProgress = errors.New("a scan is already in progress")

// minInterval is the floor for the scan interval regardless of settings.
const minInterval = 5 * time.Minute

// Scheduler drives full scan cycles on an interval and on demand.
type Scheduler struct {
	settingStore *models.AppSettingStore
	gameStore    *models.GameStore
	releaseStore *models.ReleaseStore
	library      *librarysync.Service
	scanner      *scanner.Service
	qbit         *qbittorrent.Pool
	tracker      *progress.Tracker

	mu       sync.Mutex
	scanning bool
	lastRun  *time.Time
	lastErr  string

	trigger chan struct{}
}

func New(
	settingStore *models.AppSettingStore,
	gameStore *models.GameStore,
	releaseStore *models.ReleaseStore,
	library *librarysync.Service,
	scanSvc *scanner.Service,
	qbit *qbittorrent.Pool,
	tracker *progress.Tracker,
) *Scheduler {
	library.SetTracker(tracker)
	scanSvc.SetTracker(tracker)

	return &Scheduler{
		settingStore: settingStore,
		gameStore:    gameStore,
		releaseStore: releaseStore,
		library:      library,
		scanner:      scanSvc,
		qbit:         qbit,
		tracker:      tracker,
		trigger:      make(chan struct{}, 1),
	}
}

// Tracker exposes the shared progress tracker for the API.
func (s *Scheduler) Tracker() *progress.Tracker {
	return s.tracker
}

// Status reports whether a cycle is running and how the last one ended.
type Status struct {
	Scanning bool       `json:"scanning"`
	LastRun  *time.Time `json:"lastRun,omitempty"`
	LastErr  string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Scanning: s.scanning, LastRun: s.lastRun, LastErr: s.lastErr}
}

// Trigger requests an immediate scan cycle. Returns ErrScanInProgress when
// one is already running.
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	scanning := s.scanning
	s.mu.Unlock()
	if scanning {
		return ErrScanInProgress
	}

	select {
	case s.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Start runs scan cycles until the context is cancelled. The interval is
// re-read from settings after every cycle so changes apply without restart.
func (s *Scheduler) Start(ctx context.Context) {
	interval := s.interval(ctx)
	log.Info().Str("interval", interval.String()).Msg("Scheduler started")

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		s.RunCycle(ctx)

		interval = s.interval(ctx)
		timer.Reset(interval)
	}
}

// RunCycle performs one full cycle: library sync, update search,
// auto-download. Concurrent calls beyond the first are dropped.
func (s *Scheduler) RunCycle(ctx context.Context) {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		log.Debug().Msg("scan cycle already running, skipping")
		return
	}
	s.scanning = true
	s.mu.Unlock()

	started := time.Now()
	log.Info().Msg("Starting full scan cycle")

	var cycleErr error

	if _, err := s.library.Sync(ctx); err != nil {
		log.Error().Err(err).Msg("Library sync failed")
		cycleErr = errors.Wrap(err, "library sync")
	}

	if _, err := s.scanner.ScanAll(ctx); err != nil {
		log.Error().Err(err).Msg("Update search failed")
		cycleErr = errors.Wrap(err, "update search")
	} else {
		s.autoDownload(ctx)
	}

	s.tracker.Complete()

	finished := time.Now().UTC()
	s.mu.Lock()
	s.scanning = false
	s.lastRun = &finished
	s.lastErr = ""
	if cycleErr != nil {
		s.lastErr = cycleErr.Error()
	}
	s.mu.Unlock()

	log.Info().
		Str("duration", time.Since(started).Round(100*time.Millisecond).String()).
		Msg("Scan cycle completed")
}

// autoDownload sends recommended releases above the configured score to
// qBittorrent and marks them handled. No-op unless enabled in settings.
func (s *Scheduler) autoDownload(ctx context.Context) {
	settings, err := s.settingStore.LoadSettings(ctx)
	if err != nil {
		log.Error().Err(err).Msg("auto-download: failed to load settings")
		return
	}
	if !settings.AutoDownloadEnable {
		return
	}

	games, err := s.gameStore.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("auto-download: failed to list games")
		return
	}
	releases, err := s.releaseStore.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("auto-download: failed to list releases")
		return
	}

	client, err := s.qbit.Get(settings.QbitURL, settings.QbitUsername, settings.QbitPassword)
	if err != nil {
		log.Error().Err(err).Msg("auto-download: qBittorrent unavailable")
		return
	}

	sent := 0
	for _, group := range recommend.Rank(games, releases, time.Now().UTC()) {
		for _, rel := range group.Releases {
			if rel.Tier == recommend.TierLow || rel.Score < settings.AutoDownloadScore || rel.MagnetURL == nil {
				continue
			}

			if err := client.AddTorrent(ctx, *rel.MagnetURL, settings.QbitCategory); err != nil {
				log.Error().Err(err).Str("release", rel.RawTitle).Msg("auto-download: failed to add torrent")
				continue
			}

			// Keep the release out of future recommendation passes.
			if err := s.releaseStore.SetIgnored(ctx, rel.ID, true); err != nil {
				log.Warn().Err(err).Int("release", rel.ID).Msg("auto-download: failed to mark release handled")
			}

			sent++
			log.Info().Str("game", group.Game.Title).Str("release", rel.RawTitle).Int("score", rel.Score).Msg("auto-download: sent to qBittorrent")
		}
	}

	if sent > 0 {
		log.Info().Int("count", sent).Msg("auto-download: cycle finished")
	}
}

// interval reads the scan interval from settings, clamped to minInterval.
func (s *Scheduler) interval(ctx context.Context) time.Duration {
	settings, err := s.settingStore.LoadSettings(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load settings, using default interval")
		return 6 * time.Hour
	}

	interval := time.Duration(settings.ScanIntervalMins) * time.Minute
	if interval < minInterval {
		interval = minInterval
	}
	return interval
}
