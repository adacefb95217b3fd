// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gamearr/gamearr/internal/buildinfo"
	"github.com/gamearr/gamearr/internal/domain"
	"github.com/gamearr/gamearr/internal/metadata/igdb"
	"github.com/gamearr/gamearr/internal/metrics"
	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/prowlarr"
	"github.com/gamearr/gamearr/internal/services/progress"
	"github.com/gamearr/gamearr/pkg/gametitle"
	"github.com/gamearr/gamearr/pkg/gameversion"
)

// searchConcurrency bounds parallel Prowlarr searches during a full scan.
const searchConcurrency = 3

// SearchStats summarizes one game's search.
type SearchStats struct {
	GameID     int        `json:"gameId"`
	TotalFound int        `json:"totalFound"`
	Added      int        `json:"added"`
	Skipped    []SkipInfo `json:"skipped"`
	Error      string     `json:"error,omitempty"`
}

// GameSkips groups a scan's skipped results per game for the scan log.
type GameSkips struct {
	Game   string     `json:"game"`
	GameID int        `json:"game_id"`
	Items  []SkipInfo `json:"items"`
}

// Service searches Prowlarr for updates to monitored games and records the
// results.
type Service struct {
	gameStore    *models.GameStore
	releaseStore *models.ReleaseStore
	ignoredStore *models.IgnoredReleaseStore
	scanLogStore *models.ScanLogStore
	settingStore *models.AppSettingStore
	scanMetrics  *metrics.ScanMetrics
	tracker      *progress.Tracker

	mu      sync.Mutex
	clients *searchClients
}

// searchClients bundles the per-settings upstream clients so they are only
// rebuilt when the relevant settings change.
type searchClients struct {
	key      string
	prowlarr *prowlarr.Client
	indexers *prowlarr.IndexerCache
	igdb     *igdb.Client
}

func NewService(
	gameStore *models.GameStore,
	releaseStore *models.ReleaseStore,
	ignoredStore *models.IgnoredReleaseStore,
	scanLogStore *models.ScanLogStore,
	settingStore *models.AppSettingStore,
	scanMetrics *metrics.ScanMetrics,
) *Service {
	return &Service{
		gameStore:    gameStore,
		releaseStore: releaseStore,
		ignoredStore: ignoredStore,
		scanLogStore: scanLogStore,
		settingStore: settingStore,
		scanMetrics:  scanMetrics,
	}
}

// SetTracker attaches a progress tracker updated during full scans.
func (s *Service) SetTracker(tracker *progress.Tracker) {
	s.tracker = tracker
}

func (s *Service) clientsFor(settings *domain.Settings) *searchClients {
	key := strings.Join([]string{
		settings.ProwlarrURL,
		settings.ProwlarrAPIKey,
		settings.IGDBClientID,
		settings.IGDBClientSecret,
	}, "\x00")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clients != nil && s.clients.key == key {
		return s.clients
	}

	prowlarrClient := prowlarr.NewClient(prowlarr.Config{
		Host:      settings.ProwlarrURL,
		APIKey:    settings.ProwlarrAPIKey,
		UserAgent: buildinfo.UserAgent,
	})

	s.clients = &searchClients{
		key:      key,
		prowlarr: prowlarrClient,
		indexers: prowlarr.NewIndexerCache(prowlarrClient),
		igdb: igdb.NewClient(igdb.Config{
			ClientID:     settings.IGDBClientID,
			ClientSecret: settings.IGDBClientSecret,
			UserAgent:    buildinfo.UserAgent,
		}),
	}

	return s.clients
}

// RefreshIndexers invalidates the cached indexer ID set.
func (s *Service) RefreshIndexers(ctx context.Context, settings *domain.Settings) error {
	clients := s.clientsFor(settings)
	return clients.indexers.Refresh(ctx, settings.AllowedIndexersList())
}

// SearchGame queries Prowlarr for one game and stores accepted releases.
// Failures are reported in the stats rather than as an error so a full
// scan keeps going past individual games.
func (s *Service) SearchGame(ctx context.Context, gameID int, settings *domain.Settings) *SearchStats {
	stats := &SearchStats{GameID: gameID}

	game, err := s.gameStore.Get(ctx, gameID)
	if err != nil {
		stats.Error = "Game not found"
		return stats
	}

	clients := s.clientsFor(settings)

	s.healMetadata(ctx, game, clients.igdb)

	allowed := settings.AllowedIndexersList()
	indexerIDs, err := clients.indexers.IDs(ctx, allowed)
	if err != nil {
		stats.Error = truncateError(err)
		return stats
	}
	if len(allowed) > 0 && len(indexerIDs) == 0 {
		stats.Error = "No matching indexers found in Prowlarr"
		return stats
	}

	queryUsed := game.SearchQuery
	results, err := clients.prowlarr.Search(ctx, queryUsed, indexerIDs)
	if err != nil {
		stats.Error = truncateError(err)
		return stats
	}

	if len(results) == 0 {
		fallback := gametitle.SanitizeSearchQuery(gametitle.CleanGameTitle(firstNonEmpty(game.SearchQuery, game.Title)))
		if fallback != "" && !strings.EqualFold(fallback, queryUsed) {
			if fallbackResults, err := clients.prowlarr.Search(ctx, fallback, indexerIDs); err == nil {
				results = fallbackResults
				queryUsed = fallback
				log.Info().Str("game", game.Title).Str("query", queryUsed).Msg("fallback query used")
			}
		}
	}

	stats.TotalFound = len(results)

	ignoredTitles, err := s.ignoredStore.RawTitlesByGame(ctx, game.ID)
	if err != nil {
		log.Warn().Err(err).Int("gameID", game.ID).Msg("failed to load ignored releases")
		ignoredTitles = map[string]struct{}{}
	}

	existing := map[string]*models.Release{}
	if stored, err := s.releaseStore.ListByGame(ctx, game.ID); err == nil {
		for _, release := range stored {
			existing[release.RawTitle] = release
		}
	}

	filter := NewFilter(
		game,
		queryUsed,
		settings.IgnoredKeywordsList(),
		platformList(game.PlatformFilter),
		ignoredTitles,
		existing,
		time.Now(),
	)

	var candidates []gameversion.Candidate
	for _, item := range results {
		outcome := filter.Evaluate(item)
		if outcome.Candidate != nil {
			candidates = append(candidates, *outcome.Candidate)
		}

		switch {
		case outcome.Release != nil:
			if _, err := s.releaseStore.Create(ctx, outcome.Release); err != nil {
				log.Warn().Err(err).Str("title", outcome.Release.RawTitle).Msg("failed to store release")
				continue
			}
			stats.Added++
		case outcome.Duplicate != nil:
			s.refreshMetrics(ctx, outcome.Duplicate, item)
			stats.Skipped = append(stats.Skipped, *outcome.Skip)
		case outcome.Skip != nil:
			stats.Skipped = append(stats.Skipped, *outcome.Skip)
		}
	}

	s.seedVersion(ctx, game, candidates)

	if stats.Added > 0 {
		log.Info().Str("game", game.Title).Int("added", stats.Added).Msg("found new releases")
	}

	if err := s.gameStore.SetLastScanned(ctx, game.ID, time.Now()); err != nil {
		log.Warn().Err(err).Int("gameID", game.ID).Msg("failed to update last scanned")
	}

	return stats
}

// refreshMetrics updates a stored duplicate's swarm numbers when they
// changed.
func (s *Service) refreshMetrics(ctx context.Context, existing *models.Release, item prowlarr.SearchResult) {
	seeders := NormalizeMetric(item.Seeders)
	leechers := NormalizeMetric(item.Leechers)
	grabs := NormalizeMetric(item.Grabs)

	if intPtrEqual(existing.Seeders, seeders) &&
		intPtrEqual(existing.Leechers, leechers) &&
		intPtrEqual(existing.Grabs, grabs) {
		return
	}

	if err := s.releaseStore.UpdateMetrics(ctx, existing.ID, seeders, leechers, grabs); err != nil {
		log.Warn().Err(err).Int("releaseID", existing.ID).Msg("failed to refresh release metrics")
	}
}

// seedVersion establishes an initial version for games that have never
// observed one, using consensus across this search's version candidates.
func (s *Service) seedVersion(ctx context.Context, game *models.Game, candidates []gameversion.Candidate) {
	if game.HasEstablishedVersion() || len(candidates) == 0 {
		return
	}

	best := gameversion.PickBestCandidate(candidates)
	if best == nil {
		return
	}

	seededAt := time.Now().UTC()
	if best.UploadedAt != nil {
		seededAt = best.UploadedAt.UTC()
	}

	if err := s.gameStore.SetVersion(ctx, game.ID, best.Version, seededAt); err != nil {
		log.Warn().Err(err).Int("gameID", game.ID).Msg("failed to seed version")
		return
	}

	log.Info().
		Str("game", game.Title).
		Str("version", best.Version).
		Int("confidence", best.Confidence).
		Msg("seeded version from tracker consensus")
}

// healMetadata backfills missing IGDB metadata before searching.
func (s *Service) healMetadata(ctx context.Context, game *models.Game, igdbClient *igdb.Client) {
	if !igdbClient.Enabled() {
		return
	}
	if game.SteamAppID != nil && game.IGDBID != nil && game.CoverURL != nil {
		return
	}

	meta, err := igdbClient.GetGameMetadata(ctx, gametitle.CleanGameTitle(game.Title))
	if err != nil || meta == nil {
		if err != nil {
			log.Warn().Err(err).Str("game", game.Title).Msg("metadata backfill failed")
		}
		return
	}

	changed := false
	if game.IGDBID == nil && meta.IGDBID != 0 {
		game.IGDBID = &meta.IGDBID
		changed = true
	}
	if game.SteamAppID == nil && meta.SteamAppID != 0 {
		game.SteamAppID = &meta.SteamAppID
		changed = true
	}
	if game.CoverURL == nil && meta.CoverURL != "" {
		game.CoverURL = &meta.CoverURL
		changed = true
	}

	if changed {
		if err := s.gameStore.Update(ctx, game); err != nil {
			log.Warn().Err(err).Str("game", game.Title).Msg("failed to store backfilled metadata")
			return
		}
		log.Info().Str("game", game.Title).Msg("backfilled metadata")
	}
}

// ScanAll searches every monitored game and records a scan log entry.
func (s *Service) ScanAll(ctx context.Context) (*models.ScanLog, error) {
	startedAt := time.Now()
	log.Info().Msg("Starting update search")

	settings, err := s.settingStore.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.ProwlarrURL == "" {
		return nil, fmt.Errorf("prowlarr is not configured")
	}

	monitored, err := s.gameStore.ListMonitored(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored games: %w", err)
	}

	log.Info().Int("games", len(monitored)).Msg("scanning monitored games")
	s.tracker.Start("Searching", len(monitored))

	var (
		mu         sync.Mutex
		totalFound int
		totalAdded int
		errDetails []string
		allSkipped []GameSkips
		skipCounts = map[string]int{}
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(searchConcurrency)

	for _, game := range monitored {
		game := game
		group.Go(func() error {
			stats := s.SearchGame(groupCtx, game.ID, settings)
			s.tracker.Step(game.Title)

			mu.Lock()
			defer mu.Unlock()

			totalFound += stats.TotalFound
			totalAdded += stats.Added
			if stats.Error != "" {
				log.Warn().Str("game", game.Title).Str("error", stats.Error).Msg("search error")
				errDetails = append(errDetails, fmt.Sprintf("%s: %s", game.Title, stats.Error))
			}
			if len(stats.Skipped) > 0 {
				allSkipped = append(allSkipped, GameSkips{Game: game.Title, GameID: game.ID, Items: stats.Skipped})
				for _, skip := range stats.Skipped {
					skipCounts[skip.Category]++
				}
			}
			return nil
		})
	}

	// Workers only report through stats, the wait cannot fail.
	_ = group.Wait()

	duration := time.Since(startedAt)

	status := models.ScanStatusSuccess
	switch {
	case len(monitored) > 0 && len(errDetails) == len(monitored):
		status = models.ScanStatusError
	case len(errDetails) > 0:
		status = models.ScanStatusPartial
	}

	entry := &models.ScanLog{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		GamesProcessed:  len(monitored),
		UpdatesFound:    totalAdded,
		Status:          status,
	}

	if details, err := marshalDetails(totalFound, errDetails); err == nil {
		entry.Details = details
	}
	if skipDetails, err := marshalSkips(allSkipped); err == nil {
		entry.SkipDetails = skipDetails
	}

	if err := s.scanLogStore.Create(ctx, entry); err != nil {
		log.Error().Err(err).Msg("failed to save scan log")
	}

	if s.scanMetrics != nil {
		s.scanMetrics.ObserveScan(status, duration)
		s.scanMetrics.AddReleases(totalAdded)
		s.scanMetrics.AddSkips(skipCounts)
	}

	log.Info().
		Int("updates", totalAdded).
		Str("duration", duration.Round(100*time.Millisecond).String()).
		Msg("Update search completed")

	return entry, nil
}

func marshalDetails(totalFound int, errDetails []string) (*string, error) {
	if len(errDetails) > 10 {
		errDetails = errDetails[:10]
	}
	payload := struct {
		TotalResultsFound int      `json:"total_results_found"`
		Errors            []string `json:"errors"`
	}{totalFound, errDetails}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func marshalSkips(allSkipped []GameSkips) (*string, error) {
	if len(allSkipped) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(allSkipped)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func platformList(platformFilter string) []string {
	parts := strings.Split(platformFilter, ",")
	platforms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 80 {
		msg = msg[:80]
	}
	return "Error: " + msg
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
