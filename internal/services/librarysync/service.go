// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package librarysync imports the qBittorrent library into the games table.
// Each completed torrent in the configured category becomes a game, with the
// installed version recovered from the torrent name or its source page.
package librarysync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/buildinfo"
	"github.com/gamearr/gamearr/internal/domain"
	"github.com/gamearr/gamearr/internal/metadata/igdb"
	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/qbittorrent"
	"github.com/gamearr/gamearr/internal/services/progress"
	"github.com/gamearr/gamearr/pkg/gametitle"
	"github.com/gamearr/gamearr/pkg/gameversion"
)

// sourcePageLimit caps how much of a source page is read when scraping a
// version from its markup.
const sourcePageLimit = 1 << 20

// sourceVersionTTL bounds how long a scraped (or failed) source page lookup
// is reused across sync passes.
const sourceVersionTTL = 6 * time.Hour

// TorrentSource lists the library category and resolves torrent comments.
// Satisfied by qbittorrent.Client.
type TorrentSource interface {
	ListCategory(ctx context.Context, category string) ([]qbt.Torrent, error)
	TorrentComment(ctx context.Context, hash string) (string, error)
}

// MetadataSource resolves cover art and store IDs for games.
// Satisfied by igdb.Client.
type MetadataSource interface {
	Enabled() bool
	GetGameMetadata(ctx context.Context, gameName string) (*igdb.GameMetadata, error)
}

// Service mirrors the qBittorrent library into the games table.
type Service struct {
	gameStore    *models.GameStore
	settingStore *models.AppSettingStore
	httpClient   *http.Client
	tracker      *progress.Tracker

	// sourceVersions caches version lookups per source page URL. An empty
	// cached value records a lookup that found nothing.
	sourceVersions *ttlcache.Cache[string, string]

	mu      sync.Mutex
	clients *syncClients
}

// syncClients bundles the per-settings upstream clients so they are only
// rebuilt when the relevant settings change.
type syncClients struct {
	key  string
	qbit *qbittorrent.Client
	igdb *igdb.Client
}

func NewService(gameStore *models.GameStore, settingStore *models.AppSettingStore) *Service {
	return &Service{
		gameStore:    gameStore,
		settingStore: settingStore,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
		sourceVersions: ttlcache.New(ttlcache.Options[string, string]{}.SetDefaultTTL(sourceVersionTTL)),
	}
}

// SetTracker attaches a progress tracker updated during sync passes.
func (s *Service) SetTracker(tracker *progress.Tracker) {
	s.tracker = tracker
}

func (s *Service) clientsFor(settings *domain.Settings) (*syncClients, error) {
	key := strings.Join([]string{
		settings.QbitURL,
		settings.QbitUsername,
		settings.QbitPassword,
		settings.IGDBClientID,
		settings.IGDBClientSecret,
	}, "\x00")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clients != nil && s.clients.key == key {
		return s.clients, nil
	}

	qbitClient, err := qbittorrent.NewClient(settings.QbitURL, settings.QbitUsername, settings.QbitPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qBittorrent: %w", err)
	}

	s.clients = &syncClients{
		key:  key,
		qbit: qbitClient,
		igdb: igdb.NewClient(igdb.Config{
			ClientID:     settings.IGDBClientID,
			ClientSecret: settings.IGDBClientSecret,
			UserAgent:    buildinfo.UserAgent,
		}),
	}

	return s.clients, nil
}

// Sync imports the qBittorrent library and returns how many games were
// created or refreshed. Games whose torrents are gone lose their link.
func (s *Service) Sync(ctx context.Context) (int, error) {
	settings, err := s.settingStore.LoadSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.QbitURL == "" {
		return 0, errors.New("qBittorrent host is not configured")
	}

	clients, err := s.clientsFor(settings)
	if err != nil {
		return 0, err
	}

	return s.syncTorrents(ctx, clients.qbit, clients.igdb, settings)
}

func (s *Service) syncTorrents(ctx context.Context, source TorrentSource, meta MetadataSource, settings *domain.Settings) (int, error) {
	torrents, err := source.ListCategory(ctx, settings.QbitCategory)
	if err != nil {
		return 0, fmt.Errorf("failed to list torrents: %w", err)
	}
	if len(torrents) == 0 {
		return 0, nil
	}

	syncStart := time.Now().UTC()
	s.tracker.Start("Syncing", len(torrents))

	games, err := s.gameStore.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list games: %w", err)
	}

	synced := 0
	for _, torrent := range torrents {
		s.tracker.Step(torrent.Name)
		processed, err := s.processTorrent(ctx, torrent, games, source, meta, settings)
		if err != nil {
			log.Error().Err(err).Str("torrent", torrent.Name).Msg("Failed to process torrent")
			continue
		}
		if processed {
			synced++
		}
	}

	unlinked, err := s.gameStore.UnlinkNotSyncedSince(ctx, syncStart)
	if err != nil {
		log.Error().Err(err).Msg("Failed to unlink stale games")
	} else if unlinked > 0 {
		log.Info().Int64("count", unlinked).Msg("Unlinked games no longer in qBittorrent")
	}

	log.Info().Int("count", synced).Msg("Synced games from qBittorrent")
	return synced, nil
}

func (s *Service) processTorrent(ctx context.Context, torrent qbt.Torrent, games []*models.Game, source TorrentSource, meta MetadataSource, settings *domain.Settings) (bool, error) {
	ts := torrent.CompletionOn
	if ts <= 0 {
		ts = torrent.AddedOn
	}
	if ts <= 0 || torrent.Name == "" {
		return false, nil
	}
	torrentDate := time.Unix(ts, 0).UTC()

	title := gametitle.ParseTorrentName(torrent.Name)
	if title == "" {
		log.Warn().Str("torrent", torrent.Name).Msg("Could not parse title from torrent name")
		return false, nil
	}

	version := gameversion.Extract(torrent.Name)

	sourceURL := ExtractSourceURL(torrent.Comment, torrent.Name)
	if sourceURL == "" {
		comment, err := source.TorrentComment(ctx, torrent.Hash)
		if err != nil {
			log.Warn().Err(err).Str("hash", torrent.Hash).Msg("Failed to fetch torrent comment")
		} else {
			sourceURL = ExtractSourceURL(comment)
		}
	}
	if version == "" && sourceURL != "" {
		version = s.sourcePageVersion(ctx, sourceURL)
	}

	searchQuery := gametitle.SanitizeSearchQuery(title)
	if searchQuery == "" {
		searchQuery = title
	}

	for _, game := range games {
		if gametitle.FuzzyMatch(game.Title, title) {
			return s.updateExistingGame(ctx, game, version, torrentDate, sourceURL, meta)
		}
	}

	return s.addNewGame(ctx, title, searchQuery, version, torrentDate, sourceURL, meta, settings)
}

func (s *Service) addNewGame(ctx context.Context, title, searchQuery, version string, torrentDate time.Time, sourceURL string, meta MetadataSource, settings *domain.Settings) (bool, error) {
	log.Info().Str("title", title).Str("version", orUnknown(version)).Msg("New game detected")

	game := &models.Game{
		Title:              title,
		SearchQuery:        searchQuery,
		CurrentVersionDate: torrentDate,
		Status:             models.GameStatusMonitored,
		QbitSyncedAt:       timePtr(time.Now().UTC()),
	}
	// New games inherit the configured default platforms.
	if settings.Platforms != "" {
		game.PlatformFilter = strings.Join(settings.PlatformList(), ",")
	}
	if version != "" {
		game.CurrentVersion = &version
	}
	if sourceURL != "" {
		game.SourceURL = &sourceURL
	}

	if metadata := s.lookupMetadata(ctx, meta, title); metadata != nil {
		if metadata.IGDBID > 0 {
			game.IGDBID = &metadata.IGDBID
		}
		if metadata.CoverURL != "" {
			game.CoverURL = &metadata.CoverURL
		}
		if metadata.SteamAppID > 0 {
			game.SteamAppID = &metadata.SteamAppID
		}
	}

	if _, err := s.gameStore.Create(ctx, game); err != nil {
		return false, fmt.Errorf("failed to create game: %w", err)
	}

	log.Info().Str("title", title).Msg("Added game to library")
	return true, nil
}

func (s *Service) updateExistingGame(ctx context.Context, game *models.Game, version string, torrentDate time.Time, sourceURL string, meta MetadataSource) (bool, error) {
	game.QbitSyncedAt = timePtr(time.Now().UTC())

	if torrentDate.After(game.CurrentVersionDate) {
		log.Info().
			Str("title", game.Title).
			Str("from", orUnknown(strValue(game.CurrentVersion))).
			Str("to", orUnknown(version)).
			Msg("Updating game version from qBittorrent")

		game.CurrentVersionDate = torrentDate
		if version != "" {
			game.CurrentVersion = &version
		}
		if sourceURL != "" {
			game.SourceURL = &sourceURL
		}
	} else {
		// Timestamp unchanged; backfill fields that are still empty.
		if strValue(game.CurrentVersion) == "" && version != "" {
			game.CurrentVersion = &version
		}
		if strValue(game.SourceURL) == "" && sourceURL != "" {
			game.SourceURL = &sourceURL
		}
	}

	if game.CoverURL == nil || game.SteamAppID == nil {
		if metadata := s.lookupMetadata(ctx, meta, game.Title); metadata != nil {
			if game.IGDBID == nil && metadata.IGDBID > 0 {
				game.IGDBID = &metadata.IGDBID
			}
			if game.CoverURL == nil && metadata.CoverURL != "" {
				game.CoverURL = &metadata.CoverURL
			}
			if game.SteamAppID == nil && metadata.SteamAppID > 0 {
				game.SteamAppID = &metadata.SteamAppID
			}
		}
	}

	if err := s.gameStore.Update(ctx, game); err != nil {
		return false, fmt.Errorf("failed to update game: %w", err)
	}

	return true, nil
}

func (s *Service) lookupMetadata(ctx context.Context, meta MetadataSource, title string) *igdb.GameMetadata {
	if meta == nil || !meta.Enabled() {
		return nil
	}

	metadata, err := meta.GetGameMetadata(ctx, gametitle.CleanGameTitle(title))
	if err != nil {
		log.Warn().Err(err).Str("title", title).Msg("Failed to fetch IGDB metadata")
		return nil
	}
	return metadata
}

// sourcePageVersion scrapes the source page title for a version when the
// torrent name carried none. Results, including misses, are cached per URL.
func (s *Service) sourcePageVersion(ctx context.Context, sourceURL string) string {
	if cached, ok := s.sourceVersions.Get(sourceURL); ok {
		return cached
	}

	version := s.fetchSourcePageVersion(ctx, sourceURL)
	s.sourceVersions.Set(sourceURL, version, ttlcache.DefaultTTL)
	return version
}

func (s *Service) fetchSourcePageVersion(ctx context.Context, sourceURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", sourceURL).Msg("Invalid source page URL")
		return ""
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", sourceURL).Msg("Failed to fetch source page")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("url", sourceURL).Msg("Source page fetch failed")
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, sourcePageLimit))
	if err != nil {
		log.Warn().Err(err).Str("url", sourceURL).Msg("Failed to read source page")
		return ""
	}

	for _, candidate := range pageTitleCandidates(string(body)) {
		if version := gameversion.Extract(candidate); version != "" {
			return version
		}
	}
	return ""
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func strValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func timePtr(t time.Time) *time.Time {
	return &t
}
