// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/buildinfo"
	"github.com/gamearr/gamearr/internal/domain"
	"github.com/gamearr/gamearr/internal/metadata/igdb"
	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/services/scanner"
	"github.com/gamearr/gamearr/pkg/gametitle"
)

const skippedPageSize = 50

// igdbProvider caches an IGDB client keyed by credentials so handlers reuse
// the token cache across requests.
type igdbProvider struct {
	mu     sync.Mutex
	key    string
	client *igdb.Client
}

func (p *igdbProvider) clientFor(settings *domain.Settings) *igdb.Client {
	key := settings.IGDBClientID + "\x00" + settings.IGDBClientSecret

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil || p.key != key {
		p.client = igdb.NewClient(igdb.Config{
			ClientID:     settings.IGDBClientID,
			ClientSecret: settings.IGDBClientSecret,
			UserAgent:    buildinfo.UserAgent,
		})
		p.key = key
	}
	return p.client
}

type GamesHandler struct {
	gameStore    *models.GameStore
	releaseStore *models.ReleaseStore
	ignoredStore *models.IgnoredReleaseStore
	scanLogStore *models.ScanLogStore
	settingStore *models.AppSettingStore
	scanner      *scanner.Service

	igdb igdbProvider
}

func NewGamesHandler(
	gameStore *models.GameStore,
	releaseStore *models.ReleaseStore,
	ignoredStore *models.IgnoredReleaseStore,
	scanLogStore *models.ScanLogStore,
	settingStore *models.AppSettingStore,
	scanSvc *scanner.Service,
) *GamesHandler {
	return &GamesHandler{
		gameStore:    gameStore,
		releaseStore: releaseStore,
		ignoredStore: ignoredStore,
		scanLogStore: scanLogStore,
		settingStore: settingStore,
		scanner:      scanSvc,
	}
}

func (h *GamesHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/autocomplete", h.Autocomplete)
	r.Route("/{gameID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Get("/releases", h.Releases)
		r.Get("/ignored", h.Ignored)
		r.Get("/skipped", h.Skipped)
		r.Post("/reset-scan", h.ResetScan)
		r.Post("/igdb", h.UpdateIGDB)
	})
}

func (h *GamesHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.gameStore.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list games")
		RespondError(w, http.StatusInternalServerError, "Failed to list games")
		return
	}
	if games == nil {
		games = []*models.Game{}
	}
	RespondJSON(w, http.StatusOK, games)
}

func (h *GamesHandler) Get(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseIntParam(w, r, "gameID", "game ID")
	if !ok {
		return
	}

	game, err := h.gameStore.Get(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, models.ErrGameNotFound) {
			RespondError(w, http.StatusNotFound, "Game not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to get game")
		return
	}
	RespondJSON(w, http.StatusOK, game)
}

type createGamePayload struct {
	Title          string  `json:"title"`
	SearchQuery    string  `json:"searchQuery"`
	CurrentVersion *string `json:"currentVersion"`
	Monitored      *bool   `json:"monitored"`
}

func (h *GamesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createGamePayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	title := strings.ToLower(strings.TrimSpace(payload.Title))
	if title == "" {
		RespondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	searchQuery := strings.TrimSpace(payload.SearchQuery)
	if searchQuery == "" {
		searchQuery = gametitle.SanitizeSearchQuery(title)
	}

	game := &models.Game{
		Title:       title,
		SearchQuery: searchQuery,
		Status:      models.GameStatusMonitored,
		IsManual:    true,
	}
	if payload.Monitored != nil && !*payload.Monitored {
		game.Status = models.GameStatusIgnored
	}
	if payload.CurrentVersion != nil && *payload.CurrentVersion != "" {
		game.CurrentVersion = payload.CurrentVersion
		game.CurrentVersionDate = time.Now().UTC()
	}

	h.fillMetadata(r, game)

	created, err := h.gameStore.Create(r.Context(), game)
	if err != nil {
		log.Error().Err(err).Str("title", title).Msg("Failed to create game")
		RespondError(w, http.StatusInternalServerError, "Failed to create game")
		return
	}

	RespondJSON(w, http.StatusCreated, created)
}

// fillMetadata best-effort resolves IGDB cover art for a new manual game.
func (h *GamesHandler) fillMetadata(r *http.Request, game *models.Game) {
	settings, err := h.settingStore.LoadSettings(r.Context())
	if err != nil || !settings.IsIGDBEnabled() {
		return
	}

	client := h.igdb.clientFor(settings)
	meta, err := client.GetGameMetadata(r.Context(), gametitle.CleanGameTitle(game.Title))
	if err != nil {
		log.Warn().Err(err).Str("title", game.Title).Msg("IGDB lookup failed during manual add")
		return
	}
	if meta == nil {
		return
	}

	game.IGDBID = &meta.IGDBID
	if meta.CoverURL != "" {
		game.CoverURL = &meta.CoverURL
	}
	if meta.SteamAppID != 0 {
		game.SteamAppID = &meta.SteamAppID
	}
}

type updateGamePayload struct {
	Title           *string `json:"title"`
	SearchQuery     *string `json:"searchQuery"`
	Status          *string `json:"status"`
	CurrentVersion  *string `json:"currentVersion"`
	PlatformFilter  *string `json:"platformFilter"`
	ExcludeKeywords *string `json:"excludeKeywords"`
}

func (h *GamesHandler) Update(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseIntParam(w, r, "gameID", "game ID")
	if !ok {
		return
	}

	var payload updateGamePayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	game, err := h.gameStore.Get(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, models.ErrGameNotFound) {
			RespondError(w, http.StatusNotFound, "Game not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to get game")
		return
	}

	if payload.Title != nil && strings.TrimSpace(*payload.Title) != "" {
		game.Title = strings.ToLower(strings.TrimSpace(*payload.Title))
	}
	if payload.SearchQuery != nil {
		game.SearchQuery = strings.TrimSpace(*payload.SearchQuery)
	}
	if payload.Status != nil {
		if *payload.Status != models.GameStatusMonitored && *payload.Status != models.GameStatusIgnored {
			RespondError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		game.Status = *payload.Status
	}
	if payload.CurrentVersion != nil {
		if *payload.CurrentVersion == "" {
			game.CurrentVersion = nil
		} else {
			game.CurrentVersion = payload.CurrentVersion
			game.CurrentVersionDate = time.Now().UTC()
		}
	}
	if payload.PlatformFilter != nil {
		game.PlatformFilter = *payload.PlatformFilter
	}
	if payload.ExcludeKeywords != nil {
		if *payload.ExcludeKeywords == "" {
			game.ExcludeKeywords = nil
		} else {
			game.ExcludeKeywords = payload.ExcludeKeywords
		}
	}

	if err := h.gameStore.Update(r.Context(), game); err != nil {
		log.Error().Err(err).Int("gameID", gameID).Msg("Failed to update game")
		RespondError(w, http.StatusInternalServerError, "Failed to update game")
		return
	}

	RespondJSON(w, http.StatusOK, game)
}

func (h *GamesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseIntParam(w, r, "gameID", "game ID")
	if !ok {
		return
	}

	if err := h.releaseStore.DeleteByGame(r.Context(), gameID); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to delete releases")
		return
	}

	if err := h.gameStore.Delete(r.Context(), gameID); err != nil {
		if errors.Is(err, models.ErrGameNotFound) {
			RespondError(w, http.StatusNotFound, "Game not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to delete game")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *GamesHandler) Releases(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseIntParam(w, r, "gameID", "game ID")
	if !ok {
		return
	}

	releases, err := h.releaseStore.ListByGame(r.Context(), gameID)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to list releases")
		return
	}
	if releases == nil {
		releases = []*models.Release{}
	}
	RespondJSON(w, http.StatusOK, releases)
}

func (h *GamesHandler) Ignored(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseIntParam(w, r, "gameID", "game ID")
	if !ok {
		return
	}

	ignored, err := h.ignoredStore.ListByGame(r.Context(), gameID)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to list ignored releases")
		return
	}
	if ignored == nil {
		ignored = []*models.IgnoredRelease{}
	}
	RespondJSON(w, http.StatusOK, ignored)
}

// Skipped returns the skip reasons for a game from the most recent scan that
// recorded any.
func (h *GamesHandler) Skipped(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseIntParam(w, r, "gameID", "game ID")
	if !ok {
		return
	}

	empty := map[string]any{"skipped": []scanner.SkipInfo{}, "hasMore": false, "total": 0}

	scanLog, err := h.scanLogStore.LatestWithSkips(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrScanLogNotFound) {
			RespondJSON(w, http.StatusOK, empty)
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to load scan history")
		return
	}
	if scanLog.SkipDetails == nil {
		RespondJSON(w, http.StatusOK, empty)
		return
	}

	var groups []scanner.GameSkips
	if err := json.Unmarshal([]byte(*scanLog.SkipDetails), &groups); err != nil {
		log.Warn().Err(err).Int("scanLogID", scanLog.ID).Msg("Unparseable skip details")
		RespondJSON(w, http.StatusOK, empty)
		return
	}

	var items []scanner.SkipInfo
	for _, group := range groups {
		if group.GameID == gameID {
			items = group.Items
			break
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date > items[j].Date
	})

	total := len(items)
	hasMore := total > skippedPageSize
	if hasMore {
		items = items[:skippedPageSize]
	}
	if items == nil {
		items = []scanner.SkipInfo{}
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"skipped": items,
		"hasMore": hasMore,
		"total":   total,
	})
}

// ResetScan drops the game's found releases and searches again immediately.
func (h *GamesHandler) ResetScan(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseIntParam(w, r, "gameID", "game ID")
	if !ok {
		return
	}

	if _, err := h.gameStore.Get(r.Context(), gameID); err != nil {
		if errors.Is(err, models.ErrGameNotFound) {
			RespondError(w, http.StatusNotFound, "Game not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to get game")
		return
	}

	if err := h.releaseStore.DeleteByGame(r.Context(), gameID); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to reset releases")
		return
	}
	if err := h.gameStore.ResetScanState(r.Context(), gameID); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to reset scan state")
		return
	}

	settings, err := h.settingStore.LoadSettings(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	stats := h.scanner.SearchGame(r.Context(), gameID, settings)
	if stats.Error != "" {
		RespondError(w, http.StatusBadGateway, stats.Error)
		return
	}

	RespondJSON(w, http.StatusOK, stats)
}

type updateIGDBPayload struct {
	IGDBID int `json:"igdbId"`
}

// UpdateIGDB re-links a game to a specific IGDB entry and refreshes its
// cover art and Steam app ID.
func (h *GamesHandler) UpdateIGDB(w http.ResponseWriter, r *http.Request) {
	gameID, ok := ParseIntParam(w, r, "gameID", "game ID")
	if !ok {
		return
	}

	var payload updateIGDBPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}
	if payload.IGDBID <= 0 {
		RespondError(w, http.StatusBadRequest, "Invalid IGDB ID")
		return
	}

	game, err := h.gameStore.Get(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, models.ErrGameNotFound) {
			RespondError(w, http.StatusNotFound, "Game not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to get game")
		return
	}

	settings, err := h.settingStore.LoadSettings(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	if !settings.IsIGDBEnabled() {
		RespondError(w, http.StatusBadRequest, "IGDB credentials are not configured")
		return
	}

	client := h.igdb.clientFor(settings)
	meta, err := client.GetGameMetadataByID(r.Context(), payload.IGDBID)
	if err != nil {
		RespondError(w, http.StatusBadGateway, "IGDB lookup failed")
		return
	}
	if meta == nil {
		RespondError(w, http.StatusNotFound, "IGDB game not found")
		return
	}

	game.IGDBID = &meta.IGDBID
	if meta.CoverURL != "" {
		game.CoverURL = &meta.CoverURL
	} else {
		game.CoverURL = nil
	}
	if meta.SteamAppID != 0 {
		game.SteamAppID = &meta.SteamAppID
	}

	if err := h.gameStore.Update(r.Context(), game); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to update game")
		return
	}

	RespondJSON(w, http.StatusOK, game)
}

// Autocomplete proxies IGDB name suggestions for the add-game form.
func (h *GamesHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	settings, err := h.settingStore.LoadSettings(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	suggestions := []igdb.Suggestion{}
	if settings.IsIGDBEnabled() {
		client := h.igdb.clientFor(settings)
		results, err := client.SearchAutocomplete(r.Context(), query)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Msg("IGDB autocomplete failed")
		} else if results != nil {
			suggestions = results
		}
	}

	RespondJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}
