// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/qbittorrent"
	"github.com/gamearr/gamearr/pkg/gametitle"
	"github.com/gamearr/gamearr/pkg/gameversion"
)

type ReleasesHandler struct {
	gameStore    *models.GameStore
	releaseStore *models.ReleaseStore
	ignoredStore *models.IgnoredReleaseStore
	settingStore *models.AppSettingStore
	qbit         *qbittorrent.Pool
}

func NewReleasesHandler(
	gameStore *models.GameStore,
	releaseStore *models.ReleaseStore,
	ignoredStore *models.IgnoredReleaseStore,
	settingStore *models.AppSettingStore,
	qbit *qbittorrent.Pool,
) *ReleasesHandler {
	return &ReleasesHandler{
		gameStore:    gameStore,
		releaseStore: releaseStore,
		ignoredStore: ignoredStore,
		settingStore: settingStore,
		qbit:         qbit,
	}
}

func (h *ReleasesHandler) Routes(r chi.Router) {
	r.Post("/", h.ForceAdd)
	r.Route("/{releaseID}", func(r chi.Router) {
		r.Post("/download", h.Download)
		r.Post("/confirm", h.Confirm)
		r.Post("/ignore", h.Ignore)
		r.Post("/skip", h.Skip)
	})
}

type forceAddPayload struct {
	GameID    int     `json:"gameId"`
	Title     string  `json:"title"`
	Indexer   string  `json:"indexer"`
	Date      string  `json:"date"`
	MagnetURL *string `json:"magnetUrl"`
	InfoURL   *string `json:"infoUrl"`
	Size      *string `json:"size"`
	Seeders   *int    `json:"seeders"`
}

// ForceAdd records a release the pipeline skipped or never saw, so it shows
// up as a candidate for the game.
func (h *ReleasesHandler) ForceAdd(w http.ResponseWriter, r *http.Request) {
	var payload forceAddPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	title := strings.TrimSpace(payload.Title)
	if payload.GameID <= 0 || title == "" {
		RespondError(w, http.StatusBadRequest, "gameId and title are required")
		return
	}

	if _, err := h.gameStore.Get(r.Context(), payload.GameID); err != nil {
		if errors.Is(err, models.ErrGameNotFound) {
			RespondError(w, http.StatusNotFound, "Game not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to get game")
		return
	}

	if _, err := h.releaseStore.GetByGameAndTitle(r.Context(), payload.GameID, title); err == nil {
		RespondError(w, http.StatusBadRequest, "Release already tracked")
		return
	} else if !errors.Is(err, models.ErrReleaseNotFound) {
		RespondError(w, http.StatusInternalServerError, "Failed to check existing releases")
		return
	}

	release := &models.Release{
		GameID:     payload.GameID,
		RawTitle:   title,
		UploadDate: parseReleaseDate(payload.Date),
		Indexer:    payload.Indexer,
		MagnetURL:  payload.MagnetURL,
		InfoURL:    payload.InfoURL,
		Size:       payload.Size,
		Seeders:    payload.Seeders,
	}
	if release.Indexer == "" {
		release.Indexer = "Unknown"
	}
	if version := gameversion.Extract(title); version != "" {
		release.ParsedVersion = &version
	}

	created, err := h.releaseStore.Create(r.Context(), release)
	if err != nil {
		log.Error().Err(err).Int("gameID", payload.GameID).Msg("Failed to force-add release")
		RespondError(w, http.StatusInternalServerError, "Failed to add release")
		return
	}

	RespondJSON(w, http.StatusCreated, created)
}

func parseReleaseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "n/a") {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Now().UTC()
}

// Download sends the release to qBittorrent, then treats it as the new
// installed version.
func (h *ReleasesHandler) Download(w http.ResponseWriter, r *http.Request) {
	release, ok := h.getRelease(w, r)
	if !ok {
		return
	}

	link := ""
	if release.MagnetURL != nil && *release.MagnetURL != "" {
		link = *release.MagnetURL
	} else if release.InfoURL != nil && *release.InfoURL != "" {
		link = *release.InfoURL
	}
	if link == "" {
		RespondError(w, http.StatusBadRequest, "Release has no download link")
		return
	}

	settings, err := h.settingStore.LoadSettings(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	client, err := h.qbit.Get(settings.QbitURL, settings.QbitUsername, settings.QbitPassword)
	if err != nil {
		if errors.Is(err, qbittorrent.ErrNotConfigured) {
			RespondError(w, http.StatusBadRequest, "qBittorrent is not configured")
			return
		}
		RespondError(w, http.StatusBadGateway, "Failed to connect to qBittorrent")
		return
	}

	if err := client.AddTorrent(r.Context(), link, settings.QbitCategory); err != nil {
		log.Error().Err(err).Int("releaseID", release.ID).Msg("Failed to add torrent")
		RespondError(w, http.StatusBadGateway, "Failed to add torrent")
		return
	}

	h.acceptRelease(w, r, release)
}

// Confirm marks the release as the installed version without downloading,
// for users who obtained it out of band.
func (h *ReleasesHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	release, ok := h.getRelease(w, r)
	if !ok {
		return
	}
	h.acceptRelease(w, r, release)
}

// acceptRelease promotes the release's version onto the game and clears the
// game's pending releases.
func (h *ReleasesHandler) acceptRelease(w http.ResponseWriter, r *http.Request, release *models.Release) {
	version := ""
	if release.ParsedVersion != nil {
		version = *release.ParsedVersion
	}

	if err := h.gameStore.SetVersion(r.Context(), release.GameID, version, release.UploadDate); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to update game version")
		return
	}
	if err := h.releaseStore.DeleteByGame(r.Context(), release.GameID); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to clear releases")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Ignore permanently blocks this raw title for the game and removes the
// release.
func (h *ReleasesHandler) Ignore(w http.ResponseWriter, r *http.Request) {
	release, ok := h.getRelease(w, r)
	if !ok {
		return
	}

	displayTitle := gametitle.ToTitleCaseWords(gametitle.ParseTorrentName(release.RawTitle))
	if _, err := h.ignoredStore.Create(r.Context(), release.GameID, displayTitle, release.RawTitle); err != nil {
		// A duplicate entry already blocks the title.
		if !strings.Contains(err.Error(), "UNIQUE constraint") {
			RespondError(w, http.StatusInternalServerError, "Failed to ignore release")
			return
		}
	}

	if err := h.releaseStore.Delete(r.Context(), release.ID); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to delete release")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Skip hides the release from recommendations without blocking the title.
func (h *ReleasesHandler) Skip(w http.ResponseWriter, r *http.Request) {
	release, ok := h.getRelease(w, r)
	if !ok {
		return
	}

	if err := h.releaseStore.SetIgnored(r.Context(), release.ID, true); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to skip release")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ReleasesHandler) getRelease(w http.ResponseWriter, r *http.Request) (*models.Release, bool) {
	releaseID, ok := ParseIntParam(w, r, "releaseID", "release ID")
	if !ok {
		return nil, false
	}

	release, err := h.releaseStore.Get(r.Context(), releaseID)
	if err != nil {
		if errors.Is(err, models.ErrReleaseNotFound) {
			RespondError(w, http.StatusNotFound, "Release not found")
			return nil, false
		}
		RespondError(w, http.StatusInternalServerError, "Failed to get release")
		return nil, false
	}
	return release, true
}

// IgnoredHandler manages the permanently blocked release titles.
type IgnoredHandler struct {
	ignoredStore *models.IgnoredReleaseStore
}

func NewIgnoredHandler(ignoredStore *models.IgnoredReleaseStore) *IgnoredHandler {
	return &IgnoredHandler{ignoredStore: ignoredStore}
}

func (h *IgnoredHandler) Routes(r chi.Router) {
	r.Delete("/{ignoredID}", h.Delete)
}

// Delete unblocks a previously ignored title.
func (h *IgnoredHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ignoredID, ok := ParseIntParam(w, r, "ignoredID", "ignored release ID")
	if !ok {
		return
	}

	if err := h.ignoredStore.Delete(r.Context(), ignoredID); err != nil {
		if errors.Is(err, models.ErrIgnoredReleaseNotFound) {
			RespondError(w, http.StatusNotFound, "Ignored release not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to delete ignored release")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
