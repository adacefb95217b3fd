// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/database"
	"github.com/gamearr/gamearr/internal/domain"
	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/qbittorrent"
	"github.com/gamearr/gamearr/internal/scheduler"
	"github.com/gamearr/gamearr/internal/services/librarysync"
	"github.com/gamearr/gamearr/internal/services/progress"
	"github.com/gamearr/gamearr/internal/services/scanner"
)

func newTestDependencies(t *testing.T) *Dependencies {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	gameStore := models.NewGameStore(db)
	releaseStore := models.NewReleaseStore(db)
	ignoredStore := models.NewIgnoredReleaseStore(db)
	scanLogStore := models.NewScanLogStore(db)
	settingStore := models.NewAppSettingStore(db)

	library := librarysync.NewService(gameStore, settingStore)
	scanSvc := scanner.NewService(gameStore, releaseStore, ignoredStore, scanLogStore, settingStore, nil)
	pool := qbittorrent.NewPool()
	tracker := progress.NewTracker()
	sched := scheduler.New(settingStore, gameStore, releaseStore, library, scanSvc, pool, tracker)

	return &Dependencies{
		Config:       &config.AppConfig{Config: &domain.Config{Host: "127.0.0.1", Port: 7878}},
		GameStore:    gameStore,
		ReleaseStore: releaseStore,
		IgnoredStore: ignoredStore,
		ScanLogStore: scanLogStore,
		SettingStore: settingStore,
		Scheduler:    sched,
		Library:      library,
		Scanner:      scanSvc,
		QbitPool:     pool,
	}
}

func newTestRouter(t *testing.T, deps *Dependencies) http.Handler {
	t.Helper()

	router, err := NewServer(deps).Handler()
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestBasicAuthProtectsAPI(t *testing.T) {
	t.Parallel()

	deps := newTestDependencies(t)
	deps.Config.Config.AuthUsername = "admin"
	deps.Config.Config.AuthPassword = "hunter2"
	router := newTestRouter(t, deps)

	rec := doJSON(t, router, http.MethodGet, "/api/games", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open for container probes.
	rec = doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.SetBasicAuth("admin", "hunter2")
	authed := httptest.NewRecorder()
	router.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestGamesLifecycle(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	rec := doJSON(t, router, http.MethodPost, "/api/games", map[string]any{
		"title":          "Elden Ring",
		"currentVersion": "1.10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[models.Game](t, rec)
	assert.Equal(t, "elden ring", created.Title)
	assert.Equal(t, models.GameStatusMonitored, created.Status)
	assert.True(t, created.IsManual)
	require.NotNil(t, created.CurrentVersion)
	assert.Equal(t, "1.10", *created.CurrentVersion)

	rec = doJSON(t, router, http.MethodGet, "/api/games", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	games := decodeBody[[]models.Game](t, rec)
	require.Len(t, games, 1)

	rec = doJSON(t, router, http.MethodPatch, "/api/games/1", map[string]any{
		"status": models.GameStatusIgnored,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[models.Game](t, rec)
	assert.Equal(t, models.GameStatusIgnored, updated.Status)

	rec = doJSON(t, router, http.MethodPatch, "/api/games/1", map[string]any{
		"status": "sideways",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/games/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/games/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateGameRequiresTitle(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	rec := doJSON(t, router, http.MethodPost, "/api/games", map[string]any{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseForceAddAndConfirm(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	rec := doJSON(t, router, http.MethodPost, "/api/games", map[string]any{"title": "hades"})
	require.Equal(t, http.StatusCreated, rec.Code)
	game := decodeBody[models.Game](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/releases", map[string]any{
		"gameId": game.ID,
		"title":  "Hades v1.38",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	release := decodeBody[models.Release](t, rec)
	assert.Equal(t, "Unknown", release.Indexer)
	require.NotNil(t, release.ParsedVersion)
	assert.Equal(t, "1.38", *release.ParsedVersion)

	// Same title again is rejected.
	rec = doJSON(t, router, http.MethodPost, "/api/releases", map[string]any{
		"gameId": game.ID,
		"title":  "Hades v1.38",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown game is a 404.
	rec = doJSON(t, router, http.MethodPost, "/api/releases", map[string]any{
		"gameId": 999,
		"title":  "Hades v1.38",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/releases/1/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/games/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decodeBody[models.Game](t, rec)
	require.NotNil(t, confirmed.CurrentVersion)
	assert.Equal(t, "1.38", *confirmed.CurrentVersion)

	// Confirming cleared the game's pending releases.
	rec = doJSON(t, router, http.MethodGet, "/api/games/1/releases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	releases := decodeBody[[]models.Release](t, rec)
	assert.Empty(t, releases)
}

func TestReleaseSkipHidesFromRecommendations(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	rec := doJSON(t, router, http.MethodPost, "/api/games", map[string]any{"title": "hades"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/releases", map[string]any{
		"gameId": 1,
		"title":  "Hades v1.38",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/releases/1/skip", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/games/1/releases", nil)
	releases := decodeBody[[]models.Release](t, rec)
	require.Len(t, releases, 1)
	assert.True(t, releases[0].IsIgnored)
}

func TestReleaseIgnoreAndRestore(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	rec := doJSON(t, router, http.MethodPost, "/api/games", map[string]any{"title": "hades"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/releases", map[string]any{
		"gameId": 1,
		"title":  "Hades v1.38 REPACK",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/releases/1/ignore", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The release is gone and the title is blocked.
	rec = doJSON(t, router, http.MethodGet, "/api/games/1/releases", nil)
	assert.Empty(t, decodeBody[[]models.Release](t, rec))

	rec = doJSON(t, router, http.MethodGet, "/api/games/1/ignored", nil)
	ignored := decodeBody[[]models.IgnoredRelease](t, rec)
	require.Len(t, ignored, 1)
	assert.Equal(t, "Hades v1.38 REPACK", ignored[0].RawTitle)

	rec = doJSON(t, router, http.MethodDelete, "/api/ignored/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/games/1/ignored", nil)
	assert.Empty(t, decodeBody[[]models.IgnoredRelease](t, rec))
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	rec := doJSON(t, router, http.MethodPut, "/api/settings", map[string]any{
		"prowlarrUrl":      "http://prowlarr:9696",
		"prowlarrApiKey":   "secret",
		"scanIntervalMins": 120,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decodeBody[domain.Settings](t, rec)
	assert.Equal(t, "http://prowlarr:9696", settings.ProwlarrURL)
	assert.Equal(t, 120, settings.ScanIntervalMins)

	rec = doJSON(t, router, http.MethodPut, "/api/settings", map[string]any{
		"scanIntervalMins": -1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanProgressAndLogs(t *testing.T) {
	t.Parallel()

	deps := newTestDependencies(t)
	router := newTestRouter(t, deps)

	rec := doJSON(t, router, http.MethodGet, "/api/scan/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	require.Contains(t, body, "progress")
	require.Contains(t, body, "status")

	rec = doJSON(t, router, http.MethodGet, "/api/scan/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = doJSON(t, router, http.MethodGet, "/api/scan/logs/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/scan?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanLogDetails(t *testing.T) {
	t.Parallel()

	deps := newTestDependencies(t)
	router := newTestRouter(t, deps)

	details := `{"games":3}`
	skips := `[{"game":"hades","game_id":1,"items":[]}]`
	scanLog := &models.ScanLog{
		GamesProcessed: 3,
		Status:         models.ScanStatusSuccess,
		Details:        &details,
		SkipDetails:    &skips,
	}
	require.NoError(t, deps.ScanLogStore.Create(context.Background(), scanLog))

	rec := doJSON(t, router, http.MethodGet, "/api/scan/logs/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Contains(t, body, "parsedDetails")
	assert.Contains(t, body, "skipSummary")
}

func TestUpdatesDashboard(t *testing.T) {
	t.Parallel()

	deps := newTestDependencies(t)
	router := newTestRouter(t, deps)

	rec := doJSON(t, router, http.MethodPost, "/api/games", map[string]any{"title": "hades"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/releases", map[string]any{
		"gameId":  1,
		"title":   "Hades v1.38",
		"seeders": 25,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/updates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[struct {
		Updates []struct {
			Game     models.Game      `json:"game"`
			Releases []map[string]any `json:"releases"`
		} `json:"updates"`
		Stats struct {
			TotalGames     int `json:"totalGames"`
			MonitoredGames int `json:"monitoredGames"`
			PendingUpdates int `json:"pendingUpdates"`
		} `json:"stats"`
	}](t, rec)

	assert.Equal(t, 1, body.Stats.TotalGames)
	assert.Equal(t, 1, body.Stats.MonitoredGames)
	assert.Equal(t, 1, body.Stats.PendingUpdates)
	require.Len(t, body.Updates, 1)
	assert.Equal(t, "Hades", body.Updates[0].Game.Title)
	require.Len(t, body.Updates[0].Releases, 1)
}

func TestDownloadWithoutQbitConfigured(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newTestDependencies(t))

	rec := doJSON(t, router, http.MethodPost, "/api/games", map[string]any{"title": "hades"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/releases", map[string]any{
		"gameId":    1,
		"title":     "Hades v1.38",
		"magnetUrl": "magnet:?xt=urn:btih:abc",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/releases/1/download", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "qBittorrent is not configured")
}
