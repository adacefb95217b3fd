// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/services/recommend"
)

// UpdatesHandler serves the dashboard payload: ranked update candidates,
// library counters, and recent scan history.
type UpdatesHandler struct {
	gameStore    *models.GameStore
	releaseStore *models.ReleaseStore
	scanLogStore *models.ScanLogStore
}

func NewUpdatesHandler(
	gameStore *models.GameStore,
	releaseStore *models.ReleaseStore,
	scanLogStore *models.ScanLogStore,
) *UpdatesHandler {
	return &UpdatesHandler{
		gameStore:    gameStore,
		releaseStore: releaseStore,
		scanLogStore: scanLogStore,
	}
}

func (h *UpdatesHandler) Routes(r chi.Router) {
	r.Get("/", h.Dashboard)
}

type dashboardStats struct {
	TotalGames     int `json:"totalGames"`
	MonitoredGames int `json:"monitoredGames"`
	PendingUpdates int `json:"pendingUpdates"`
}

func (h *UpdatesHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	games, err := h.gameStore.List(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to list games")
		return
	}

	releases, err := h.releaseStore.ListActive(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to list releases")
		return
	}

	statusCounts, err := h.gameStore.CountByStatus(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to count games")
		return
	}

	recentLogs, err := h.scanLogStore.List(r.Context(), 5)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to list scan logs")
		return
	}
	if recentLogs == nil {
		recentLogs = []*models.ScanLog{}
	}

	updates := recommend.Rank(games, releases, time.Now().UTC())
	if updates == nil {
		updates = []*recommend.GameUpdates{}
	}

	total := 0
	for _, count := range statusCounts {
		total += count
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"updates": updates,
		"stats": dashboardStats{
			TotalGames:     total,
			MonitoredGames: statusCounts[models.GameStatusMonitored],
			PendingUpdates: len(releases),
		},
		"recentScans": recentLogs,
	})
}
