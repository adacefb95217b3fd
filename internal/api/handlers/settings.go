// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/buildinfo"
	"github.com/gamearr/gamearr/internal/domain"
	"github.com/gamearr/gamearr/internal/metadata/igdb"
	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/prowlarr"
	"github.com/gamearr/gamearr/internal/qbittorrent"
)

type SettingsHandler struct {
	settingStore *models.AppSettingStore
}

func NewSettingsHandler(settingStore *models.AppSettingStore) *SettingsHandler {
	return &SettingsHandler{settingStore: settingStore}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Put("/", h.Update)
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingStore.LoadSettings(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	RespondJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if !DecodeJSON(w, r, &settings) {
		return
	}

	if settings.ScanIntervalMins < 0 {
		RespondError(w, http.StatusBadRequest, "Scan interval cannot be negative")
		return
	}

	if err := h.settingStore.SaveSettings(r.Context(), &settings); err != nil {
		log.Error().Err(err).Msg("Failed to save settings")
		RespondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	RespondJSON(w, http.StatusOK, &settings)
}

// ConnectionTestHandler verifies upstream service credentials without
// persisting them.
type ConnectionTestHandler struct{}

func NewConnectionTestHandler() *ConnectionTestHandler {
	return &ConnectionTestHandler{}
}

func (h *ConnectionTestHandler) Routes(r chi.Router) {
	r.Post("/prowlarr", h.Prowlarr)
	r.Post("/qbit", h.Qbit)
	r.Post("/igdb", h.IGDB)
}

type prowlarrTestPayload struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
}

func (h *ConnectionTestHandler) Prowlarr(w http.ResponseWriter, r *http.Request) {
	var payload prowlarrTestPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}
	if payload.URL == "" || payload.APIKey == "" {
		RespondError(w, http.StatusBadRequest, "URL and API key are required")
		return
	}

	client := prowlarr.NewClient(prowlarr.Config{
		Host:      payload.URL,
		APIKey:    payload.APIKey,
		Timeout:   10,
		UserAgent: buildinfo.UserAgent,
	})
	if err := client.Ping(r.Context()); err != nil {
		RespondError(w, http.StatusBadGateway, "Prowlarr connection failed: "+err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type qbitTestPayload struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *ConnectionTestHandler) Qbit(w http.ResponseWriter, r *http.Request) {
	var payload qbitTestPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}
	if payload.URL == "" {
		RespondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	client, err := qbittorrent.NewClient(payload.URL, payload.Username, payload.Password)
	if err != nil {
		RespondError(w, http.StatusBadGateway, "qBittorrent connection failed: "+err.Error())
		return
	}
	if err := client.HealthCheck(r.Context()); err != nil {
		RespondError(w, http.StatusBadGateway, "qBittorrent connection failed: "+err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"version": client.GetWebAPIVersion(),
	})
}

type igdbTestPayload struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

func (h *ConnectionTestHandler) IGDB(w http.ResponseWriter, r *http.Request) {
	var payload igdbTestPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}
	if payload.ClientID == "" || payload.ClientSecret == "" {
		RespondError(w, http.StatusBadRequest, "Client ID and secret are required")
		return
	}

	client := igdb.NewClient(igdb.Config{
		ClientID:     payload.ClientID,
		ClientSecret: payload.ClientSecret,
		UserAgent:    buildinfo.UserAgent,
	})
	if err := client.Ping(r.Context()); err != nil {
		RespondError(w, http.StatusBadGateway, "IGDB authentication failed: "+err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
