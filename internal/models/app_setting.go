// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/gamearr/gamearr/internal/database"
	"github.com/gamearr/gamearr/internal/domain"
)

// Setting keys persisted in app_settings. Values are stored as strings.
const (
	SettingProwlarrURL        = "prowlarr_url"
	SettingProwlarrAPIKey     = "prowlarr_api_key"
	SettingQbitURL            = "qbit_url"
	SettingQbitUsername       = "qbit_username"
	SettingQbitPassword       = "qbit_password"
	SettingQbitCategory       = "qbit_category"
	SettingIGDBClientID       = "igdb_client_id"
	SettingIGDBClientSecret   = "igdb_client_secret"
	SettingScanIntervalMins   = "scan_interval_mins"
	SettingIgnoredKeywords    = "ignored_keywords"
	SettingAllowedIndexers    = "allowed_indexers"
	SettingPlatforms          = "platforms"
	SettingAutoDownloadScore  = "auto_download_score"
	SettingAutoDownloadEnable = "auto_download_enable"
)

// AppSettingStore manages runtime settings in the database
type AppSettingStore struct {
	db database.Querier
}

func NewAppSettingStore(db database.Querier) *AppSettingStore {
	return &AppSettingStore{db: db}
}

// Get returns a single setting value, "" when unset.
func (s *AppSettingStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// GetAll returns every persisted setting.
func (s *AppSettingStore) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return settings, nil
}

// Set upserts a setting.
func (s *AppSettingStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// LoadSettings assembles the typed runtime settings from the store, applying
// defaults for unset keys.
func (s *AppSettingStore) LoadSettings(ctx context.Context) (*domain.Settings, error) {
	raw, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	settings := &domain.Settings{
		ProwlarrURL:      raw[SettingProwlarrURL],
		ProwlarrAPIKey:   raw[SettingProwlarrAPIKey],
		QbitURL:          raw[SettingQbitURL],
		QbitUsername:     raw[SettingQbitUsername],
		QbitPassword:     raw[SettingQbitPassword],
		QbitCategory:     raw[SettingQbitCategory],
		IGDBClientID:     raw[SettingIGDBClientID],
		IGDBClientSecret: raw[SettingIGDBClientSecret],
		IgnoredKeywords:  raw[SettingIgnoredKeywords],
		AllowedIndexers:  raw[SettingAllowedIndexers],
		Platforms:        raw[SettingPlatforms],
		ScanIntervalMins: 360,
	}
	if settings.QbitCategory == "" {
		settings.QbitCategory = "games"
	}

	if v := raw[SettingScanIntervalMins]; v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			settings.ScanIntervalMins = mins
		}
	}
	if v := raw[SettingAutoDownloadScore]; v != "" {
		if score, err := strconv.Atoi(v); err == nil {
			settings.AutoDownloadScore = score
		}
	}
	settings.AutoDownloadEnable = raw[SettingAutoDownloadEnable] == "true"

	return settings, nil
}

// SaveSettings persists every typed setting back to the store.
func (s *AppSettingStore) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	values := map[string]string{
		SettingProwlarrURL:        settings.ProwlarrURL,
		SettingProwlarrAPIKey:     settings.ProwlarrAPIKey,
		SettingQbitURL:            settings.QbitURL,
		SettingQbitUsername:       settings.QbitUsername,
		SettingQbitPassword:       settings.QbitPassword,
		SettingQbitCategory:       settings.QbitCategory,
		SettingIGDBClientID:       settings.IGDBClientID,
		SettingIGDBClientSecret:   settings.IGDBClientSecret,
		SettingScanIntervalMins:   strconv.Itoa(settings.ScanIntervalMins),
		SettingIgnoredKeywords:    settings.IgnoredKeywords,
		SettingAllowedIndexers:    settings.AllowedIndexers,
		SettingPlatforms:          settings.Platforms,
		SettingAutoDownloadScore:  strconv.Itoa(settings.AutoDownloadScore),
		SettingAutoDownloadEnable: strconv.FormatBool(settings.AutoDownloadEnable),
	}

	for key, value := range values {
		if err := s.Set(ctx, key, value); err != nil {
			return err
		}
	}

	return nil
}
