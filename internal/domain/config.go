// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds shared configuration and setting types.
package domain

import "strings"

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`

	// AuthUsername/AuthPassword enable HTTP Basic Auth on the API when both
	// are non-empty. Use IsAuthEnabled() to check.
	AuthUsername string `toml:"authUsername" mapstructure:"authUsername"`
	AuthPassword string `toml:"authPassword" mapstructure:"authPassword"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`
}

// IsAuthEnabled returns true when both Basic Auth credentials are configured.
func (c *Config) IsAuthEnabled() bool {
	return c.AuthUsername != "" && c.AuthPassword != ""
}

// Settings are the runtime options persisted in the database and editable
// through the API while the server runs.
type Settings struct {
	ProwlarrURL        string `json:"prowlarrUrl"`
	ProwlarrAPIKey     string `json:"prowlarrApiKey"`
	QbitURL            string `json:"qbitUrl"`
	QbitUsername       string `json:"qbitUsername"`
	QbitPassword       string `json:"qbitPassword"`
	QbitCategory       string `json:"qbitCategory"`
	IGDBClientID       string `json:"igdbClientId"`
	IGDBClientSecret   string `json:"igdbClientSecret"`
	ScanIntervalMins   int    `json:"scanIntervalMins"`
	IgnoredKeywords    string `json:"ignoredKeywords"`
	AllowedIndexers    string `json:"allowedIndexers"`
	Platforms          string `json:"platforms"`
	AutoDownloadScore  int    `json:"autoDownloadScore"`
	AutoDownloadEnable bool   `json:"autoDownloadEnable"`
}

// IgnoredKeywordsList splits the comma-separated ignored keywords setting,
// trimmed and lowercased for case-insensitive title matching.
func (s *Settings) IgnoredKeywordsList() []string {
	return splitCSV(s.IgnoredKeywords)
}

// AllowedIndexersList splits the comma-separated allowed indexer names,
// trimmed and lowercased. Empty means all indexers are allowed.
func (s *Settings) AllowedIndexersList() []string {
	return splitCSV(s.AllowedIndexers)
}

// PlatformList splits the comma-separated allowed platform tokens, lowercased.
// Empty means PC/Windows only.
func (s *Settings) PlatformList() []string {
	platforms := splitCSV(s.Platforms)
	if len(platforms) == 0 {
		return []string{"windows"}
	}
	return platforms
}

// IsIGDBEnabled returns true when IGDB API credentials are configured.
func (s *Settings) IsIGDBEnabled() bool {
	return s.IGDBClientID != "" && s.IGDBClientSecret != ""
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
