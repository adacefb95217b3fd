// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the TOML configuration file, applies GAMEARR__
// environment overrides and watches the file for live log-level changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/gamearr/gamearr/internal/domain"
	"github.com/gamearr/gamearr/internal/logger"
)

const envPrefix = "GAMEARR__"

var configTemplate = `# gamearr configuration
# Generated by: gamearr generate-config

# Hostname / IP to listen on
host = "%s"

# Port to listen on
port = %d

# Base URL when served behind a reverse proxy under a subpath, e.g. "/gamearr/"
#baseUrl = "/"

# Log level: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "%s"

# Log file path. Empty logs to stdout only.
#logPath = "log/gamearr.log"

# Max log file size in MB before rotation
#logMaxSize = 50

# Rotated log files to keep
#logMaxBackups = 3

# Database file path. Defaults to gamearr.db next to this file.
#databasePath = ""

# HTTP Basic Auth. Both must be set to enable.
#authUsername = ""
#authPassword = ""

# Prometheus metrics endpoint
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
`

// AppConfig wraps the parsed configuration with its viper instance so the
// file can be watched and re-read.
type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configPath string
	mu         sync.Mutex
}

// New reads or creates the configuration at configDir and returns it with
// environment overrides applied.
func New(configDir, version string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
	}
	c.defaults(version)

	if err := c.load(configDir); err != nil {
		return nil, err
	}
	c.loadFromEnv()

	return c, nil
}

func (c *AppConfig) defaults(version string) {
	c.Config = &domain.Config{
		Version:       version,
		Host:          "localhost",
		Port:          7878,
		LogLevel:      "DEBUG",
		LogMaxSize:    50,
		LogMaxBackups: 3,
		MetricsHost:   "127.0.0.1",
		MetricsPort:   9074,
	}
}

func (c *AppConfig) load(configDir string) error {
	c.viper.SetConfigType("toml")

	if configDir != "" {
		info, err := os.Stat(configDir)
		if err == nil && !info.IsDir() {
			c.configPath = configDir
		} else {
			c.configPath = filepath.Join(configDir, "config.toml")
		}
	} else {
		c.configPath = filepath.Join(getDefaultConfigDir(), "config.toml")
	}
	c.viper.SetConfigFile(c.configPath)

	if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
		if err := c.writeConfig(c.configPath); err != nil {
			return fmt.Errorf("failed to write default config file: %w", err)
		}
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", c.configPath, err)
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

func (c *AppConfig) writeConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(configTemplate, c.Config.Host, c.Config.Port, c.Config.LogLevel)
	return os.WriteFile(configPath, []byte(content), 0o644)
}

func (c *AppConfig) loadFromEnv() {
	for _, envPair := range os.Environ() {
		key, value, found := strings.Cut(envPair, "=")
		if !found || !strings.HasPrefix(key, envPrefix) || value == "" {
			continue
		}

		switch strings.TrimPrefix(key, envPrefix) {
		case "HOST":
			c.Config.Host = value
		case "PORT":
			if _, err := fmt.Sscanf(value, "%d", &c.Config.Port); err != nil {
				log.Warn().Str("key", key).Str("value", value).Msg("invalid port override")
			}
		case "BASE_URL":
			c.Config.BaseURL = value
		case "LOG_LEVEL":
			c.Config.LogLevel = value
		case "LOG_PATH":
			c.Config.LogPath = value
		case "DATABASE_PATH":
			c.Config.DatabasePath = value
		case "AUTH_USERNAME":
			c.Config.AuthUsername = value
		case "AUTH_PASSWORD":
			c.Config.AuthPassword = value
		case "METRICS_ENABLED":
			c.Config.MetricsEnabled = strings.EqualFold(value, "true") || value == "1"
		case "METRICS_HOST":
			c.Config.MetricsHost = value
		case "METRICS_PORT":
			if _, err := fmt.Sscanf(value, "%d", &c.Config.MetricsPort); err != nil {
				log.Warn().Str("key", key).Str("value", value).Msg("invalid metrics port override")
			}
		}
	}
}

// GetDatabasePath returns the configured database path, defaulting to
// gamearr.db next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DatabasePath != "" {
		return c.Config.DatabasePath
	}
	return filepath.Join(filepath.Dir(c.configPath), "gamearr.db")
}

// DynamicReload re-reads the config file on change and applies the settings
// that are safe to change at runtime.
func (c *AppConfig) DynamicReload() {
	c.viper.OnConfigChange(func(_ fsnotify.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		logLevel := c.viper.GetString("logLevel")
		c.Config.LogLevel = logLevel
		logger.SetLogLevel(logLevel)

		log.Debug().Str("logLevel", logLevel).Msg("config file reloaded")
	})
	c.viper.WatchConfig()
}

func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			// Docker convention: config mounted at /config directly.
			return xdg
		}
		return filepath.Join(xdg, "gamearr")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "gamearr")
	}
	return filepath.Join(home, ".config", "gamearr")
}
