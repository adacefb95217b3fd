// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
)

// minSupportedWebAPI is the oldest qBittorrent WebAPI version the category
// listing and add endpoints are known to behave consistently on.
var minSupportedWebAPI = semver.MustParse("2.8.3")

// Client wraps a qBittorrent connection scoped to the configured category.
type Client struct {
	*qbt.Client
	webAPIVersion   string
	lastHealthCheck time.Time
	isHealthy       bool
	mu              sync.RWMutex
}

// NewClient connects and authenticates against a qBittorrent instance.
func NewClient(host, username, password string) (*Client, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("qbittorrent host is required")
	}

	cfg := qbt.Config{
		Host:     strings.TrimRight(host, "/"),
		Username: username,
		Password: password,
		Timeout:  30,
	}

	qbtClient := qbt.NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := retry.Do(
		func() error { return qbtClient.LoginCtx(ctx) },
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qBittorrent instance: %w", err)
	}

	webAPIVersion, err := qbtClient.GetWebAPIVersionCtx(ctx)
	if err != nil {
		webAPIVersion = ""
	}

	if webAPIVersion != "" {
		if v, err := semver.NewVersion(webAPIVersion); err == nil && v.LessThan(minSupportedWebAPI) {
			log.Warn().
				Str("webAPIVersion", webAPIVersion).
				Str("minSupported", minSupportedWebAPI.String()).
				Msg("qBittorrent WebAPI version is older than supported, sync may misbehave")
		}
	}

	client := &Client{
		Client:          qbtClient,
		webAPIVersion:   webAPIVersion,
		lastHealthCheck: time.Now(),
		isHealthy:       true,
	}

	log.Debug().
		Str("host", cfg.Host).
		Str("webAPIVersion", webAPIVersion).
		Msg("qBittorrent client created successfully")

	return client, nil
}

// ListCategory returns all torrents in the given category.
func (c *Client) ListCategory(ctx context.Context, category string) ([]qbt.Torrent, error) {
	torrents, err := c.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Category: category})
	if err != nil {
		return nil, fmt.Errorf("failed to list torrents for category %q: %w", category, err)
	}
	return torrents, nil
}

// TorrentComment fetches the comment field of a torrent by hash. Missing
// torrents and empty comments both yield "".
func (c *Client) TorrentComment(ctx context.Context, hash string) (string, error) {
	if hash == "" {
		return "", nil
	}

	props, err := c.GetTorrentPropertiesCtx(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("failed to fetch torrent properties for %s: %w", hash, err)
	}

	return strings.TrimSpace(props.Comment), nil
}

// AddTorrent sends a magnet or download URL to qBittorrent under the given
// category. A transient failure triggers one re-login before the retry.
func (c *Client) AddTorrent(ctx context.Context, downloadURL, category string) error {
	if strings.TrimSpace(downloadURL) == "" {
		return fmt.Errorf("download URL is required")
	}

	opts := map[string]string{}
	if category != "" {
		opts["category"] = category
	}

	err := retry.Do(
		func() error {
			if err := c.AddTorrentFromUrlCtx(ctx, downloadURL, opts); err != nil {
				if loginErr := c.LoginCtx(ctx); loginErr != nil {
					log.Warn().Err(loginErr).Msg("qBittorrent re-login failed")
				}
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("failed to add torrent: %w", err)
	}

	log.Info().Str("category", category).Msg("sent torrent to qBittorrent")
	return nil
}

// HealthCheck verifies the session is still valid, re-authenticating once
// when the API call fails.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.GetWebAPIVersionCtx(ctx)
	if err != nil {
		if loginErr := c.LoginCtx(ctx); loginErr != nil {
			c.setHealth(false)
			return fmt.Errorf("health check failed: login error: %w", loginErr)
		}
		if _, err = c.GetWebAPIVersionCtx(ctx); err != nil {
			c.setHealth(false)
			return fmt.Errorf("health check failed: api error: %w", err)
		}
	}

	c.setHealth(true)
	return nil
}

func (c *Client) setHealth(healthy bool) {
	c.mu.Lock()
	c.isHealthy = healthy
	c.lastHealthCheck = time.Now()
	c.mu.Unlock()
}

// IsHealthy reports the result of the last health check.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isHealthy
}

// GetWebAPIVersion returns the WebAPI version reported at connect time.
func (c *Client) GetWebAPIVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.webAPIVersion
}
