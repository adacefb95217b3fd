// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package prowlarr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

// Config holds the options for constructing a Client.
type Config struct {
	Host       string
	APIKey     string
	Timeout    int
	HTTPClient *http.Client
	UserAgent  string
}

// Client provides a minimal Prowlarr API wrapper for indexer listing and search.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

// NewClient constructs a new Client using the provided configuration.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "gamearr"
	}

	return &Client{
		host:       strings.TrimRight(cfg.Host, "/"),
		apiKey:     cfg.APIKey,
		httpClient: client,
		userAgent:  ua,
	}
}

// Indexer represents a configured Prowlarr indexer returned by the API.
type Indexer struct {
	ID                 int    `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Implementation     string `json:"implementation"`
	ImplementationName string `json:"implementationName"`
	Enable             bool   `json:"enable"`
	Protocol           string `json:"protocol"` // "unknown", "usenet", "torrent"
}

// Category is a content category attached to a search result.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SearchResult represents a single release returned by /api/v1/search.
// Date fields stay as strings because indexers report dates in several
// formats; callers resolve them with the age fallbacks.
type SearchResult struct {
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	Indexer     string     `json:"indexer"`
	IndexerID   int        `json:"indexerId"`
	PublishDate string     `json:"publishDate"`
	Added       string     `json:"added"`
	AgeMinutes  *float64   `json:"ageMinutes"`
	Age         *float64   `json:"age"`
	Size        int64      `json:"size"`
	Grabs       *float64   `json:"grabs"`
	Categories  []Category `json:"categories"`
	DownloadURL string     `json:"downloadUrl"`
	MagnetURL   string     `json:"magnetUrl"`
	InfoURL     string     `json:"infoUrl"`
	Seeders     *float64   `json:"seeders"`
	Leechers    *float64   `json:"leechers"`
	Protocol    string     `json:"protocol"`
	InfoHash    string     `json:"infoHash"`
}

// DownloadLink returns the magnet URL when present, falling back to the
// indexer download URL.
func (r SearchResult) DownloadLink() string {
	if r.MagnetURL != "" {
		return r.MagnetURL
	}
	return r.DownloadURL
}

// GetIndexers retrieves all configured indexers from the Prowlarr instance.
func (c *Client) GetIndexers(ctx context.Context) ([]Indexer, error) {
	if c.httpClient == nil {
		return nil, fmt.Errorf("prowlarr HTTP client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint, err := url.JoinPath(c.host, "api", "v1", "indexer")
	if err != nil {
		return nil, fmt.Errorf("failed to build prowlarr endpoint: %w", err)
	}

	var payload []Indexer
	if err := c.getJSON(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// Search queries /api/v1/search for the given text. When indexerIDs is
// non-empty the search is restricted to those indexers via repeated
// indexerIds parameters, which is what the Prowlarr API expects.
func (c *Client) Search(ctx context.Context, query string, indexerIDs []int) ([]SearchResult, error) {
	if c.httpClient == nil {
		return nil, fmt.Errorf("prowlarr HTTP client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("prowlarr search query is required")
	}

	endpoint, err := url.JoinPath(c.host, "api", "v1", "search")
	if err != nil {
		return nil, fmt.Errorf("failed to build prowlarr endpoint: %w", err)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "search")
	params.Set("limit", "100")
	for _, id := range indexerIDs {
		params.Add("indexerIds", strconv.Itoa(id))
	}

	var payload []SearchResult
	if err := c.getJSON(ctx, endpoint, params, &payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// Ping verifies connectivity and credentials by listing indexers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetIndexers(ctx)
	return err
}

// getJSON performs a GET request with retries on transport errors and
// server-side failures. Auth and not-found responses fail immediately.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to build prowlarr request: %w", err))
			}
			if params != nil {
				req.URL.RawQuery = params.Encode()
			}
			if c.apiKey != "" {
				req.Header.Set("X-Api-Key", c.apiKey)
			}
			req.Header.Set("User-Agent", c.userAgent)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to query prowlarr: %w", err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
				// continue
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(fmt.Errorf("prowlarr endpoint not found (404)"))
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return retry.Unrecoverable(fmt.Errorf("prowlarr returned %d (unauthorized)", resp.StatusCode))
			case resp.StatusCode >= http.StatusInternalServerError:
				return fmt.Errorf("prowlarr returned status %d", resp.StatusCode)
			default:
				return retry.Unrecoverable(fmt.Errorf("prowlarr unexpected status %d", resp.StatusCode))
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to decode prowlarr response: %w", err))
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}
