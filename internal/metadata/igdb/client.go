// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package igdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/pkg/gametitle"
)

const (
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"
	defaultAPIURL   = "https://api.igdb.com/v4"

	// tokenSlack is subtracted from the reported token lifetime so a
	// request never races an expiring token.
	tokenSlack = 5 * time.Minute
)

var steamAppURLPattern = regexp.MustCompile(`(?i)store\.steampowered\.com/app/(\d+)`)

// Config holds the options for constructing a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	HTTPClient   *http.Client
	UserAgent    string
}

// Client talks to the IGDB API using Twitch client-credentials auth.
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiURL       string
	httpClient   *http.Client
	userAgent    string

	tokens      *ttlcache.Cache[string, string]
	suggestions *ttlcache.Cache[string, []Suggestion]
}

// NewClient constructs a Client. The zero credentials case yields a
// disabled client whose lookups return nil without network calls.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "gamearr"
	}

	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     strings.TrimRight(tokenURL, "/"),
		apiURL:       strings.TrimRight(apiURL, "/"),
		httpClient:   httpClient,
		userAgent:    ua,
		tokens:       ttlcache.New(ttlcache.Options[string, string]{}.SetDefaultTTL(time.Hour)),
		suggestions:  ttlcache.New(ttlcache.Options[string, []Suggestion]{}.SetDefaultTTL(5 * time.Minute)),
	}
}

// Enabled reports whether IGDB credentials are configured.
func (c *Client) Enabled() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// Ping verifies the configured credentials by acquiring an access token.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("igdb credentials are not configured")
	}
	_, err := c.token(ctx)
	return err
}

// GameMetadata is the subset of IGDB data the library stores per game.
type GameMetadata struct {
	IGDBID     int    `json:"igdbId"`
	CoverURL   string `json:"coverUrl"`
	SteamAppID int    `json:"steamAppId"`
}

// Suggestion is an autocomplete entry. Display carries the release year
// when IGDB knows it.
type Suggestion struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

type igdbCover struct {
	ImageID string `json:"image_id"`
}

type igdbExternalGame struct {
	Category           *int   `json:"category"`
	ExternalGameSource *int   `json:"external_game_source"`
	UID                string `json:"uid"`
	URL                string `json:"url"`
}

type igdbGame struct {
	ID               int                `json:"id"`
	Name             string             `json:"name"`
	Cover            *igdbCover         `json:"cover"`
	ExternalGames    []igdbExternalGame `json:"external_games"`
	FirstReleaseDate int64              `json:"first_release_date"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// GetGameMetadata searches IGDB for the game and returns its cover art and
// Steam app ID. Returns nil when IGDB is disabled or has no usable match.
func (c *Client) GetGameMetadata(ctx context.Context, gameName string) (*GameMetadata, error) {
	if gameName == "" || !c.Enabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`fields name, cover.image_id, category, external_games.*; search "%s"; limit 5;`, escapeQuery(gameName))

	var results []igdbGame
	if err := c.post(ctx, "/games", query, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	target := pickBestMatch(gameName, results)

	meta := &GameMetadata{IGDBID: target.ID}
	if target.Cover != nil && target.Cover.ImageID != "" {
		meta.CoverURL = fmt.Sprintf("https://images.igdb.com/igdb/image/upload/t_cover_big/%s.jpg", target.Cover.ImageID)
	}
	meta.SteamAppID = steamAppID(target.ExternalGames)

	if meta.CoverURL == "" && meta.SteamAppID == 0 {
		return nil, nil
	}

	log.Info().
		Str("game", gameName).
		Str("coverUrl", meta.CoverURL).
		Int("steamAppId", meta.SteamAppID).
		Msg("IGDB metadata resolved")

	return meta, nil
}

// GetGameMetadataByID fetches cover art and Steam app ID for a known IGDB
// game ID. Returns nil when IGDB is disabled or the ID does not exist.
func (c *Client) GetGameMetadataByID(ctx context.Context, igdbID int) (*GameMetadata, error) {
	if igdbID <= 0 || !c.Enabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`fields name, cover.image_id, external_games.*; where id = %d;`, igdbID)

	var results []igdbGame
	if err := c.post(ctx, "/games", query, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	target := results[0]
	meta := &GameMetadata{IGDBID: target.ID}
	if target.Cover != nil && target.Cover.ImageID != "" {
		meta.CoverURL = fmt.Sprintf("https://images.igdb.com/igdb/image/upload/t_cover_big/%s.jpg", target.Cover.ImageID)
	}
	meta.SteamAppID = steamAppID(target.ExternalGames)

	return meta, nil
}

// SearchAutocomplete returns up to 10 name suggestions for the query.
// Results are cached briefly since the UI fires a request per keystroke.
func (c *Client) SearchAutocomplete(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 || !c.Enabled() {
		return nil, nil
	}

	cacheKey := strings.ToLower(query)
	if cached, ok := c.suggestions.Get(cacheKey); ok {
		return cached, nil
	}

	body := fmt.Sprintf(`fields name, first_release_date; search "%s"; limit 10;`, escapeQuery(query))

	var results []igdbGame
	if err := c.post(ctx, "/games", body, &results); err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(results))
	for _, game := range results {
		if game.Name == "" {
			continue
		}
		display := game.Name
		if game.FirstReleaseDate > 0 {
			display = fmt.Sprintf("%s (%d)", game.Name, time.Unix(game.FirstReleaseDate, 0).UTC().Year())
		}
		suggestions = append(suggestions, Suggestion{Name: game.Name, Display: display})
	}

	c.suggestions.Set(cacheKey, suggestions, ttlcache.DefaultTTL)
	return suggestions, nil
}

func (c *Client) post(ctx context.Context, path, body string, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build igdb request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("igdb request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("igdb returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode igdb response: %w", err)
	}

	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get("access"); ok {
		return token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build igdb token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("igdb auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("igdb auth failed with status %d", resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode igdb token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("igdb auth returned empty token")
	}

	ttl := time.Duration(payload.ExpiresIn)*time.Second - tokenSlack
	if ttl < time.Minute {
		ttl = time.Minute
	}
	c.tokens.Set("access", payload.AccessToken, ttl)

	log.Debug().Msg("IGDB token acquired")
	return payload.AccessToken, nil
}

// pickBestMatch ranks results against the queried name. Exact normalized
// matches win, then prefix relations, then containment, with a fuzzy rank
// as the final fallback before giving up on ordering.
func pickBestMatch(gameName string, results []igdbGame) igdbGame {
	variants := queryVariants(gameName)

	best := results[0]
	bestScore := -1
	for _, game := range results {
		score := scoreMatch(game.Name, variants)
		if score > bestScore {
			best = game
			bestScore = score
		}
	}

	return best
}

func queryVariants(gameName string) []string {
	variants := []string{gametitle.NormalizeForMatch(gameName)}
	if base, _, found := strings.Cut(gameName, "/"); found {
		if v := gametitle.NormalizeForMatch(strings.TrimSpace(base)); v != "" && v != variants[0] {
			variants = append(variants, v)
		}
	}
	return variants
}

func scoreMatch(name string, variants []string) int {
	normalized := gametitle.NormalizeForMatch(name)
	if normalized == "" {
		return 0
	}

	best := 0
	for _, variant := range variants {
		if variant == "" {
			continue
		}
		switch {
		case normalized == variant:
			best = max(best, 100)
		case strings.HasPrefix(normalized, variant):
			best = max(best, 80)
		case strings.HasPrefix(variant, normalized):
			best = max(best, 70)
		case strings.Contains(normalized, variant) || strings.Contains(variant, normalized):
			best = max(best, 60)
		default:
			if rank := fuzzy.RankMatchNormalizedFold(variant, normalized); rank >= 0 {
				best = max(best, max(1, 40-rank))
			}
		}
	}

	return best
}

// steamAppID extracts the Steam app ID from IGDB external game records.
// Source 1 is Steam in both the old category field and its replacement.
func steamAppID(externals []igdbExternalGame) int {
	for _, ext := range externals {
		if m := steamAppURLPattern.FindStringSubmatch(ext.URL); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil {
				return id
			}
		}

		source := ext.Category
		if ext.ExternalGameSource != nil {
			source = ext.ExternalGameSource
		}
		if source != nil && *source == 1 && ext.UID != "" {
			if id, err := strconv.Atoi(ext.UID); err == nil {
				return id
			}
		}
	}
	return 0
}

func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, ` `)
	return strings.ReplaceAll(value, `"`, ` `)
}
