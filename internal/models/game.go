// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gamearr/gamearr/internal/database"
)

var ErrGameNotFound = errors.New("game not found")

const (
	GameStatusMonitored = "monitored"
	GameStatusIgnored   = "ignored"
)

// Game is a tracked library title.
type Game struct {
	ID                 int        `json:"id"`
	Title              string     `json:"title"`
	SearchQuery        string     `json:"searchQuery"`
	CurrentVersionDate time.Time  `json:"currentVersionDate"`
	CurrentVersion     *string    `json:"currentVersion,omitempty"`
	Status             string     `json:"status"`
	PlatformFilter     string     `json:"platformFilter"`
	ExcludeKeywords    *string    `json:"excludeKeywords,omitempty"`
	IsManual           bool       `json:"isManual"`
	QbitSyncedAt       *time.Time `json:"qbitSyncedAt,omitempty"`
	IGDBID             *int       `json:"igdbId,omitempty"`
	CoverURL           *string    `json:"coverUrl,omitempty"`
	SteamAppID         *int       `json:"steamAppId,omitempty"`
	SourceURL          *string    `json:"sourceUrl,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastScannedAt      *time.Time `json:"lastScannedAt,omitempty"`
}

// HasEstablishedVersion reports whether the game has a version baseline to
// compare releases against.
func (g *Game) HasEstablishedVersion() bool {
	return !g.CurrentVersionDate.Equal(Epoch) && g.CurrentVersionDate.Unix() != 0
}

// GameStore manages games in the database
type GameStore struct {
	db database.Querier
}

func NewGameStore(db database.Querier) *GameStore {
	return &GameStore{db: db}
}

const gameColumns = `id, title, search_query, current_version_date, current_version, status,
	platform_filter, exclude_keywords, is_manual, qbit_synced_at, igdb_id, cover_url,
	steam_app_id, source_url, created_at, last_scanned_at`

func scanGame(row interface{ Scan(...any) error }) (*Game, error) {
	var game Game
	var currentVersion, excludeKeywords, coverURL, sourceURL sql.NullString
	var igdbID, steamAppID sql.NullInt64
	var qbitSyncedAt, lastScannedAt sql.NullTime

	if err := row.Scan(
		&game.ID,
		&game.Title,
		&game.SearchQuery,
		&game.CurrentVersionDate,
		&currentVersion,
		&game.Status,
		&game.PlatformFilter,
		&excludeKeywords,
		&game.IsManual,
		&qbitSyncedAt,
		&igdbID,
		&coverURL,
		&steamAppID,
		&sourceURL,
		&game.CreatedAt,
		&lastScannedAt,
	); err != nil {
		return nil, err
	}

	game.CurrentVersion = fromNullString(currentVersion)
	game.ExcludeKeywords = fromNullString(excludeKeywords)
	game.CoverURL = fromNullString(coverURL)
	game.SourceURL = fromNullString(sourceURL)
	game.IGDBID = fromNullInt(igdbID)
	game.SteamAppID = fromNullInt(steamAppID)
	game.QbitSyncedAt = fromNullTime(qbitSyncedAt)
	game.LastScannedAt = fromNullTime(lastScannedAt)

	return &game, nil
}

// Create inserts a new game and returns it with generated fields populated.
func (s *GameStore) Create(ctx context.Context, game *Game) (*Game, error) {
	if game.Title == "" {
		return nil, errors.New("title cannot be empty")
	}
	if game.SearchQuery == "" {
		game.SearchQuery = game.Title
	}
	if game.Status == "" {
		game.Status = GameStatusMonitored
	}
	if game.PlatformFilter == "" {
		game.PlatformFilter = "Windows"
	}
	if game.CurrentVersionDate.IsZero() {
		game.CurrentVersionDate = Epoch
	}

	query := `
		INSERT INTO games (title, search_query, current_version_date, current_version, status,
			platform_filter, exclude_keywords, is_manual, qbit_synced_at, igdb_id, cover_url,
			steam_app_id, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		game.Title,
		game.SearchQuery,
		game.CurrentVersionDate,
		nullableString(game.CurrentVersion),
		game.Status,
		game.PlatformFilter,
		nullableString(game.ExcludeKeywords),
		game.IsManual,
		nullableTime(game.QbitSyncedAt),
		nullableInt(game.IGDBID),
		nullableString(game.CoverURL),
		nullableInt(game.SteamAppID),
		nullableString(game.SourceURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return s.Get(ctx, int(id))
}

// Get retrieves a game by ID
func (s *GameStore) Get(ctx context.Context, id int) (*Game, error) {
	game, err := scanGame(s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// List retrieves all games ordered by title.
func (s *GameStore) List(ctx context.Context) ([]*Game, error) {
	return s.list(ctx, `SELECT `+gameColumns+` FROM games ORDER BY title COLLATE NOCASE ASC`)
}

// ListMonitored retrieves all games eligible for scanning.
func (s *GameStore) ListMonitored(ctx context.Context) ([]*Game, error) {
	return s.list(ctx, `SELECT `+gameColumns+` FROM games WHERE status = ? ORDER BY title COLLATE NOCASE ASC`, GameStatusMonitored)
}

func (s *GameStore) list(ctx context.Context, query string, args ...any) ([]*Game, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	return games, nil
}

// Update persists all mutable fields of game.
func (s *GameStore) Update(ctx context.Context, game *Game) error {
	query := `
		UPDATE games
		SET title = ?, search_query = ?, current_version_date = ?, current_version = ?,
			status = ?, platform_filter = ?, exclude_keywords = ?, is_manual = ?,
			qbit_synced_at = ?, igdb_id = ?, cover_url = ?, steam_app_id = ?,
			source_url = ?, last_scanned_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		game.Title,
		game.SearchQuery,
		game.CurrentVersionDate,
		nullableString(game.CurrentVersion),
		game.Status,
		game.PlatformFilter,
		nullableString(game.ExcludeKeywords),
		game.IsManual,
		nullableTime(game.QbitSyncedAt),
		nullableInt(game.IGDBID),
		nullableString(game.CoverURL),
		nullableInt(game.SteamAppID),
		nullableString(game.SourceURL),
		nullableTime(game.LastScannedAt),
		game.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGameNotFound
	}

	return nil
}

// SetVersion updates the established version baseline.
func (s *GameStore) SetVersion(ctx context.Context, id int, version string, versionDate time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE games SET current_version = ?, current_version_date = ? WHERE id = ?`,
		version, versionDate, id)
	if err != nil {
		return fmt.Errorf("failed to set game version: %w", err)
	}
	return nil
}

// SetLastScanned stamps the game as scanned.
func (s *GameStore) SetLastScanned(ctx context.Context, id int, scannedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE games SET last_scanned_at = ? WHERE id = ?`, scannedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set last scanned: %w", err)
	}
	return nil
}

// SetStatus switches the game between monitored and ignored.
func (s *GameStore) SetStatus(ctx context.Context, id int, status string) error {
	if status != GameStatusMonitored && status != GameStatusIgnored {
		return fmt.Errorf("invalid game status %q", status)
	}

	result, err := s.db.ExecContext(ctx, `UPDATE games SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set game status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGameNotFound
	}

	return nil
}

// ResetScanState clears the version baseline and scan stamp so the next scan
// starts from scratch.
func (s *GameStore) ResetScanState(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE games SET current_version = NULL, current_version_date = ?, last_scanned_at = NULL WHERE id = ?`,
		Epoch, id)
	if err != nil {
		return fmt.Errorf("failed to reset scan state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGameNotFound
	}

	return nil
}

// UnlinkNotSyncedSince clears the qBittorrent link for auto-synced games whose
// torrents were not seen in the latest sync pass.
func (s *GameStore) UnlinkNotSyncedSince(ctx context.Context, since time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE games SET qbit_synced_at = NULL WHERE is_manual = 0 AND qbit_synced_at IS NOT NULL AND qbit_synced_at < ?`,
		since)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink stale games: %w", err)
	}
	return result.RowsAffected()
}

// CountByStatus returns the number of games per status.
func (s *GameStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM games GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count games: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan game count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// Delete removes a game; releases cascade.
func (s *GameStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGameNotFound
	}

	return nil
}
