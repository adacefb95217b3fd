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

var ErrReleaseNotFound = errors.New("release not found")

// Release is a release accepted by the filter pipeline for a game.
type Release struct {
	ID            int       `json:"id"`
	GameID        int       `json:"gameId"`
	RawTitle      string    `json:"rawTitle"`
	ParsedVersion *string   `json:"parsedVersion,omitempty"`
	UploadDate    time.Time `json:"uploadDate"`
	Indexer       string    `json:"indexer"`
	MagnetURL     *string   `json:"magnetUrl,omitempty"`
	InfoURL       *string   `json:"infoUrl,omitempty"`
	Size          *string   `json:"size,omitempty"`
	Seeders       *int      `json:"seeders,omitempty"`
	Leechers      *int      `json:"leechers,omitempty"`
	Grabs         *int      `json:"grabs,omitempty"`
	IsIgnored     bool      `json:"isIgnored"`
	FoundAt       time.Time `json:"foundAt"`
}

// ReleaseStore manages releases in the database
type ReleaseStore struct {
	db database.Querier
}

func NewReleaseStore(db database.Querier) *ReleaseStore {
	return &ReleaseStore{db: db}
}

const releaseColumns = `id, game_id, raw_title, parsed_version, upload_date, indexer,
	magnet_url, info_url, size, seeders, leechers, grabs, is_ignored, found_at`

func scanRelease(row interface{ Scan(...any) error }) (*Release, error) {
	var release Release
	var parsedVersion, magnetURL, infoURL, size sql.NullString
	var seeders, leechers, grabs sql.NullInt64

	if err := row.Scan(
		&release.ID,
		&release.GameID,
		&release.RawTitle,
		&parsedVersion,
		&release.UploadDate,
		&release.Indexer,
		&magnetURL,
		&infoURL,
		&size,
		&seeders,
		&leechers,
		&grabs,
		&release.IsIgnored,
		&release.FoundAt,
	); err != nil {
		return nil, err
	}

	release.ParsedVersion = fromNullString(parsedVersion)
	release.MagnetURL = fromNullString(magnetURL)
	release.InfoURL = fromNullString(infoURL)
	release.Size = fromNullString(size)
	release.Seeders = fromNullInt(seeders)
	release.Leechers = fromNullInt(leechers)
	release.Grabs = fromNullInt(grabs)

	return &release, nil
}

// Create inserts a release. The (game_id, raw_title) pair is unique, a
// conflicting insert returns an error.
func (s *ReleaseStore) Create(ctx context.Context, release *Release) (*Release, error) {
	query := `
		INSERT INTO releases (game_id, raw_title, parsed_version, upload_date, indexer,
			magnet_url, info_url, size, seeders, leechers, grabs, is_ignored)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		release.GameID,
		release.RawTitle,
		nullableString(release.ParsedVersion),
		release.UploadDate,
		release.Indexer,
		nullableString(release.MagnetURL),
		nullableString(release.InfoURL),
		nullableString(release.Size),
		nullableInt(release.Seeders),
		nullableInt(release.Leechers),
		nullableInt(release.Grabs),
		release.IsIgnored,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create release: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return s.Get(ctx, int(id))
}

// Get retrieves a release by ID
func (s *ReleaseStore) Get(ctx context.Context, id int) (*Release, error) {
	release, err := scanRelease(s.db.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReleaseNotFound
		}
		return nil, fmt.Errorf("failed to get release: %w", err)
	}
	return release, nil
}

// GetByGameAndTitle looks up the stored release matching a raw title, used by
// the duplicate gate.
func (s *ReleaseStore) GetByGameAndTitle(ctx context.Context, gameID int, rawTitle string) (*Release, error) {
	release, err := scanRelease(s.db.QueryRowContext(ctx,
		`SELECT `+releaseColumns+` FROM releases WHERE game_id = ? AND raw_title = ?`, gameID, rawTitle))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReleaseNotFound
		}
		return nil, fmt.Errorf("failed to get release by title: %w", err)
	}
	return release, nil
}

// ListByGame retrieves all releases for a game, newest upload first.
func (s *ReleaseStore) ListByGame(ctx context.Context, gameID int) ([]*Release, error) {
	return s.list(ctx, `SELECT `+releaseColumns+` FROM releases WHERE game_id = ? ORDER BY upload_date DESC`, gameID)
}

// ListActive retrieves all non-ignored releases, newest upload first. Used by
// the recommendation ranker.
func (s *ReleaseStore) ListActive(ctx context.Context) ([]*Release, error) {
	return s.list(ctx, `SELECT `+releaseColumns+` FROM releases WHERE is_ignored = 0 ORDER BY upload_date DESC`)
}

// CountActive returns the number of non-ignored releases.
func (s *ReleaseStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM releases WHERE is_ignored = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count releases: %w", err)
	}
	return count, nil
}

func (s *ReleaseStore) list(ctx context.Context, query string, args ...any) ([]*Release, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var releases []*Release
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, release)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating releases: %w", err)
	}

	return releases, nil
}

// UpdateMetrics refreshes swarm health numbers on an existing release.
func (s *ReleaseStore) UpdateMetrics(ctx context.Context, id int, seeders, leechers, grabs *int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE releases SET seeders = ?, leechers = ?, grabs = ? WHERE id = ?`,
		nullableInt(seeders), nullableInt(leechers), nullableInt(grabs), id)
	if err != nil {
		return fmt.Errorf("failed to update release metrics: %w", err)
	}
	return nil
}

// SetIgnored hides or unhides a release from recommendations.
func (s *ReleaseStore) SetIgnored(ctx context.Context, id int, ignored bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE releases SET is_ignored = ? WHERE id = ?`, ignored, id)
	if err != nil {
		return fmt.Errorf("failed to set release ignored: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReleaseNotFound
	}

	return nil
}

// DeleteByGame removes all releases of a game.
func (s *ReleaseStore) DeleteByGame(ctx context.Context, gameID int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM releases WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("failed to delete releases: %w", err)
	}
	return nil
}

// Delete removes a single release.
func (s *ReleaseStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM releases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete release: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrReleaseNotFound
	}

	return nil
}
