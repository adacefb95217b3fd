// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamearr/gamearr/internal/database"
)

var ErrIgnoredReleaseNotFound = errors.New("ignored release not found")

// IgnoredRelease records a raw release title the user never wants to see
// again for a game. Matching happens before any other pipeline gate.
type IgnoredRelease struct {
	ID           int       `json:"id"`
	GameID       int       `json:"gameId"`
	ReleaseTitle string    `json:"releaseTitle"`
	RawTitle     string    `json:"rawTitle"`
	IgnoredAt    time.Time `json:"ignoredAt"`
}

// IgnoredReleaseStore manages ignored release titles in the database
type IgnoredReleaseStore struct {
	db database.Querier
}

func NewIgnoredReleaseStore(db database.Querier) *IgnoredReleaseStore {
	return &IgnoredReleaseStore{db: db}
}

// Create records a raw title as permanently ignored for a game.
func (s *IgnoredReleaseStore) Create(ctx context.Context, gameID int, releaseTitle, rawTitle string) (*IgnoredRelease, error) {
	if rawTitle == "" {
		return nil, errors.New("raw title cannot be empty")
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO ignored_releases (game_id, release_title, raw_title) VALUES (?, ?, ?)`,
		gameID, releaseTitle, rawTitle)
	if err != nil {
		return nil, fmt.Errorf("failed to create ignored release: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	var ignored IgnoredRelease
	err = s.db.QueryRowContext(ctx,
		`SELECT id, game_id, release_title, raw_title, ignored_at FROM ignored_releases WHERE id = ?`, id).
		Scan(&ignored.ID, &ignored.GameID, &ignored.ReleaseTitle, &ignored.RawTitle, &ignored.IgnoredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get ignored release: %w", err)
	}

	return &ignored, nil
}

// RawTitlesByGame returns the set of ignored raw titles for a game.
func (s *IgnoredReleaseStore) RawTitlesByGame(ctx context.Context, gameID int) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_title FROM ignored_releases WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ignored titles: %w", err)
	}
	defer rows.Close()

	titles := make(map[string]struct{})
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan ignored title: %w", err)
		}
		titles[title] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ignored titles: %w", err)
	}

	return titles, nil
}

// ListByGame retrieves all ignored releases for a game, newest first.
func (s *IgnoredReleaseStore) ListByGame(ctx context.Context, gameID int) ([]*IgnoredRelease, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, release_title, raw_title, ignored_at FROM ignored_releases WHERE game_id = ? ORDER BY ignored_at DESC`,
		gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ignored releases: %w", err)
	}
	defer rows.Close()

	var ignored []*IgnoredRelease
	for rows.Next() {
		var item IgnoredRelease
		if err := rows.Scan(&item.ID, &item.GameID, &item.ReleaseTitle, &item.RawTitle, &item.IgnoredAt); err != nil {
			return nil, fmt.Errorf("failed to scan ignored release: %w", err)
		}
		ignored = append(ignored, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ignored releases: %w", err)
	}

	return ignored, nil
}

// Delete removes an ignored release entry.
func (s *IgnoredReleaseStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ignored_releases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ignored release: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrIgnoredReleaseNotFound
	}

	return nil
}
