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

var ErrScanLogNotFound = errors.New("scan log not found")

const (
	ScanStatusSuccess = "success"
	ScanStatusPartial = "partial"
	ScanStatusError   = "error"
)

// ScanLog records one scan cycle for the history view.
type ScanLog struct {
	ID              int       `json:"id"`
	StartedAt       time.Time `json:"startedAt"`
	DurationSeconds float64   `json:"durationSeconds"`
	GamesProcessed  int       `json:"gamesProcessed"`
	UpdatesFound    int       `json:"updatesFound"`
	Status          string    `json:"status"`
	Details         *string   `json:"details,omitempty"`
	SkipDetails     *string   `json:"skipDetails,omitempty"`
}

// ScanLogStore manages scan history in the database
type ScanLogStore struct {
	db database.Querier
}

func NewScanLogStore(db database.Querier) *ScanLogStore {
	return &ScanLogStore{db: db}
}

// Create appends a scan log row.
func (s *ScanLogStore) Create(ctx context.Context, scanLog *ScanLog) error {
	if scanLog.Status == "" {
		scanLog.Status = ScanStatusSuccess
	}
	if scanLog.StartedAt.IsZero() {
		scanLog.StartedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_logs (started_at, duration_seconds, games_processed, updates_found, status, details, skip_details)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scanLog.StartedAt,
		scanLog.DurationSeconds,
		scanLog.GamesProcessed,
		scanLog.UpdatesFound,
		scanLog.Status,
		nullableString(scanLog.Details),
		nullableString(scanLog.SkipDetails),
	)
	if err != nil {
		return fmt.Errorf("failed to create scan log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	scanLog.ID = int(id)

	return nil
}

// List retrieves the most recent scan logs, newest first.
func (s *ScanLogStore) List(ctx context.Context, limit int) ([]*ScanLog, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_seconds, games_processed, updates_found, status, details, skip_details
		 FROM scan_logs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan logs: %w", err)
	}
	defer rows.Close()

	var logs []*ScanLog
	for rows.Next() {
		var item ScanLog
		var details, skipDetails sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.StartedAt,
			&item.DurationSeconds,
			&item.GamesProcessed,
			&item.UpdatesFound,
			&item.Status,
			&details,
			&skipDetails,
		); err != nil {
			return nil, fmt.Errorf("failed to scan scan log: %w", err)
		}
		item.Details = fromNullString(details)
		item.SkipDetails = fromNullString(skipDetails)
		logs = append(logs, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan logs: %w", err)
	}

	return logs, nil
}

// Get retrieves a single scan log by ID.
func (s *ScanLogStore) Get(ctx context.Context, id int) (*ScanLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_seconds, games_processed, updates_found, status, details, skip_details
		 FROM scan_logs WHERE id = ?`, id)

	var item ScanLog
	var details, skipDetails sql.NullString
	if err := row.Scan(
		&item.ID,
		&item.StartedAt,
		&item.DurationSeconds,
		&item.GamesProcessed,
		&item.UpdatesFound,
		&item.Status,
		&details,
		&skipDetails,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScanLogNotFound
		}
		return nil, fmt.Errorf("failed to get scan log: %w", err)
	}
	item.Details = fromNullString(details)
	item.SkipDetails = fromNullString(skipDetails)

	return &item, nil
}

// LatestWithSkips returns the most recent scan log that recorded skip details.
func (s *ScanLogStore) LatestWithSkips(ctx context.Context) (*ScanLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_seconds, games_processed, updates_found, status, details, skip_details
		 FROM scan_logs WHERE skip_details IS NOT NULL ORDER BY started_at DESC LIMIT 1`)

	var item ScanLog
	var details, skipDetails sql.NullString
	if err := row.Scan(
		&item.ID,
		&item.StartedAt,
		&item.DurationSeconds,
		&item.GamesProcessed,
		&item.UpdatesFound,
		&item.Status,
		&details,
		&skipDetails,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScanLogNotFound
		}
		return nil, fmt.Errorf("failed to get scan log: %w", err)
	}
	item.Details = fromNullString(details)
	item.SkipDetails = fromNullString(skipDetails)

	return &item, nil
}

// Prune deletes scan logs older than the retention window.
func (s *ScanLogStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scan_logs WHERE started_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune scan logs: %w", err)
	}
	return result.RowsAffected()
}
