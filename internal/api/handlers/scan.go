// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/scheduler"
	"github.com/gamearr/gamearr/internal/services/librarysync"
	"github.com/gamearr/gamearr/internal/services/scanner"
)

type ScanHandler struct {
	scheduler    *scheduler.Scheduler
	library      *librarysync.Service
	scanner      *scanner.Service
	scanLogStore *models.ScanLogStore
}

func NewScanHandler(
	sched *scheduler.Scheduler,
	library *librarysync.Service,
	scanSvc *scanner.Service,
	scanLogStore *models.ScanLogStore,
) *ScanHandler {
	return &ScanHandler{
		scheduler:    sched,
		library:      library,
		scanner:      scanSvc,
		scanLogStore: scanLogStore,
	}
}

func (h *ScanHandler) Routes(r chi.Router) {
	r.Post("/", h.Trigger)
	r.Get("/progress", h.Progress)
	r.Get("/logs", h.Logs)
	r.Get("/logs/{scanLogID}", h.LogDetails)
}

// Trigger starts a scan. The type query selects a full cycle (library sync
// plus update search), a library sync alone, or an update search alone.
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	scanType := r.URL.Query().Get("type")
	if scanType == "" {
		scanType = "full"
	}

	switch scanType {
	case "full":
		if err := h.scheduler.Trigger(); err != nil {
			if errors.Is(err, scheduler.ErrScanInProgress) {
				RespondError(w, http.StatusConflict, "A scan is already running")
				return
			}
			RespondError(w, http.StatusInternalServerError, "Failed to trigger scan")
			return
		}
	case "sync":
		h.runBackground("library sync", func(ctx context.Context) error {
			_, err := h.library.Sync(ctx)
			return err
		})
	case "updates":
		h.runBackground("update search", func(ctx context.Context) error {
			_, err := h.scanner.ScanAll(ctx)
			return err
		})
	default:
		RespondError(w, http.StatusBadRequest, "Unknown scan type")
		return
	}

	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "started", "type": scanType})
}

// runBackground detaches the operation from the request so it survives the
// client disconnecting.
func (h *ScanHandler) runBackground(name string, fn func(context.Context) error) {
	go func() {
		defer h.scheduler.Tracker().Complete()

		if err := fn(context.Background()); err != nil {
			log.Error().Err(err).Str("operation", name).Msg("Background scan failed")
		}
	}()
}

// Progress reports the live tracker snapshot and the scheduler state for the
// UI to poll.
func (h *ScanHandler) Progress(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"progress": h.scheduler.Tracker().Snapshot(),
		"status":   h.scheduler.Status(),
	})
}

func (h *ScanHandler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.scanLogStore.List(r.Context(), 20)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to list scan logs")
		return
	}
	if logs == nil {
		logs = []*models.ScanLog{}
	}
	RespondJSON(w, http.StatusOK, logs)
}

// scanLogDetails is a ScanLog with its JSON payload columns decoded for the
// history detail view.
type scanLogDetails struct {
	*models.ScanLog
	ParsedDetails json.RawMessage `json:"parsedDetails,omitempty"`
	SkipSummary   json.RawMessage `json:"skipSummary,omitempty"`
}

func (h *ScanHandler) LogDetails(w http.ResponseWriter, r *http.Request) {
	scanLogID, ok := ParseIntParam(w, r, "scanLogID", "scan log ID")
	if !ok {
		return
	}

	scanLog, err := h.scanLogStore.Get(r.Context(), scanLogID)
	if err != nil {
		if errors.Is(err, models.ErrScanLogNotFound) {
			RespondError(w, http.StatusNotFound, "Scan log not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to get scan log")
		return
	}

	details := scanLogDetails{ScanLog: scanLog}
	if scanLog.Details != nil && json.Valid([]byte(*scanLog.Details)) {
		details.ParsedDetails = json.RawMessage(*scanLog.Details)
	}
	if scanLog.SkipDetails != nil && json.Valid([]byte(*scanLog.SkipDetails)) {
		details.SkipSummary = json.RawMessage(*scanLog.SkipDetails)
	}

	RespondJSON(w, http.StatusOK, details)
}
