// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api assembles the HTTP router from the service layer.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/api/handlers"
	"github.com/gamearr/gamearr/internal/buildinfo"
	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/metrics"
	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/qbittorrent"
	"github.com/gamearr/gamearr/internal/scheduler"
	"github.com/gamearr/gamearr/internal/services/librarysync"
	"github.com/gamearr/gamearr/internal/services/scanner"
)

// Dependencies carries everything the router needs. All fields are required
// unless noted.
type Dependencies struct {
	Config *config.AppConfig

	GameStore    *models.GameStore
	ReleaseStore *models.ReleaseStore
	IgnoredStore *models.IgnoredReleaseStore
	ScanLogStore *models.ScanLogStore
	SettingStore *models.AppSettingStore

	Scheduler *scheduler.Scheduler
	Library   *librarysync.Service
	Scanner   *scanner.Service
	QbitPool  *qbittorrent.Pool
}

type Server struct {
	deps *Dependencies
}

func NewServer(deps *Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the chi router with all API routes mounted.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.New(cors.Options{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	compressor, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, fmt.Errorf("failed to build compression adapter: %w", err)
	}
	r.Use(compressor)

	healthHandler := handlers.NewHealthHandler(buildinfo.Version)
	gamesHandler := handlers.NewGamesHandler(
		s.deps.GameStore,
		s.deps.ReleaseStore,
		s.deps.IgnoredStore,
		s.deps.ScanLogStore,
		s.deps.SettingStore,
		s.deps.Scanner,
	)
	releasesHandler := handlers.NewReleasesHandler(
		s.deps.GameStore,
		s.deps.ReleaseStore,
		s.deps.IgnoredStore,
		s.deps.SettingStore,
		s.deps.QbitPool,
	)
	ignoredHandler := handlers.NewIgnoredHandler(s.deps.IgnoredStore)
	scanHandler := handlers.NewScanHandler(
		s.deps.Scheduler,
		s.deps.Library,
		s.deps.Scanner,
		s.deps.ScanLogStore,
	)
	settingsHandler := handlers.NewSettingsHandler(s.deps.SettingStore)
	testHandler := handlers.NewConnectionTestHandler()
	updatesHandler := handlers.NewUpdatesHandler(
		s.deps.GameStore,
		s.deps.ReleaseStore,
		s.deps.ScanLogStore,
	)

	r.Route("/api", func(r chi.Router) {
		r.Route("/health", healthHandler.Routes)

		r.Group(func(r chi.Router) {
			if cfg := s.deps.Config.Config; cfg.IsAuthEnabled() {
				r.Use(metrics.BasicAuth("gamearr", map[string]string{
					cfg.AuthUsername: cfg.AuthPassword,
				}))
			}

			r.Route("/games", gamesHandler.Routes)
			r.Route("/releases", releasesHandler.Routes)
			r.Route("/ignored", ignoredHandler.Routes)
			r.Route("/scan", scanHandler.Routes)
			r.Route("/settings", settingsHandler.Routes)
			r.Route("/test", testHandler.Routes)
			r.Route("/updates", updatesHandler.Routes)
		})
	})

	return r, nil
}

// BuildHTTPServer constructs the http.Server bound to the configured
// address. The caller owns its lifecycle.
func (s *Server) BuildHTTPServer() (*http.Server, error) {
	handler, err := s.Handler()
	if err != nil {
		return nil, err
	}

	cfg := s.deps.Config.Config
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Info().Str("addr", addr).Msg("API server listening")

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}, nil
}
