// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gamearr/gamearr/internal/api"
	"github.com/gamearr/gamearr/internal/buildinfo"
	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/database"
	"github.com/gamearr/gamearr/internal/logger"
	"github.com/gamearr/gamearr/internal/metrics"
	"github.com/gamearr/gamearr/internal/models"
	"github.com/gamearr/gamearr/internal/qbittorrent"
	"github.com/gamearr/gamearr/internal/scheduler"
	"github.com/gamearr/gamearr/internal/services/librarysync"
	"github.com/gamearr/gamearr/internal/services/progress"
	"github.com/gamearr/gamearr/internal/services/scanner"
)

func main() {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "gamearr",
		Short: "Game release tracker for your qBittorrent library",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configDir)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Path to configuration directory or file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the API server and background scanner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configDir)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Print(buildinfo.String())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "generate-config",
		Short: "Write a default config file if one does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := config.New(configDir, buildinfo.Version)
			return err
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configDir string) error {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.Config)
	cfg.DynamicReload()

	log.Info().
		Str("version", buildinfo.Version).
		Str("commit", buildinfo.Commit).
		Msg("Starting gamearr")

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	gameStore := models.NewGameStore(db)
	releaseStore := models.NewReleaseStore(db)
	ignoredStore := models.NewIgnoredReleaseStore(db)
	scanLogStore := models.NewScanLogStore(db)
	settingStore := models.NewAppSettingStore(db)

	metricsManager := metrics.NewManager(gameStore, releaseStore)

	library := librarysync.NewService(gameStore, settingStore)
	scanSvc := scanner.NewService(gameStore, releaseStore, ignoredStore, scanLogStore, settingStore, metricsManager.Scan())
	qbitPool := qbittorrent.NewPool()
	tracker := progress.NewTracker()
	sched := scheduler.New(settingStore, gameStore, releaseStore, library, scanSvc, qbitPool, tracker)

	go sched.Start(ctx)

	var metricsServer *metrics.MetricsServer
	if cfg.Config.MetricsEnabled {
		metricsServer = metrics.NewMetricsServer(metricsManager, cfg.Config.MetricsHost, cfg.Config.MetricsPort, "")
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	apiServer, err := api.NewServer(&api.Dependencies{
		Config:       cfg,
		GameStore:    gameStore,
		ReleaseStore: releaseStore,
		IgnoredStore: ignoredStore,
		ScanLogStore: scanLogStore,
		SettingStore: settingStore,
		Scheduler:    sched,
		Library:      library,
		Scanner:      scanSvc,
		QbitPool:     qbitPool,
	}).BuildHTTPServer()
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	return nil
}
