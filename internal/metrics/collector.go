// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/models"
)

// LibraryCollector exposes library gauges straight from the database on
// each scrape.
type LibraryCollector struct {
	gameStore    *models.GameStore
	releaseStore *models.ReleaseStore

	gamesDesc          *prometheus.Desc
	releasesActiveDesc *prometheus.Desc
}

func NewLibraryCollector(gameStore *models.GameStore, releaseStore *models.ReleaseStore) *LibraryCollector {
	return &LibraryCollector{
		gameStore:    gameStore,
		releaseStore: releaseStore,

		gamesDesc: prometheus.NewDesc(
			"gamearr_games",
			"Number of games in the library by status",
			[]string{"status"},
			nil,
		),
		releasesActiveDesc: prometheus.NewDesc(
			"gamearr_releases_active",
			"Number of non-ignored releases in the database",
			nil,
			nil,
		),
	}
}

func (c *LibraryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.gamesDesc
	ch <- c.releasesActiveDesc
}

func (c *LibraryCollector) Collect(ch chan<- prometheus.Metric) {
	if c.gameStore == nil || c.releaseStore == nil {
		log.Debug().Msg("stores not configured, skipping library metrics collection")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := c.gameStore.CountByStatus(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("failed to collect game counts")
	} else {
		for status, count := range counts {
			ch <- prometheus.MustNewConstMetric(c.gamesDesc, prometheus.GaugeValue, float64(count), status)
		}
	}

	active, err := c.releaseStore.CountActive(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("failed to collect release count")
		return
	}
	ch <- prometheus.MustNewConstMetric(c.releasesActiveDesc, prometheus.GaugeValue, float64(active))
}
