// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/gamearr/gamearr/internal/models"
)

type Manager struct {
	registry         *prometheus.Registry
	scanMetrics      *ScanMetrics
	libraryCollector *LibraryCollector
}

func NewManager(gameStore *models.GameStore, releaseStore *models.ReleaseStore) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	scanMetrics := NewScanMetrics()
	scanMetrics.MustRegister(registry)

	libraryCollector := NewLibraryCollector(gameStore, releaseStore)
	registry.MustRegister(libraryCollector)

	log.Info().Msg("Metrics manager initialized with library collector")

	return &Manager{
		registry:         registry,
		scanMetrics:      scanMetrics,
		libraryCollector: libraryCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Scan() *ScanMetrics {
	return m.scanMetrics
}
