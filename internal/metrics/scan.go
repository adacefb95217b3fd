// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanMetrics tracks scan-cycle counters. Skips are labelled with the
// pipeline category that rejected the release.
type ScanMetrics struct {
	scansTotal         *prometheus.CounterVec
	releasesAddedTotal prometheus.Counter
	skipsTotal         *prometheus.CounterVec
	scanDuration       prometheus.Histogram
}

func NewScanMetrics() *ScanMetrics {
	return &ScanMetrics{
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamearr_scans_total",
				Help: "Total number of scan cycles by outcome",
			},
			[]string{"status"},
		),
		releasesAddedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gamearr_releases_added_total",
				Help: "Total number of releases added to the database",
			},
		),
		skipsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamearr_release_skips_total",
				Help: "Total number of search results skipped by filter category",
			},
			[]string{"category"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gamearr_scan_duration_seconds",
				Help:    "Duration of full scan cycles",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
}

func (m *ScanMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.scansTotal, m.releasesAddedTotal, m.skipsTotal, m.scanDuration)
}

// ObserveScan records one completed scan cycle.
func (m *ScanMetrics) ObserveScan(status string, duration time.Duration) {
	m.scansTotal.WithLabelValues(status).Inc()
	m.scanDuration.Observe(duration.Seconds())
}

// AddReleases records newly stored releases.
func (m *ScanMetrics) AddReleases(count int) {
	if count > 0 {
		m.releasesAddedTotal.Add(float64(count))
	}
}

// AddSkips records skipped search results per filter category.
func (m *ScanMetrics) AddSkips(byCategory map[string]int) {
	for category, count := range byCategory {
		if count > 0 {
			m.skipsTotal.WithLabelValues(category).Add(float64(count))
		}
	}
}
