// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scanner

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamearr/gamearr/internal/prowlarr"
)

func float64Ptr(v float64) *float64 { return &v }

func TestResolveUploadDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	t.Run("publish date", func(t *testing.T) {
		t.Parallel()
		item := prowlarr.SearchResult{PublishDate: "2025-06-01T08:30:00Z"}
		resolved := ResolveUploadDate(item, now)
		require.NotNil(t, resolved)
		assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), *resolved)
	})

	t.Run("future date clamps to now", func(t *testing.T) {
		t.Parallel()
		item := prowlarr.SearchResult{PublishDate: "2030-01-01T00:00:00Z"}
		resolved := ResolveUploadDate(item, now)
		require.NotNil(t, resolved)
		assert.Equal(t, now, *resolved)
	})

	t.Run("added field fallback", func(t *testing.T) {
		t.Parallel()
		item := prowlarr.SearchResult{PublishDate: "soon", Added: "2025-05-20 10:00:00"}
		resolved := ResolveUploadDate(item, now)
		require.NotNil(t, resolved)
		assert.Equal(t, time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC), *resolved)
	})

	t.Run("age minutes fallback", func(t *testing.T) {
		t.Parallel()
		item := prowlarr.SearchResult{AgeMinutes: float64Ptr(90)}
		resolved := ResolveUploadDate(item, now)
		require.NotNil(t, resolved)
		assert.Equal(t, now.Add(-90*time.Minute), *resolved)
	})

	t.Run("age days fallback", func(t *testing.T) {
		t.Parallel()
		item := prowlarr.SearchResult{Age: float64Ptr(3)}
		resolved := ResolveUploadDate(item, now)
		require.NotNil(t, resolved)
		assert.Equal(t, now.Add(-72*time.Hour), *resolved)
	})

	t.Run("negative age ignored", func(t *testing.T) {
		t.Parallel()
		item := prowlarr.SearchResult{AgeMinutes: float64Ptr(-5), Age: float64Ptr(-1)}
		assert.Nil(t, ResolveUploadDate(item, now))
	})

	t.Run("nothing usable", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, ResolveUploadDate(prowlarr.SearchResult{}, now))
	})
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int64
		want string
	}{
		{"zero", 0, "?"},
		{"negative", -1, "?"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 734003200, "700.0 MB"},
		{"gigabytes", 53687091200, "50.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatSize(tt.in))
		})
	}
}

func TestNormalizeMetric(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NormalizeMetric(nil))
	assert.Nil(t, NormalizeMetric(float64Ptr(-3)))
	assert.Nil(t, NormalizeMetric(float64Ptr(math.NaN())))
	assert.Nil(t, NormalizeMetric(float64Ptr(math.Inf(1))))

	require.NotNil(t, NormalizeMetric(float64Ptr(12.9)))
	assert.Equal(t, 12, *NormalizeMetric(float64Ptr(12.9)))
	assert.Equal(t, 0, *NormalizeMetric(float64Ptr(0)))
}
