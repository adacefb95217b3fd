// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scanner

import (
	"fmt"
	"math"
	"time"

	"github.com/gamearr/gamearr/internal/prowlarr"
)

// dateLayouts covers the timestamp shapes indexers emit. RFC3339 handles
// both Z and explicit offsets.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ResolveUploadDate determines when a search result was uploaded. Explicit
// publish timestamps win, then the age fields counting backwards from now.
// Future dates clamp to now. Returns nil when nothing is usable.
func ResolveUploadDate(item prowlarr.SearchResult, now time.Time) *time.Time {
	for _, raw := range []string{item.PublishDate, item.Added} {
		if raw == "" {
			continue
		}
		for _, layout := range dateLayouts {
			parsed, err := time.Parse(layout, raw)
			if err != nil {
				continue
			}
			parsed = parsed.UTC()
			if parsed.After(now) {
				parsed = now.UTC()
			}
			return &parsed
		}
	}

	if item.AgeMinutes != nil && *item.AgeMinutes >= 0 {
		resolved := now.UTC().Add(-time.Duration(*item.AgeMinutes * float64(time.Minute)))
		return &resolved
	}
	if item.Age != nil && *item.Age >= 0 {
		resolved := now.UTC().Add(-time.Duration(*item.Age * 24 * float64(time.Hour)))
		return &resolved
	}

	return nil
}

// FormatSize renders a byte count for display. Unknown or zero sizes show
// as "?".
func FormatSize(sizeBytes int64) string {
	if sizeBytes <= 0 {
		return "?"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(sizeBytes)

	for _, unit := range units {
		if size < 1024 {
			if unit == "B" {
				return fmt.Sprintf("%d %s", int64(math.Round(size)), unit)
			}
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f PB", size)
}

// NormalizeMetric converts an optional tracker metric to a stored value.
// Absent, negative, and non-finite numbers all collapse to nil.
func NormalizeMetric(value *float64) *int {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) || *value < 0 {
		return nil
	}
	truncated := int(*value)
	return &truncated
}
