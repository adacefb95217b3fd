// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package prowlarr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIndexers(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/indexer", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "RuTracker", "enable": true, "protocol": "torrent"},
			{"id": 2, "name": "Nyaa", "enable": false, "protocol": "torrent"}
		]`))
	}))
	defer srv.Close()

	client := NewClient(Config{Host: srv.URL, APIKey: "secret"})

	indexers, err := client.GetIndexers(context.Background())
	require.NoError(t, err)
	require.Len(t, indexers, 2)
	assert.Equal(t, 1, indexers[0].ID)
	assert.Equal(t, "RuTracker", indexers[0].Name)
	assert.True(t, indexers[0].Enable)
	assert.False(t, indexers[1].Enable)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "Elden Ring", q.Get("query"))
		assert.Equal(t, "search", q.Get("type"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, []string{"1", "7"}, q["indexerIds"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"guid": "abc",
				"title": "Elden.Ring.v1.10.1-CODEX",
				"indexer": "RuTracker",
				"indexerId": 1,
				"publishDate": "2025-06-01T12:00:00Z",
				"size": 53687091200,
				"seeders": 120,
				"leechers": 4,
				"grabs": 900,
				"downloadUrl": "https://example.org/dl/abc",
				"categories": [{"id": 4050, "name": "PC/Games"}]
			}
		]`))
	}))
	defer srv.Close()

	client := NewClient(Config{Host: srv.URL, APIKey: "secret"})

	results, err := client.Search(context.Background(), "Elden Ring", []int{1, 7})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Elden.Ring.v1.10.1-CODEX", r.Title)
	assert.Equal(t, "RuTracker", r.Indexer)
	assert.Equal(t, int64(53687091200), r.Size)
	require.NotNil(t, r.Seeders)
	assert.Equal(t, float64(120), *r.Seeders)
	assert.Equal(t, "https://example.org/dl/abc", r.DownloadLink())
	require.Len(t, r.Categories, 1)
	assert.Equal(t, "PC/Games", r.Categories[0].Name)
}

func TestSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{Host: "http://localhost:9696"})

	_, err := client.Search(context.Background(), "   ", nil)
	assert.Error(t, err)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(Config{Host: srv.URL})

	results, err := client.Search(context.Background(), "Hades", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUnauthorizedDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Config{Host: srv.URL, APIKey: "wrong"})

	_, err := client.GetIndexers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownloadLinkPrefersMagnet(t *testing.T) {
	t.Parallel()

	r := SearchResult{MagnetURL: "magnet:?xt=urn:btih:abc", DownloadURL: "https://example.org/dl"}
	assert.Equal(t, "magnet:?xt=urn:btih:abc", r.DownloadLink())

	r.MagnetURL = ""
	assert.Equal(t, "https://example.org/dl", r.DownloadLink())
}

func TestIndexerCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "RuTracker.org", "enable": true},
			{"id": 2, "name": "Nyaa", "enable": true},
			{"id": 3, "name": "NoNaMe Club", "enable": true}
		]`))
	}))
	defer srv.Close()

	cache := NewIndexerCache(NewClient(Config{Host: srv.URL}))
	ctx := context.Background()

	ids, err := cache.IDs(ctx, []string{"rutracker", "noname"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids)
	assert.Equal(t, int32(1), calls.Load())

	// Second lookup is served from cache.
	ids, err = cache.IDs(ctx, []string{"rutracker", "noname"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids)
	assert.Equal(t, int32(1), calls.Load())

	// Refresh forces a refetch.
	require.NoError(t, cache.Refresh(ctx, []string{"rutracker", "noname"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestIndexerCacheEmptyAllowedList(t *testing.T) {
	t.Parallel()

	cache := NewIndexerCache(NewClient(Config{Host: "http://localhost:9696"}))

	ids, err := cache.IDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestIndexerCacheFallsBackOnError(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "name": "RuTracker", "enable": true}]`))
	}))
	defer srv.Close()

	cache := NewIndexerCache(NewClient(Config{Host: srv.URL}))
	ctx := context.Background()

	ids, err := cache.IDs(ctx, []string{"rutracker"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)

	fail.Store(true)

	// Refresh fails upstream but the previous result is kept.
	ids, err = cache.IDs(ctx, []string{"other"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)
}
