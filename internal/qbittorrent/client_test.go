// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeWebAPI stands in for a qBittorrent instance. addedURLs records the
// payload of torrents/add calls.
func newFakeWebAPI(t *testing.T, addedURLs *[]string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: "fake-session"})
		_, _ = w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/app/webapiVersion", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("2.11.2"))
	})
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "games", r.URL.Query().Get("category"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name": "Hades.v1.38-GOG", "hash": "aaa", "category": "games", "completion_on": 1700000000, "added_on": 1699990000},
			{"name": "Factorio_2.0.15", "hash": "bbb", "category": "games", "completion_on": 0, "added_on": 1700100000}
		]`))
	})
	mux.HandleFunc("/api/v2/torrents/properties", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("hash") == "aaa" {
			_, _ = w.Write([]byte(`{"comment": " https://example.org/game/hades "}`))
			return
		}
		_, _ = w.Write([]byte(`{"comment": ""}`))
	})
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		if addedURLs != nil {
			*addedURLs = append(*addedURLs, r.FormValue("urls"))
		}
		assert.Equal(t, "games", r.FormValue("category"))
		_, _ = w.Write([]byte("Ok."))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientConnects(t *testing.T) {
	t.Parallel()

	srv := newFakeWebAPI(t, nil)

	client, err := NewClient(srv.URL, "admin", "adminadmin")
	require.NoError(t, err)
	assert.Equal(t, "2.11.2", client.GetWebAPIVersion())
	assert.True(t, client.IsHealthy())
}

func TestNewClientRequiresHost(t *testing.T) {
	t.Parallel()

	_, err := NewClient("  ", "admin", "adminadmin")
	assert.Error(t, err)
}

func TestListCategory(t *testing.T) {
	t.Parallel()

	srv := newFakeWebAPI(t, nil)

	client, err := NewClient(srv.URL, "admin", "adminadmin")
	require.NoError(t, err)

	torrents, err := client.ListCategory(context.Background(), "games")
	require.NoError(t, err)
	require.Len(t, torrents, 2)
	assert.Equal(t, "Hades.v1.38-GOG", torrents[0].Name)
	assert.Equal(t, int64(1700000000), torrents[0].CompletionOn)
	assert.Equal(t, int64(1700100000), torrents[1].AddedOn)
}

func TestTorrentComment(t *testing.T) {
	t.Parallel()

	srv := newFakeWebAPI(t, nil)

	client, err := NewClient(srv.URL, "admin", "adminadmin")
	require.NoError(t, err)

	comment, err := client.TorrentComment(context.Background(), "aaa")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/game/hades", comment)

	comment, err = client.TorrentComment(context.Background(), "bbb")
	require.NoError(t, err)
	assert.Empty(t, comment)

	comment, err = client.TorrentComment(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, comment)
}

func TestAddTorrent(t *testing.T) {
	t.Parallel()

	var added []string
	srv := newFakeWebAPI(t, &added)

	client, err := NewClient(srv.URL, "admin", "adminadmin")
	require.NoError(t, err)

	err = client.AddTorrent(context.Background(), "magnet:?xt=urn:btih:abc", "games")
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", added[0])

	err = client.AddTorrent(context.Background(), "", "games")
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	srv := newFakeWebAPI(t, nil)

	client, err := NewClient(srv.URL, "admin", "adminadmin")
	require.NoError(t, err)

	require.NoError(t, client.HealthCheck(context.Background()))
	assert.True(t, client.IsHealthy())
}
