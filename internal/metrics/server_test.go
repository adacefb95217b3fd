// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsServer(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil, nil)

	tests := []struct {
		name             string
		host             string
		port             int
		basicAuthUsers   string
		expectedAddr     string
		expectedAuthSize int
	}{
		{
			name:             "default config",
			host:             "127.0.0.1",
			port:             9074,
			basicAuthUsers:   "",
			expectedAddr:     "127.0.0.1:9074",
			expectedAuthSize: 0,
		},
		{
			name:             "with single basic auth user",
			host:             "0.0.0.0",
			port:             8080,
			basicAuthUsers:   "user:password",
			expectedAddr:     "0.0.0.0:8080",
			expectedAuthSize: 1,
		},
		{
			name:             "with invalid auth entry skipped",
			host:             "localhost",
			port:             9074,
			basicAuthUsers:   "user1:pass1,invalidentry,user2:pass2",
			expectedAddr:     "localhost:9074",
			expectedAuthSize: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := NewMetricsServer(manager, tt.host, tt.port, tt.basicAuthUsers)

			require.NotNil(t, server)
			assert.Equal(t, tt.expectedAddr, server.server.Addr)
			assert.Len(t, server.basicAuthUsers, tt.expectedAuthSize)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil, nil)
	server := NewMetricsServer(manager, "localhost", 9074, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_")
}

func TestMetricsEndpointWithBasicAuth(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil, nil)
	server := NewMetricsServer(manager, "localhost", 9074, "admin:secret")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScanMetricsRegistered(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil, nil)
	manager.Scan().ObserveScan("success", 3*time.Second)
	manager.Scan().AddReleases(2)
	manager.Scan().AddSkips(map[string]int{"platform": 5, "title": 0})

	server := NewMetricsServer(manager, "localhost", 9074, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `gamearr_scans_total{status="success"} 1`)
	assert.Contains(t, body, "gamearr_releases_added_total 2")
	assert.Contains(t, body, `gamearr_release_skips_total{category="platform"} 5`)
	assert.NotContains(t, body, `category="title"`)
}
