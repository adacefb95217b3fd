// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"errors"
	"strings"
	"sync"
)

// ErrNotConfigured is returned by Pool.Get when no host is set.
var ErrNotConfigured = errors.New("qbittorrent: host is not configured")

// Pool hands out a shared Client for the configured instance and rebuilds it
// when the connection settings change.
type Pool struct {
	mu     sync.Mutex
	key    string
	client *Client
}

func NewPool() *Pool {
	return &Pool{}
}

// Get returns a connected client for the given settings, reusing the cached
// one while the settings are unchanged.
func (p *Pool) Get(host, username, password string) (*Client, error) {
	if host == "" {
		return nil, ErrNotConfigured
	}

	key := strings.Join([]string{host, username, password}, "\x00")

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.key == key {
		return p.client, nil
	}

	client, err := NewClient(host, username, password)
	if err != nil {
		return nil, err
	}

	p.key = key
	p.client = client
	return client, nil
}
