// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package prowlarr

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"
)

// IndexerCache resolves the allowed-indexer name list to Prowlarr indexer
// IDs and caches the result so scans do not hit the indexer endpoint on
// every game.
type IndexerCache struct {
	client *Client
	cache  *ttlcache.Cache[string, []int]

	mu       sync.Mutex
	lastGood []int
}

// NewIndexerCache creates a cache over the given client. Entries live for
// an hour before the next lookup refetches them.
func NewIndexerCache(client *Client) *IndexerCache {
	return &IndexerCache{
		client: client,
		cache:  ttlcache.New(ttlcache.Options[string, []int]{}.SetDefaultTTL(time.Hour)),
	}
}

// IDs returns the Prowlarr indexer IDs whose names contain any entry of
// allowed (case-insensitive). An empty allowed list means no restriction
// and yields no IDs. On fetch failure the previous successful result is
// returned so a flaky Prowlarr does not stall scanning.
func (c *IndexerCache) IDs(ctx context.Context, allowed []string) ([]int, error) {
	if len(allowed) == 0 {
		return nil, nil
	}

	key := cacheKey(allowed)
	if ids, ok := c.cache.Get(key); ok {
		return ids, nil
	}

	ids, err := c.fetch(ctx, allowed)
	if err != nil {
		c.mu.Lock()
		fallback := c.lastGood
		c.mu.Unlock()
		if fallback != nil {
			log.Warn().Err(err).Msg("indexer lookup failed, using cached IDs")
			return fallback, nil
		}
		return nil, err
	}

	c.cache.Set(key, ids, ttlcache.DefaultTTL)
	c.mu.Lock()
	c.lastGood = ids
	c.mu.Unlock()

	return ids, nil
}

// Refresh drops the cached entry for allowed and fetches a fresh set.
func (c *IndexerCache) Refresh(ctx context.Context, allowed []string) error {
	c.cache.Delete(cacheKey(allowed))
	_, err := c.IDs(ctx, allowed)
	return err
}

func (c *IndexerCache) fetch(ctx context.Context, allowed []string) ([]int, error) {
	indexers, err := c.client.GetIndexers(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]int, 0, len(allowed))
	for _, indexer := range indexers {
		name := strings.ToLower(indexer.Name)
		for _, a := range allowed {
			if a != "" && strings.Contains(name, a) {
				matched = append(matched, indexer.ID)
				log.Info().Str("indexer", indexer.Name).Int("id", indexer.ID).Msg("matched indexer")
				break
			}
		}
	}

	if len(matched) == 0 {
		log.Warn().Strs("allowed", allowed).Msg("no Prowlarr indexers matched allowed list")
	}

	return matched, nil
}

func cacheKey(allowed []string) string {
	lowered := make([]string, 0, len(allowed))
	for _, a := range allowed {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(a)))
	}
	return strings.Join(lowered, ",")
}
