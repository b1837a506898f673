// Package rediscache shares ranked search results between server replicas
// through Redis. Concurrent misses for the same query collapse into one
// search.
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordindex/pkg/metrics"
)

const keyPrefix = "wordindex:search:"

// Store is the byte store behind the cache. *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Cache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *Cache {
	if m == nil {
		m = metrics.Discard()
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("result-cache"),
	}
}

// Get returns the cached results for a canonical query key. Store and decode
// failures are logged and count as misses.
func (c *Cache) Get(ctx context.Context, query string, partial bool) ([]index.SearchResult, bool) {
	key := buildKey(query, partial)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if !ok {
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	var results []index.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache decode failed", "key", key, "error", err)
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	c.metrics.CacheHitsTotal.Inc()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return results, true
}

func (c *Cache) Set(ctx context.Context, query string, partial bool, results []index.SearchResult) {
	key := buildKey(query, partial)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results or runs compute once per key across
// concurrent callers and stores its answer. The boolean reports a cache hit.
func (c *Cache) GetOrCompute(ctx context.Context, query string, partial bool, compute func() []index.SearchResult) ([]index.SearchResult, bool) {
	if results, ok := c.Get(ctx, query, partial); ok {
		return results, true
	}
	val, _, _ := c.group.Do(buildKey(query, partial), func() (any, error) {
		results := compute()
		c.Set(ctx, query, partial, results)
		return results, nil
	})
	shared := val.([]index.SearchResult)
	return append([]index.SearchResult{}, shared...), false
}

// Invalidate drops every cached result. Call it after the index grows.
func (c *Cache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating result cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func buildKey(query string, partial bool) string {
	mode := "exact"
	if partial {
		mode = "partial"
	}
	hash := sha256.Sum256([]byte(mode + "|" + query))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
