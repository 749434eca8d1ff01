package matcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/internal/searchindex"
	"github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/metrics"
)

const keyPrefix = "match:"

// KV is the key/value store behind the cache. *redis.Client satisfies it.
type KV interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache memoizes match results. Cache failures never fail a lookup; they are
// logged and the query goes to the index.
type Cache struct {
	kv      KV
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewCache(kv KV, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		kv:      kv,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "match-cache"),
	}
}

func (c *Cache) get(ctx context.Context, key string) ([]string, bool) {
	data, found, err := c.kv.Lookup(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if err != nil || !found {
		c.misses.Add(1)
		c.metrics.CacheMiss()
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		c.metrics.CacheMiss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	return ids, true
}

func (c *Cache) set(ctx context.Context, key string, ids []string) {
	data, err := json.Marshal(ids)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached ids for q, or runs compute once per key
// across concurrent callers and stores its result. The bool reports a cache
// hit.
func (c *Cache) GetOrCompute(ctx context.Context, q searchindex.Query, compute func() ([]string, error)) ([]string, bool, error) {
	key := buildKey(q)
	if ids, ok := c.get(ctx, key); ok {
		return ids, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		ids, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, ids)
		return ids, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]string), false, nil
}

// Invalidate drops every cached match, e.g. after new terms were indexed.
func (c *Cache) Invalidate(ctx context.Context) error {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating match cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the query. The value is kept verbatim since exact matching
// is case-sensitive; the ontology list is order-insensitive.
func buildKey(q searchindex.Query) string {
	onts := append([]string(nil), q.Ontologies...)
	sort.Strings(onts)
	raw := fmt.Sprintf("%s|%d|%s|%s", q.Mode, q.Size, strings.Join(onts, ","), q.Value)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
