// Package cache is a Redis-backed verdict cache for the classification
// service. The engine already memoizes pairs in-process; this layer shares
// verdicts across instances and restarts.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hipc-validation/virus-strain-validator/internal/engine"
	"github.com/hipc-validation/virus-strain-validator/pkg/config"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
	"github.com/hipc-validation/virus-strain-validator/pkg/metrics"
	pkgredis "github.com/hipc-validation/virus-strain-validator/pkg/redis"
)

const keyPrefix = "verdict:"

// VerdictCache caches PairVerdicts in Redis, collapsing concurrent
// computations of the same pair.
type VerdictCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a VerdictCache over the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *VerdictCache {
	return &VerdictCache{
		client: client,
		cfg:    cfg,
		logger: logger.WithComponent("verdict-cache"),
	}
}

// WithMetrics attaches prometheus counters for cache hits and misses.
func (c *VerdictCache) WithMetrics(m *metrics.Metrics) *VerdictCache {
	c.metrics = m
	return c
}

func (c *VerdictCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.VerdictCacheHits.Inc()
	}
}

func (c *VerdictCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.VerdictCacheMisses.Inc()
	}
}

// Get returns the cached pair verdict, if present.
func (c *VerdictCache) Get(ctx context.Context, reported, preferred string) (*engine.PairVerdict, bool) {
	key := c.buildKey(reported, preferred)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var pair engine.PairVerdict
	if err := json.Unmarshal([]byte(data), &pair); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return &pair, true
}

// Set stores a pair verdict with the configured TTL.
func (c *VerdictCache) Set(ctx context.Context, reported, preferred string, pair *engine.PairVerdict) {
	key := c.buildKey(reported, preferred)
	data, err := json.Marshal(pair)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached pair or computes and stores it. The
// second return reports whether the value came from cache.
func (c *VerdictCache) GetOrCompute(
	ctx context.Context,
	reported, preferred string,
	computeFn func() (*engine.PairVerdict, error),
) (*engine.PairVerdict, bool, error) {
	if pair, ok := c.Get(ctx, reported, preferred); ok {
		return pair, true, nil
	}
	key := c.buildKey(reported, preferred)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if pair, ok := c.Get(ctx, reported, preferred); ok {
			return pair, nil
		}
		pair, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, reported, preferred, pair)
		return pair, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*engine.PairVerdict), false, nil
}

// Invalidate removes every cached verdict.
func (c *VerdictCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating verdict cache: %w", err)
	}
	c.logger.Info("verdict cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters.
func (c *VerdictCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *VerdictCache) buildKey(reported, preferred string) string {
	hash := sha256.Sum256([]byte(reported + "\x00" + preferred))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
