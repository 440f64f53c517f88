// Package cache keeps recent search results in Redis. Keys include the
// snapshot build id, so results computed against an older index are never
// served after a reload.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			c.logger.Warn("cache circuit changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Get looks up a cached result. Redis errors, including an open circuit,
// count as misses.
func (c *QueryCache) Get(ctx context.Context, buildID, query string, topK int) (*executor.SearchResult, bool) {
	key := buildKey(buildID, query, topK)
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
	}
	if err != nil || data == "" {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.ObserveCache(true)
	c.logger.Debug("cache hit", "query", query, "key", key)
	result.Query = query
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, result *executor.SearchResult) {
	key := buildKey(result.BuildID, result.Query, result.TopK)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute, collapsing
// concurrent misses for the same key into a single computation. The shared
// computation gets a context detached from the cancellation of whichever
// caller started it. Errors are not cached. The boolean reports a cache hit.
// Every returned result carries the caller's own raw query.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	buildID, query string,
	topK int,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, buildID, query, topK); ok {
		return result, true, nil
	}
	key := buildKey(buildID, query, topK)
	val, err, shared := c.group.Do(key, func() (interface{}, error) {
		detached := context.WithoutCancel(ctx)
		result, err := compute(detached)
		if err != nil {
			return nil, err
		}
		c.Set(detached, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	result := val.(*executor.SearchResult)
	if shared {
		own := *result
		own.Query = query
		result = &own
	}
	return result, false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// CircuitState reports the state of the breaker guarding Redis.
func (c *QueryCache) CircuitState() string {
	return c.breaker.GetState().String()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.ObserveCache(false)
}

// buildKey hashes the lowercased, whitespace-normalised query. Token order
// is kept because it shows up in the cached result.
func buildKey(buildID, query string, topK int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	raw := fmt.Sprintf("%s|%s|k=%d", buildID, normalized, topK)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
