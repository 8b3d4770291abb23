// Package cache memoizes ranked search results in Redis. Keys embed a
// per-process boot id and the index generation, so a rebuild or a restart
// makes every earlier entry unreachable even before Invalidate removes it.
package cache

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docrank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	bootID  string
	isMiss  func(error) bool
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over store. Entries expire after ttl. When breaker is
// non-nil, store calls are skipped while it is open and searches go straight
// to the engine.
func New(store Store, ttl time.Duration, breaker *resilience.CircuitBreaker) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		bootID:  newBootID(),
		isMiss:  pkgredis.IsNilError,
		breaker: breaker,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// newBootID returns a random id that separates this process's keys from
// those of an earlier process whose generation counter started at the same
// value.
func newBootID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%08x", uint32(time.Now().UnixNano()))
	}
	return hex.EncodeToString(b)
}

func (c *QueryCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

// Get returns the cached results for (generation, query, topK).
func (c *QueryCache) Get(ctx context.Context, generation uint64, query string, topK int) ([]ranker.ScoredDoc, bool) {
	key := c.key(generation, query, topK)
	var data []byte
	err := c.guard(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if c.isMiss(err) {
			return nil
		}
		return err
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if err != nil || data == nil {
		c.misses.Add(1)
		return nil, false
	}
	var results []ranker.ScoredDoc
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, generation uint64, query string, topK int, results []ranker.ScoredDoc) {
	key := c.key(generation, query, topK)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.guard(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves from the cache or runs compute once per key across
// concurrent callers. The bool reports whether the result came from the cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation uint64,
	query string,
	topK int,
	compute func() ([]ranker.ScoredDoc, error),
) ([]ranker.ScoredDoc, bool, error) {
	if results, ok := c.Get(ctx, generation, query, topK); ok {
		return results, true, nil
	}
	key := c.key(generation, query, topK)
	val, err, _ := c.group.Do(key, func() (any, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, generation, query, topK, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.ScoredDoc), false, nil
}

// Invalidate removes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) key(generation uint64, query string, topK int) string {
	return BuildKey(c.bootID, generation, query, topK)
}

// BuildKey hashes the normalized query so arbitrary user input never reaches
// the key space verbatim.
func BuildKey(bootID string, generation uint64, query string, topK int) string {
	raw := fmt.Sprintf("%s|k=%d", NormalizeQuery(query), topK)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:g%d:%x", keyPrefix, bootID, generation, sum[:16])
}

// NormalizeQuery reduces query to its sorted token multiset, the only part of
// a query that affects scoring. Repeated tokens are kept since query term
// frequency scales the score.
func NormalizeQuery(query string) string {
	tokens := tokenizer.Tokenize(query)
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}
