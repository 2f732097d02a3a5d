// Package credit manages prepaid research credits: the short-TTL balance
// cache over the ledger's authoritative state, credit purchases, and the
// atomic consume step used by settlement.
package credit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds balance staleness without hammering the ledger on every
// balance check.
const DefaultTTL = 30 * time.Second

// BalanceCache is the pluggable cache backend. Entries are removed on
// Invalidate, never updated in place; the next Get re-fetches authoritative
// state.
type BalanceCache interface {
	// Get returns the cached balance and whether a live entry exists.
	Get(ctx context.Context, owner string) (int64, bool)

	// Set stores a freshly fetched balance.
	Set(ctx context.Context, owner string, balance int64)

	// Invalidate removes the entry unconditionally.
	Invalidate(ctx context.Context, owner string)
}

type memoryEntry struct {
	balance  int64
	cachedAt time.Time
}

// MemoryCache is the in-process cache backend.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *MemoryCache) Get(_ context.Context, owner string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[owner]
	if !ok {
		return 0, false
	}
	if c.now().Sub(e.cachedAt) >= c.ttl {
		delete(c.entries, owner)
		return 0, false
	}
	return e.balance, true
}

func (c *MemoryCache) Set(_ context.Context, owner string, balance int64) {
	c.mu.Lock()
	c.entries[owner] = memoryEntry{balance: balance, cachedAt: c.now()}
	c.mu.Unlock()
}

func (c *MemoryCache) Invalidate(_ context.Context, owner string) {
	c.mu.Lock()
	delete(c.entries, owner)
	c.mu.Unlock()
}

// RedisCache backs the balance cache with Redis so multiple backend
// instances share invalidations.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates a Redis-backed cache with the given TTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func balanceKey(owner string) string { return fmt.Sprintf("balance:%s", owner) }

func (c *RedisCache) Get(ctx context.Context, owner string) (int64, bool) {
	val, err := c.rdb.Get(ctx, balanceKey(owner)).Result()
	if err != nil {
		return 0, false
	}
	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

func (c *RedisCache) Set(ctx context.Context, owner string, balance int64) {
	c.rdb.Set(ctx, balanceKey(owner), strconv.FormatInt(balance, 10), c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, owner string) {
	c.rdb.Del(ctx, balanceKey(owner))
}
