package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores completions keyed by prompt so repeated turns skip the
// provider round trip. Redis is the shared tier when an address is
// configured; a bounded in-process map always backs it so a missing or
// unreachable Redis degrades to local-only caching rather than failing.
type Cache struct {
	rdb      *redis.Client
	ttl      time.Duration
	log      *zap.Logger
	mu       sync.RWMutex
	local    map[string]*cacheEntry
	maxLocal int
}

type cacheEntry struct {
	value     string
	createdAt time.Time
	expiresAt time.Time
}

// CacheOptions configures a completion cache.
type CacheOptions struct {
	RedisAddr string // empty disables the Redis tier
	RedisDB   int
	TTL       time.Duration
	MaxLocal  int
	Logger    *zap.Logger
}

// NewCache builds a cache. Redis connectivity is probed once; on failure
// the Redis tier is dropped and the cache runs in-process only.
func NewCache(ctx context.Context, opts CacheOptions) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxLocal <= 0 {
		opts.MaxLocal = 512
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Cache{
		ttl:      opts.TTL,
		log:      opts.Logger,
		local:    make(map[string]*cacheEntry),
		maxLocal: opts.MaxLocal,
	}

	if opts.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
			DB:   opts.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			opts.Logger.Warn("redis unreachable, caching in-process only",
				zap.String("addr", opts.RedisAddr), zap.Error(err))
			rdb.Close()
		} else {
			c.rdb = rdb
		}
	}

	return c
}

// Get returns the cached completion for key, if present and fresh.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.local[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, true
	}

	if c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, "parley:completion:"+key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("redis get failed", zap.Error(err))
		}
		return "", false
	}
	c.setLocal(key, val)
	return val, true
}

// Set stores a completion under key in both tiers.
func (c *Cache) Set(ctx context.Context, key, value string) {
	c.setLocal(key, value)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, "parley:completion:"+key, value, c.ttl).Err(); err != nil {
		c.log.Debug("redis set failed", zap.Error(err))
	}
}

// Size returns the number of in-process entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.local)
}

// Close releases the Redis connection, if any.
func (c *Cache) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

func (c *Cache) setLocal(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.local) >= c.maxLocal {
		c.evictOldest()
	}
	now := time.Now()
	c.local[key] = &cacheEntry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

// evictOldest removes the oldest entry (by creation time). Caller holds mu.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.local {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.local, oldestKey)
	}
}

// CachedClient wraps a Client with a completion cache.
type CachedClient struct {
	inner Client
	cache *Cache
}

// WithCache returns inner wrapped with cache. A nil cache returns inner
// unchanged.
func WithCache(inner Client, cache *Cache) Client {
	if cache == nil {
		return inner
	}
	return &CachedClient{inner: inner, cache: cache}
}

// Complete returns a cached completion when available.
func (c *CachedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem returns a cached completion when available.
func (c *CachedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	key := cacheKey(modelOf(c.inner), systemPrompt, userPrompt)
	if val, ok := c.cache.Get(ctx, key); ok {
		return val, nil
	}
	out, err := c.inner.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	c.cache.Set(ctx, key, out)
	return out, nil
}

func modelOf(c Client) string {
	if m, ok := c.(interface{ GetModel() string }); ok {
		return m.GetModel()
	}
	return ""
}

// cacheKey hashes the request so keys stay bounded regardless of prompt
// size.
func cacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
