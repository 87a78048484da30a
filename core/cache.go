package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a read-through layer in front of session storage, keyed by
// token hash. Implementations must be safe for concurrent use.
type Cache interface {
	Get(tokenHash string) (*Session, error)
	Set(tokenHash string, session *Session) error
	Delete(tokenHash string) error
	Clear() error
}

// CacheWithStats extends Cache with statistics tracking
type CacheWithStats interface {
	Cache
	Stats() CacheStats
}

// CacheConfig configures cache behavior
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats are simple counters for cache behavior.
// These are intended for diagnostics and monitoring.
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// InMemoryCache bounds entries by count and age. Entries live at most TTL
// regardless of session expiry; storage stays the source of truth.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry // key: token hash
	ttl     time.Duration
	maxSize int

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
}

type cacheEntry struct {
	session  *Session
	cachedAt time.Time
}

func NewInMemoryCache(c CacheConfig) *InMemoryCache {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxSize == 0 {
		c.MaxSize = 500
	}

	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
	}
}

func (c *InMemoryCache) Get(tokenHash string) (*Session, error) {
	c.mu.RLock()
	entry, exists := c.entries[tokenHash]
	c.mu.RUnlock()

	if !exists {
		c.misses.Add(1)
		return nil, ErrCacheNotFound
	}

	if time.Since(entry.cachedAt) > c.ttl {
		c.misses.Add(1)
		if err := c.Delete(tokenHash); err != nil {
			return nil, err
		}
		return nil, ErrCacheNotFound
	}

	c.hits.Add(1)

	// Callers get their own copy. Handing out the stored pointer would let
	// concurrent requests for the same token race on the session fields.
	session := *entry.session
	return &session, nil
}

func (c *InMemoryCache) Set(tokenHash string, session *Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict an arbitrary entry when full; correctness never depends on
	// which entry goes, only on the bound holding.
	if len(c.entries) >= c.maxSize {
		for k := range c.entries {
			delete(c.entries, k)
			c.evictions.Add(1)
			break
		}
	}

	// Store a copy for the same reason Get returns one: cache entries must
	// not alias session structs held by in-flight requests.
	copied := *session
	c.entries[tokenHash] = cacheEntry{
		session:  &copied,
		cachedAt: time.Now(),
	}

	c.sets.Add(1)
	return nil
}

func (c *InMemoryCache) Delete(tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.entries[tokenHash]; existed {
		delete(c.entries, tokenHash)
		c.deletes.Add(1)
	}
	return nil
}

func (c *InMemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	return nil
}

func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
