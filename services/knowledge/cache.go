package knowledge

import (
	"container/list"
	"sync"
	"time"

	"github.com/upb/character-chat/internal/rag"
)

// cacheEntry represents a single resolved collection with its insertion time
type cacheEntry struct {
	shortName  string
	collection rag.Collection
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(e.insertedAt) > ttl
}

// CollectionCache is an in-memory LRU cache with TTL for resolved collections,
// keyed by character short name. Only positive resolutions are stored so a
// collection created after a miss becomes visible on the next request.
// Thread-safe implementation using sync.RWMutex
type CollectionCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
}

// NewCollectionCache creates a new CollectionCache with specified max size and TTL.
// A ttl of zero keeps entries until they are evicted.
func NewCollectionCache(maxSize int, ttl time.Duration) *CollectionCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &CollectionCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached collection for a short name
func (c *CollectionCache) Get(shortName string) (rag.Collection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[shortName]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(shortName)
		}
		return rag.Collection{}, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return entry.collection, true
}

// Set stores a resolved collection
func (c *CollectionCache) Set(shortName string, collection rag.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[shortName]; exists {
		entry.collection = collection
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		shortName:  shortName,
		collection: collection,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(shortName)
	c.entries[shortName] = entry
}

// Invalidate removes a specific cache entry
func (c *CollectionCache) Invalidate(shortName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(shortName)
}

// Clear removes all entries from the cache
func (c *CollectionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns cache statistics
func (c *CollectionCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// must be called with lock held
func (c *CollectionCache) removeEntry(shortName string) {
	if entry, exists := c.entries[shortName]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, shortName)
	}
}

// must be called with lock held
func (c *CollectionCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	shortName := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, shortName)
}

// CleanupExpired removes all expired entries and returns how many were dropped
func (c *CollectionCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := make([]string, 0)
	for shortName, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			expired = append(expired, shortName)
		}
	}
	for _, shortName := range expired {
		c.removeEntry(shortName)
	}
	return len(expired)
}

// StartCleanupWorker periodically drops expired entries until stopCh is closed
func (c *CollectionCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
