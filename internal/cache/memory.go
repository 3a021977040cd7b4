package cache

import (
	"sync"
	"time"
)

// Entry is one Tier-1 cache row: the scored matches for a normalized intent.
type Entry struct {
	Key       string         `json:"key"`
	Matches   []StoredMatch  `json:"matches"`
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	HitCount  int64          `json:"hit_count"`
	LastUsed  time.Time      `json:"last_used"`
}

// Config defines Tier-1 cache behavior.
type Config struct {
	MaxSize       int           `json:"max_size" yaml:"max_size"`
	TTL           time.Duration `json:"ttl" yaml:"ttl"`
	CleanupPeriod time.Duration `json:"cleanup_period" yaml:"cleanup_period"`
}

// DefaultConfig returns the Tier-1 defaults: 100 entries, 15 minute TTL.
func DefaultConfig() Config {
	return Config{
		MaxSize:       100,
		TTL:           15 * time.Minute,
		CleanupPeriod: 5 * time.Minute,
	}
}

// Stats tracks cache performance.
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Evictions    int64   `json:"evictions"`
	TotalEntries int64   `json:"total_entries"`
	HitRate      float64 `json:"hit_rate"`
}

// MemoryCache is the bounded in-process tier. Eviction is LRU by last use;
// expired entries are dropped on read and swept by a background loop.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	config  Config
	stats   Stats
	done    chan struct{}
}

// NewMemoryCache creates a Tier-1 cache and starts its cleanup loop.
func NewMemoryCache(config Config) *MemoryCache {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultConfig().MaxSize
	}
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}

	c := &MemoryCache{
		entries: make(map[string]*Entry),
		config:  config,
		done:    make(chan struct{}),
	}
	if config.CleanupPeriod > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get returns the entry for a key if present and unexpired. Expired entries
// are removed on the spot and reported as misses.
func (c *MemoryCache) Get(key string) (*Entry, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.recordMiss()
		return nil, false
	}

	c.mu.Lock()
	entry.HitCount++
	entry.LastUsed = time.Now()
	c.stats.Hits++
	copied := *entry
	c.mu.Unlock()
	return &copied, true
}

// Set stores matches for a key, evicting the least recently used entry when
// the cache is full.
func (c *MemoryCache) Set(key string, matches []StoredMatch, source string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.TTL
	}
	now := time.Now()
	entry := &Entry{
		Key:       key,
		Matches:   matches,
		Source:    source,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		LastUsed:  now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxSize {
		c.evictLRU()
	}
	c.entries[key] = entry
}

// Delete removes a key.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// GetStats returns a snapshot of cache statistics.
func (c *MemoryCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.TotalEntries = int64(len(c.entries))
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Cleanup removes expired entries and returns how many were purged.
func (c *MemoryCache) Cleanup() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	purged := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			purged++
		}
	}
	return purged
}

// Close stops the cleanup loop.
func (c *MemoryCache) Close() {
	close(c.done)
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.done:
			return
		}
	}
}

// evictLRU removes the least recently used entry. Caller holds the lock.
func (c *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.LastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastUsed
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

func (c *MemoryCache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}
