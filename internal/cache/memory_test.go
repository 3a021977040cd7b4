package cache

import (
	"fmt"
	"testing"
	"time"
)

func storedFor(id string) []StoredMatch {
	return []StoredMatch{{TemplateID: id, Confidence: 0.8, Source: "curated"}}
}

func TestMemoryCacheBasicOperations(t *testing.T) {
	c := NewMemoryCache(DefaultConfig())
	defer c.Close()

	c.Set("key-1", storedFor("tpl-1"), "curated", 0)

	entry, found := c.Get("key-1")
	if !found {
		t.Fatal("Expected cache hit, got miss")
	}
	if len(entry.Matches) != 1 || entry.Matches[0].TemplateID != "tpl-1" {
		t.Errorf("Unexpected matches: %+v", entry.Matches)
	}
	if entry.HitCount != 1 {
		t.Errorf("HitCount = %d, want 1", entry.HitCount)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(DefaultConfig())
	defer c.Close()

	if _, found := c.Get("absent"); found {
		t.Error("Expected miss for absent key")
	}
	stats := c.GetStats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestMemoryCacheExpiration(t *testing.T) {
	c := NewMemoryCache(Config{MaxSize: 10, TTL: time.Minute})
	defer c.Close()

	c.Set("expire", storedFor("tpl-1"), "curated", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, found := c.Get("expire"); found {
		t.Error("Expected expired entry to miss")
	}
	stats := c.GetStats()
	if stats.TotalEntries != 0 {
		t.Errorf("Expired entry should be removed on read, have %d entries", stats.TotalEntries)
	}
}

func TestMemoryCacheCleanupPurges(t *testing.T) {
	c := NewMemoryCache(Config{MaxSize: 10, TTL: time.Minute})
	defer c.Close()

	c.Set("short-1", storedFor("a"), "curated", time.Millisecond)
	c.Set("short-2", storedFor("b"), "curated", time.Millisecond)
	c.Set("long", storedFor("c"), "curated", time.Hour)
	time.Sleep(5 * time.Millisecond)

	if purged := c.Cleanup(); purged != 2 {
		t.Errorf("Cleanup purged %d, want 2", purged)
	}
	if _, found := c.Get("long"); !found {
		t.Error("Unexpired entry should survive cleanup")
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	c := NewMemoryCache(Config{MaxSize: 3, TTL: time.Hour})
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("key-%d", i), storedFor("t"), "curated", 0)
	}
	// Touch key-0 and key-2 so key-1 is the LRU victim.
	time.Sleep(time.Millisecond)
	c.Get("key-0")
	c.Get("key-2")

	c.Set("key-3", storedFor("t"), "curated", 0)

	if _, found := c.Get("key-1"); found {
		t.Error("Expected LRU entry key-1 to be evicted")
	}
	if _, found := c.Get("key-0"); !found {
		t.Error("Recently used key-0 should survive eviction")
	}
	if c.GetStats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.GetStats().Evictions)
	}
}

func TestMemoryCacheHitRate(t *testing.T) {
	c := NewMemoryCache(DefaultConfig())
	defer c.Close()

	c.Set("k", storedFor("t"), "curated", 0)
	c.Get("k")
	c.Get("k")
	c.Get("absent")
	c.Get("absent")

	stats := c.GetStats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Fatalf("Hits/Misses = %d/%d, want 2/2", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %f, want 0.5", stats.HitRate)
	}
}
