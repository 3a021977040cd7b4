// Package cache implements the three-tier template cache: a bounded
// in-process map, a shared persistent store, and write-through from cold
// discovery. Store failures always degrade to a miss, never an abort.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"github.com/weavekit/weaver/internal/intent"
	"github.com/weavekit/weaver/internal/scoring"
)

// Tier labels for observability.
const (
	TierMemory = "memory"
	TierShared = "shared"
)

// TemplateCache coordinates Tier 1 (process memory) and Tier 2 (shared
// store). Tier 3, cold discovery, belongs to the discovery service; it calls
// Put to write through on success.
type TemplateCache struct {
	mem    *MemoryCache
	shared PersistentKeyValueStore // nil disables Tier 2
	onHit  func(tier string)
	onMiss func()
}

// Option configures a TemplateCache.
type Option func(*TemplateCache)

// WithSharedStore attaches the Tier-2 persistent store.
func WithSharedStore(store PersistentKeyValueStore) Option {
	return func(c *TemplateCache) { c.shared = store }
}

// WithObserver wires hit/miss callbacks, used for metrics.
func WithObserver(onHit func(tier string), onMiss func()) Option {
	return func(c *TemplateCache) {
		c.onHit = onHit
		c.onMiss = onMiss
	}
}

// New creates a TemplateCache with the given Tier-1 config.
func New(config Config, opts ...Option) *TemplateCache {
	c := &TemplateCache{mem: NewMemoryCache(config)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the cache key for raw intent text: extraction normalizes the
// text, so paraphrases with the same keyword set share a key.
func Key(text string) string {
	it := intent.Extract(text)
	joined := it.Category + "|" + strings.Join(it.Keywords, " ")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// Get looks up matches for the intent text: Tier 1 first, then Tier 2 with
// promotion into Tier 1 on hit. Any shared-store error is logged and treated
// as a miss.
func (c *TemplateCache) Get(ctx context.Context, text string) ([]scoring.Match, bool) {
	key := Key(text)

	if entry, ok := c.mem.Get(key); ok {
		c.hit(TierMemory)
		return toMatches(entry.Matches), true
	}

	if c.shared != nil {
		stored, ok, err := c.shared.Get(ctx, key)
		if err != nil {
			log.Printf("[Cache] Tier-2 lookup failed, treating as miss: %v", err)
		} else if ok {
			c.hit(TierShared)
			// Promote into Tier 1 under its own shorter TTL.
			c.mem.Set(key, stored, sourceOf(stored), 0)
			return toMatches(stored), true
		}
	}

	c.miss()
	return nil, false
}

// Put writes discovery results through both tiers. The Tier-2 TTL follows
// the dominant source of the matches; Tier-1 always uses its own TTL.
func (c *TemplateCache) Put(ctx context.Context, text string, matches []scoring.Match) {
	if len(matches) == 0 {
		return
	}
	key := Key(text)
	stored := toStored(text, matches)

	c.mem.Set(key, stored, sourceOf(stored), 0)

	if c.shared != nil {
		ttl := TTLForSource(matches[0].Template.Source)
		if err := c.shared.Upsert(ctx, key, stored, ttl); err != nil {
			log.Printf("[Cache] Tier-2 write failed: %v", err)
		}
	}
}

// Invalidate drops the entry for an intent from both tiers.
func (c *TemplateCache) Invalidate(ctx context.Context, text string) {
	key := Key(text)
	c.mem.Delete(key)
	if c.shared != nil {
		if err := c.shared.Delete(ctx, key); err != nil {
			log.Printf("[Cache] Tier-2 delete failed: %v", err)
		}
	}
}

// Stats returns Tier-1 statistics.
func (c *TemplateCache) Stats() Stats {
	return c.mem.GetStats()
}

// Cleanup sweeps expired Tier-1 entries.
func (c *TemplateCache) Cleanup() int {
	return c.mem.Cleanup()
}

// Close stops background work.
func (c *TemplateCache) Close() {
	c.mem.Close()
}

func (c *TemplateCache) hit(tier string) {
	if c.onHit != nil {
		c.onHit(tier)
	}
}

func (c *TemplateCache) miss() {
	if c.onMiss != nil {
		c.onMiss()
	}
}

func toStored(text string, matches []scoring.Match) []StoredMatch {
	now := time.Now()
	out := make([]StoredMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, StoredMatch{
			TemplateID: m.Template.ID,
			UserIntent: text,
			Template:   m.Template,
			Confidence: m.Confidence,
			Source:     string(m.Template.Source),
			Keywords:   m.Template.Keywords,
			LastUsed:   now,
		})
	}
	return out
}

func toMatches(stored []StoredMatch) []scoring.Match {
	out := make([]scoring.Match, 0, len(stored))
	for _, s := range stored {
		if s.Template == nil {
			continue
		}
		out = append(out, scoring.Match{
			Template:   s.Template,
			Confidence: s.Confidence,
			Reason:     "cache hit",
		})
	}
	return scoring.Rank(out)
}

func sourceOf(stored []StoredMatch) string {
	if len(stored) == 0 {
		return ""
	}
	return stored[0].Source
}
