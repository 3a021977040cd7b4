// Package discovery finds the best template candidates for an intent. It is
// cache-aware: Tier 1/2 first, then cold discovery over the curated library
// and the community catalogue, writing results back through the cache.
// Discovery never returns empty; the guaranteed fallback is the floor.
package discovery

import (
	"context"
	"log"
	"time"

	"github.com/weavekit/weaver/internal/cache"
	"github.com/weavekit/weaver/internal/catalogue"
	"github.com/weavekit/weaver/internal/intent"
	"github.com/weavekit/weaver/internal/metrics"
	"github.com/weavekit/weaver/internal/scoring"
	"github.com/weavekit/weaver/internal/template"
)

// maxResults caps how many ranked candidates a discovery call returns.
const maxResults = 5

// catalogueTimeout bounds the only slow external call in the pipeline.
const catalogueTimeout = 3 * time.Second

// Service performs cache-aware template discovery.
type Service struct {
	library   *template.Library
	cache     *cache.TemplateCache
	catalogue catalogue.Client // nil disables the community source
	scorer    *scoring.Scorer
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches the shared metric set. Each Discover call is counted
// by result (cache_hit, cold, fallback) with its duration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a discovery service. The cache may be nil for uncached
// operation (tests); the catalogue may be nil when no community source is
// configured.
func New(library *template.Library, c *cache.TemplateCache, cat catalogue.Client, scorer *scoring.Scorer, opts ...Option) *Service {
	if scorer == nil {
		scorer = scoring.NewScorer()
	}
	s := &Service{library: library, cache: c, catalogue: cat, scorer: scorer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover returns ranked matches for an intent, at least one. Cached
// results are served as-is; cold discovery scores the curated library plus
// best-effort community candidates, filters on the confidence threshold, and
// writes through the cache.
func (s *Service) Discover(ctx context.Context, it intent.Intent) []scoring.Match {
	start := time.Now()
	if s.cache != nil {
		if matches, ok := s.cache.Get(ctx, it.Raw); ok && len(matches) > 0 {
			s.record("cache_hit", start)
			return matches
		}
	}

	matches := s.discoverCold(ctx, it)
	if len(matches) > 0 && s.cache != nil {
		s.cache.Put(ctx, it.Raw, matches)
	}
	if len(matches) == 0 {
		// Reliability floor: scoring found nothing at all (empty library and
		// no catalogue). Serve the fallback rather than an empty result.
		fb := template.GuaranteedFallback()
		matches = []scoring.Match{{
			Template:   fb,
			Confidence: 0.95,
			Similarity: 0,
			Reason:     "guaranteed fallback",
		}}
		s.record("fallback", start)
		return matches
	}
	s.record("cold", start)
	return matches
}

func (s *Service) record(result string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordDiscovery(result, time.Since(start).Seconds())
	}
}

func (s *Service) discoverCold(ctx context.Context, it intent.Intent) []scoring.Match {
	candidates := s.library.Find(it.Keywords)

	if s.catalogue != nil {
		cctx, cancel := context.WithTimeout(ctx, catalogueTimeout)
		community, err := s.catalogue.Search(cctx, it.Keywords, maxResults)
		cancel()
		if err != nil {
			log.Printf("[Discovery] Community catalogue unavailable: %v", err)
		} else {
			candidates = append(candidates, community...)
		}
	}

	scored := make([]scoring.Match, 0, len(candidates))
	for _, t := range candidates {
		scored = append(scored, s.scorer.Score(it, t))
	}
	ranked := scoring.Rank(scored)

	// Keep candidates above the confidence bar; when none clear it, fall
	// back to the best available rather than returning empty.
	filtered := make([]scoring.Match, 0, len(ranked))
	for _, m := range ranked {
		if m.Confidence >= scoring.MinConfidence {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 && len(ranked) > 0 {
		filtered = ranked[:1]
	}
	if len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}
	return filtered
}
