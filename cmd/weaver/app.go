package main

import (
	"fmt"
	"log"

	"github.com/weavekit/weaver/internal/autofix"
	"github.com/weavekit/weaver/internal/cache"
	"github.com/weavekit/weaver/internal/catalogue"
	"github.com/weavekit/weaver/internal/config"
	"github.com/weavekit/weaver/internal/discovery"
	"github.com/weavekit/weaver/internal/engine"
	"github.com/weavekit/weaver/internal/feasibility"
	"github.com/weavekit/weaver/internal/feedback"
	"github.com/weavekit/weaver/internal/llm"
	"github.com/weavekit/weaver/internal/metrics"
	"github.com/weavekit/weaver/internal/orchestrator"
	"github.com/weavekit/weaver/internal/scoring"
	"github.com/weavekit/weaver/internal/store"
	"github.com/weavekit/weaver/internal/template"
)

// app holds the assembled pipeline and the resources it owns.
type app struct {
	cfg          *config.Config
	library      *template.Library
	cache        *cache.TemplateCache
	checker      *feasibility.Checker
	orchestrator *orchestrator.Orchestrator
	loop         *feedback.Loop
	metrics      *metrics.Metrics
	store        *store.Store
	engine       engine.WorkflowEngineClient

	closers []func()
}

// buildApp wires the pipeline from configuration. Optional backends
// (Redis, Postgres, catalogue, LLM, engine) are skipped when unconfigured.
func buildApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.NewMetrics()}

	a.library = template.NewLibrary(template.WithSuccessAlpha(cfg.Library.SuccessAlpha))
	if cfg.Library.TemplateDir != "" {
		n, err := a.library.LoadTemplateDir(cfg.Library.TemplateDir)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to load template dir: %w", err)
		}
		log.Printf("[App] Loaded %d templates from %s", n, cfg.Library.TemplateDir)
	}

	cacheOpts := []cache.Option{
		cache.WithObserver(a.metrics.RecordCacheHit, a.metrics.RecordCacheMiss),
	}
	if cfg.Redis.Addr != "" {
		rs, err := cache.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { rs.Close() })
		cacheOpts = append(cacheOpts, cache.WithSharedStore(rs))
	}
	a.cache = cache.New(cache.Config{
		MaxSize:       cfg.Cache.MaxSize,
		TTL:           cfg.Cache.TTL,
		CleanupPeriod: cfg.Cache.CleanupPeriod,
	}, cacheOpts...)
	a.closers = append(a.closers, a.cache.Close)

	var cat catalogue.Client
	if cfg.Catalogue.BaseURL != "" {
		cat = catalogue.NewHTTPClient(catalogue.Config{
			BaseURL: cfg.Catalogue.BaseURL,
			Timeout: cfg.Catalogue.Timeout,
			Limit:   cfg.Catalogue.Limit,
		})
	}

	disc := discovery.New(a.library, a.cache, cat, scoring.NewScorer(), discovery.WithMetrics(a.metrics))
	a.checker = feasibility.NewChecker()
	fix := autofix.NewEngine()

	orch, err := orchestrator.New(disc, a.checker, fix, a.metrics)
	if err != nil {
		a.close()
		return nil, err
	}
	a.orchestrator = orch

	loopOpts := []feedback.LoopOption{feedback.WithMetrics(a.metrics)}
	if cfg.Database.DSN != "" {
		st, err := store.Open(cfg.Database.DSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.store = st
		a.closers = append(a.closers, func() { st.Close() })
		a.restoreStats()
		loopOpts = append(loopOpts, feedback.WithPatternStore(st))
	}
	if cfg.LLM.Enabled {
		svc, err := llm.NewAnthropicService(llm.Config{
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		})
		if err != nil {
			log.Printf("[App] LLM repair disabled: %v", err)
		} else {
			loopOpts = append(loopOpts, feedback.WithLanguageModel(svc))
		}
	}
	a.loop = feedback.NewLoop(fix, a.checker, a.library, loopOpts...)

	if cfg.Engine.BaseURL != "" {
		a.engine = engine.NewHTTPClient(engine.Config{
			BaseURL: cfg.Engine.BaseURL,
			APIKey:  cfg.Engine.APIKey,
			Timeout: cfg.Engine.Timeout,
		})
	}

	return a, nil
}

// restoreStats replays persisted success rates and usage counts into the
// in-memory library.
func (a *app) restoreStats() {
	stats, err := a.store.LoadTemplateStats()
	if err != nil {
		log.Printf("[App] Failed to load template stats: %v", err)
		return
	}
	for _, s := range stats {
		a.library.RestoreStats(s.TemplateID, s.SuccessRate, s.UsageCount, s.LastUsed)
	}
	if len(stats) > 0 {
		log.Printf("[App] Restored stats for %d templates", len(stats))
	}
}

// persistStats flushes current library stats to the database, if attached.
func (a *app) persistStats() {
	if a.store == nil {
		return
	}
	for _, t := range a.library.All() {
		err := a.store.SaveTemplateStats(store.TemplateStats{
			TemplateID:  t.ID,
			SuccessRate: t.SuccessRate,
			UsageCount:  t.UsageCount,
			LastUsed:    t.LastUsed,
		})
		if err != nil {
			log.Printf("[App] Failed to persist stats for %s: %v", t.ID, err)
		}
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
