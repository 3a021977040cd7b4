package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weavekit/weaver/internal/template"
)

// StoredMatch is the serialized shape of a scored template match as held in
// the shared store: one row per (cache-key, template-id).
type StoredMatch struct {
	TemplateID string             `json:"template_id"`
	UserIntent string             `json:"user_intent"`
	Template   *template.Template `json:"template_data"`
	Confidence float64            `json:"confidence"`
	Source     string             `json:"source"`
	Keywords   []string           `json:"keywords"`
	ExpiresAt  time.Time          `json:"expires_at"`
	HitCount   int64              `json:"hit_count"`
	LastUsed   time.Time          `json:"last_used"`
}

// PersistentKeyValueStore backs the shared Tier-2 cache. Upserts are
// idempotent per (key, template-id) so concurrent writers for the same
// intent tolerate each other; last writer wins.
type PersistentKeyValueStore interface {
	Get(ctx context.Context, key string) ([]StoredMatch, bool, error)
	Upsert(ctx context.Context, key string, matches []StoredMatch, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteAll(ctx context.Context) error
}

// RedisStore implements PersistentKeyValueStore on Redis. Each cache key is
// a hash whose fields are template IDs, giving per-template idempotent
// upserts, with a key-level TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("[Cache] Connected Tier-2 store at %s", addr)
	return &RedisStore{client: client, prefix: "weaver:tmpl:"}, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get loads all stored matches for a key. Corrupt fields are skipped, never
// fatal: a damaged row degrades to a smaller result or a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]StoredMatch, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	now := time.Now()
	matches := make([]StoredMatch, 0, len(fields))
	for field, raw := range fields {
		var m StoredMatch
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			log.Printf("[Cache] Dropping corrupt entry %s/%s: %v", key, field, err)
			continue
		}
		if !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt) {
			continue
		}
		matches = append(matches, m)
	}
	if len(matches) == 0 {
		return nil, false, nil
	}

	// Best-effort hit accounting; approximate loss under concurrency is fine.
	s.client.HIncrBy(ctx, s.prefix+key+":hits", "total", 1)
	return matches, true, nil
}

// Upsert writes each match under its template-id field and refreshes the
// key TTL. Re-running the same upsert is a no-op beyond timestamp refresh.
func (s *RedisStore) Upsert(ctx context.Context, key string, matches []StoredMatch, ttl time.Duration) error {
	if len(matches) == 0 {
		return nil
	}
	fullKey := s.prefix + key

	values := make(map[string]any, len(matches))
	for i := range matches {
		m := matches[i]
		m.ExpiresAt = time.Now().Add(ttl)
		m.LastUsed = time.Now()
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal cache entry: %w", err)
		}
		values[m.TemplateID] = data
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, fullKey, values)
	pipe.Expire(ctx, fullKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert cache key: %w", err)
	}
	return nil
}

// Delete removes one cache key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key, s.prefix+key+":hits").Err(); err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}
	return nil
}

// DeleteAll removes every cache key under the weaver prefix.
func (s *RedisStore) DeleteAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return nil
}

// TTLForSource returns the Tier-2 retention for a template source. Curated
// results outlive community ones; generated results are ephemeral.
func TTLForSource(source template.Source) time.Duration {
	switch source {
	case template.SourceCurated:
		return 7 * 24 * time.Hour
	case template.SourceCommunity:
		return 24 * time.Hour
	default:
		return 15 * time.Minute
	}
}
