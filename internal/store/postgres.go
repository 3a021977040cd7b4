// Package store persists the pipeline's evolving state, template
// reliability statistics and error patterns, in PostgreSQL. The store is
// optional: a nil *Store degrades every caller to in-memory operation.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/weavekit/weaver/internal/feedback"
)

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func rebind(query string) string {
	n := 1
	out := strings.Builder{}
	for _, ch := range query {
		if ch == '?' {
			out.WriteString(fmt.Sprintf("$%d", n))
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

// Store wraps the PostgreSQL connection.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and initializes the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	-- Evolving reliability statistics per template
	CREATE TABLE IF NOT EXISTS template_stats (
		template_id TEXT PRIMARY KEY,
		success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		usage_count INTEGER NOT NULL DEFAULT 0,
		last_used TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Normalized deployment-failure patterns
	CREATE TABLE IF NOT EXISTS error_patterns (
		signature TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 0,
		autofix_available BOOLEAN NOT NULL DEFAULT FALSE,
		fix_strategy TEXT,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_error_patterns_category ON error_patterns(category);
	CREATE INDEX IF NOT EXISTS idx_error_patterns_last_seen ON error_patterns(last_seen DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// TemplateStats is one persisted statistics row.
type TemplateStats struct {
	TemplateID  string
	SuccessRate float64
	UsageCount  int
	LastUsed    time.Time
}

// SaveTemplateStats upserts a template's statistics. Last writer wins.
func (s *Store) SaveTemplateStats(stats TemplateStats) error {
	_, err := s.db.Exec(rebind(`
		INSERT INTO template_stats (template_id, success_rate, usage_count, last_used, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (template_id) DO UPDATE SET
			success_rate = EXCLUDED.success_rate,
			usage_count = EXCLUDED.usage_count,
			last_used = EXCLUDED.last_used,
			updated_at = CURRENT_TIMESTAMP
	`), stats.TemplateID, stats.SuccessRate, stats.UsageCount, nullableTime(stats.LastUsed))
	if err != nil {
		return fmt.Errorf("failed to save template stats: %w", err)
	}
	return nil
}

// LoadTemplateStats returns every persisted statistics row.
func (s *Store) LoadTemplateStats() ([]TemplateStats, error) {
	rows, err := s.db.Query(`SELECT template_id, success_rate, usage_count, last_used FROM template_stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to query template stats: %w", err)
	}
	defer rows.Close()

	var out []TemplateStats
	for rows.Next() {
		var st TemplateStats
		var lastUsed sql.NullTime
		if err := rows.Scan(&st.TemplateID, &st.SuccessRate, &st.UsageCount, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan template stats: %w", err)
		}
		if lastUsed.Valid {
			st.LastUsed = lastUsed.Time
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UpsertPattern persists an error pattern. Implements feedback.PatternStore.
func (s *Store) UpsertPattern(p *feedback.Pattern) error {
	_, err := s.db.Exec(rebind(`
		INSERT INTO error_patterns (signature, category, frequency, autofix_available, fix_strategy, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (signature) DO UPDATE SET
			category = EXCLUDED.category,
			frequency = EXCLUDED.frequency,
			autofix_available = EXCLUDED.autofix_available,
			fix_strategy = EXCLUDED.fix_strategy,
			last_seen = EXCLUDED.last_seen
	`), p.Signature, p.Category, p.Frequency, p.AutofixAvailable, nullableString(p.FixStrategy), p.FirstSeen, p.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to upsert error pattern: %w", err)
	}
	return nil
}

// LoadPatterns returns every persisted error pattern. Implements
// feedback.PatternStore.
func (s *Store) LoadPatterns() ([]*feedback.Pattern, error) {
	rows, err := s.db.Query(`
		SELECT signature, category, frequency, autofix_available, fix_strategy, first_seen, last_seen
		FROM error_patterns`)
	if err != nil {
		return nil, fmt.Errorf("failed to query error patterns: %w", err)
	}
	defer rows.Close()

	var out []*feedback.Pattern
	for rows.Next() {
		var p feedback.Pattern
		var strategy sql.NullString
		if err := rows.Scan(&p.Signature, &p.Category, &p.Frequency, &p.AutofixAvailable, &strategy, &p.FirstSeen, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan error pattern: %w", err)
		}
		if strategy.Valid {
			p.FixStrategy = strategy.String
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
