package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"newsdigest/internal/domain"
	"newsdigest/internal/ports"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS sent_articles (
    topic   TEXT        NOT NULL,
    url     TEXT        NOT NULL,
    title   TEXT        NOT NULL DEFAULT '',
    sent_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (topic, url)
)`

// PostgresHistory persists sent-article history in Postgres. The primary
// key on (topic, url) makes appends idempotent, and the database serializes
// concurrent writers, so two topics appending at once cannot lose updates.
type PostgresHistory struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.HistoryStore = (*PostgresHistory)(nil)

// NewPostgresHistory wires a sql.DB implementation.
func NewPostgresHistory(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// OpenPostgresHistory connects to the DSN and ensures the schema exists.
func OpenPostgresHistory(ctx context.Context, dsn string) (*PostgresHistory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPostgresHistory(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the history table when it is missing.
func (s *PostgresHistory) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("create sent_articles table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresHistory) Close() error {
	return s.db.Close()
}

// LoadRecent returns the topic's history entries inside the retention
// window. Entries past the window are pruned on the way.
func (s *PostgresHistory) LoadRecent(ctx context.Context, topic string, window time.Duration) ([]domain.HistoryEntry, error) {
	cutoff := time.Now().Add(-window)

	if err := s.pruneOlder(ctx, topic, cutoff); err != nil {
		return nil, err
	}

	query, args, err := s.builder.
		Select("url", "title", "sent_at").
		From("sent_articles").
		Where(sq.Eq{"topic": topic}).
		Where(sq.GtOrEq{"sent_at": cutoff}).
		OrderBy("sent_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.URL, &entry.Title, &entry.SentAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}

	return entries, nil
}

// Append records delivered articles. Re-appending the same URL is a no-op.
func (s *PostgresHistory) Append(ctx context.Context, topic string, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	insert := s.builder.
		Insert("sent_articles").
		Columns("topic", "url", "title", "sent_at").
		Suffix("ON CONFLICT (topic, url) DO NOTHING")
	for _, entry := range entries {
		insert = insert.Values(topic, entry.URL, entry.Title, entry.SentAt)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build history insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *PostgresHistory) pruneOlder(ctx context.Context, topic string, cutoff time.Time) error {
	query, args, err := s.builder.
		Delete("sent_articles").
		Where(sq.Eq{"topic": topic}).
		Where(sq.Lt{"sent_at": cutoff}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build history prune: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}
