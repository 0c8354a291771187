package store

import (
	"context"
	"fmt"
	"time"

	"renthub/internal/query"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// NextID returns the next sequential human-readable identifier for prefix,
// e.g. "O-00001". The increment is a single atomic upsert, safe under
// concurrent creation.
func (s *Store) NextID(ctx context.Context, prefix string) (string, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `
		INSERT INTO id_sequences (prefix, last_value) VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET last_value = id_sequences.last_value + 1
		RETURNING last_value`, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to advance sequence %s: %w", prefix, err)
	}
	return FormatID(prefix, n), nil
}

// FormatID renders a sequence value as "<prefix>-00001".
func FormatID(prefix string, n int64) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}

// List runs the builder's select against dest and returns the pagination
// metadata from the matching pre-pagination count.
func (s *Store) List(ctx context.Context, b *query.Builder, dest interface{}) (query.Meta, error) {
	sql, args := b.SelectSQL()
	if err := s.db.SelectContext(ctx, dest, s.db.Rebind(sql), args...); err != nil {
		return query.Meta{}, fmt.Errorf("list query failed: %w", err)
	}

	countSQL, countArgs := b.CountSQL()
	var total int64
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(countSQL), countArgs...); err != nil {
		return query.Meta{}, fmt.Errorf("count query failed: %w", err)
	}
	return b.Meta(total), nil
}
