// Package pgstore is the Postgres flavour of the graph-key store. It keeps
// the store.Store API on top of a pgx connection pool, so deployments that
// already run Postgres can share the graph_sql_keys table with their
// application schema.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitsmind/graphsql/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS graph_sql_keys (
    id         BIGSERIAL   PRIMARY KEY,
    key        TEXT        NOT NULL UNIQUE,
    string     TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for row timestamps.
func WithClock(c store.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Store is a graph-key store backed by Postgres.
type Store struct {
	pool  *pgxpool.Pool
	clock store.Clock
	owned bool
}

// Open connects to dsn, sizes the pool and ensures the schema exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	s, err := New(ctx, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing pool. The caller keeps ownership of pool; Close
// on the returned Store does not close it.
func New(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{pool: pool, clock: wallClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Close releases the pool when Open created it.
func (s *Store) Close() {
	if s.owned {
		s.pool.Close()
	}
}

// PutKey stores graph under key with upsert semantics.
func (s *Store) PutKey(ctx context.Context, key, graph string) (store.Key, error) {
	key = strings.TrimSpace(key)
	graph = strings.TrimSpace(graph)
	if key == "" || graph == "" {
		return store.Key{}, fmt.Errorf("put key: %w", store.ErrEmptyKey)
	}

	now := s.clock.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO graph_sql_keys (key, string, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (key) DO UPDATE SET
			string = EXCLUDED.string,
			updated_at = EXCLUDED.updated_at
		RETURNING id, key, string, created_at, updated_at
	`, key, graph, now)

	k, err := scanKey(row)
	if err != nil {
		return store.Key{}, fmt.Errorf("put key %q: %w", key, err)
	}
	return k, nil
}

// GetKey returns the row for key, or store.ErrKeyNotFound.
func (s *Store) GetKey(ctx context.Context, key string) (store.Key, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, key, string, created_at, updated_at
		FROM graph_sql_keys
		WHERE key = $1
	`, key)

	k, err := scanKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Key{}, fmt.Errorf("%w: %q", store.ErrKeyNotFound, key)
	}
	if err != nil {
		return store.Key{}, fmt.Errorf("get key %q: %w", key, err)
	}
	return k, nil
}

// ListKeys returns every stored key ordered by key.
func (s *Store) ListKeys(ctx context.Context) ([]store.Key, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, key, string, created_at, updated_at
		FROM graph_sql_keys
		ORDER BY key COLLATE "C" ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []store.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("list keys: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// DeleteKey removes key. Deleting a missing key returns store.ErrKeyNotFound.
func (s *Store) DeleteKey(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM graph_sql_keys WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", store.ErrKeyNotFound, key)
	}
	return nil
}

// LookupGraph returns the expression stored under key. found is false,
// with a nil error, when the key does not exist.
func (s *Store) LookupGraph(ctx context.Context, key string) (graph string, found bool, err error) {
	k, err := s.GetKey(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return k.Graph, true, nil
}

func scanKey(row pgx.Row) (store.Key, error) {
	var k store.Key
	if err := row.Scan(&k.ID, &k.Key, &k.Graph, &k.CreatedAt, &k.UpdatedAt); err != nil {
		return store.Key{}, err
	}
	k.CreatedAt = k.CreatedAt.UTC()
	k.UpdatedAt = k.UpdatedAt.UTC()
	return k, nil
}
