package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrKeyNotFound is returned when no row carries the requested key.
	ErrKeyNotFound = errors.New("graph key not found")

	// ErrEmptyKey is returned when a key or its graph expression is blank.
	ErrEmptyKey = errors.New("graph key and expression must be non-empty")
)

// Key is one row of graph_sql_keys.
type Key struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Graph     string    `json:"string"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PutKey stores graph under key. An existing key keeps its id and
// created_at; its expression and updated_at are replaced.
func (s *Store) PutKey(ctx context.Context, key, graph string) (Key, error) {
	key = strings.TrimSpace(key)
	graph = strings.TrimSpace(graph)
	if key == "" || graph == "" {
		return Key{}, fmt.Errorf("put key: %w", ErrEmptyKey)
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_sql_keys (key, string, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			string = excluded.string,
			updated_at = excluded.updated_at
	`, key, graph, now, now)
	if err != nil {
		return Key{}, fmt.Errorf("put key %q: %w", key, err)
	}

	return s.GetKey(ctx, key)
}

// GetKey returns the row for key, or ErrKeyNotFound.
func (s *Store) GetKey(ctx context.Context, key string) (Key, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, key, string, created_at, updated_at
		FROM graph_sql_keys
		WHERE key = ?
	`, key)

	k, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Key{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if err != nil {
		return Key{}, fmt.Errorf("get key %q: %w", key, err)
	}
	return k, nil
}

// ListKeys returns every stored key ordered by key.
func (s *Store) ListKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, string, created_at, updated_at
		FROM graph_sql_keys
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
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

// DeleteKey removes key. Deleting a missing key returns ErrKeyNotFound.
func (s *Store) DeleteKey(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM graph_sql_keys WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return nil
}

// LookupGraph returns the expression stored under key. found is false,
// with a nil error, when the key does not exist.
func (s *Store) LookupGraph(ctx context.Context, key string) (graph string, found bool, err error) {
	k, err := s.GetKey(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return k.Graph, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(sc scanner) (Key, error) {
	var (
		k                    Key
		createdAt, updatedAt string
	)
	if err := sc.Scan(&k.ID, &k.Key, &k.Graph, &createdAt, &updatedAt); err != nil {
		return Key{}, err
	}

	var err error
	if k.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Key{}, fmt.Errorf("parse created_at: %w", err)
	}
	if k.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Key{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return k, nil
}
