// Package postgres provides a Postgres-backed store.Store for deployments
// that keep provenance and context records in a database instead of YAML.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/topic-crawler/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable holds every namespace's records.
const DefaultTable = "crawl_records"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of pgxpool.Pool used by the store.
type Pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// NewPool connects to Postgres using cfg.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// Store keeps JSON-encoded records of one namespace (for example
// "franka/documents") in a shared table:
//
//	CREATE TABLE crawl_records (
//		namespace  text        NOT NULL,
//		key        text        NOT NULL,
//		value      jsonb       NOT NULL,
//		updated_at timestamptz NOT NULL DEFAULT now(),
//		PRIMARY KEY (namespace, key)
//	);
type Store[V any] struct {
	pool      Pool
	table     string
	namespace string
}

// New returns a Store writing into table under namespace.
func New[V any](pool Pool, table, namespace string) (*Store[V], error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if namespace == "" {
		return nil, errors.New("namespace is required")
	}
	return &Store[V]{pool: pool, table: table, namespace: namespace}, nil
}

// All returns every record in the namespace.
func (s *Store[V]) All(ctx context.Context) (map[string]V, error) {
	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE namespace = $1`, s.table)
	rows, err := s.pool.Query(ctx, query, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]V)
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", key, err)
		}
		out[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Get returns the record stored under key.
func (s *Store[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	query := fmt.Sprintf(`SELECT value FROM %s WHERE namespace = $1 AND key = $2`, s.table)
	var raw []byte
	if err := s.pool.QueryRow(ctx, query, s.namespace, key).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, fmt.Errorf("%s: %w", key, store.ErrNotFound)
		}
		return zero, fmt.Errorf("get record: %w", err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("decode record %s: %w", key, err)
	}
	return v, nil
}

// Upsert writes the record immediately.
func (s *Store[V]) Upsert(ctx context.Context, key string, value V) error {
	if key == "" {
		return errors.New("key is required")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE
SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.namespace, key, raw); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Persist is a no-op; every Upsert is already committed.
func (s *Store[V]) Persist(context.Context) error {
	return nil
}

// Reset deletes every record in the namespace.
func (s *Store[V]) Reset(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.namespace); err != nil {
		return fmt.Errorf("reset records: %w", err)
	}
	return nil
}

var _ store.Store[store.ProvenanceRecord] = (*Store[store.ProvenanceRecord])(nil)
