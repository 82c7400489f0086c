// Package postgres stores whole documents as JSONB rows in PostgreSQL.
package postgres

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"projecttracker/internal/blob/core"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/projecttracker?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store implements core.Store on a `documents` table keyed by resource name.
// Payloads must be JSON; PostgreSQL normalises their whitespace on write.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN)
// and ensures the documents table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDocumentsTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureDocumentsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS documents (
		resource TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

// Driver returns the postgres driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverPostgres }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put upserts the document at key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (resource, payload, updated_at) VALUES ($1, $2, $3) ON CONFLICT (resource) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		key, payload, now); err != nil {
		return core.Info{}, fmt.Errorf("upsert %s: %w", key, err)
	}
	return info(key, payload, opts.ContentType, now), nil
}

// Get returns the document at key.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT resource, payload, updated_at FROM documents WHERE resource = $1`, key)
	if err != nil {
		return core.Info{}, nil, fmt.Errorf("select %s: %w", key, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var resource string
		var payload []byte
		var updated time.Time
		if err := rows.Scan(&resource, &payload, &updated); err != nil {
			return core.Info{}, nil, fmt.Errorf("scan %s: %w", key, err)
		}
		if resource != key {
			continue
		}
		return info(key, payload, "", updated.UTC()), io.NopCloser(bytes.NewReader(payload)), nil
	}
	if err := rows.Err(); err != nil {
		return core.Info{}, nil, fmt.Errorf("iterate %s: %w", key, err)
	}
	return core.Info{}, nil, fmt.Errorf("document %s: %w", key, core.ErrNotFound)
}

// Delete removes the document, returning false when it did not exist.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE resource = $1`, key)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns documents whose key has prefix, ordered by key.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT resource, payload, updated_at FROM documents ORDER BY resource`)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Info
	for rows.Next() {
		var resource string
		var payload []byte
		var updated time.Time
		if err := rows.Scan(&resource, &payload, &updated); err != nil {
			return nil, fmt.Errorf("scan documents: %w", err)
		}
		if !strings.HasPrefix(resource, prefix) {
			continue
		}
		out = append(out, core.Info{Key: resource, Size: int64(len(payload)), LastModified: updated.UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func info(key string, payload []byte, contentType string, modified time.Time) core.Info {
	sum := sha256.Sum256(payload)
	return core.Info{
		Key:          key,
		Size:         int64(len(payload)),
		ContentType:  contentType,
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: modified,
	}
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
