// Package sqlite stores whole documents as rows of an embedded SQLite file.
package sqlite

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"projecttracker/internal/blob/core"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Store implements core.Store on a single `documents` table. Each Put is one
// upsert statement, so a document is replaced in a single transaction.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the SQLite database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "projecttracker.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		resource TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Driver returns the sqlite driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverSQLite }

// Put upserts the document at key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(resource,payload,updated_at) VALUES(?,?,?) ON CONFLICT(resource) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		key, payload, now.UnixNano()); err != nil {
		return core.Info{}, fmt.Errorf("upsert %s: %w", key, err)
	}
	return info(key, payload, opts.ContentType, now), nil
}

// Get returns the document at key.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	var payload []byte
	var updated int64
	err := s.db.QueryRowContext(ctx, `SELECT payload, updated_at FROM documents WHERE resource = ?`, key).Scan(&payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Info{}, nil, fmt.Errorf("document %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return core.Info{}, nil, fmt.Errorf("select %s: %w", key, err)
	}
	return info(key, payload, "", time.Unix(0, updated).UTC()), io.NopCloser(bytes.NewReader(payload)), nil
}

// Delete removes the document, returning false when it did not exist.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE resource = ?`, key)
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
	rows, err := s.db.QueryContext(ctx, `SELECT resource, length(payload), updated_at FROM documents ORDER BY resource`)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Info
	for rows.Next() {
		var key string
		var size, updated int64
		if err := rows.Scan(&key, &size, &updated); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, core.Info{Key: key, Size: size, LastModified: time.Unix(0, updated).UTC()})
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

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
