package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const blobsSchema = `CREATE TABLE IF NOT EXISTS blobs (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStorage keeps blobs in a single SQLite table
type SQLiteStorage struct {
	conn *sql.DB
	now  func() time.Time
}

// Ensure SQLiteStorage implements StorageInterface
var _ StorageInterface = (*SQLiteStorage)(nil)

// NewSQLiteStorage creates or opens the database at path
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec(blobsSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logrus.Infof("Opened SQLite report store at %s", path)
	return &SQLiteStorage{conn: conn, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.conn.Close()
}

// Store inserts or replaces the blob at key
func (s *SQLiteStorage) Store(ctx context.Context, key string, data []byte) error {
	query, args, err := sq.Insert("blobs").
		Columns("name", "data", "updated_at").
		Values(key, data, s.now().Unix()).
		Suffix("ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// Retrieve returns the blob at key or ErrNotFound
func (s *SQLiteStorage) Retrieve(ctx context.Context, key string) ([]byte, error) {
	query, args, err := sq.Select("data").From("blobs").Where(sq.Eq{"name": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	var data []byte
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("retrieving %s: %w", key, err)
	}
	return data, nil
}

// List returns the keys starting with prefix, sorted
func (s *SQLiteStorage) List(ctx context.Context, prefix string) ([]string, error) {
	query, args, err := sq.Select("name").From("blobs").
		Where("substr(name, 1, ?) = ?", len(prefix), prefix).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes the blob at key; deleting a missing key is not an error
func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete("blobs").Where(sq.Eq{"name": key}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
