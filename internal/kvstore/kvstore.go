// Package kvstore is the on-disk key-value cache the CLI keeps its session
// in. It satisfies identitysdk.Storage.
package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/askbar/internal/kvstore/migrations"
	"github.com/aussiebroadwan/askbar/pkg/identitysdk"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed string map. Calls are bounded by Timeout.
type Store struct {
	db      *sql.DB
	Timeout time.Duration
}

var _ identitysdk.Storage = (*Store)(nil)

// Open opens (creating if needed) the database at path. ":memory:" keeps
// everything in process.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0o700); err != nil {
			return nil, fmt.Errorf("kvstore: create dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, Timeout: 5 * time.Second}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvstore: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.Timeout)
}

func (s *Store) Get(key string) (string, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(key, value string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("kvstore: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kvstore: remove %q: %w", key, err)
	}
	return nil
}

// Keys lists every key in ascending order.
func (s *Store) Keys() ([]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("kvstore: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RemovePrefix deletes every key starting with prefix and reports how many
// went.
func (s *Store) RemovePrefix(prefix string) (int64, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE substr(key, 1, length(?1)) = ?1`, prefix)
	if err != nil {
		return 0, fmt.Errorf("kvstore: remove prefix %q: %w", prefix, err)
	}
	return res.RowsAffected()
}
