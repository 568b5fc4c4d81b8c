package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/dbx"
	"github.com/dmitrijs2005/storyqueue/internal/filex"
	"github.com/dmitrijs2005/storyqueue/internal/worker/cache/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps generations in a SQLite file.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time

	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// cache schema. A leading "~/" in path is expanded.
func OpenSQLite(ctx context.Context, path string, busyTimeout time.Duration) (*SQLiteStorage, error) {
	if path != ":memory:" {
		p, err := filex.EnsureParentDir(path)
		if err != nil {
			return nil, err
		}
		path = p
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}

	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

func (s *SQLiteStorage) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *SQLiteStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to open generation %s: %w", name, err)
	}
	return &sqliteCache{storage: s, name: name}, nil
}

func (s *SQLiteStorage) Names(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM generations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generations: %w", err)
	}
	return names, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var found bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE generation = ?`, name); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE name = ?`, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete generation %s: %w", name, err)
	}
	return found, nil
}

func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type sqliteCache struct {
	storage *SQLiteStorage
	name    string
}

func (c *sqliteCache) Name() string { return c.name }

func (c *sqliteCache) Match(ctx context.Context, key string) (*Entry, error) {
	if err := c.storage.checkOpen(); err != nil {
		return nil, err
	}
	var (
		e        Entry
		header   []byte
		storedAt int64
	)
	err := c.storage.db.QueryRowContext(ctx,
		`SELECT url, status, header, body, stored_at FROM entries WHERE generation = ? AND key = ?`,
		c.name, key).Scan(&e.URL, &e.Status, &header, &e.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match %s: %w", key, err)
	}
	if len(header) > 0 {
		if err := json.Unmarshal(header, &e.Header); err != nil {
			return nil, fmt.Errorf("failed to decode header of %s: %w", key, err)
		}
	}
	e.StoredAt = time.UnixMilli(storedAt).UTC()
	return &e, nil
}

func (c *sqliteCache) Put(ctx context.Context, key string, e *Entry) error {
	if err := c.storage.checkOpen(); err != nil {
		return err
	}
	header, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("failed to encode header of %s: %w", key, err)
	}
	storedAt := e.StoredAt
	if storedAt.IsZero() {
		storedAt = c.storage.now()
	}
	_, err = c.storage.db.ExecContext(ctx, `
		INSERT INTO entries (generation, key, url, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(generation, key) DO UPDATE SET
			url = excluded.url, status = excluded.status, header = excluded.header,
			body = excluded.body, stored_at = excluded.stored_at`,
		c.name, key, e.URL, e.Status, header, e.Body, storedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (c *sqliteCache) Keys(ctx context.Context) ([]string, error) {
	if err := c.storage.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := c.storage.db.QueryContext(ctx,
		`SELECT key FROM entries WHERE generation = ? ORDER BY key`, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", err)
	}
	return keys, nil
}
