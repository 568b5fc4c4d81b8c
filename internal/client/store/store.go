// Package store is the local persistent draft store. It owns one lazily
// opened SQLite handle per process, shared by reference count, and runs every
// operation in its own transaction so no partial record is ever visible.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/dmitrijs2005/storyqueue/internal/client/repositories/drafts"
	"github.com/dmitrijs2005/storyqueue/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storyqueue/internal/dbx"
	"github.com/dmitrijs2005/storyqueue/internal/filex"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	_ "modernc.org/sqlite"
)

// Config describes where the database lives.
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// DSN builds the modernc sqlite connection string. WAL plus a busy timeout
// lets several processes share the file.
func (c Config) DSN() string {
	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		c.Path, timeout.Milliseconds())
}

type Store struct {
	cfg Config
	log logging.Logger
	now func() time.Time

	mu     sync.Mutex
	handle *Handle
	closed bool
	inits  int
}

func New(cfg Config, log logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{cfg: cfg, log: log.With("component", "store"), now: time.Now}
}

// Handle is a counted reference to the shared database connection.
type Handle struct {
	store    *Store
	db       *sql.DB
	version  int64
	refs     int
	detached bool
}

// DB exposes the underlying pool.
func (h *Handle) DB() *sql.DB { return h.db }

// Version is the schema version the handle was opened at.
func (h *Handle) Version() int64 { return h.version }

// Release drops one reference. A detached handle is closed with its last
// reference.
func (h *Handle) Release() {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.refs > 0 {
		h.refs--
	}
	if h.refs == 0 && h.detached {
		s.closeHandle(h)
	}
}

// Open returns the shared handle, creating it on first use. Callers must
// Release it.
func (s *Store) Open(ctx context.Context) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	if s.handle == nil {
		h, err := s.init(ctx)
		if err != nil {
			s.log.Error(ctx, "open local storage failed", "path", s.cfg.Path, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		s.handle = h
	}
	s.handle.refs++
	return s.handle, nil
}

func (s *Store) init(ctx context.Context) (*Handle, error) {
	s.inits++

	path, err := filex.EnsureParentDir(s.cfg.Path)
	if err != nil {
		return nil, err
	}
	cfg := s.cfg
	cfg.Path = path

	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	known, err := LatestVersion()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	version, err := migrate(ctx, db, known)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s.log.Debug(ctx, "local storage opened", "path", path, "version", version)
	return &Handle{store: s, db: db, version: version}, nil
}

// Invalidate reacts to a schema change made elsewhere. The current handle is
// detached and closed once released; the next Open re-initialises.
func (s *Store) Invalidate(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detachLocked()
	s.log.Warn(context.Background(), "local storage invalidated", "reason", reason)
}

func (s *Store) detachLocked() {
	h := s.handle
	if h == nil {
		return
	}
	s.handle = nil
	h.detached = true
	if h.refs == 0 {
		s.closeHandle(h)
	}
}

func (s *Store) closeHandle(h *Handle) {
	if h.db == nil {
		return
	}
	if err := h.db.Close(); err != nil {
		s.log.Warn(context.Background(), "close local storage", "error", err)
	}
	h.db = nil
}

// Close detaches the handle and rejects further Opens.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.detachLocked()
	return nil
}

// acquire opens the handle and verifies nobody upgraded the schema since.
func (s *Store) acquire(ctx context.Context) (*Handle, error) {
	h, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	current, err := schemaVersion(ctx, h.db)
	if err != nil {
		h.Release()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if current > h.version {
		h.Release()
		s.Invalidate(fmt.Sprintf("schema version changed from %d to %d", h.version, current))
		return nil, fmt.Errorf("%w: schema version %d is newer than %d", ErrStorageUnavailable, current, h.version)
	}
	return h, nil
}

func (s *Store) write(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	h, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()

	if err := dbx.WithTx(ctx, h.db, nil, fn); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	h, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()

	if err := dbx.WithTx(ctx, h.db, nil, fn); err != nil {
		return fmt.Errorf("%w: %w", ErrRead, err)
	}
	return nil
}

func (s *Store) stamp(d models.Draft) models.Draft {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}
	return d
}

// Add persists d and returns its id.
func (s *Store) Add(ctx context.Context, d models.Draft) (int64, error) {
	var id int64
	err := s.write(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		id, err = drafts.NewSQLiteRepository(tx).Insert(ctx, s.stamp(d))
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AddBatch persists all drafts or none of them.
func (s *Store) AddBatch(ctx context.Context, ds []models.Draft) ([]int64, error) {
	ids := make([]int64, 0, len(ds))
	err := s.write(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := drafts.NewSQLiteRepository(tx)
		for _, d := range ds {
			id, err := repo.Insert(ctx, s.stamp(d))
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// List returns all stored drafts.
func (s *Store) List(ctx context.Context) ([]models.Draft, error) {
	var out []models.Draft
	err := s.read(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		out, err = drafts.NewSQLiteRepository(tx).List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes the draft with id. Removing a missing id is not an error.
func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.write(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		found, err := drafts.NewSQLiteRepository(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			s.log.Debug(ctx, "draft already removed", "id", id)
		}
		return nil
	})
}

// Count returns the number of queued drafts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.read(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = drafts.NewSQLiteRepository(tx).Count(ctx)
		return err
	})
	return n, err
}

// Meta reads a metadata value; absent keys yield nil.
func (s *Store) Meta(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.read(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		v, err = metadata.NewSQLiteRepository(tx).Get(ctx, key)
		return err
	})
	return v, err
}

func (s *Store) SetMeta(ctx context.Context, key string, value []byte) error {
	return s.write(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Set(ctx, key, value)
	})
}

func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	return s.write(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Delete(ctx, key)
	})
}

// IsUnavailable reports whether err means the store cannot be used at all,
// as opposed to a failed individual read or write.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
