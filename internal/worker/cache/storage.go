// Package cache stores versioned generations of cached HTTP responses for
// the worker. A generation is a named set of entries keyed by request path
// and query. Backends: in-memory, SQLite and S3.
package cache

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrNotFound = errors.New("cache entry not found")
	ErrClosed   = errors.New("cache storage closed")
)

// Entry is a stored response.
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Cache is one generation.
type Cache interface {
	Name() string
	// Match returns ErrNotFound when key is absent.
	Match(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, e *Entry) error
	Keys(ctx context.Context) ([]string, error)
}

// Storage holds all generations. Implementations are safe for concurrent
// use.
type Storage interface {
	// Open returns the generation called name, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	Names(ctx context.Context) ([]string, error)
	// Delete removes a generation and reports whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
	Close() error
}

func cloneEntry(e *Entry) *Entry {
	c := *e
	c.Header = e.Header.Clone()
	c.Body = append([]byte(nil), e.Body...)
	return &c
}
