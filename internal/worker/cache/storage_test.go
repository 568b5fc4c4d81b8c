package cache

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStorageSuite checks behaviour every backend shares.
func runStorageSuite(t *testing.T, newStorage func(t *testing.T) Storage) {
	t.Run("put and match", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		c, err := s.Open(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, "v1", c.Name())

		stored := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
		err = c.Put(ctx, "/app.js?v=2", &Entry{
			URL:      "http://origin/app.js?v=2",
			Status:   http.StatusOK,
			Header:   http.Header{"Content-Type": {"text/javascript"}},
			Body:     []byte("console.log(1)"),
			StoredAt: stored,
		})
		require.NoError(t, err)

		e, err := c.Match(ctx, "/app.js?v=2")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, e.Status)
		assert.Equal(t, "text/javascript", e.Header.Get("Content-Type"))
		assert.Equal(t, []byte("console.log(1)"), e.Body)
		assert.True(t, stored.Equal(e.StoredAt))

		_, err = c.Match(ctx, "/missing")
		assert.ErrorIs(t, err, ErrNotFound)

		keys, err := c.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"/app.js?v=2"}, keys)
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		c, err := s.Open(ctx, "v1")
		require.NoError(t, err)

		require.NoError(t, c.Put(ctx, "/", &Entry{Status: 200, Body: []byte("old")}))
		require.NoError(t, c.Put(ctx, "/", &Entry{Status: 200, Body: []byte("new")}))

		e, err := c.Match(ctx, "/")
		require.NoError(t, err)
		assert.Equal(t, "new", string(e.Body))
	})

	t.Run("generations are isolated", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		v1, err := s.Open(ctx, "v1")
		require.NoError(t, err)
		v2, err := s.Open(ctx, "v2")
		require.NoError(t, err)
		require.NoError(t, v1.Put(ctx, "/", &Entry{Status: 200, Body: []byte("one")}))

		_, err = v2.Match(ctx, "/")
		assert.ErrorIs(t, err, ErrNotFound)

		names, err := s.Names(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"v1", "v2"}, names)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		v1, err := s.Open(ctx, "v1")
		require.NoError(t, err)
		require.NoError(t, v1.Put(ctx, "/", &Entry{Status: 200}))
		_, err = s.Open(ctx, "v2")
		require.NoError(t, err)

		found, err := s.Delete(ctx, "v1")
		require.NoError(t, err)
		assert.True(t, found)

		found, err = s.Delete(ctx, "v1")
		require.NoError(t, err)
		assert.False(t, found)

		names, err := s.Names(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"v2"}, names)

		// reopening starts empty
		v1, err = s.Open(ctx, "v1")
		require.NoError(t, err)
		_, err = v1.Match(ctx, "/")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("closed", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.Close())

		_, err := s.Open(context.Background(), "v1")
		assert.ErrorIs(t, err, ErrClosed)
		_, err = s.Names(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestMemoryStorage(t *testing.T) {
	runStorageSuite(t, func(t *testing.T) Storage {
		return NewMemoryStorage()
	})
}

func TestMemoryStorage_MatchReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryStorage().Open(ctx, "v1")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "/", &Entry{Status: 200, Body: []byte("abc")}))

	e, err := c.Match(ctx, "/")
	require.NoError(t, err)
	e.Body[0] = 'X'

	again, err := c.Match(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again.Body))
}

func TestSQLiteStorage(t *testing.T) {
	runStorageSuite(t, func(t *testing.T) Storage {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cache.db"), time.Second)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	s, err := OpenSQLite(ctx, path, time.Second)
	require.NoError(t, err)
	c, err := s.Open(ctx, "v3")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "/index.html", &Entry{Status: 200, Body: []byte("<html>")}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, time.Second)
	require.NoError(t, err)
	defer s.Close()

	c, err = s.Open(ctx, "v3")
	require.NoError(t, err)
	e, err := c.Match(ctx, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(e.Body))
}
