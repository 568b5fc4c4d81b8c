package cache

import (
	"context"
	"slices"
	"sync"
)

type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]*memoryCache
	closed bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*memoryCache)}
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c, ok := s.caches[name]
	if !ok {
		c = &memoryCache{name: name, entries: make(map[string]*Entry)}
		s.caches[name] = c
	}
	return c, nil
}

func (s *MemoryStorage) Names(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	names := make([]string, 0, len(s.caches))
	for n := range s.caches {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.caches[name]
	delete(s.caches, name)
	return ok, nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memoryCache struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Entry
}

func (c *memoryCache) Name() string { return c.name }

func (c *memoryCache) Match(_ context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (c *memoryCache) Put(_ context.Context, key string, e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cloneEntry(e)
	return nil
}

func (c *memoryCache) Keys(context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
