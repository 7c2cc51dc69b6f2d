package cache

import (
	"context"
	"sync"
)

// Memory is an unbounded process-local cache. It carries no TTL and no
// cross-process invalidation; multi-instance deployments should use Redis instead.
type Memory struct {
	entries sync.Map
}

// NewMemory constructs an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{}
}

// Get returns a copy of the cached value for key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	stored, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	value, ok := stored.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.entries.Store(key, append([]byte(nil), value...))
	return nil
}

// Invalidate removes key. Removing an absent key is not an error.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}
