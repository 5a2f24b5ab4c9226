// Package kv provides the fallback implementation of storage.Store. Each
// collection is serialized as one JSON document under a fixed key of a simple
// key-value Backend, and every write replaces the whole document.
package kv

import (
	"context"
	"sync"
)

// Backend is a minimal key-value persistence layer.
type Backend interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// PutAll stores several keys in one call. Backends that can apply the batch
	// atomically do so.
	PutAll(ctx context.Context, values map[string][]byte) error

	// Close releases backend resources.
	Close() error
}

// MemoryBackend keeps documents in process memory. Used in tests and for
// throwaway sessions.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (b *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values[key] = append([]byte(nil), value...)
	return nil
}

func (b *MemoryBackend) PutAll(_ context.Context, values map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, value := range values {
		b.values[key] = append([]byte(nil), value...)
	}
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
