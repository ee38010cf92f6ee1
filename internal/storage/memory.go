package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore is an in-process BlobStore for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores the payload under key.
func (s *MemoryStore) Put(_ context.Context, key string, reader io.Reader, size int64, _ string) error {
	data, errRead := io.ReadAll(reader)
	if errRead != nil {
		return fmt.Errorf("memory store: read payload: %w", errRead)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("memory store: size mismatch: declared %d, read %d", size, len(data))
	}
	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return nil
}

// Get returns a reader over the payload stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Remove deletes the payload stored under key. Removing an absent key
// is not an error.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}
