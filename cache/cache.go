// Package cache provides the content-addressed result cache: extracted text
// keyed by a digest of the raw input bytes. Byte-identical uploads hit the
// cache regardless of filename or timing; any single-bit difference
// produces a different key.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Key derives the cache key for raw input bytes: a SHA-256 digest in hex.
func Key(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Store is the backend contract. Implementations must support concurrent
// readers and writers: a Get never observes a partially written entry.
type Store interface {
	// Get returns the cached text for a key, reporting whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put records the text for a key. Entries are immutable in practice:
	// new content produces a new key.
	Put(ctx context.Context, key, text string) error
	// Clear removes every entry. It is the only eviction mechanism in the
	// base design.
	Clear(ctx context.Context) error
}

// MemoryStore is the in-process Store: an unbounded map guarded by a
// read-write mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.entries[key]
	return text, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = text
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string)
	return nil
}

// Len reports the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
