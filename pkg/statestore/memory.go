package statestore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore implements Store in process memory. State is lost on restart;
// use it for tests and dry runs only.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[Bucket][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[Bucket][]string)}
}

// Load returns a snapshot of all buckets.
func (s *MemoryStore) Load(_ context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := make(State, len(s.buckets))
	for bucket, entries := range s.buckets {
		state[bucket] = append([]string(nil), entries...)
	}
	return state, nil
}

// Add records an entry in a bucket. Duplicate adds are no-ops.
func (s *MemoryStore) Add(_ context.Context, bucket Bucket, entry string) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}
	if entry == "" {
		return fmt.Errorf("entry cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.buckets[bucket] {
		if existing == entry {
			return nil
		}
	}
	s.buckets[bucket] = append(s.buckets[bucket], entry)
	return nil
}

// Remove deletes an entry from a bucket.
func (s *MemoryStore) Remove(_ context.Context, bucket Bucket, entry string) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.buckets[bucket]
	for i, existing := range entries {
		if existing == entry {
			s.buckets[bucket] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// Replace swaps a bucket's contents for the given entries.
func (s *MemoryStore) Replace(_ context.Context, bucket Bucket, entries []string) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deduped := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		deduped = append(deduped, entry)
	}
	s.buckets[bucket] = deduped
	return nil
}

// Clear empties a bucket.
func (s *MemoryStore) Clear(_ context.Context, bucket Bucket) error {
	if !bucket.Valid() {
		return fmt.Errorf("unknown bucket %q", bucket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets, bucket)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
